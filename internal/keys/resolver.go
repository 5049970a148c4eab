// Package keys picks the unique key used to detect rows that already exist
// in a destination table.
//
// Candidates come from three catalog sources, ranked by priority: the
// primary key (1), unique constraints (2) and unique indexes (3). Within one
// priority the catalog's order is kept. A table with no candidate is a valid
// state: callers skip deduplication and warn.
package keys

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetload/internal/core"
	"github.com/JonMunkholm/sheetload/internal/logging"
)

const (
	PriorityPrimaryKey       = 1
	PriorityUniqueConstraint = 2
	PriorityUniqueIndex      = 3
)

// Resolver reads key metadata from a catalog.
type Resolver struct {
	catalog core.Catalog
}

// NewResolver creates a Resolver over catalog.
func NewResolver(catalog core.Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Candidates returns every usable identifier of schema.table, best first.
// An error from the catalog is returned as is; it means the table's keys
// could not be read, not that there are none.
func (r *Resolver) Candidates(ctx context.Context, schema, table string) ([]core.UniqueIdentifier, error) {
	var out []core.UniqueIdentifier

	pk, err := r.catalog.GetPrimaryKey(ctx, schema, table)
	if err != nil {
		return nil, fmt.Errorf("get primary key of %s.%s: %w", schema, table, err)
	}
	if len(pk) > 0 {
		out = append(out, core.UniqueIdentifier{
			Kind:     core.KindPrimaryKey,
			Name:     "PRIMARY",
			Columns:  pk,
			Priority: PriorityPrimaryKey,
		})
	}

	constraints, err := r.catalog.GetUniqueConstraints(ctx, schema, table)
	if err != nil {
		return nil, fmt.Errorf("get unique constraints of %s.%s: %w", schema, table, err)
	}
	for _, c := range constraints {
		if len(c.Columns) == 0 {
			continue
		}
		out = append(out, core.UniqueIdentifier{
			Kind:     core.KindUniqueConstraint,
			Name:     c.Name,
			Columns:  c.Columns,
			Priority: PriorityUniqueConstraint,
		})
	}

	indexes, err := r.catalog.GetUniqueIndexes(ctx, schema, table)
	if err != nil {
		return nil, fmt.Errorf("get unique indexes of %s.%s: %w", schema, table, err)
	}
	for _, ix := range indexes {
		if len(ix.Columns) == 0 {
			continue
		}
		out = append(out, core.UniqueIdentifier{
			Kind:     core.KindUniqueIndex,
			Name:     ix.Name,
			Columns:  ix.Columns,
			Priority: PriorityUniqueIndex,
		})
	}

	return out, nil
}

// Resolve returns the best identifier of schema.table, or nil when the table
// enforces no uniqueness.
func (r *Resolver) Resolve(ctx context.Context, schema, table string) (*core.UniqueIdentifier, error) {
	candidates, err := r.Candidates(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		logging.FromContext(ctx).Warn("no unique identifier found",
			"schema", schema,
			"table", table,
		)
		return nil, nil
	}

	best := candidates[0]
	logging.FromContext(ctx).Debug("resolved unique identifier",
		"schema", schema,
		"table", table,
		"kind", best.Kind,
		"columns", best.Columns,
		"candidates", len(candidates),
	)
	return &best, nil
}

// Describe renders an identifier for warnings and reports.
func Describe(id *core.UniqueIdentifier) string {
	if id == nil {
		return "no unique identifier"
	}
	return fmt.Sprintf("%s %q on (%s), priority %d", humanKind(id.Kind), id.Name, strings.Join(id.Columns, ", "), id.Priority)
}

func humanKind(k core.IdentifierKind) string {
	switch k {
	case core.KindPrimaryKey:
		return "primary key"
	case core.KindUniqueConstraint:
		return "unique constraint"
	case core.KindUniqueIndex:
		return "unique index"
	default:
		return string(k)
	}
}
