// Package dedup separates spreadsheet rows that already exist in the
// destination table from the ones that are new.
//
// Existence is decided by the table's unique identifier (see package keys).
// A failed check never drops a row: the row is treated as new and the
// database's own constraints get the final word on insert.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/sheetload/internal/core"
	"github.com/JonMunkholm/sheetload/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBatchSize = 100
	DefaultMaxRows   = 10000
)

// ErrMissingKeyColumns is returned when the rows lack a column of the
// identifier being used.
var ErrMissingKeyColumns = errors.New("missing key columns")

// Strategy selects how existence is checked.
type Strategy string

const (
	// StrategyPerRow issues one count query per row.
	StrategyPerRow Strategy = "per_row"
	// StrategyBatched asks for the existing keys of a whole batch at once.
	// It needs a catalog implementing core.KeyLookup and falls back to
	// per-row checks otherwise.
	StrategyBatched Strategy = "batched"
)

// ParseStrategy parses a configured strategy name. Empty means per_row.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyPerRow:
		return StrategyPerRow, nil
	case StrategyBatched:
		return StrategyBatched, nil
	default:
		return "", fmt.Errorf("unknown dedup strategy %q (want per_row or batched)", s)
	}
}

// Options configures a Filter.
type Options struct {
	BatchSize int
	MaxRows   int
	// Workers bounds concurrent existence checks; 1 is sequential.
	Workers  int
	Strategy Strategy
}

// Filter checks rows against a destination table.
type Filter struct {
	catalog core.Catalog
	opts    Options
}

// NewFilter creates a Filter over catalog, filling unset options with
// defaults.
func NewFilter(catalog core.Catalog, opts Options) *Filter {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyPerRow
	}
	return &Filter{catalog: catalog, opts: opts}
}

// Filter partitions rows into new and existing. rows must use destination
// column names. A nil id marks every row as new with a warning.
func (f *Filter) Filter(ctx context.Context, schema, table string, id *core.UniqueIdentifier, rows *core.Table) *core.FilterResult {
	start := time.Now()
	runID := logging.RunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
	}
	log := logging.FromContext(ctx).With("schema", schema, "table", table)

	res := &core.FilterResult{RunID: runID, Identifier: id}
	done := func() *core.FilterResult {
		res.ProcessingTime = time.Since(start)
		return res
	}

	if rows.Len() == 0 {
		res.Success = true
		res.Rows = rows
		if rows == nil {
			res.Rows = core.NewTable()
		}
		res.Warnings = append(res.Warnings, "no rows to filter")
		return done()
	}

	if rows.Len() > f.opts.MaxRows {
		msg := fmt.Sprintf("input has %d rows, more than the limit of %d; only the first %d rows were filtered",
			rows.Len(), f.opts.MaxRows, f.opts.MaxRows)
		log.Warn("truncating rows for duplicate filtering", "rows", rows.Len(), "max_rows", f.opts.MaxRows)
		res.Warnings = append(res.Warnings, msg)
		rows = rows.Head(f.opts.MaxRows)
	}
	res.OriginalCount = rows.Len()

	if id == nil {
		res.Success = true
		res.NewCount = rows.Len()
		res.Rows = rows
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%v for %s.%s; duplicates cannot be filtered", core.ErrNoIdentifier, schema, table))
		return done()
	}

	if missing := rows.MissingColumns(id.Columns); len(missing) > 0 {
		err := fmt.Errorf("%w in data: %s", ErrMissingKeyColumns, strings.Join(missing, ", "))
		log.Error("duplicate filter failed", "error", err)
		res.Errors = append(res.Errors, err.Error())
		return done()
	}

	exists, failed := f.existence(ctx, schema, table, id.Columns, rows)
	if err := ctx.Err(); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("duplicate check: %v", err))
		return done()
	}
	if failed > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%d existence checks failed; those rows were treated as new", failed))
	}

	var fresh []int
	for i, e := range exists {
		if e {
			res.Existing = append(res.Existing, i)
		} else {
			fresh = append(fresh, i)
		}
	}
	res.Success = true
	res.Rows = rows.Select(fresh)
	res.NewCount = len(fresh)
	res.DuplicateCount = len(res.Existing)

	log.Info("duplicate filter complete",
		"rows", res.OriginalCount,
		"new", res.NewCount,
		"existing", res.DuplicateCount,
		"failed_checks", failed,
	)
	return done()
}

// existence returns, per row, whether the row's key exists, and how many
// checks failed.
func (f *Filter) existence(ctx context.Context, schema, table string, cols []string, rows *core.Table) ([]bool, int) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		idx[i] = rows.ColumnIndex(c)
	}
	keyOf := func(r int) []any {
		key := make([]any, len(cols))
		for i, ci := range idx {
			if v := rows.Rows[r][ci]; !core.IsNull(v) {
				key[i] = v
			}
		}
		return key
	}

	exists := make([]bool, rows.Len())
	var failed int64

	if lookup, ok := f.catalog.(core.KeyLookup); ok && f.opts.Strategy == StrategyBatched {
		f.batches(ctx, rows.Len(), func(ctx context.Context, lo, hi int) {
			keys := make([][]any, 0, hi-lo)
			for r := lo; r < hi; r++ {
				keys = append(keys, keyOf(r))
			}
			found, err := lookup.ExistingKeys(ctx, schema, table, cols, keys)
			if err != nil {
				atomic.AddInt64(&failed, int64(hi-lo))
				logging.FromContext(ctx).Warn("batch existence check failed, treating rows as new",
					"from_row", lo, "to_row", hi, "error", err)
				return
			}
			set := make(map[string]bool, len(found))
			for _, k := range found {
				set[canonical(k)] = true
			}
			for r := lo; r < hi; r++ {
				exists[r] = set[canonical(keys[r-lo])]
			}
		})
		return exists, int(failed)
	}
	if f.opts.Strategy == StrategyBatched {
		logging.FromContext(ctx).Debug("catalog has no batch key lookup, checking rows one by one")
	}

	f.batches(ctx, rows.Len(), func(ctx context.Context, lo, hi int) {
		for r := lo; r < hi; r++ {
			if ctx.Err() != nil {
				return
			}
			key := keyOf(r)
			m := make(map[string]any, len(cols))
			for i, c := range cols {
				m[c] = key[i]
			}
			ok, err := f.catalog.RowExists(ctx, schema, table, m)
			if err != nil {
				atomic.AddInt64(&failed, 1)
				logging.FromContext(ctx).Warn("existence check failed, treating row as new",
					"row", r+2, "error", err)
				continue
			}
			exists[r] = ok
		}
	})
	return exists, int(failed)
}

// batches calls fn for each [lo, hi) slice of n rows, at most Workers at a
// time. Each call writes only its own slice of the shared result, so row
// order is kept without locking.
func (f *Filter) batches(ctx context.Context, n int, fn func(ctx context.Context, lo, hi int)) {
	size := f.opts.BatchSize
	if f.opts.Workers > 1 && f.opts.Strategy == StrategyPerRow {
		// spread rows over workers even when they fit one batch
		if per := (n + f.opts.Workers - 1) / f.opts.Workers; per < size {
			size = per
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Workers)
	for lo := 0; lo < n; lo += size {
		if gctx.Err() != nil {
			break
		}
		lo, hi := lo, min(lo+size, n)
		g.Go(func() error {
			fn(gctx, lo, hi)
			return nil
		})
	}
	g.Wait()
}

// canonical renders a key so that values equal in the spreadsheet compare
// equal regardless of their Go type.
func canonical(key []any) string {
	parts := make([]string, len(key))
	for i, v := range key {
		if v == nil {
			parts[i] = "\x00"
			continue
		}
		parts[i] = core.Stringify(v)
	}
	return strings.Join(parts, "\x1f")
}
