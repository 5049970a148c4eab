package core

import (
	"context"
	"errors"
)

// ErrNoIdentifier describes a destination table that enforces no
// uniqueness. It is informational: rows are still processed, all as new.
var ErrNoIdentifier = errors.New("no unique identifier found")

// Catalog is the destination database as seen by the pipeline. Every method
// is a single read or write; implementations must not hold a transaction
// across calls.
type Catalog interface {
	ListSchemas(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, schema string) ([]TableRef, error)
	GetColumns(ctx context.Context, schema, table string) ([]DestinationColumn, error)

	// GetPrimaryKey returns the primary key columns in key order, or nil.
	GetPrimaryKey(ctx context.Context, schema, table string) ([]string, error)
	// GetUniqueConstraints returns unique constraints in catalog order.
	GetUniqueConstraints(ctx context.Context, schema, table string) ([]KeySet, error)
	// GetUniqueIndexes returns unique indexes that are neither the primary
	// key nor backing a unique constraint.
	GetUniqueIndexes(ctx context.Context, schema, table string) ([]KeySet, error)

	// RowExists reports whether a row matches every column/value pair.
	// A nil value matches NULL.
	RowExists(ctx context.Context, schema, table string, key map[string]any) (bool, error)
	InsertRow(ctx context.Context, schema, table string, values map[string]any) (bool, error)
}

// KeyLookup is implemented by catalogs that can answer a whole batch of
// existence checks in one query. ExistingKeys returns the subset of keys
// (each in cols order) present in the table.
type KeyLookup interface {
	ExistingKeys(ctx context.Context, schema, table string, cols []string, keys [][]any) ([][]any, error)
}

// Source reads spreadsheets.
type Source interface {
	ListSheets(ctx context.Context, path string) ([]string, error)
	// ReadSheet reads a sheet as a table. rowLimit <= 0 means no limit.
	ReadSheet(ctx context.Context, path, sheet string, rowLimit int) (*Table, error)
}
