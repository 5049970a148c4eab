package catalog

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// sqlBase holds the row-level operations shared by the database/sql
// engines. Metadata queries differ per engine and live in their own types.
type sqlBase struct {
	db *sqlx.DB
	d  dialect
}

func (b *sqlBase) Ping(ctx context.Context) error { return b.db.PingContext(ctx) }

func (b *sqlBase) Close() error { return b.db.Close() }

func (b *sqlBase) RowExists(ctx context.Context, schema, table string, key map[string]any) (bool, error) {
	query, args := b.d.countQuery(schema, table, key)
	var n int64
	if err := b.db.QueryRowxContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("row exists: %w", err)
	}
	return n > 0, nil
}

func (b *sqlBase) InsertRow(ctx context.Context, schema, table string, values map[string]any) (bool, error) {
	query, args := b.d.insertQuery(schema, table, values)
	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert row: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert row: %w", err)
	}
	return n == 1, nil
}

func (b *sqlBase) ExistingKeys(ctx context.Context, schema, table string, cols []string, keys [][]any) ([][]any, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	query, args := b.d.keysQuery(schema, table, cols, keys)
	var idx []int64
	if err := b.db.SelectContext(ctx, &idx, query, args...); err != nil {
		return nil, fmt.Errorf("existing keys: %w", err)
	}
	return pickKeys(keys, idx), nil
}

func (b *sqlBase) keySets(ctx context.Context, query string, args ...any) ([]keyColumn, error) {
	var rows []keyColumn
	if err := b.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
