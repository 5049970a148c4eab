package catalog

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/sheetload/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a catalog over a PostgreSQL database.
type Postgres struct {
	pool *pgxpool.Pool
	d    dialect
}

// NewPostgres wraps an open pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, d: postgresDialect}
}

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) ListSchemas(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('pg_catalog', 'information_schema')
		  AND schema_name NOT LIKE 'pg\_toast%'
		  AND schema_name NOT LIKE 'pg\_temp%'
		ORDER BY schema_name`)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	schemas, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	return schemas, nil
}

func (p *Postgres) ListTables(ctx context.Context, schema string) ([]core.TableRef, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT table_name, table_type
		FROM information_schema.tables
		WHERE table_schema = $1
		ORDER BY table_name`, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []core.TableRef
	for rows.Next() {
		var t core.TableRef
		if err := rows.Scan(&t.Name, &t.Type); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return out, nil
}

func (p *Postgres) GetColumns(ctx context.Context, schema, table string) ([]core.DestinationColumn, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT column_name,
		       data_type,
		       is_nullable = 'YES',
		       column_default IS NOT NULL OR is_identity = 'YES',
		       COALESCE(character_maximum_length, 0),
		       COALESCE(numeric_precision, 0),
		       COALESCE(numeric_scale, 0),
		       ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("fetch columns: %w", err)
	}
	defer rows.Close()

	var out []core.DestinationColumn
	for rows.Next() {
		var c core.DestinationColumn
		var maxLen, precision, scale, ordinal int32
		if err := rows.Scan(&c.Name, &c.SQLType, &c.Nullable, &c.HasDefault, &maxLen, &precision, &scale, &ordinal); err != nil {
			return nil, fmt.Errorf("fetch columns: scan: %w", err)
		}
		c.MaxLength, c.Precision, c.Scale, c.Ordinal = int(maxLen), int(precision), int(scale), int(ordinal)
		c.Type = core.SimplifyType(c.SQLType)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch columns: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("fetch columns: table not found: %s.%s", schema, table)
	}
	return out, nil
}

const pgConstraintColumns = `
	SELECT c.conname AS name, a.attname AS column_name
	FROM pg_constraint c
	JOIN pg_class t ON t.oid = c.conrelid
	JOIN pg_namespace n ON n.oid = t.relnamespace
	CROSS JOIN LATERAL unnest(c.conkey) WITH ORDINALITY AS k(attnum, ord)
	JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
	WHERE c.contype::text = $3 AND n.nspname = $1 AND t.relname = $2
	ORDER BY c.oid, k.ord`

func (p *Postgres) GetPrimaryKey(ctx context.Context, schema, table string) ([]string, error) {
	sets, err := p.keySets(ctx, pgConstraintColumns, schema, table, "p")
	if err != nil {
		return nil, fmt.Errorf("primary key: %w", err)
	}
	if len(sets) == 0 {
		return nil, nil
	}
	return sets[0].Columns, nil
}

func (p *Postgres) GetUniqueConstraints(ctx context.Context, schema, table string) ([]core.KeySet, error) {
	sets, err := p.keySets(ctx, pgConstraintColumns, schema, table, "u")
	if err != nil {
		return nil, fmt.Errorf("unique constraints: %w", err)
	}
	return sets, nil
}

// GetUniqueIndexes skips indexes that back a primary key or unique
// constraint; those are reported by the methods above.
func (p *Postgres) GetUniqueIndexes(ctx context.Context, schema, table string) ([]core.KeySet, error) {
	sets, err := p.keySets(ctx, `
		SELECT i.relname AS name, a.attname AS column_name
		FROM pg_index x
		JOIN pg_class t ON t.oid = x.indrelid
		JOIN pg_class i ON i.oid = x.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		CROSS JOIN LATERAL unnest(x.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE x.indisunique AND NOT x.indisprimary
		  AND NOT EXISTS (SELECT 1 FROM pg_constraint c WHERE c.conindid = x.indexrelid)
		  AND n.nspname = $1 AND t.relname = $2
		ORDER BY i.oid, k.ord`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("unique indexes: %w", err)
	}
	return sets, nil
}

func (p *Postgres) keySets(ctx context.Context, query string, args ...any) ([]core.KeySet, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	cols, err := pgx.CollectRows(rows, pgx.RowToStructByName[keyColumn])
	if err != nil {
		return nil, err
	}
	return groupKeySets(cols), nil
}

func (p *Postgres) RowExists(ctx context.Context, schema, table string, key map[string]any) (bool, error) {
	query, args := p.d.countQuery(schema, table, key)
	var n int64
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("row exists: %w", err)
	}
	return n > 0, nil
}

func (p *Postgres) InsertRow(ctx context.Context, schema, table string, values map[string]any) (bool, error) {
	query, args := p.d.insertQuery(schema, table, values)
	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert row: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) ExistingKeys(ctx context.Context, schema, table string, cols []string, keys [][]any) ([][]any, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	query, args := p.d.keysQuery(schema, table, cols, keys)
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("existing keys: %w", err)
	}
	idx, err := pgx.CollectRows(rows, pgx.RowTo[int32])
	if err != nil {
		return nil, fmt.Errorf("existing keys: %w", err)
	}
	return pickKeys(keys, idx), nil
}

// pickKeys returns keys[i] for every returned index, in input order.
func pickKeys[T int32 | int64](keys [][]any, idx []T) [][]any {
	present := make([]bool, len(keys))
	for _, i := range idx {
		if int(i) >= 0 && int(i) < len(keys) {
			present[i] = true
		}
	}
	var out [][]any
	for i, k := range keys {
		if present[i] {
			out = append(out, k)
		}
	}
	return out
}
