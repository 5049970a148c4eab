package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetload/internal/core"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

// SQLite is a catalog over a SQLite database file. SQLite has a single
// schema per attached database; "" and "main" both address the main one.
type SQLite struct {
	sqlBase
}

// NewSQLite wraps an open sqlx handle using the sqlite3 driver.
func NewSQLite(db *sqlx.DB) *SQLite {
	return &SQLite{sqlBase{db: db, d: sqliteDialect}}
}

// isMemoryDSN reports whether dsn names an in-memory database. Each
// connection to such a database sees its own copy, so the pool must be
// pinned to one connection.
func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func sqliteSchema(schema string) string {
	if schema == "" {
		return "main"
	}
	return schema
}

func (s *SQLite) ListSchemas(ctx context.Context) ([]string, error) {
	var rows []struct {
		Seq  int64  `db:"seq"`
		Name string `db:"name"`
		File string `db:"file"`
	}
	if err := s.db.SelectContext(ctx, &rows, "SELECT seq, name, file FROM pragma_database_list ORDER BY seq"); err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.Name == "temp" {
			continue
		}
		out = append(out, r.Name)
	}
	return out, nil
}

func (s *SQLite) ListTables(ctx context.Context, schema string) ([]core.TableRef, error) {
	var rows []struct {
		Name string `db:"name"`
		Type string `db:"type"`
	}
	query := fmt.Sprintf(`
		SELECT name, type
		FROM %s.sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite\_%%' ESCAPE '\'
		ORDER BY name`, quoteDouble(sqliteSchema(schema)))
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	out := make([]core.TableRef, len(rows))
	for i, r := range rows {
		kind := "BASE TABLE"
		if r.Type == "view" {
			kind = "VIEW"
		}
		out[i] = core.TableRef{Name: r.Name, Type: kind}
	}
	return out, nil
}

type sqliteColumn struct {
	CID        int64          `db:"cid"`
	Name       string         `db:"name"`
	Type       string         `db:"type"`
	NotNull    int64          `db:"notnull"`
	Default    sql.NullString `db:"dflt_value"`
	PrimaryKey int64          `db:"pk"`
}

func (s *SQLite) tableInfo(ctx context.Context, schema, table string) ([]sqliteColumn, error) {
	var rows []sqliteColumn
	err := s.db.SelectContext(ctx, &rows, `
		SELECT cid, name, type, "notnull", dflt_value, pk
		FROM pragma_table_info(?, ?)
		ORDER BY cid`, table, sqliteSchema(schema))
	return rows, err
}

// typeArgs pulls "(n)" or "(p,s)" off a declared type.
var typeArgs = regexp.MustCompile(`\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\)`)

func (s *SQLite) GetColumns(ctx context.Context, schema, table string) ([]core.DestinationColumn, error) {
	rows, err := s.tableInfo(ctx, schema, table)
	if err != nil {
		return nil, fmt.Errorf("fetch columns: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("fetch columns: table not found: %s.%s", sqliteSchema(schema), table)
	}

	pkCols := 0
	for _, r := range rows {
		if r.PrimaryKey > 0 {
			pkCols++
		}
	}

	out := make([]core.DestinationColumn, len(rows))
	for i, r := range rows {
		c := core.DestinationColumn{
			Name:       r.Name,
			SQLType:    r.Type,
			Type:       core.SimplifyType(r.Type),
			Nullable:   r.NotNull == 0 && r.PrimaryKey == 0,
			HasDefault: r.Default.Valid,
			Ordinal:    int(r.CID) + 1,
		}
		// INTEGER PRIMARY KEY aliases the rowid and is assigned on insert.
		if pkCols == 1 && r.PrimaryKey == 1 && strings.EqualFold(strings.TrimSpace(r.Type), "INTEGER") {
			c.HasDefault = true
		}
		if m := typeArgs.FindStringSubmatch(r.Type); m != nil {
			n, _ := strconv.Atoi(m[1])
			if core.IsCharType(r.Type) {
				c.MaxLength = n
			} else {
				c.Precision = n
				if m[2] != "" {
					c.Scale, _ = strconv.Atoi(m[2])
				}
			}
		}
		out[i] = c
	}
	return out, nil
}

func (s *SQLite) GetPrimaryKey(ctx context.Context, schema, table string) ([]string, error) {
	rows, err := s.tableInfo(ctx, schema, table)
	if err != nil {
		return nil, fmt.Errorf("primary key: %w", err)
	}
	var pk []string
	for pos := int64(1); ; pos++ {
		found := false
		for _, r := range rows {
			if r.PrimaryKey == pos {
				pk = append(pk, r.Name)
				found = true
			}
		}
		if !found {
			return pk, nil
		}
	}
}

// indexColumns lists the columns of unique indexes created with the given
// origin: "u" for UNIQUE constraints, "c" for CREATE UNIQUE INDEX.
func (s *SQLite) indexColumns(ctx context.Context, schema, table, origin string) ([]core.KeySet, error) {
	sch := sqliteSchema(schema)
	rows, err := s.keySets(ctx, `
		SELECT il.name AS name, ii.name AS column_name
		FROM pragma_index_list(?, ?) AS il, pragma_index_info(il.name, ?) AS ii
		WHERE il."unique" = 1 AND il.origin = ?
		ORDER BY il.name, ii.seqno`, table, sch, sch, origin)
	if err != nil {
		return nil, err
	}
	return groupKeySets(rows), nil
}

func (s *SQLite) GetUniqueConstraints(ctx context.Context, schema, table string) ([]core.KeySet, error) {
	sets, err := s.indexColumns(ctx, schema, table, "u")
	if err != nil {
		return nil, fmt.Errorf("unique constraints: %w", err)
	}
	return sets, nil
}

func (s *SQLite) GetUniqueIndexes(ctx context.Context, schema, table string) ([]core.KeySet, error) {
	sets, err := s.indexColumns(ctx, schema, table, "c")
	if err != nil {
		return nil, fmt.Errorf("unique indexes: %w", err)
	}
	return sets, nil
}
