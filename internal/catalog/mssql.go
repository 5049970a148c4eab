package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JonMunkholm/sheetload/internal/core"
	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" driver
)

// SQLServer is a catalog over a Microsoft SQL Server database.
type SQLServer struct {
	sqlBase
}

// NewSQLServer wraps an open sqlx handle using the sqlserver driver.
func NewSQLServer(db *sqlx.DB) *SQLServer {
	return &SQLServer{sqlBase{db: db, d: sqlserverDialect}}
}

func (s *SQLServer) ListSchemas(ctx context.Context) ([]string, error) {
	var schemas []string
	err := s.db.SelectContext(ctx, &schemas, `
		SELECT name
		FROM sys.schemas
		WHERE name NOT IN ('sys', 'INFORMATION_SCHEMA', 'guest')
		  AND name NOT LIKE 'db[_]%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	return schemas, nil
}

func (s *SQLServer) ListTables(ctx context.Context, schema string) ([]core.TableRef, error) {
	var rows []struct {
		Name string `db:"TABLE_NAME"`
		Type string `db:"TABLE_TYPE"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT TABLE_NAME, TABLE_TYPE
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1
		ORDER BY TABLE_NAME`, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	out := make([]core.TableRef, len(rows))
	for i, r := range rows {
		out[i] = core.TableRef{Name: r.Name, Type: r.Type}
	}
	return out, nil
}

type mssqlColumn struct {
	Name       string        `db:"COLUMN_NAME"`
	DataType   string        `db:"DATA_TYPE"`
	IsNullable string        `db:"IS_NULLABLE"`
	HasDefault bool          `db:"HAS_DEFAULT"`
	MaxLength  sql.NullInt64 `db:"CHARACTER_MAXIMUM_LENGTH"`
	Precision  sql.NullInt64 `db:"NUMERIC_PRECISION"`
	Scale      sql.NullInt64 `db:"NUMERIC_SCALE"`
	Ordinal    int64         `db:"ORDINAL_POSITION"`
}

func (s *SQLServer) GetColumns(ctx context.Context, schema, table string) ([]core.DestinationColumn, error) {
	var rows []mssqlColumn
	err := s.db.SelectContext(ctx, &rows, `
		SELECT COLUMN_NAME,
		       DATA_TYPE,
		       IS_NULLABLE,
		       CAST(CASE
		           WHEN COLUMN_DEFAULT IS NOT NULL THEN 1
		           WHEN COLUMNPROPERTY(OBJECT_ID(QUOTENAME(TABLE_SCHEMA) + '.' + QUOTENAME(TABLE_NAME)), COLUMN_NAME, 'IsIdentity') = 1 THEN 1
		           ELSE 0 END AS bit) AS HAS_DEFAULT,
		       CHARACTER_MAXIMUM_LENGTH,
		       CAST(NUMERIC_PRECISION AS int) AS NUMERIC_PRECISION,
		       NUMERIC_SCALE,
		       ORDINAL_POSITION
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("fetch columns: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("fetch columns: table not found: %s.%s", schema, table)
	}

	out := make([]core.DestinationColumn, len(rows))
	for i, r := range rows {
		c := core.DestinationColumn{
			Name:       r.Name,
			SQLType:    r.DataType,
			Type:       core.SimplifyType(r.DataType),
			Nullable:   r.IsNullable == "YES",
			HasDefault: r.HasDefault,
			Precision:  int(r.Precision.Int64),
			Scale:      int(r.Scale.Int64),
			Ordinal:    int(r.Ordinal),
		}
		// -1 is (max)
		if r.MaxLength.Valid && r.MaxLength.Int64 > 0 {
			c.MaxLength = int(r.MaxLength.Int64)
		}
		out[i] = c
	}
	return out, nil
}

const mssqlConstraintColumns = `
	SELECT tc.CONSTRAINT_NAME AS name, kcu.COLUMN_NAME AS column_name
	FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
	INNER JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
	    ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
	    AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
	    AND tc.TABLE_NAME = kcu.TABLE_NAME
	WHERE tc.TABLE_SCHEMA = @p1
	    AND tc.TABLE_NAME = @p2
	    AND tc.CONSTRAINT_TYPE = @p3
	ORDER BY tc.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`

func (s *SQLServer) GetPrimaryKey(ctx context.Context, schema, table string) ([]string, error) {
	rows, err := s.keySets(ctx, mssqlConstraintColumns, schema, table, "PRIMARY KEY")
	if err != nil {
		return nil, fmt.Errorf("primary key: %w", err)
	}
	sets := groupKeySets(rows)
	if len(sets) == 0 {
		return nil, nil
	}
	return sets[0].Columns, nil
}

func (s *SQLServer) GetUniqueConstraints(ctx context.Context, schema, table string) ([]core.KeySet, error) {
	rows, err := s.keySets(ctx, mssqlConstraintColumns, schema, table, "UNIQUE")
	if err != nil {
		return nil, fmt.Errorf("unique constraints: %w", err)
	}
	return groupKeySets(rows), nil
}

func (s *SQLServer) GetUniqueIndexes(ctx context.Context, schema, table string) ([]core.KeySet, error) {
	rows, err := s.keySets(ctx, `
		SELECT i.name AS name, c.name AS column_name
		FROM sys.indexes i
		INNER JOIN sys.index_columns ic ON i.object_id = ic.object_id AND i.index_id = ic.index_id
		INNER JOIN sys.columns c ON ic.object_id = c.object_id AND ic.column_id = c.column_id
		INNER JOIN sys.tables t ON i.object_id = t.object_id
		INNER JOIN sys.schemas s ON t.schema_id = s.schema_id
		WHERE s.name = @p1
		    AND t.name = @p2
		    AND i.is_unique = 1
		    AND i.is_primary_key = 0
		    AND i.is_unique_constraint = 0
		    AND ic.is_included_column = 0
		ORDER BY i.name, ic.key_ordinal`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("unique indexes: %w", err)
	}
	return groupKeySets(rows), nil
}
