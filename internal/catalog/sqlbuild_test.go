package catalog

import (
	"reflect"
	"testing"

	"github.com/JonMunkholm/sheetload/internal/core"
)

// ----------------------------------------------------------------------------
// Quoting Tests
// ----------------------------------------------------------------------------

func TestQuote(t *testing.T) {
	tests := []struct {
		name string
		d    dialect
		in   string
		want string
	}{
		{"postgres plain", postgresDialect, "Clientes", `"Clientes"`},
		{"postgres embedded quote", postgresDialect, `a"b`, `"a""b"`},
		{"sqlserver plain", sqlserverDialect, "Clientes", "[Clientes]"},
		{"sqlserver embedded bracket", sqlserverDialect, "a]b", "[a]]b]"},
		{"sqlite injection", sqliteDialect, `x"; DROP TABLE t; --`, `"x""; DROP TABLE t; --"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.quote(tt.in); got != tt.want {
				t.Errorf("quote(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestDialect_Table(t *testing.T) {
	if got := sqlserverDialect.table("dbo", "Ventas"); got != "[dbo].[Ventas]" {
		t.Errorf("table() = %s", got)
	}
	if got := sqliteDialect.table("", "ventas"); got != `"ventas"` {
		t.Errorf("table() without schema = %s", got)
	}
}

// ----------------------------------------------------------------------------
// Statement Tests
// ----------------------------------------------------------------------------

func TestCountQuery(t *testing.T) {
	query, args := sqlserverDialect.countQuery("dbo", "Clientes", map[string]any{
		"Email": "ana@x.com",
		"Code":  nil,
		"Id":    int64(7),
	})

	want := "SELECT COUNT(*) FROM [dbo].[Clientes] WHERE [Code] IS NULL AND [Email] = @p1 AND [Id] = @p2"
	if query != want {
		t.Errorf("query = %s\nwant    %s", query, want)
	}
	if !reflect.DeepEqual(args, []any{"ana@x.com", int64(7)}) {
		t.Errorf("args = %v", args)
	}
}

func TestInsertQuery(t *testing.T) {
	query, args := postgresDialect.insertQuery("public", "clientes", map[string]any{
		"nombre": "Ana",
		"id":     1,
	})

	want := `INSERT INTO "public"."clientes" ("id", "nombre") VALUES ($1, $2)`
	if query != want {
		t.Errorf("query = %s\nwant    %s", query, want)
	}
	if !reflect.DeepEqual(args, []any{1, "Ana"}) {
		t.Errorf("args = %v", args)
	}
}

func TestKeysQuery(t *testing.T) {
	query, args := postgresDialect.keysQuery("s", "t", []string{"a", "b"}, [][]any{
		{1, "x"},
		{2, nil},
	})

	want := `SELECT 0 AS idx WHERE EXISTS (SELECT 1 FROM "s"."t" WHERE "a" = $1 AND "b" = $2)` +
		` UNION ALL ` +
		`SELECT 1 AS idx WHERE EXISTS (SELECT 1 FROM "s"."t" WHERE "a" = $3 AND "b" IS NULL)`
	if query != want {
		t.Errorf("query = %s\nwant    %s", query, want)
	}
	if !reflect.DeepEqual(args, []any{1, "x", 2}) {
		t.Errorf("args = %v", args)
	}
}

func TestGroupKeySets(t *testing.T) {
	got := groupKeySets([]keyColumn{
		{Name: "UQ_a", Column: "Email"},
		{Name: "UQ_b", Column: "Region"},
		{Name: "UQ_b", Column: "Code"},
	})
	want := []core.KeySet{
		{Name: "UQ_a", Columns: []string{"Email"}},
		{Name: "UQ_b", Columns: []string{"Region", "Code"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("groupKeySets() = %v, want %v", got, want)
	}
	if groupKeySets(nil) != nil {
		t.Error("groupKeySets(nil) should be nil")
	}
}

func TestPickKeys(t *testing.T) {
	keys := [][]any{{"a"}, {"b"}, {"c"}}
	got := pickKeys(keys, []int64{2, 0, 7})
	want := [][]any{{"a"}, {"c"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("pickKeys() = %v, want %v", got, want)
	}
}
