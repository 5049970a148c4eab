package catalog

import (
	"context"
	"reflect"
	"testing"

	"github.com/JonMunkholm/sheetload/internal/config"
	"github.com/JonMunkholm/sheetload/internal/core"
)

const ventasDDL = `
CREATE TABLE ventas (
	id INTEGER PRIMARY KEY,
	factura VARCHAR(20) NOT NULL,
	region TEXT,
	monto DECIMAL(10,2) DEFAULT 0,
	fecha DATE,
	UNIQUE (region, factura)
);
CREATE UNIQUE INDEX ix_ventas_factura ON ventas (factura);
CREATE INDEX ix_ventas_fecha ON ventas (fecha);
`

func openSQLite(t *testing.T) *SQLite {
	t.Helper()
	db, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", URL: ":memory:"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := db.(*SQLite)
	if _, err := s.db.Exec(ventasDDL); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return s
}

func TestSQLite_GetColumns(t *testing.T) {
	s := openSQLite(t)

	cols, err := s.GetColumns(context.Background(), "", "ventas")
	if err != nil {
		t.Fatalf("GetColumns() error = %v", err)
	}
	if len(cols) != 5 {
		t.Fatalf("len = %d, want 5", len(cols))
	}

	tests := []struct {
		i          int
		name       string
		typ        core.InferredType
		nullable   bool
		hasDefault bool
	}{
		{0, "id", core.TypeInteger, false, true},
		{1, "factura", core.TypeString, false, false},
		{2, "region", core.TypeString, true, false},
		{3, "monto", core.TypeDecimal, true, true},
		{4, "fecha", core.TypeDate, true, false},
	}
	for _, tt := range tests {
		c := cols[tt.i]
		if c.Name != tt.name || c.Type != tt.typ || c.Nullable != tt.nullable || c.HasDefault != tt.hasDefault {
			t.Errorf("column %d = %+v, want %s %s nullable=%v default=%v", tt.i, c, tt.name, tt.typ, tt.nullable, tt.hasDefault)
		}
	}
	if cols[1].MaxLength != 20 {
		t.Errorf("factura MaxLength = %d, want 20", cols[1].MaxLength)
	}
	if cols[3].Precision != 10 || cols[3].Scale != 2 {
		t.Errorf("monto precision/scale = %d/%d, want 10/2", cols[3].Precision, cols[3].Scale)
	}

	if _, err := s.GetColumns(context.Background(), "main", "nope"); core.MapError(err).Code != "CAT003" {
		t.Errorf("GetColumns(nope) error = %v, want CAT003", err)
	}
}

func TestSQLite_Keys(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	pk, err := s.GetPrimaryKey(ctx, "main", "ventas")
	if err != nil || !reflect.DeepEqual(pk, []string{"id"}) {
		t.Errorf("GetPrimaryKey() = %v, %v", pk, err)
	}

	uc, err := s.GetUniqueConstraints(ctx, "main", "ventas")
	if err != nil {
		t.Fatalf("GetUniqueConstraints() error = %v", err)
	}
	if len(uc) != 1 || !reflect.DeepEqual(uc[0].Columns, []string{"region", "factura"}) {
		t.Errorf("GetUniqueConstraints() = %v", uc)
	}

	ix, err := s.GetUniqueIndexes(ctx, "main", "ventas")
	if err != nil {
		t.Fatalf("GetUniqueIndexes() error = %v", err)
	}
	want := []core.KeySet{{Name: "ix_ventas_factura", Columns: []string{"factura"}}}
	if !reflect.DeepEqual(ix, want) {
		t.Errorf("GetUniqueIndexes() = %v, want %v", ix, want)
	}
}

func TestSQLite_Rows(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	ok, err := s.InsertRow(ctx, "", "ventas", map[string]any{"factura": "F-1", "region": "Norte", "monto": "10.50"})
	if err != nil || !ok {
		t.Fatalf("InsertRow() = %v, %v", ok, err)
	}
	if _, err := s.InsertRow(ctx, "", "ventas", map[string]any{"factura": "F-2", "region": nil}); err != nil {
		t.Fatalf("InsertRow() error = %v", err)
	}

	exists, err := s.RowExists(ctx, "", "ventas", map[string]any{"factura": "F-1"})
	if err != nil || !exists {
		t.Errorf("RowExists(F-1) = %v, %v", exists, err)
	}
	exists, _ = s.RowExists(ctx, "", "ventas", map[string]any{"factura": "F-2", "region": nil})
	if !exists {
		t.Error("RowExists with NULL region = false, want true")
	}

	got, err := s.ExistingKeys(ctx, "", "ventas", []string{"factura"}, [][]any{{"F-9"}, {"F-2"}, {"F-1"}})
	if err != nil {
		t.Fatalf("ExistingKeys() error = %v", err)
	}
	if want := [][]any{{"F-2"}, {"F-1"}}; !reflect.DeepEqual(got, want) {
		t.Errorf("ExistingKeys() = %v, want %v", got, want)
	}

	if _, err := s.InsertRow(ctx, "", "ventas", map[string]any{"factura": "F-1"}); err == nil {
		t.Error("InsertRow() duplicate factura should violate ix_ventas_factura")
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle", URL: "x"}); err == nil {
		t.Error("Open(oracle) should fail")
	}
}
