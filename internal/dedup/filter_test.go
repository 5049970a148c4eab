package dedup

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/JonMunkholm/sheetload/internal/catalog"
	"github.com/JonMunkholm/sheetload/internal/core"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var pk = &core.UniqueIdentifier{Kind: core.KindPrimaryKey, Name: "PRIMARY", Columns: []string{"Id"}, Priority: 1}

func clientes(existing ...int64) *catalog.Memory {
	m := catalog.NewMemory()
	var rows []map[string]any
	for _, id := range existing {
		rows = append(rows, map[string]any{"Id": id, "Nombre": "x"})
	}
	m.AddTable("dbo", "Clientes", catalog.MemoryTable{
		Columns: []core.DestinationColumn{
			{Name: "Id", SQLType: "int"},
			{Name: "Nombre", SQLType: "nvarchar", Nullable: true},
		},
		PrimaryKey: []string{"Id"},
		Rows:       rows,
	})
	return m
}

func input(ids ...any) *core.Table {
	tb := core.NewTable("Id", "Nombre")
	for _, id := range ids {
		tb.Append(id, "n")
	}
	return tb
}

func ids(t *core.Table) []any {
	return t.Column("Id")
}

// ----------------------------------------------------------------------------
// Filter Tests
// ----------------------------------------------------------------------------

func TestFilter_Strategies(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"per row sequential", Options{}},
		{"per row workers", Options{Workers: 3}},
		{"batched", Options{Strategy: StrategyBatched, BatchSize: 2}},
		{"batched workers", Options{Strategy: StrategyBatched, BatchSize: 1, Workers: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFilter(clientes(1, 2), tt.opts)
			res := f.Filter(context.Background(), "dbo", "Clientes", pk, input(int64(1), "3", "2", int64(4)))

			if !res.Success {
				t.Fatalf("Success = false, errors = %v", res.Errors)
			}
			if res.OriginalCount != 4 || res.NewCount != 2 || res.DuplicateCount != 2 {
				t.Errorf("counts = %d/%d/%d, want 4/2/2", res.OriginalCount, res.NewCount, res.DuplicateCount)
			}
			if !reflect.DeepEqual(res.Existing, []int{0, 2}) {
				t.Errorf("Existing = %v, want [0 2]", res.Existing)
			}
			if got := ids(res.Rows); !reflect.DeepEqual(got, []any{"3", int64(4)}) {
				t.Errorf("new rows = %v, want [3 4]", got)
			}
			if res.RunID == "" {
				t.Error("RunID is empty")
			}
		})
	}
}

func TestFilter_BatchedUsesKeyLookup(t *testing.T) {
	m := clientes(1)
	f := NewFilter(m, Options{Strategy: StrategyBatched, BatchSize: 2})
	f.Filter(context.Background(), "dbo", "Clientes", pk, input(1, 2, 3, 4, 5))

	if got := m.Calls("ExistingKeys"); got != 3 {
		t.Errorf("ExistingKeys calls = %d, want 3", got)
	}
	if got := m.Calls("RowExists"); got != 0 {
		t.Errorf("RowExists calls = %d, want 0", got)
	}
}

func TestFilter_NoIdentifier(t *testing.T) {
	res := NewFilter(clientes(1), Options{}).Filter(context.Background(), "dbo", "Clientes", nil, input(1, 2))

	if !res.Success || res.NewCount != 2 || res.DuplicateCount != 0 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Errors) != 0 {
		t.Errorf("Errors = %v, want none", res.Errors)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "no unique identifier") {
		t.Errorf("Warnings = %v", res.Warnings)
	}
}

func TestFilter_MissingKeyColumns(t *testing.T) {
	id := &core.UniqueIdentifier{Kind: core.KindUniqueConstraint, Name: "UQ", Columns: []string{"Region", "Id"}, Priority: 2}
	res := NewFilter(clientes(), Options{}).Filter(context.Background(), "dbo", "Clientes", id, input(1))

	if res.Success {
		t.Error("Success = true, want false")
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "Region") {
		t.Fatalf("Errors = %v, want one naming Region", res.Errors)
	}
	if code := core.MapError(errors.New(res.Errors[0])).Code; code != "DUP001" {
		t.Errorf("MapError code = %s, want DUP001", code)
	}
	if res.Rows != nil {
		t.Error("Rows should be nil on failure")
	}
}

func TestFilter_Empty(t *testing.T) {
	res := NewFilter(clientes(), Options{}).Filter(context.Background(), "dbo", "Clientes", pk, input())
	if !res.Success || res.Rows.Len() != 0 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Warnings) != 1 || res.Warnings[0] != "no rows to filter" {
		t.Errorf("Warnings = %v", res.Warnings)
	}
}

func TestFilter_MaxRows(t *testing.T) {
	res := NewFilter(clientes(), Options{MaxRows: 3}).Filter(context.Background(), "dbo", "Clientes", pk, input(1, 2, 3, 4, 5))

	if res.OriginalCount != 3 || res.NewCount != 3 {
		t.Errorf("counts = %d/%d, want 3/3", res.OriginalCount, res.NewCount)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "limit of 3") {
		t.Errorf("Warnings = %v", res.Warnings)
	}
}

func TestFilter_FailOpen(t *testing.T) {
	tests := []struct {
		name string
		op   string
		opts Options
	}{
		{"per row", "RowExists", Options{}},
		{"batched", "ExistingKeys", Options{Strategy: StrategyBatched}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := clientes(1, 2)
			m.Fail(tt.op, errors.New("deadlock victim"))

			res := NewFilter(m, tt.opts).Filter(context.Background(), "dbo", "Clientes", pk, input(1, 2, 3))
			if !res.Success {
				t.Fatalf("Success = false, errors = %v", res.Errors)
			}
			if res.NewCount != 3 {
				t.Errorf("NewCount = %d, want 3 (failed checks count as new)", res.NewCount)
			}
			if len(res.Warnings) != 1 || !strings.HasPrefix(res.Warnings[0], "3 existence checks failed") {
				t.Errorf("Warnings = %v", res.Warnings)
			}
		})
	}
}

func TestFilter_NullKeyValues(t *testing.T) {
	m := catalog.NewMemory()
	m.AddTable("dbo", "Ventas", catalog.MemoryTable{
		Columns: []core.DestinationColumn{{Name: "Region", Nullable: true}, {Name: "Factura"}},
		Rows:    []map[string]any{{"Region": nil, "Factura": "F-1"}},
	})
	id := &core.UniqueIdentifier{Kind: core.KindUniqueIndex, Name: "IX", Columns: []string{"Region", "Factura"}, Priority: 3}

	tb := core.NewTable("Region", "Factura")
	tb.Append("", "F-1")
	tb.Append("Norte", "F-1")

	res := NewFilter(m, Options{}).Filter(context.Background(), "dbo", "Ventas", id, tb)
	if !reflect.DeepEqual(res.Existing, []int{0}) {
		t.Errorf("Existing = %v, want [0] (empty cell matches NULL)", res.Existing)
	}
}

func TestFilter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewFilter(clientes(1), Options{}).Filter(ctx, "dbo", "Clientes", pk, input(1, 2))
	if res.Success {
		t.Error("Success = true on a canceled context")
	}
	if len(res.Errors) != 1 || core.MapError(errors.New(res.Errors[0])).Code != "RUN001" {
		t.Errorf("Errors = %v, want a RUN001 cancellation", res.Errors)
	}
}

func TestFilter_Idempotent(t *testing.T) {
	m := clientes(1, 2)
	f := NewFilter(m, Options{Strategy: StrategyBatched})
	ctx := context.Background()

	first := f.Filter(ctx, "dbo", "Clientes", pk, input(1, 2, 3, 4))
	for i := 0; i < first.Rows.Len(); i++ {
		if _, err := m.InsertRow(ctx, "dbo", "Clientes", first.Rows.RowMap(i)); err != nil {
			t.Fatalf("InsertRow() error = %v", err)
		}
	}

	second := f.Filter(ctx, "dbo", "Clientes", pk, first.Rows)
	if second.NewCount != 0 {
		t.Errorf("second NewCount = %d, want 0", second.NewCount)
	}
}

func TestParseStrategy(t *testing.T) {
	if s, err := ParseStrategy(""); err != nil || s != StrategyPerRow {
		t.Errorf("ParseStrategy(\"\") = %v, %v", s, err)
	}
	if s, err := ParseStrategy("Batched"); err != nil || s != StrategyBatched {
		t.Errorf("ParseStrategy(Batched) = %v, %v", s, err)
	}
	if _, err := ParseStrategy("bulk"); err == nil {
		t.Error("ParseStrategy(bulk) should fail")
	}
}

// ----------------------------------------------------------------------------
// Properties
// ----------------------------------------------------------------------------

func TestProperty_NewRowsKeepInputOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("new rows are exactly the absent keys, in input order", prop.ForAll(
		func(keys []int, present []int, workers int, batched bool) bool {
			existing := make(map[int64]bool)
			var seed []int64
			for _, p := range present {
				if !existing[int64(p)] {
					existing[int64(p)] = true
					seed = append(seed, int64(p))
				}
			}

			var rowIDs []any
			var want []any
			for _, k := range keys {
				rowIDs = append(rowIDs, int64(k))
				if !existing[int64(k)] {
					want = append(want, int64(k))
				}
			}

			opts := Options{Workers: workers, BatchSize: 3}
			if batched {
				opts.Strategy = StrategyBatched
			}
			res := NewFilter(clientes(seed...), opts).Filter(context.Background(), "dbo", "Clientes", pk, input(rowIDs...))
			if !res.Success {
				return false
			}
			got := ids(res.Rows)
			if len(got) != len(want) {
				return false
			}
			for i := range got {
				if got[i] != want[i] {
					return false
				}
			}
			return res.NewCount+res.DuplicateCount == len(keys)
		},
		gen.SliceOfN(20, gen.IntRange(0, 30)),
		gen.SliceOfN(10, gen.IntRange(0, 30)),
		gen.IntRange(1, 4),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
