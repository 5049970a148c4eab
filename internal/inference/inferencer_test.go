package inference

import (
	"testing"
	"time"

	"github.com/JonMunkholm/sheetload/internal/core"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func strs(vals ...string) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

func TestInfer(t *testing.T) {
	in := New(Options{})

	tests := []struct {
		name   string
		values []any
		want   core.InferredType
	}{
		{"empty column", nil, core.TypeString},
		{"all nulls", strs("", "NULL", "n/a"), core.TypeString},
		{"integers", strs("1", "2", "3"), core.TypeInteger},
		{"integers with thousands", strs("1,234", "56", "7,890,123"), core.TypeInteger},
		{"75 percent integer", strs("1", "2", "3", "abc"), core.TypeInteger},
		{"below threshold", strs("1", "2", "abc", "def"), core.TypeString},
		{"decimals", strs("1.5", "2.25", "1,234.50"), core.TypeDecimal},
		{"booleans english", strs("yes", "no", "YES", "true"), core.TypeBoolean},
		{"booleans spanish", strs("sí", "no", "verdadero", "falso"), core.TypeBoolean},
		{"year is not boolean", strs("2024", "2023", "2022"), core.TypeInteger},
		{"single letters stay text", strs("Y", "N", "S", "Y"), core.TypeString},
		{"zero one flags are integers", strs("1", "0", "1", "0"), core.TypeInteger},
		{"us dates", strs("01/02/2024", "12/31/2023", "3/4/24"), core.TypeDate},
		{"mixed date formats", strs("2024-01-15", "1/15/2024", "2024/2/3"), core.TypeDate},
		{"datetimes", strs("1/15/2024 10:30", "1/16/2024 1:45 PM", "2024-01-17 08:00:00"), core.TypeDateTime},
		{"single value", strs("hello"), core.TypeString},
		{"nulls ignored", strs("5", "", "NULL", "6"), core.TypeInteger},
		{"native ints", []any{int64(1), int64(2)}, core.TypeInteger},
		{"native floats", []any{1.5, 2.5}, core.TypeDecimal},
		{"native bools", []any{true, false}, core.TypeBoolean},
		{"native dates", []any{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}, core.TypeDate},
		{"emails", strs("a@x.com", "b@y.com"), core.TypeString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := in.Infer(tt.values); got != tt.want {
				t.Errorf("Infer(%v) = %s, want %s", tt.values, got, tt.want)
			}
		})
	}
}

func TestInfer_Threshold(t *testing.T) {
	values := strs("1", "2", "x", "y") // 50% integer

	if got := New(Options{Threshold: 0.5}).Infer(values); got != core.TypeInteger {
		t.Errorf("threshold 0.5: Infer() = %s, want INTEGER", got)
	}
	if got := New(Options{}).Infer(values); got != core.TypeString {
		t.Errorf("default threshold: Infer() = %s, want STRING", got)
	}
}

func TestInfer_SampleSize(t *testing.T) {
	values := strs("1", "2", "3", "a", "b", "c", "d", "e")

	if got := New(Options{SampleSize: 3}).Infer(values); got != core.TypeInteger {
		t.Errorf("sample 3: Infer() = %s, want INTEGER", got)
	}
	if got := New(Options{}).Infer(values); got != core.TypeString {
		t.Errorf("full sample: Infer() = %s, want STRING", got)
	}
}

func TestInfer_CustomBoolLiterals(t *testing.T) {
	in := New(Options{BoolLiterals: core.AcceptedBoolLiterals()})
	if got := in.Infer(strs("y", "n", "Y")); got != core.TypeBoolean {
		t.Errorf("Infer(y/n) = %s, want BOOLEAN", got)
	}
}

func TestProfile(t *testing.T) {
	p := New(Options{}).Profile(strs("1", "", "2", "NULL"))

	if p.Type != core.TypeInteger {
		t.Errorf("Type = %s, want INTEGER", p.Type)
	}
	if p.Nulls != 2 || p.Total != 4 || p.Sampled != 2 {
		t.Errorf("Nulls/Total/Sampled = %d/%d/%d, want 2/4/2", p.Nulls, p.Total, p.Sampled)
	}
	if p.NullRatio != 0.5 {
		t.Errorf("NullRatio = %v, want 0.5", p.NullRatio)
	}
	if p.Share != 1 {
		t.Errorf("Share = %v, want 1", p.Share)
	}
}

func TestInferTable(t *testing.T) {
	tb := core.NewTable("Id", "Nombre", "Monto")
	tb.Append("1", "Ana", "10.50")
	tb.Append("2", "", "20.00")
	tb.Append("3", "Luis", "")

	cols := New(Options{}).InferTable(tb)
	if len(cols) != 3 {
		t.Fatalf("len = %d, want 3", len(cols))
	}

	want := []core.InferredType{core.TypeInteger, core.TypeString, core.TypeDecimal}
	for i, c := range cols {
		if c.Type != want[i] {
			t.Errorf("column %s type = %s, want %s", c.Name, c.Type, want[i])
		}
		if c.Position != i {
			t.Errorf("column %s position = %d, want %d", c.Name, c.Position, i)
		}
	}
	if len(cols[1].Values) != 2 || cols[1].Nulls != 1 {
		t.Errorf("Nombre values/nulls = %d/%d, want 2/1", len(cols[1].Values), cols[1].Nulls)
	}
}

func TestProperty_ThresholdRule(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	in := New(Options{})

	properties.Property("integer wins iff it covers at least 60% of non-null values", prop.ForAll(
		func(ints, texts, nulls int) bool {
			var values []any
			for i := 0; i < ints; i++ {
				values = append(values, "42")
			}
			for i := 0; i < texts; i++ {
				values = append(values, "abc")
			}
			for i := 0; i < nulls; i++ {
				values = append(values, "")
			}

			got := in.Infer(values)
			nonNull := ints + texts
			if nonNull == 0 {
				return got == core.TypeString
			}
			if float64(ints)/float64(nonNull) >= DefaultThreshold {
				return got == core.TypeInteger
			}
			return got == core.TypeString
		},
		gen.IntRange(0, 40),
		gen.IntRange(0, 40),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}
