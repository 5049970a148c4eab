package matcher

import (
	"reflect"
	"strings"
	"testing"

	"github.com/JonMunkholm/sheetload/internal/core"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var scenarioDests = []core.DestinationColumn{
	{Name: "CustomerName", SQLType: "nvarchar", Type: core.TypeString, Nullable: true, MaxLength: 100, Ordinal: 1},
	{Name: "Email", SQLType: "nvarchar", Type: core.TypeString, Nullable: true, MaxLength: 255, Ordinal: 2},
	{Name: "Amount", SQLType: "decimal", Type: core.TypeDecimal, Nullable: false, Precision: 10, Scale: 2, Ordinal: 3},
}

var scenarioSources = []core.SourceColumn{
	{Name: "Cliente", Position: 0, Type: core.TypeString},
	{Name: "Correo", Position: 1, Type: core.TypeString},
	{Name: "Monto", Position: 2, Type: core.TypeDecimal},
}

func bySource(mappings []core.ColumnMapping) map[string]core.ColumnMapping {
	out := make(map[string]core.ColumnMapping, len(mappings))
	for _, m := range mappings {
		out[m.Source] = m
	}
	return out
}

func TestMatch_ExactNames(t *testing.T) {
	m := New(Options{})
	got := m.MatchNames([]string{"Email", "Amount"}, []string{"Amount", "Email"})

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for _, mp := range got {
		if mp.Destination != mp.Source {
			t.Errorf("%s mapped to %q, want itself", mp.Source, mp.Destination)
		}
		if mp.Category != core.MatchExact || mp.Confidence != 1 {
			t.Errorf("%s: category %s confidence %v, want exact_match 1", mp.Source, mp.Category, mp.Confidence)
		}
	}
}

func TestMatch_Scenario(t *testing.T) {
	for _, strategy := range []Strategy{StrategyGreedy, StrategyOptimal} {
		got := New(Options{Strategy: strategy}).Match(scenarioSources, scenarioDests)
		idx := bySource(got)

		if d := idx["Monto"].Destination; d != "Amount" {
			t.Errorf("%s: Monto -> %q, want Amount", strategy, d)
		}
		if idx["Monto"].Category != core.MatchExact || idx["Monto"].Type != core.TypeDecimal {
			t.Errorf("%s: Monto = %+v, want exact_match DECIMAL", strategy, idx["Monto"])
		}

		// Spanish and English names share too few letters to reach the threshold.
		for _, name := range []string{"Cliente", "Correo"} {
			mp := idx[name]
			if mp.Mapped() || mp.Category != core.MatchNone || mp.Confidence != 0 {
				t.Errorf("%s: %s = %+v, want no_match with confidence 0", strategy, name, mp)
			}
			if mp.Type != core.TypeString {
				t.Errorf("%s: unmapped %s type = %s, want its inferred STRING", strategy, name, mp.Type)
			}
		}

		if got[0].Source != "Monto" {
			t.Errorf("%s: first mapping = %s, want highest confidence first", strategy, got[0].Source)
		}
		if got[1].Source != "Cliente" || got[2].Source != "Correo" {
			t.Errorf("%s: ties should keep input order, got %s, %s", strategy, got[1].Source, got[2].Source)
		}
	}
}

func TestMatch_GreedyIsOrderDependent(t *testing.T) {
	sources := []string{"name", "Nombre"}
	dests := []string{"Nombre", "CustomerName"}

	// name reaches Nombre (78) before Nombre itself (100) is seen.
	greedy := bySource(New(Options{}).MatchNames(sources, dests))
	if d := greedy["name"].Destination; d != "Nombre" {
		t.Errorf("greedy: name -> %q, want Nombre", d)
	}
	if greedy["Nombre"].Mapped() {
		t.Errorf("greedy: Nombre -> %q, want unmapped", greedy["Nombre"].Destination)
	}

	optimal := bySource(New(Options{Strategy: StrategyOptimal}).MatchNames(sources, dests))
	if d := optimal["Nombre"].Destination; d != "Nombre" {
		t.Errorf("optimal: Nombre -> %q, want Nombre", d)
	}
	if d := optimal["name"].Destination; d != "CustomerName" {
		t.Errorf("optimal: name -> %q, want CustomerName", d)
	}
}

func TestMatch_LowThresholdIsLowConfidence(t *testing.T) {
	got := New(Options{Threshold: 60}).MatchNames([]string{"Monto"}, []string{"Importe"})
	if got[0].Destination != "Importe" {
		t.Fatalf("Monto -> %q, want Importe", got[0].Destination)
	}
	if got[0].Category != core.MatchLowConfidence || !approx(got[0].Confidence, 0.62) {
		t.Errorf("mapping = %+v, want low_confidence 0.62", got[0])
	}
}

func TestMatch_NoMatch(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		dest     string
		wantAlts []core.Suggestion
	}{
		{"unrelated", "zzzz", "Amount", nil},
		{"near miss keeps no_match", "Monto", "Importe", []core.Suggestion{{Column: "Importe", Score: 0.5, Reason: "fuzzy_similarity"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(Options{}).MatchNames([]string{tt.source}, []string{tt.dest})
			if got[0].Mapped() || got[0].Category != core.MatchNone || got[0].Confidence != 0 {
				t.Errorf("mapping = %+v, want no_match", got[0])
			}
			if !reflect.DeepEqual(got[0].Alternatives, tt.wantAlts) {
				t.Errorf("alternatives = %+v, want %+v", got[0].Alternatives, tt.wantAlts)
			}
		})
	}
}

func TestMatchFixed(t *testing.T) {
	fixed := map[string]string{"cliente": "CustomerName", "Correo": "email"}

	for _, strategy := range []Strategy{StrategyGreedy, StrategyOptimal} {
		got, err := New(Options{Strategy: strategy}).MatchFixed(scenarioSources, scenarioDests, fixed)
		if err != nil {
			t.Fatalf("%s: MatchFixed() error = %v", strategy, err)
		}
		idx := bySource(got)

		want := map[string]string{"Cliente": "CustomerName", "Correo": "Email", "Monto": "Amount"}
		for src, dest := range want {
			if d := idx[src].Destination; d != dest {
				t.Errorf("%s: %s -> %q, want %q", strategy, src, d, dest)
			}
		}
		for _, src := range []string{"Cliente", "Correo"} {
			if mp := idx[src]; mp.Category != core.MatchManual || mp.Confidence != 1 {
				t.Errorf("%s: %s = %+v, want manual with confidence 1", strategy, src, mp)
			}
		}
		if idx["Monto"].Category != core.MatchExact {
			t.Errorf("%s: Monto category = %s, want exact_match", strategy, idx["Monto"].Category)
		}
	}
}

func TestMatchFixed_PinnedDestinationIsNotClaimed(t *testing.T) {
	got, err := New(Options{}).MatchFixed(
		[]core.SourceColumn{{Name: "Amount"}, {Name: "Monto"}},
		scenarioDests,
		map[string]string{"Monto": "Amount"},
	)
	if err != nil {
		t.Fatal(err)
	}
	idx := bySource(got)
	if idx["Monto"].Destination != "Amount" {
		t.Errorf("Monto -> %q, want Amount", idx["Monto"].Destination)
	}
	if idx["Amount"].Destination == "Amount" {
		t.Error("Amount was assigned twice")
	}
}

func TestMatchFixed_Errors(t *testing.T) {
	tests := []struct {
		name  string
		fixed map[string]string
		want  string
	}{
		{"unknown source", map[string]string{"Telefono": "Email"}, `no sheet column "Telefono"`},
		{"unknown destination", map[string]string{"Correo": "Phone"}, `no destination column "Phone"`},
		{"typo gets a hint", map[string]string{"Correo": "Emial"}, `(did you mean "Email"?)`},
		{"source typo gets a hint", map[string]string{"Monot": "Amount"}, `(did you mean "Monto"?)`},
		{"destination twice", map[string]string{"Cliente": "Email", "Correo": "EMAIL"}, "target of both"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Options{}).MatchFixed(scenarioSources, scenarioDests, tt.fixed)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("MatchFixed() error = %v, want it to contain %q", err, tt.want)
			}
			if code := core.MapError(err).Code; code != "MAP002" {
				t.Errorf("MapError() code = %s, want MAP002", code)
			}
		})
	}
}

func TestDidYouMean(t *testing.T) {
	names := []string{"CustomerName", "Email", "Amount"}
	name := func(k int) string { return names[k] }

	tests := []struct {
		want string
		hint string
	}{
		{"emial", ` (did you mean "Email"?)`},
		{"CustomerNmae", ` (did you mean "CustomerName"?)`},
		{"Phone", ""},
		{"x", ""},
	}
	for _, tt := range tests {
		if got := didYouMean(tt.want, len(names), name); got != tt.hint {
			t.Errorf("didYouMean(%q) = %q, want %q", tt.want, got, tt.hint)
		}
	}
	if got := didYouMean("Email", 0, name); got != "" {
		t.Errorf("didYouMean with no candidates = %q, want empty", got)
	}
}

func TestMatch_DuplicateDestinationNames(t *testing.T) {
	for _, strategy := range []Strategy{StrategyGreedy, StrategyOptimal} {
		got := New(Options{Strategy: strategy}).MatchNames(
			[]string{"Correo", "correo"},
			[]string{"Correo", "CORREO"},
		)
		mapped := 0
		for _, mp := range got {
			if mp.Mapped() {
				mapped++
			}
		}
		if mapped != 1 {
			t.Errorf("%s: %d sources mapped onto one destination name, want 1: %+v", strategy, mapped, got)
		}
	}
}

func TestMatch_MoreSourcesThanDestinations(t *testing.T) {
	for _, s := range []Strategy{StrategyGreedy, StrategyOptimal} {
		got := New(Options{Strategy: s}).MatchNames(
			[]string{"email", "e_mail", "correo_email"},
			[]string{"Email"},
		)
		if len(got) != 3 {
			t.Fatalf("%s: len = %d, want 3", s, len(got))
		}
		mapped := 0
		for _, mp := range got {
			if mp.Mapped() {
				mapped++
			}
		}
		if mapped != 1 {
			t.Errorf("%s: %d mapped, want 1", s, mapped)
		}
		if got[0].Source != "email" {
			t.Errorf("%s: Email claimed by %s, want email", s, got[0].Source)
		}
	}
}

func TestMatch_EmptyInputs(t *testing.T) {
	m := New(Options{Strategy: StrategyOptimal})
	if got := m.MatchNames(nil, []string{"a"}); len(got) != 0 {
		t.Errorf("no sources: len = %d, want 0", len(got))
	}
	got := m.MatchNames([]string{"a", "b"}, nil)
	if len(got) != 2 || got[0].Mapped() || got[1].Mapped() {
		t.Errorf("no destinations: %+v", got)
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyGreedy, false},
		{"greedy", StrategyGreedy, false},
		{"optimal", StrategyOptimal, false},
		{"best", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseStrategy(%q) = %q, %v", tt.in, got, err)
		}
	}
}

var vocabulary = []any{
	"id", "ID", "name", "Nombre", "email", "Correo", "customer_id", "CustomerName",
	"fecha", "Date", "monto", "Amount", "total", "qty", "Cantidad", "phone", "tel",
}

func TestProperty_NoDestinationClaimedTwice(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.MaxSize = 12
	properties := gopter.NewProperties(parameters)

	for _, strategy := range []Strategy{StrategyGreedy, StrategyOptimal} {
		m := New(Options{Strategy: strategy})

		properties.Property(string(strategy)+": each destination appears at most once", prop.ForAll(
			func(sources, dests []string) bool {
				got := m.MatchNames(sources, dests)
				if len(got) != len(sources) {
					return false
				}
				seen := make(map[string]bool)
				for _, mp := range got {
					if !mp.Mapped() {
						continue
					}
					if seen[mp.Destination] {
						return false
					}
					seen[mp.Destination] = true
				}
				return true
			},
			gen.SliceOf(gen.OneConstOf(vocabulary...)),
			gen.SliceOf(gen.OneConstOf(vocabulary...)),
		))
	}

	properties.TestingRun(t)
}

func TestProperty_IdenticalNamesMapExactly(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.MaxSize = 8
	properties := gopter.NewProperties(parameters)

	for _, strategy := range []Strategy{StrategyGreedy, StrategyOptimal} {
		m := New(Options{Strategy: strategy})

		properties.Property(string(strategy)+": a name maps to itself as exact_match", prop.ForAll(
			func(raw []string) bool {
				names := distinctFold(raw)
				for _, mp := range m.MatchNames(names, names) {
					if mp.Destination != mp.Source || mp.Category != core.MatchExact || mp.Confidence < 0.85 {
						return false
					}
				}
				return true
			},
			gen.SliceOf(gen.Identifier()),
		))
	}

	properties.TestingRun(t)
}

func distinctFold(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range names {
		k := strings.ToLower(n)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, n)
	}
	return out
}
