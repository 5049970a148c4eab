package matcher

import "github.com/JonMunkholm/sheetload/internal/core"

// DefaultMinConfidence is the confidence a mapping must exceed to be applied.
const DefaultMinConfidence = 0.5

// Apply returns a copy of t holding only the columns with a mapping whose
// confidence exceeds minConfidence, renamed to their destination names.
// Column order follows t.
func Apply(t *core.Table, mappings []core.ColumnMapping, minConfidence float64) *core.Table {
	rename := make(map[string]string, len(mappings))
	for _, m := range mappings {
		if m.Mapped() && m.Confidence > minConfidence {
			rename[m.Source] = m.Destination
		}
	}

	var keep []int
	var cols []string
	for i, c := range t.Columns {
		if dest, ok := rename[c]; ok {
			keep = append(keep, i)
			cols = append(cols, dest)
		}
	}

	out := &core.Table{Columns: cols, Rows: make([]core.Row, len(t.Rows))}
	for r, row := range t.Rows {
		nr := make(core.Row, len(keep))
		for k, i := range keep {
			nr[k] = row[i]
		}
		out.Rows[r] = nr
	}
	return out
}
