package pipeline

import (
	"strings"

	"github.com/JonMunkholm/sheetload/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
)

// Convert returns a copy of t with every cell converted to the Go type of
// its destination column: int64, pgtype.Numeric, bool, time.Time or string.
// Null cells become nil. A cell that does not parse is kept as its original
// text so validation can report it. The second return value counts those.
func Convert(t *core.Table, dest []core.DestinationColumn) (*core.Table, int) {
	types := make([]core.InferredType, len(t.Columns))
	for i, name := range t.Columns {
		types[i] = core.TypeString
		for _, d := range dest {
			if strings.EqualFold(d.Name, name) {
				types[i] = d.Type
				break
			}
		}
	}

	failed := 0
	out := &core.Table{Columns: append([]string(nil), t.Columns...), Rows: make([]core.Row, len(t.Rows))}
	for r, row := range t.Rows {
		nr := make(core.Row, len(row))
		for i, v := range row {
			cv, ok := convertValue(v, types[i])
			if !ok {
				failed++
			}
			nr[i] = cv
		}
		out.Rows[r] = nr
	}
	return out, failed
}

func convertValue(v any, t core.InferredType) (any, bool) {
	if core.IsNull(v) {
		return nil, true
	}
	switch t {
	case core.TypeInteger:
		if n, ok := core.ParseInteger(v); ok {
			return n, true
		}
	case core.TypeDecimal:
		if n, ok := core.ParseDecimal(v); ok {
			return n, true
		}
	case core.TypeBoolean:
		if b, ok := core.ParseBool(v, core.AcceptedBoolLiterals()); ok {
			return b, true
		}
	case core.TypeDate, core.TypeDateTime:
		if ts, _, ok := core.ParseTime(v); ok {
			return ts, true
		}
	default:
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s), true
		}
		return v, true
	}
	return v, false
}

// insertValues builds the column/value map for one insert. Nil cells are
// left out so the destination's defaults apply. Decimals are sent as plain
// strings.
func insertValues(t *core.Table, i int) map[string]any {
	out := make(map[string]any, len(t.Columns))
	for j, col := range t.Columns {
		v := t.Rows[i][j]
		switch x := v.(type) {
		case nil:
			continue
		case pgtype.Numeric:
			out[col] = core.FormatDecimal(x)
		default:
			out[col] = v
		}
	}
	return out
}
