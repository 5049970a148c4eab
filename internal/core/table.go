package core

import "strings"

// Row is one record. A nil element is SQL NULL.
type Row []any

// Table is an in-memory sheet: named columns and positional rows.
// Every row has exactly len(Columns) values.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewTable returns an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Append adds a row, padding or truncating it to the table width.
func (t *Table) Append(values ...any) {
	row := make(Row, len(t.Columns))
	copy(row, values)
	t.Rows = append(t.Rows, row)
}

// ColumnIndex returns the position of name, or -1. Lookup is exact first,
// then case-insensitive.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	for i, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// Column returns every value of the named column, or nil if it is absent.
func (t *Table) Column(name string) []any {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out
}

// Value returns the named cell of row i, or nil when the column is absent.
func (t *Table) Value(i int, name string) any {
	idx := t.ColumnIndex(name)
	if idx < 0 || i < 0 || i >= len(t.Rows) {
		return nil
	}
	return t.Rows[i][idx]
}

// RowMap returns row i keyed by column name.
func (t *Table) RowMap(i int) map[string]any {
	m := make(map[string]any, len(t.Columns))
	for j, c := range t.Columns {
		m[c] = t.Rows[i][j]
	}
	return m
}

// Select returns a new table containing rows at the given indexes, in order.
// Rows are shared, not copied.
func (t *Table) Select(indexes []int) *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...), Rows: make([]Row, 0, len(indexes))}
	for _, i := range indexes {
		out.Rows = append(out.Rows, t.Rows[i])
	}
	return out
}

// Head returns the first n rows (or all rows if n <= 0 or n >= Len).
func (t *Table) Head(n int) *Table {
	if n <= 0 || n >= len(t.Rows) {
		return t
	}
	return &Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

// MissingColumns returns the names from want that the table does not have.
func (t *Table) MissingColumns(want []string) []string {
	var missing []string
	for _, c := range want {
		if t.ColumnIndex(c) < 0 {
			missing = append(missing, c)
		}
	}
	return missing
}
