package source

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JonMunkholm/sheetload/internal/core"
)

var (
	headerJunk  = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	headerSpace = regexp.MustCompile(`\s+`)
)

// CleanHeaders trims header names, strips punctuation, collapses runs of
// whitespace, names blank headers column_N (1-based) and suffixes repeats
// with _2, _3 and so on.
func CleanHeaders(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))

	for i, h := range raw {
		h = headerJunk.ReplaceAllString(strings.TrimSpace(h), "")
		h = strings.TrimSpace(headerSpace.ReplaceAllString(h, " "))
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}

		key := strings.ToLower(h)
		seen[key]++
		if n := seen[key]; n > 1 {
			name := fmt.Sprintf("%s_%d", h, n)
			for seen[strings.ToLower(name)] > 0 {
				n++
				name = fmt.Sprintf("%s_%d", h, n)
			}
			seen[strings.ToLower(name)]++
			h = name
		}
		out[i] = h
	}
	return out
}

// DropEmptyColumns removes columns whose every cell is null. A table with
// no data rows is returned unchanged so its header survives.
func DropEmptyColumns(t *core.Table) *core.Table {
	if t.Len() == 0 {
		return t
	}

	var keep []int
	for j := range t.Columns {
		for _, row := range t.Rows {
			if !core.IsNull(row[j]) {
				keep = append(keep, j)
				break
			}
		}
	}
	if len(keep) == len(t.Columns) {
		return t
	}

	names := make([]string, len(keep))
	for i, j := range keep {
		names[i] = t.Columns[j]
	}
	out := core.NewTable(names...)
	for _, row := range t.Rows {
		vals := make([]any, len(keep))
		for i, j := range keep {
			vals[i] = row[j]
		}
		out.Append(vals...)
	}
	return out
}

// builder turns raw records into a table: the first non-blank record is
// the header, blank records are skipped and cells are cleaned of export
// artifacts.
type builder struct {
	limit     int
	header    []string
	rows      [][]any
	truncated bool
}

func newBuilder(limit int) *builder {
	return &builder{limit: limit}
}

func (b *builder) add(record []string) error {
	if blankRecord(record) {
		return nil
	}
	if b.header == nil {
		b.header = CleanHeaders(record)
		return nil
	}
	if b.limit > 0 && len(b.rows) >= b.limit {
		b.truncated = true
		return errStop
	}

	row := make([]any, len(b.header))
	for i := range row {
		if i < len(record) {
			row[i] = core.CleanCell(record[i])
		} else {
			row[i] = ""
		}
	}
	b.rows = append(b.rows, row)
	return nil
}

func (b *builder) table() *core.Table {
	t := core.NewTable(b.header...)
	for _, row := range b.rows {
		t.Append(row...)
	}
	return t
}

func blankRecord(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
