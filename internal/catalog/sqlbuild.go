package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetload/internal/core"
)

// dialect captures the identifier quoting and placeholder style of one
// database engine. Every statement the catalogs build goes through it, so
// user-supplied names are always quoted and values always bound.
type dialect struct {
	name        string
	quote       func(string) string
	placeholder func(n int) string // n is 1-based
}

var (
	postgresDialect = dialect{
		name:        "postgres",
		quote:       quoteDouble,
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}
	sqlserverDialect = dialect{
		name:        "sqlserver",
		quote:       quoteBracket,
		placeholder: func(n int) string { return "@p" + strconv.Itoa(n) },
	}
	sqliteDialect = dialect{
		name:        "sqlite",
		quote:       quoteDouble,
		placeholder: func(int) string { return "?" },
	}
)

func quoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteBracket(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// table returns the quoted, schema-qualified table name. An empty schema
// leaves the name unqualified.
func (d dialect) table(schema, table string) string {
	if schema == "" {
		return d.quote(table)
	}
	return d.quote(schema) + "." + d.quote(table)
}

// sortedKeys returns the map's keys in a stable order so generated SQL is
// deterministic.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// predicate builds "c1 = p1 AND c2 IS NULL ..." for cols/values, numbering
// placeholders from next. It returns the SQL, the bound args and the next
// free placeholder number.
func (d dialect) predicate(cols []string, values []any, next int) (string, []any, int) {
	parts := make([]string, len(cols))
	var args []any
	for i, c := range cols {
		if values[i] == nil {
			parts[i] = d.quote(c) + " IS NULL"
			continue
		}
		parts[i] = d.quote(c) + " = " + d.placeholder(next)
		args = append(args, values[i])
		next++
	}
	return strings.Join(parts, " AND "), args, next
}

// countQuery builds the existence check for one row.
func (d dialect) countQuery(schema, table string, key map[string]any) (string, []any) {
	cols := sortedKeys(key)
	values := make([]any, len(cols))
	for i, c := range cols {
		values[i] = key[c]
	}
	where, args, _ := d.predicate(cols, values, 1)
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", d.table(schema, table), where), args
}

// insertQuery builds a parameterised single-row insert.
func (d dialect) insertQuery(schema, table string, values map[string]any) (string, []any) {
	cols := sortedKeys(values)
	quoted := make([]string, len(cols))
	holders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = d.quote(c)
		holders[i] = d.placeholder(i + 1)
		args[i] = values[c]
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.table(schema, table),
		strings.Join(quoted, ", "),
		strings.Join(holders, ", "),
	), args
}

// keysQuery builds one statement answering existence for a batch of keys.
// Each key becomes "SELECT i WHERE EXISTS (...)"; the result set holds the
// indexes of the keys present in the table.
func (d dialect) keysQuery(schema, table string, cols []string, keys [][]any) (string, []any) {
	target := d.table(schema, table)
	parts := make([]string, len(keys))
	var args []any
	next := 1
	for i, key := range keys {
		var where string
		var kargs []any
		where, kargs, next = d.predicate(cols, key, next)
		args = append(args, kargs...)
		parts[i] = fmt.Sprintf("SELECT %d AS idx WHERE EXISTS (SELECT 1 FROM %s WHERE %s)", i, target, where)
	}
	return strings.Join(parts, " UNION ALL "), args
}

// groupKeySets folds (name, column) rows, already ordered by name position
// and key ordinal, into ordered key sets.
func groupKeySets(rows []keyColumn) []core.KeySet {
	var out []core.KeySet
	index := make(map[string]int)
	for _, r := range rows {
		i, ok := index[r.Name]
		if !ok {
			i = len(out)
			index[r.Name] = i
			out = append(out, core.KeySet{Name: r.Name})
		}
		out[i].Columns = append(out[i].Columns, r.Column)
	}
	return out
}

type keyColumn struct {
	Name   string `db:"name"`
	Column string `db:"column_name"`
}
