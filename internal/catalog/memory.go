package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/sheetload/internal/core"
)

// MemoryTable describes one table held by a Memory catalog.
type MemoryTable struct {
	Columns           []core.DestinationColumn
	PrimaryKey        []string
	UniqueConstraints []core.KeySet
	UniqueIndexes     []core.KeySet
	Rows              []map[string]any
}

// Memory is an in-process catalog used by tests, previews and the CLI's
// --dry-run mode. Values are compared by their spreadsheet rendering, so
// int64(5), "5" and 5.0 all match each other.
type Memory struct {
	mu     sync.Mutex
	tables map[string]*MemoryTable
	fail   map[string]error
	calls  map[string]int
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{
		tables: make(map[string]*MemoryTable),
		fail:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func memoryKey(schema, table string) string {
	return strings.ToLower(schema) + "." + strings.ToLower(table)
}

// AddTable registers schema.name, replacing any previous definition.
func (m *Memory) AddTable(schema, name string, t MemoryTable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := t
	cp.Rows = append([]map[string]any(nil), t.Rows...)
	for i := range cp.Columns {
		if cp.Columns[i].Type == "" {
			cp.Columns[i].Type = core.SimplifyType(cp.Columns[i].SQLType)
		}
		if cp.Columns[i].Ordinal == 0 {
			cp.Columns[i].Ordinal = i + 1
		}
	}
	m.tables[memoryKey(schema, name)] = &cp
}

// Fail makes every later call of op (a Catalog method name such as
// "RowExists") return err. A nil err clears the failure.
func (m *Memory) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, op)
		return
	}
	m.fail[op] = err
}

// Calls returns how many times op has been invoked.
func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Rows returns a copy of the rows currently stored in schema.table.
func (m *Memory) Rows(schema, table string) []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[memoryKey(schema, table)]
	if !ok {
		return nil
	}
	return append([]map[string]any(nil), t.Rows...)
}

// enter records a call of op and returns its injected failure, if any.
// The caller must hold m.mu.
func (m *Memory) enter(op string) error {
	m.calls[op]++
	return m.fail[op]
}

func (m *Memory) lookup(schema, table string) (*MemoryTable, error) {
	t, ok := m.tables[memoryKey(schema, table)]
	if !ok {
		return nil, fmt.Errorf("table not found: %s.%s", schema, table)
	}
	return t, nil
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close() error { return nil }

func (m *Memory) ListSchemas(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListSchemas"); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for k := range m.tables {
		s := k[:strings.IndexByte(k, '.')]
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) ListTables(ctx context.Context, schema string) ([]core.TableRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListTables"); err != nil {
		return nil, err
	}
	prefix := strings.ToLower(schema) + "."
	var out []core.TableRef
	for k := range m.tables {
		if strings.HasPrefix(k, prefix) {
			out = append(out, core.TableRef{Name: k[len(prefix):], Type: "BASE TABLE"})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) GetColumns(ctx context.Context, schema, table string) ([]core.DestinationColumn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetColumns"); err != nil {
		return nil, fmt.Errorf("fetch columns: %w", err)
	}
	t, err := m.lookup(schema, table)
	if err != nil {
		return nil, fmt.Errorf("fetch columns: %w", err)
	}
	return append([]core.DestinationColumn(nil), t.Columns...), nil
}

func (m *Memory) GetPrimaryKey(ctx context.Context, schema, table string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetPrimaryKey"); err != nil {
		return nil, err
	}
	t, err := m.lookup(schema, table)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), t.PrimaryKey...), nil
}

func (m *Memory) GetUniqueConstraints(ctx context.Context, schema, table string) ([]core.KeySet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetUniqueConstraints"); err != nil {
		return nil, err
	}
	t, err := m.lookup(schema, table)
	if err != nil {
		return nil, err
	}
	return append([]core.KeySet(nil), t.UniqueConstraints...), nil
}

func (m *Memory) GetUniqueIndexes(ctx context.Context, schema, table string) ([]core.KeySet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetUniqueIndexes"); err != nil {
		return nil, err
	}
	t, err := m.lookup(schema, table)
	if err != nil {
		return nil, err
	}
	return append([]core.KeySet(nil), t.UniqueIndexes...), nil
}

// matches reports whether row holds every column/value pair of key. Column
// names fold case like the real engines' default collations.
func matches(row map[string]any, cols []string, values []any) bool {
	for i, c := range cols {
		v, ok := rowValue(row, c)
		if values[i] == nil {
			if ok && v != nil {
				return false
			}
			continue
		}
		if !ok || v == nil || core.Stringify(v) != core.Stringify(values[i]) {
			return false
		}
	}
	return true
}

func rowValue(row map[string]any, col string) (any, bool) {
	if v, ok := row[col]; ok {
		return v, true
	}
	for k, v := range row {
		if strings.EqualFold(k, col) {
			return v, true
		}
	}
	return nil, false
}

func (m *Memory) RowExists(ctx context.Context, schema, table string, key map[string]any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("RowExists"); err != nil {
		return false, err
	}
	t, err := m.lookup(schema, table)
	if err != nil {
		return false, err
	}
	cols := sortedKeys(key)
	values := make([]any, len(cols))
	for i, c := range cols {
		values[i] = key[c]
	}
	for _, row := range t.Rows {
		if matches(row, cols, values) {
			return true, nil
		}
	}
	return false, nil
}

// InsertRow appends a copy of values. It enforces the primary key and
// unique constraints the way a database would.
func (m *Memory) InsertRow(ctx context.Context, schema, table string, values map[string]any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("InsertRow"); err != nil {
		return false, err
	}
	t, err := m.lookup(schema, table)
	if err != nil {
		return false, err
	}

	keys := []core.KeySet{{Name: "PRIMARY", Columns: t.PrimaryKey}}
	keys = append(keys, t.UniqueConstraints...)
	keys = append(keys, t.UniqueIndexes...)
	for _, k := range keys {
		if len(k.Columns) == 0 {
			continue
		}
		kv := make([]any, len(k.Columns))
		hasNull := false
		for i, c := range k.Columns {
			kv[i], _ = rowValue(values, c)
			hasNull = hasNull || kv[i] == nil
		}
		if hasNull {
			continue
		}
		for _, row := range t.Rows {
			if matches(row, k.Columns, kv) {
				return false, fmt.Errorf("insert row: duplicate key violates %s", k.Name)
			}
		}
	}

	row := make(map[string]any, len(values))
	for k, v := range values {
		row[k] = v
	}
	t.Rows = append(t.Rows, row)
	return true, nil
}

func (m *Memory) ExistingKeys(ctx context.Context, schema, table string, cols []string, keys [][]any) ([][]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ExistingKeys"); err != nil {
		return nil, err
	}
	t, err := m.lookup(schema, table)
	if err != nil {
		return nil, err
	}
	var out [][]any
	for _, key := range keys {
		for _, row := range t.Rows {
			if matches(row, cols, key) {
				out = append(out, key)
				break
			}
		}
	}
	return out, nil
}
