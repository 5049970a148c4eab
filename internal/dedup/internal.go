package dedup

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetload/internal/core"
)

// KeepPolicy decides which rows of an internal duplicate group survive.
type KeepPolicy string

const (
	KeepFirst KeepPolicy = "first"
	KeepLast  KeepPolicy = "last"
	// DropAll removes every row of a duplicate group.
	DropAll KeepPolicy = "none"
)

// ParseKeepPolicy parses a configured policy name. Empty means first.
func ParseKeepPolicy(s string) (KeepPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return KeepFirst, nil
	case "last":
		return KeepLast, nil
	case "none", "drop", "drop_all", "false":
		return DropAll, nil
	default:
		return "", fmt.Errorf("unknown keep policy %q (want first, last or none)", s)
	}
}

// Group is one set of rows sharing a key.
type Group struct {
	KeyValues map[string]any `json:"key_values"`
	Count     int            `json:"count"`
	Indices   []int          `json:"indices"`
}

// Analysis describes the duplicate keys inside one batch.
type Analysis struct {
	HasDuplicates  bool    `json:"has_duplicates"`
	DuplicateCount int     `json:"duplicate_count"` // rows that belong to a group
	UniqueCount    int     `json:"unique_count"`
	Groups         []Group `json:"groups,omitempty"`
}

// groups returns the row indexes of each key, in order of first occurrence.
func groups(t *core.Table, keyCols []string) ([][]int, error) {
	if missing := t.MissingColumns(keyCols); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingKeyColumns, strings.Join(missing, ", "))
	}
	idx := make([]int, len(keyCols))
	for i, c := range keyCols {
		idx[i] = t.ColumnIndex(c)
	}

	pos := make(map[string]int)
	var out [][]int
	key := make([]any, len(keyCols))
	for r, row := range t.Rows {
		for i, ci := range idx {
			key[i] = row[ci]
			if core.IsNull(key[i]) {
				key[i] = nil
			}
		}
		k := canonical(key)
		g, ok := pos[k]
		if !ok {
			g = len(out)
			pos[k] = g
			out = append(out, nil)
		}
		out[g] = append(out[g], r)
	}
	return out, nil
}

// AnalyzeInternal finds rows of t that repeat a key. It never touches the
// destination.
func AnalyzeInternal(t *core.Table, keyCols []string) (Analysis, error) {
	if t.Len() == 0 || len(keyCols) == 0 {
		return Analysis{UniqueCount: t.Len()}, nil
	}
	gs, err := groups(t, keyCols)
	if err != nil {
		return Analysis{UniqueCount: t.Len()}, err
	}

	var a Analysis
	for _, g := range gs {
		if len(g) < 2 {
			continue
		}
		kv := make(map[string]any, len(keyCols))
		for _, c := range keyCols {
			kv[c] = t.Value(g[0], c)
		}
		a.Groups = append(a.Groups, Group{KeyValues: kv, Count: len(g), Indices: g})
		a.DuplicateCount += len(g)
	}
	a.HasDuplicates = len(a.Groups) > 0
	a.UniqueCount = t.Len() - a.DuplicateCount
	return a, nil
}

// RemoveInternal drops rows of t that repeat a key, keeping rows per the
// policy. The kept rows stay in their original order. It returns the new
// table and how many rows were removed.
func RemoveInternal(t *core.Table, keyCols []string, keep KeepPolicy) (*core.Table, int, error) {
	if t.Len() == 0 || len(keyCols) == 0 {
		return t, 0, nil
	}
	gs, err := groups(t, keyCols)
	if err != nil {
		return t, 0, err
	}

	keepRow := make([]bool, t.Len())
	for _, g := range gs {
		switch {
		case len(g) == 1:
			keepRow[g[0]] = true
		case keep == KeepLast:
			keepRow[g[len(g)-1]] = true
		case keep == DropAll:
		default:
			keepRow[g[0]] = true
		}
	}

	var kept []int
	for i, k := range keepRow {
		if k {
			kept = append(kept, i)
		}
	}
	return t.Select(kept), t.Len() - len(kept), nil
}
