// Package matcher maps spreadsheet columns onto destination table columns by
// name similarity.
//
// Each (source, destination) pair gets a score in [0, 100]: a weighted blend
// of four string metrics on normalized names plus a pattern bonus of at most
// 20 points. A pair is claimable when its score reaches the fuzzy threshold.
// Two assignment strategies are available:
//
//   - greedy: sources in input order each claim their best unclaimed
//     destination. Earlier columns win ambiguous destinations.
//   - optimal: the assignment that maximizes the total score over
//     claimable pairs (Hungarian algorithm).
//
// Both strategies compute the full score matrix once. No destination is ever
// claimed twice.
package matcher

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/JonMunkholm/sheetload/internal/core"
)

const (
	DefaultThreshold           = 70.0
	DefaultHighThreshold       = 85.0
	DefaultSuggestionThreshold = 50.0
	DefaultMaxSuggestions      = 3

	maxBonus = 20.0
)

// Metric weights: ratio, partial, token sort, token set.
const (
	weightRatio     = 0.3
	weightPartial   = 0.2
	weightTokenSort = 0.3
	weightTokenSet  = 0.2
)

// Strategy selects how claimable pairs become a 1:1 mapping.
type Strategy string

const (
	StrategyGreedy  Strategy = "greedy"
	StrategyOptimal Strategy = "optimal"
)

// ParseStrategy converts a config or flag value to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyGreedy, "":
		return StrategyGreedy, nil
	case StrategyOptimal:
		return StrategyOptimal, nil
	default:
		return "", fmt.Errorf("unknown match strategy %q (want greedy or optimal)", s)
	}
}

// Options configures a Matcher. Zero values take the defaults.
type Options struct {
	Threshold           float64 // minimum score to claim a destination
	HighThreshold       float64 // score at or above which a match is exact
	SuggestionThreshold float64 // minimum token-sort score for an alternative
	MaxSuggestions      int
	Strategy            Strategy
	Buckets             []core.PatternBucket
}

// Matcher scores and assigns column names. It holds no per-call state and is
// safe for concurrent use.
type Matcher struct {
	threshold      float64
	high           float64
	suggestAt      float64
	maxSuggestions int
	strategy       Strategy
	buckets        []core.PatternBucket
}

// New creates a Matcher.
func New(opts Options) *Matcher {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.HighThreshold <= 0 {
		opts.HighThreshold = DefaultHighThreshold
	}
	if opts.SuggestionThreshold <= 0 {
		opts.SuggestionThreshold = DefaultSuggestionThreshold
	}
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = DefaultMaxSuggestions
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyGreedy
	}
	if opts.Buckets == nil {
		opts.Buckets = core.DefaultBuckets()
	}
	return &Matcher{
		threshold:      opts.Threshold,
		high:           opts.HighThreshold,
		suggestAt:      opts.SuggestionThreshold,
		maxSuggestions: opts.MaxSuggestions,
		strategy:       opts.Strategy,
		buckets:        opts.Buckets,
	}
}

// Breakdown explains one pair's score.
type Breakdown struct {
	Source     string    `json:"source"`
	Dest       string    `json:"destination"`
	Normalized [2]string `json:"normalized"`
	Ratio      float64   `json:"ratio"`
	Partial    float64   `json:"partial_ratio"`
	TokenSort  float64   `json:"token_sort"`
	TokenSet   float64   `json:"token_set"`
	Weighted   float64   `json:"weighted"`
	Bonus      float64   `json:"pattern_bonus"`
	Score      float64   `json:"score"`
}

// Explain scores source against dest and returns every component.
func (m *Matcher) Explain(source, dest string) Breakdown {
	a, b := Normalize(source), Normalize(dest)

	bd := Breakdown{
		Source:     source,
		Dest:       dest,
		Ratio:      Ratio(a, b),
		Partial:    PartialRatio(a, b),
		TokenSort:  TokenSortRatio(a, b),
		TokenSet:   TokenSetRatio(a, b),
		Bonus:      m.patternBonus(a, b),
		Normalized: [2]string{a, b},
	}
	bd.Weighted = bd.Ratio*weightRatio + bd.Partial*weightPartial +
		bd.TokenSort*weightTokenSort + bd.TokenSet*weightTokenSet
	bd.Score = math.Min(100, bd.Weighted+bd.Bonus)
	return bd
}

// Score returns the combined similarity of two column names in [0, 100].
func (m *Matcher) Score(source, dest string) float64 {
	return m.Explain(source, dest).Score
}

// patternBonus rewards names that share a semantic bucket and names of
// similar length. Buckets are scanned in order: a bucket both names hit adds
// 15 and ends the scan, a bucket only one name hits adds 5.
func (m *Matcher) patternBonus(a, b string) float64 {
	bonus := 0.0
	for _, bucket := range m.buckets {
		hitA, hitB := bucket.Matches(a), bucket.Matches(b)
		if hitA && hitB {
			bonus += 15
			break
		}
		if hitA || hitB {
			bonus += 5
		}
	}

	diff := len(a) - len(b)
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff <= 2:
		bonus += 5
	case diff <= 5:
		bonus += 2
	}
	return math.Min(maxBonus, bonus)
}

// pair is one cell of the score matrix. tie breaks equal scores in favour of
// the closer raw (un-normalized) names.
type pair struct {
	score float64
	tie   float64
}

func (p pair) better(q pair) bool {
	if p.score != q.score {
		return p.score > q.score
	}
	return p.tie > q.tie
}

// Match produces exactly one mapping per source column, sorted by descending
// confidence. Sources with equal confidence keep their input order.
func (m *Matcher) Match(sources []core.SourceColumn, dests []core.DestinationColumn) []core.ColumnMapping {
	out, _ := m.MatchFixed(sources, dests, nil)
	return out
}

// MatchFixed is Match with some pairs decided by the caller. fixed maps
// source names to destination names, both compared case-insensitively.
// Fixed pairs get confidence 1 and category manual; the remaining sources
// compete for the remaining destinations. An unknown name on either side, or
// a destination named twice, is an error.
func (m *Matcher) MatchFixed(sources []core.SourceColumn, dests []core.DestinationColumn, fixed map[string]string) ([]core.ColumnMapping, error) {
	dests = distinctDests(dests)

	pinned, err := resolveFixed(sources, dests, fixed)
	if err != nil {
		return nil, err
	}

	taken := make(map[int]bool, len(pinned))
	for _, j := range pinned {
		taken[j] = true
	}
	var freeSrc []core.SourceColumn
	var freeDest []core.DestinationColumn
	for i, s := range sources {
		if _, ok := pinned[i]; !ok {
			freeSrc = append(freeSrc, s)
		}
	}
	for j, d := range dests {
		if !taken[j] {
			freeDest = append(freeDest, d)
		}
	}

	matrix := make([][]pair, len(freeSrc))
	for i, s := range freeSrc {
		matrix[i] = make([]pair, len(freeDest))
		for j, d := range freeDest {
			matrix[i][j] = pair{
				score: m.Score(s.Name, d.Name),
				tie:   rawRatio(foldAccents(strings.ToLower(s.Name)), foldAccents(strings.ToLower(d.Name))),
			}
		}
	}

	var free []core.ColumnMapping
	if m.strategy == StrategyOptimal {
		free = m.assignOptimal(freeSrc, freeDest, matrix)
	} else {
		free = m.assignGreedy(freeSrc, freeDest, matrix)
	}

	mappings := make([]core.ColumnMapping, 0, len(sources))
	k := 0
	for i, s := range sources {
		if j, ok := pinned[i]; ok {
			d := dests[j]
			mappings = append(mappings, core.ColumnMapping{
				Source:      s.Name,
				Destination: d.Name,
				Type:        d.Type,
				Confidence:  1,
				Category:    core.MatchManual,
			})
			continue
		}
		mappings = append(mappings, free[k])
		k++
	}

	sort.SliceStable(mappings, func(i, j int) bool {
		return mappings[i].Confidence > mappings[j].Confidence
	})
	return mappings, nil
}

// distinctDests drops destinations whose name repeats an earlier one,
// ignoring case, so one destination name is never assigned twice.
func distinctDests(dests []core.DestinationColumn) []core.DestinationColumn {
	seen := make(map[string]bool, len(dests))
	out := make([]core.DestinationColumn, 0, len(dests))
	for _, d := range dests {
		key := strings.ToLower(d.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}

// resolveFixed turns name pairs into source index -> destination index.
func resolveFixed(sources []core.SourceColumn, dests []core.DestinationColumn, fixed map[string]string) (map[int]int, error) {
	pinned := make(map[int]int, len(fixed))
	if len(fixed) == 0 {
		return pinned, nil
	}

	names := make([]string, 0, len(fixed))
	for src := range fixed {
		names = append(names, src)
	}
	sort.Strings(names)

	owner := make(map[int]string, len(fixed))
	for _, src := range names {
		dst := fixed[src]
		srcName := func(k int) string { return sources[k].Name }
		i := indexFold(len(sources), srcName, src)
		if i < 0 {
			return nil, fmt.Errorf("invalid column mapping: no sheet column %q%s", src,
				didYouMean(src, len(sources), srcName))
		}
		destName := func(k int) string { return dests[k].Name }
		j := indexFold(len(dests), destName, dst)
		if j < 0 {
			return nil, fmt.Errorf("invalid column mapping: no destination column %q%s", dst,
				didYouMean(dst, len(dests), destName))
		}
		if prev, ok := owner[j]; ok {
			return nil, fmt.Errorf("invalid column mapping: %q is the target of both %q and %q", dests[j].Name, prev, src)
		}
		owner[j] = src
		pinned[i] = j
	}
	return pinned, nil
}

// didYouMean names the closest candidate by edit distance, when it is close
// enough to be a typo of want.
func didYouMean(want string, n int, name func(int) string) string {
	want = strings.ToLower(strings.TrimSpace(want))
	best, bestDist := "", -1
	for k := 0; k < n; k++ {
		d := levenshtein.ComputeDistance(want, strings.ToLower(name(k)))
		if bestDist < 0 || d < bestDist {
			best, bestDist = name(k), d
		}
	}
	limit := utf8.RuneCountInString(want) / 3
	if limit < 2 {
		limit = 2
	}
	if bestDist < 0 || bestDist > limit {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", best)
}

func indexFold(n int, name func(int) string, want string) int {
	want = strings.TrimSpace(want)
	for k := 0; k < n; k++ {
		if strings.EqualFold(name(k), want) {
			return k
		}
	}
	return -1
}

func (m *Matcher) assignGreedy(sources []core.SourceColumn, dests []core.DestinationColumn, matrix [][]pair) []core.ColumnMapping {
	claimed := make([]bool, len(dests))
	out := make([]core.ColumnMapping, 0, len(sources))

	for i, s := range sources {
		best := -1
		for j := range dests {
			if claimed[j] || matrix[i][j].score < m.threshold {
				continue
			}
			if best < 0 || matrix[i][j].better(matrix[i][best]) {
				best = j
			}
		}
		if best >= 0 {
			claimed[best] = true
			out = append(out, m.matched(s, dests[best], matrix[i][best].score))
			continue
		}
		out = append(out, m.unmatched(s, dests, claimed))
	}
	return out
}

func (m *Matcher) assignOptimal(sources []core.SourceColumn, dests []core.DestinationColumn, matrix [][]pair) []core.ColumnMapping {
	// Unclaimable pairs weigh nothing; the tie term is small enough never to
	// outweigh a whole score point.
	w := make([][]float64, len(sources))
	for i := range sources {
		w[i] = make([]float64, len(dests))
		for j := range dests {
			if p := matrix[i][j]; p.score >= m.threshold {
				w[i][j] = p.score + p.tie/1000
			}
		}
	}
	assigned := assign(w)

	claimed := make([]bool, len(dests))
	for i, j := range assigned {
		if j >= 0 && matrix[i][j].score >= m.threshold {
			claimed[j] = true
		} else {
			assigned[i] = -1
		}
	}

	out := make([]core.ColumnMapping, 0, len(sources))
	for i, s := range sources {
		if j := assigned[i]; j >= 0 {
			out = append(out, m.matched(s, dests[j], matrix[i][j].score))
			continue
		}
		out = append(out, m.unmatched(s, dests, claimed))
	}
	return out
}

func (m *Matcher) matched(s core.SourceColumn, d core.DestinationColumn, score float64) core.ColumnMapping {
	category := core.MatchLowConfidence
	switch {
	case score >= m.high:
		category = core.MatchExact
	case score >= DefaultThreshold:
		category = core.MatchFuzzy
	}
	return core.ColumnMapping{
		Source:      s.Name,
		Destination: d.Name,
		Type:        d.Type,
		Confidence:  score / 100,
		Category:    category,
	}
}

// unmatched builds the no_match mapping for a source with no claimable
// destination. Alternatives carry the near misses.
func (m *Matcher) unmatched(s core.SourceColumn, dests []core.DestinationColumn, claimed []bool) core.ColumnMapping {
	return core.ColumnMapping{
		Source:       s.Name,
		Type:         s.Type,
		Category:     core.MatchNone,
		Alternatives: m.suggest(s.Name, dests, claimed),
	}
}

// suggest ranks unclaimed destinations by token-sort similarity of the raw
// names and keeps the top few that reach the suggestion threshold.
func (m *Matcher) suggest(source string, dests []core.DestinationColumn, claimed []bool) []core.Suggestion {
	var out []core.Suggestion
	for j, d := range dests {
		if claimed[j] {
			continue
		}
		if score := TokenSortRatio(source, d.Name); score >= m.suggestAt {
			out = append(out, core.Suggestion{
				Column: d.Name,
				Score:  score / 100,
				Reason: "fuzzy_similarity",
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > m.maxSuggestions {
		out = out[:m.maxSuggestions]
	}
	return out
}

// MatchNames is Match for bare names, with every type left UNKNOWN.
func (m *Matcher) MatchNames(sources, dests []string) []core.ColumnMapping {
	sc := make([]core.SourceColumn, len(sources))
	for i, n := range sources {
		sc[i] = core.SourceColumn{Name: n, Position: i, Type: core.TypeUnknown}
	}
	dc := make([]core.DestinationColumn, len(dests))
	for i, n := range dests {
		dc[i] = core.DestinationColumn{Name: n, Type: core.TypeUnknown, Ordinal: i + 1}
	}
	return m.Match(sc, dc)
}
