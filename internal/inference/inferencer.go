// Package inference classifies spreadsheet columns into type buckets.
//
// Each non-null value is tested against the buckets in a fixed priority
// order (boolean literal, datetime, date, integer, decimal) and counted in
// the first bucket it fits; anything else counts as string. The bucket with
// the largest share wins, but only when that share reaches the threshold.
// Heterogeneous columns fall back to STRING.
package inference

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/JonMunkholm/sheetload/internal/core"
)

// DefaultThreshold is the minimum share of non-null values the winning
// bucket must cover.
const DefaultThreshold = 0.6

var (
	dateTimeRegex    = regexp.MustCompile(`(?i)^\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\s+\d{1,2}:\d{2}(:\d{2})?(\s*(AM|PM))?$`)
	isoDateTimeRegex = regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}[T ]\d{1,2}:\d{2}(:\d{2})?$`)
	dateRegex        = regexp.MustCompile(`^\d{1,2}[/-]\d{1,2}[/-]\d{2,4}$`)
	isoDateRegex     = regexp.MustCompile(`^\d{4}[/-]\d{1,2}[/-]\d{1,2}$`)
	integerRegex     = regexp.MustCompile(`^-?\d+$`)
	decimalRegex     = regexp.MustCompile(`^-?\d+\.\d+$`)
	groupedRegex     = regexp.MustCompile(`^-?\d{1,3}(,\d{3})*(\.\d+)?$`)
)

// bucketOrder breaks ties between buckets with equal counts.
var bucketOrder = []core.InferredType{
	core.TypeInteger,
	core.TypeDecimal,
	core.TypeDate,
	core.TypeDateTime,
	core.TypeBoolean,
	core.TypeString,
}

// Options configures an Inferencer.
type Options struct {
	// Threshold is the winning share required, in (0, 1]. Zero means
	// DefaultThreshold.
	Threshold float64
	// SampleSize caps how many non-null values are examined. Zero means all.
	SampleSize int
	// BoolLiterals are the textual booleans recognised. The zero value means
	// core.InferenceBoolLiterals.
	BoolLiterals core.BoolLiterals
}

// Inferencer guesses column types. It is safe for concurrent use.
type Inferencer struct {
	threshold  float64
	sampleSize int
	literals   core.BoolLiterals
}

// New creates an Inferencer.
func New(opts Options) *Inferencer {
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		opts.Threshold = DefaultThreshold
	}
	if opts.SampleSize < 0 {
		opts.SampleSize = 0
	}
	if len(opts.BoolLiterals.True) == 0 && len(opts.BoolLiterals.False) == 0 {
		opts.BoolLiterals = core.InferenceBoolLiterals()
	}
	return &Inferencer{
		threshold:  opts.Threshold,
		sampleSize: opts.SampleSize,
		literals:   opts.BoolLiterals,
	}
}

// Infer returns the type bucket that best explains values. A column with no
// non-null values is STRING.
func (in *Inferencer) Infer(values []any) core.InferredType {
	return in.Profile(values).Type
}

// InferTable infers every column of t.
func (in *Inferencer) InferTable(t *core.Table) []core.SourceColumn {
	cols := make([]core.SourceColumn, len(t.Columns))
	for i, name := range t.Columns {
		raw := make([]any, len(t.Rows))
		for r, row := range t.Rows {
			raw[r] = row[i]
		}
		p := in.Profile(raw)
		cols[i] = core.SourceColumn{
			Name:     name,
			Position: i,
			Values:   nonNull(raw),
			Type:     p.Type,
			Nulls:    p.Nulls,
		}
	}
	return cols
}

// Profile is the per-bucket breakdown of one column.
type Profile struct {
	Type      core.InferredType         `json:"type"`
	Counts    map[core.InferredType]int `json:"counts"`
	Sampled   int                       `json:"sampled"`
	Nulls     int                       `json:"nulls"`
	Total     int                       `json:"total"`
	NullRatio float64                   `json:"null_ratio"`
	Share     float64                   `json:"share"` // share of the winning bucket
}

// Profile classifies values and reports the counts behind the decision.
func (in *Inferencer) Profile(values []any) Profile {
	p := Profile{
		Type:   core.TypeString,
		Counts: make(map[core.InferredType]int, len(bucketOrder)),
		Total:  len(values),
	}

	for _, v := range values {
		if core.IsNull(v) {
			p.Nulls++
			continue
		}
		if in.sampleSize > 0 && p.Sampled >= in.sampleSize {
			continue
		}
		p.Counts[in.classify(v)]++
		p.Sampled++
	}
	if p.Total > 0 {
		p.NullRatio = float64(p.Nulls) / float64(p.Total)
	}
	if p.Sampled == 0 {
		return p
	}

	best, bestCount := core.TypeString, -1
	for _, t := range bucketOrder {
		if c := p.Counts[t]; c > bestCount {
			best, bestCount = t, c
		}
	}
	p.Share = float64(bestCount) / float64(p.Sampled)
	if p.Share >= in.threshold {
		p.Type = best
	}
	return p
}

// classify returns the first bucket v fits in priority order.
func (in *Inferencer) classify(v any) core.InferredType {
	switch x := v.(type) {
	case bool:
		return core.TypeBoolean
	case int, int32, int64:
		return core.TypeInteger
	case float64:
		if x == math.Trunc(x) {
			return core.TypeInteger
		}
		return core.TypeDecimal
	case float32:
		return core.TypeDecimal
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return core.TypeDate
		}
		return core.TypeDateTime
	}

	s := strings.TrimSpace(core.Stringify(v))
	if in.literals.Contains(s) {
		return core.TypeBoolean
	}
	if dateTimeRegex.MatchString(s) || isoDateTimeRegex.MatchString(s) {
		return core.TypeDateTime
	}
	if dateRegex.MatchString(s) || isoDateRegex.MatchString(s) {
		return core.TypeDate
	}
	plain := strings.ReplaceAll(s, ",", "")
	if integerRegex.MatchString(plain) {
		return core.TypeInteger
	}
	if decimalRegex.MatchString(plain) || groupedRegex.MatchString(s) {
		return core.TypeDecimal
	}
	return core.TypeString
}

func nonNull(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if !core.IsNull(v) {
			out = append(out, v)
		}
	}
	return out
}
