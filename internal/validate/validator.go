// Package validate checks a mapped table against its destination columns
// before anything is written.
//
// Issues never abort a run. They accumulate in a core.ValidationResult and
// the share of rows carrying an error decides whether the batch is valid.
package validate

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/sheetload/internal/core"
	"github.com/JonMunkholm/sheetload/internal/logging"
)

const (
	DefaultMaxErrorRate = 0.10

	// highNullRatio is the share of empty cells above which a column is
	// reported.
	highNullRatio = 0.5

	// GeneralColumn names issues that belong to the table as a whole.
	GeneralColumn = "GENERAL"
)

// Rule names produced by the validator itself.
const (
	RuleNotNull       = "not_null"
	RuleDataType      = "data_type"
	RuleMaxLength     = "max_length"
	RuleDuplicateRows = "duplicate_rows"
	RuleHighNullRatio = "high_null_ratio"
	RuleErrorRate     = "error_rate_check"
	RuleMissingColumn = "missing_column"
	RuleExtraColumn   = "extra_column"
)

// OverlapPolicy decides what happens when several checks flag the same cell.
type OverlapPolicy string

const (
	// OverlapKeepAll reports every issue.
	OverlapKeepAll OverlapPolicy = "keep_all"
	// OverlapMostSevere keeps one issue per cell: the most severe, with the
	// built-in checks winning ties over business rules.
	OverlapMostSevere OverlapPolicy = "most_severe"
)

// ParseOverlapPolicy parses a configured policy name. Empty means keep_all.
func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	switch OverlapPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", OverlapKeepAll:
		return OverlapKeepAll, nil
	case OverlapMostSevere:
		return OverlapMostSevere, nil
	default:
		return "", fmt.Errorf("unknown overlap policy %q (want keep_all or most_severe)", s)
	}
}

// Options configures a Validator.
type Options struct {
	MaxErrorRate float64

	// Rules replaces DefaultRules when non-nil. NoRules disables the
	// business-rule layer entirely.
	Rules   []Rule
	NoRules bool

	Overlap OverlapPolicy

	// Now is the reference time for date rules (default time.Now).
	Now func() time.Time
}

// Validator checks tables. It holds no per-run state and is safe for
// concurrent use.
type Validator struct {
	maxErrorRate float64
	rules        []Rule
	overlap      OverlapPolicy
	now          func() time.Time
}

// New creates a Validator, filling unset options with defaults.
func New(opts Options) *Validator {
	v := &Validator{
		maxErrorRate: opts.MaxErrorRate,
		rules:        opts.Rules,
		overlap:      opts.Overlap,
		now:          opts.Now,
	}
	if v.maxErrorRate <= 0 {
		v.maxErrorRate = DefaultMaxErrorRate
	}
	if v.rules == nil {
		v.rules = DefaultRules()
	}
	if opts.NoRules {
		v.rules = nil
	}
	if v.overlap == "" {
		v.overlap = OverlapKeepAll
	}
	if v.now == nil {
		v.now = time.Now
	}
	return v
}

// Validate checks t, whose columns are already renamed to destination
// names, against dest.
func (v *Validator) Validate(ctx context.Context, t *core.Table, dest []core.DestinationColumn) *core.ValidationResult {
	res := &core.ValidationResult{RowCount: t.Len()}
	if t == nil {
		t = core.NewTable()
	}

	res.Issues = append(res.Issues, CheckStructure(t.Columns, dest)...)

	byName := make(map[string]core.DestinationColumn, len(dest))
	for _, d := range dest {
		byName[strings.ToLower(d.Name)] = d
	}

	now := v.now()
	var cellIssues []core.ValidationIssue
	for ci, name := range t.Columns {
		d, ok := byName[strings.ToLower(name)]
		if !ok {
			continue
		}
		values := make([]any, t.Len())
		for ri, row := range t.Rows {
			values[ri] = row[ci]
		}
		col := Column{Name: name, Dest: d, Values: values, Now: now}

		cellIssues = append(cellIssues, checkColumn(col)...)
		for _, r := range v.rules {
			cellIssues = append(cellIssues, r.Check(col)...)
		}
		if is, ok := nullRatio(col); ok {
			res.Issues = append(res.Issues, is)
		}
	}
	if v.overlap == OverlapMostSevere {
		cellIssues = mostSevere(cellIssues)
	}
	res.Issues = append(res.Issues, cellIssues...)

	if is, ok := duplicateRows(t); ok {
		res.Issues = append(res.Issues, is)
	}

	tally(res)
	res.Valid = res.ErrorRate <= v.maxErrorRate
	if !res.Valid {
		res.Issues = append(res.Issues, core.ValidationIssue{
			Column:       GeneralColumn,
			Rule:         RuleErrorRate,
			Message:      fmt.Sprintf("high error rate: %.1f%% of rows have errors", res.ErrorRate*100),
			Severity:     core.SeverityWarning,
			SuggestedFix: "Review the column mapping and data quality",
		})
		res.WarningCount++
	}
	res.Summary = Headline(res)

	logging.FromContext(ctx).Info("validation complete",
		"rows", res.RowCount,
		"errors", res.ErrorCount,
		"error_rows", res.ErrorRows,
		"warnings", res.WarningCount,
		"valid", res.Valid,
	)
	return res
}

// checkColumn runs the built-in null, type and length checks.
func checkColumn(col Column) []core.ValidationIssue {
	var out []core.ValidationIssue
	for i, val := range col.Values {
		row := i + 2
		if core.IsNull(val) {
			if !col.Dest.Nullable {
				out = append(out, core.ValidationIssue{
					Row:          row,
					Column:       col.Name,
					Rule:         RuleNotNull,
					Message:      "required field empty",
					Severity:     core.SeverityError,
					SuggestedFix: "Provide a value",
				})
			}
			continue
		}

		if msg, ok := CheckValue(val, col.Dest.Type); !ok {
			out = append(out, core.ValidationIssue{
				Row:          row,
				Column:       col.Name,
				Value:        val,
				Rule:         RuleDataType,
				Message:      msg,
				Severity:     core.SeverityError,
				SuggestedFix: "Convert to " + strings.ToLower(string(col.Dest.Type)),
			})
			continue
		}

		if col.Dest.Type == core.TypeString && col.Dest.MaxLength > 0 {
			if n := utf8.RuneCountInString(core.Stringify(val)); n > col.Dest.MaxLength {
				out = append(out, core.ValidationIssue{
					Row:          row,
					Column:       col.Name,
					Value:        val,
					Rule:         RuleMaxLength,
					Message:      fmt.Sprintf("value has %d characters, max length is %d", n, col.Dest.MaxLength),
					Severity:     core.SeverityError,
					SuggestedFix: fmt.Sprintf("Truncate to %d characters", col.Dest.MaxLength),
				})
			}
		}
	}
	return out
}

// CheckValue reports whether a non-null value belongs to type t, and the
// message to show when it does not.
func CheckValue(v any, t core.InferredType) (string, bool) {
	switch t {
	case core.TypeInteger:
		if _, ok := core.ParseInteger(v); !ok {
			return "not a valid integer", false
		}
	case core.TypeDecimal:
		if _, ok := core.ParseDecimal(v); !ok {
			return "not a valid decimal", false
		}
	case core.TypeBoolean:
		if _, ok := core.ParseBool(v, core.AcceptedBoolLiterals()); !ok {
			return "not a valid boolean", false
		}
	case core.TypeDate:
		if _, _, ok := core.ParseTime(v); !ok {
			return "not a valid date", false
		}
	case core.TypeDateTime:
		if _, _, ok := core.ParseTime(v); !ok {
			return "not a valid date/time", false
		}
	}
	return "", true
}

func nullRatio(col Column) (core.ValidationIssue, bool) {
	if len(col.Values) == 0 {
		return core.ValidationIssue{}, false
	}
	nulls := 0
	for _, v := range col.Values {
		if core.IsNull(v) {
			nulls++
		}
	}
	ratio := float64(nulls) / float64(len(col.Values))
	if ratio <= highNullRatio {
		return core.ValidationIssue{}, false
	}
	return core.ValidationIssue{
		Column:       col.Name,
		Rule:         RuleHighNullRatio,
		Message:      fmt.Sprintf("%.0f%% of values are empty", ratio*100),
		Severity:     core.SeverityWarning,
		SuggestedFix: "Check that the right spreadsheet column is mapped",
	}, true
}

// duplicateRows reports exact full-row repeats as one warning. The rows are
// left in place.
func duplicateRows(t *core.Table) (core.ValidationIssue, bool) {
	seen := make(map[string]bool, t.Len())
	dups := 0
	cells := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			cells[i] = core.Stringify(v)
		}
		key := strings.Join(cells, "\x1f")
		if seen[key] {
			dups++
			continue
		}
		seen[key] = true
	}
	if dups == 0 {
		return core.ValidationIssue{}, false
	}
	return core.ValidationIssue{
		Column:       GeneralColumn,
		Rule:         RuleDuplicateRows,
		Message:      fmt.Sprintf("%d duplicate rows found", dups),
		Severity:     core.SeverityWarning,
		SuggestedFix: "Remove the repeated rows or enable internal deduplication",
	}, true
}

func builtin(rule string) bool {
	return rule == RuleNotNull || rule == RuleDataType || rule == RuleMaxLength
}

// mostSevere keeps one issue per (row, column), in first-seen order.
func mostSevere(issues []core.ValidationIssue) []core.ValidationIssue {
	type cell struct {
		row int
		col string
	}
	best := make(map[cell]int)
	var order []cell
	for i, is := range issues {
		k := cell{is.Row, is.Column}
		j, ok := best[k]
		if !ok {
			best[k] = i
			order = append(order, k)
			continue
		}
		cur := issues[j]
		if is.Severity > cur.Severity || (is.Severity == cur.Severity && builtin(is.Rule) && !builtin(cur.Rule)) {
			best[k] = i
		}
	}
	out := make([]core.ValidationIssue, len(order))
	for i, k := range order {
		out[i] = issues[best[k]]
	}
	return out
}

// tally fills the counters of res from its issues.
func tally(res *core.ValidationResult) {
	rows := make(map[int]bool)
	res.ErrorCount, res.WarningCount, res.InfoCount = 0, 0, 0
	for _, is := range res.Issues {
		switch {
		case is.Severity >= core.SeverityError:
			res.ErrorCount++
			if is.Row > 0 {
				rows[is.Row] = true
			}
		case is.Severity == core.SeverityWarning:
			res.WarningCount++
		default:
			res.InfoCount++
		}
	}
	res.ErrorRows = len(rows)
	if res.RowCount > 0 {
		res.ErrorRate = float64(res.ErrorRows) / float64(res.RowCount)
	}
}
