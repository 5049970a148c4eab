package validate

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/sheetload/internal/core"
)

// Column is one table column as seen by a Rule. Values holds every cell,
// nulls included, so Values[i] belongs to spreadsheet row i+2.
type Column struct {
	Name   string
	Dest   core.DestinationColumn
	Values []any
	Now    time.Time
}

// Rule is a business rule layered over the type checks.
type Rule interface {
	Name() string
	Check(col Column) []core.ValidationIssue
}

// CellRule applies one predicate to every non-null cell of the columns it
// covers. A nil Types list covers every destination type.
type CellRule struct {
	RuleName string
	Severity core.Severity
	Types    []core.InferredType
	Fix      string

	// Nulls hands null cells to Test too.
	Nulls bool

	// Test returns a message when v breaks the rule.
	Test func(v any, col Column) (string, bool)
}

func (r CellRule) Name() string { return r.RuleName }

func (r CellRule) applies(t core.InferredType) bool {
	if len(r.Types) == 0 {
		return true
	}
	for _, x := range r.Types {
		if x == t {
			return true
		}
	}
	return false
}

func (r CellRule) Check(col Column) []core.ValidationIssue {
	if !r.applies(col.Dest.Type) {
		return nil
	}
	var out []core.ValidationIssue
	for i, v := range col.Values {
		if !r.Nulls && core.IsNull(v) {
			continue
		}
		msg, bad := r.Test(v, col)
		if !bad {
			continue
		}
		out = append(out, core.ValidationIssue{
			Row:          i + 2,
			Column:       col.Name,
			Value:        v,
			Rule:         r.RuleName,
			Message:      msg,
			Severity:     r.Severity,
			SuggestedFix: r.Fix,
		})
	}
	return out
}

// nameHas reports whether the lowercased column name contains any of the
// given fragments.
func nameHas(name string, fragments []string) bool {
	name = strings.ToLower(name)
	for _, f := range fragments {
		if strings.Contains(name, f) {
			return true
		}
	}
	return false
}

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

	emailNames    = []string{"email", "mail"}
	positiveNames = []string{"price", "amount", "quantity", "count", "total", "precio", "cantidad", "monto"}
	idNames       = []string{"id", "code", "number", "codigo", "numero"}

	suspicious = []string{"'", `"`, ";", "--", "/*", "*/", "xp_", "sp_"}
)

// DefaultRules returns the built-in business rules. RequiredValue and
// StringLength repeat the not_null and max_length checks the validator always
// runs, so they are left out here and only apply when passed in Options.Rules.
func DefaultRules() []Rule {
	return []Rule{
		EmailFormat(),
		PositiveNumber(),
		DateRange(),
		SpecialCharacters(),
		PotentialDuplicate(),
	}
}

func RequiredValue() Rule {
	return CellRule{
		RuleName: "required_value",
		Severity: core.SeverityError,
		Nulls:    true,
		Fix:      "Provide a value",
		Test: func(v any, col Column) (string, bool) {
			if col.Dest.Nullable || !core.IsNull(v) {
				return "", false
			}
			return "required field cannot be empty", true
		},
	}
}

func StringLength() Rule {
	return CellRule{
		RuleName: "string_length",
		Severity: core.SeverityError,
		Types:    []core.InferredType{core.TypeString},
		Test: func(v any, col Column) (string, bool) {
			limit := col.Dest.MaxLength
			if limit <= 0 || utf8.RuneCountInString(core.Stringify(v)) <= limit {
				return "", false
			}
			return fmt.Sprintf("length exceeds the maximum of %d characters", limit), true
		},
	}
}

func EmailFormat() Rule {
	return CellRule{
		RuleName: "email_format",
		Severity: core.SeverityWarning,
		Types:    []core.InferredType{core.TypeString},
		Fix:      "Check the address",
		Test: func(v any, col Column) (string, bool) {
			if !nameHas(col.Name, emailNames) {
				return "", false
			}
			if emailRegex.MatchString(strings.TrimSpace(core.Stringify(v))) {
				return "", false
			}
			return "invalid email format", true
		},
	}
}

func PositiveNumber() Rule {
	return CellRule{
		RuleName: "positive_number",
		Severity: core.SeverityWarning,
		Types:    []core.InferredType{core.TypeInteger, core.TypeDecimal},
		Fix:      "Check the sign",
		Test: func(v any, col Column) (string, bool) {
			if !nameHas(col.Name, positiveNames) {
				return "", false
			}
			f, ok := core.ParseFloat(v)
			if !ok || f >= 0 {
				return "", false
			}
			return "value should be positive", true
		},
	}
}

func DateRange() Rule {
	return CellRule{
		RuleName: "date_range",
		Severity: core.SeverityWarning,
		Types:    []core.InferredType{core.TypeDate, core.TypeDateTime},
		Fix:      "Check the year",
		Test: func(v any, col Column) (string, bool) {
			t, _, ok := core.ParseTime(v)
			if !ok {
				return "", false
			}
			if t.Year() < 1900 || t.Year() > 2100 {
				return "date outside the valid range (1900-2100)", true
			}
			now := col.Now
			if now.IsZero() {
				now = time.Now()
			}
			if t.After(now.AddDate(10, 0, 0)) {
				return "date is too far in the future", true
			}
			return "", false
		},
	}
}

func SpecialCharacters() Rule {
	return CellRule{
		RuleName: "special_characters",
		Severity: core.SeverityInfo,
		Types:    []core.InferredType{core.TypeString},
		Test: func(v any, col Column) (string, bool) {
			s := core.Stringify(v)
			for _, c := range suspicious {
				if strings.Contains(s, c) {
					return fmt.Sprintf("contains potentially problematic characters: %s", c), true
				}
			}
			return "", false
		},
	}
}

// potentialDuplicate flags every row of an identifier-like column whose value
// occurs more than once in the batch.
type potentialDuplicate struct{}

func PotentialDuplicate() Rule { return potentialDuplicate{} }

func (potentialDuplicate) Name() string { return "potential_duplicate" }

func (potentialDuplicate) Check(col Column) []core.ValidationIssue {
	if !nameHas(col.Name, idNames) {
		return nil
	}
	counts := make(map[string]int)
	for _, v := range col.Values {
		if !core.IsNull(v) {
			counts[core.Stringify(v)]++
		}
	}
	var out []core.ValidationIssue
	for i, v := range col.Values {
		if core.IsNull(v) || counts[core.Stringify(v)] < 2 {
			continue
		}
		out = append(out, core.ValidationIssue{
			Row:          i + 2,
			Column:       col.Name,
			Value:        v,
			Rule:         "potential_duplicate",
			Message:      fmt.Sprintf("possible duplicate value in column %q", col.Name),
			Severity:     core.SeverityWarning,
			SuggestedFix: "Check whether the repeated values are intended",
		})
	}
	return out
}
