package matcher

import (
	"fmt"
	"unicode/utf8"

	"github.com/JonMunkholm/sheetload/internal/core"
)

// checkSample is how many non-null values CheckMapping inspects.
const checkSample = 10

// Compatible reports whether values of type src can be stored in a
// destination column of type dst without conversion loss.
func Compatible(src, dst core.InferredType) bool {
	if src == dst || dst == core.TypeString || dst == core.TypeUnknown {
		return true
	}
	switch dst {
	case core.TypeDecimal:
		return src == core.TypeInteger
	case core.TypeDateTime:
		return src == core.TypeDate
	}
	return false
}

// CheckMapping checks a mapped column against its destination: type
// compatibility on a sample of values, nulls against NOT NULL, and declared
// text length. Problems are appended to m.ValidationErrors and returned.
func CheckMapping(m *core.ColumnMapping, src core.SourceColumn, dest core.DestinationColumn) []string {
	var problems []string

	var sample []any
	nulls := src.Nulls
	for _, v := range src.Values {
		if core.IsNull(v) {
			nulls++
			continue
		}
		if len(sample) < checkSample {
			sample = append(sample, v)
		}
	}

	if len(sample) == 0 {
		problems = append(problems, "all values are null")
	} else if !Compatible(src.Type, dest.Type) || src.Type == core.TypeString {
		bad := 0
		for _, v := range sample {
			if !convertible(v, dest.Type) {
				bad++
			}
		}
		if bad > 0 {
			problems = append(problems, fmt.Sprintf("%d of %d sample values are not valid %s for %s",
				bad, len(sample), dest.Type, dest.SQLType))
		}
	}

	if nulls > 0 && !dest.Nullable && !dest.HasDefault {
		problems = append(problems, "destination column does not allow nulls but the sheet has empty values")
	}

	if dest.MaxLength > 0 && core.IsCharType(dest.SQLType) {
		long := 0
		for _, v := range sample {
			if utf8.RuneCountInString(core.Stringify(v)) > dest.MaxLength {
				long++
			}
		}
		if long > 0 {
			problems = append(problems, fmt.Sprintf("%d of %d sample values exceed max length %d",
				long, len(sample), dest.MaxLength))
		}
	}

	m.ValidationErrors = append(m.ValidationErrors, problems...)
	return problems
}

func convertible(v any, t core.InferredType) bool {
	switch t {
	case core.TypeInteger:
		_, ok := core.ParseInteger(v)
		return ok
	case core.TypeDecimal:
		_, ok := core.ParseDecimal(v)
		return ok
	case core.TypeBoolean:
		_, ok := core.ParseBool(v, core.AcceptedBoolLiterals())
		return ok
	case core.TypeDate, core.TypeDateTime:
		_, _, ok := core.ParseTime(v)
		return ok
	default:
		return true
	}
}
