package validate

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetload/internal/core"
)

// CheckStructure compares the mapped table's columns with the destination.
// A destination column that is NOT NULL without a default and has no source
// is an error; a table column the destination does not have is reported for
// information.
func CheckStructure(tableColumns []string, dest []core.DestinationColumn) []core.ValidationIssue {
	have := make(map[string]bool, len(tableColumns))
	for _, c := range tableColumns {
		have[strings.ToLower(c)] = true
	}
	known := make(map[string]bool, len(dest))

	var out []core.ValidationIssue
	for _, d := range dest {
		known[strings.ToLower(d.Name)] = true
		if have[strings.ToLower(d.Name)] || d.Nullable || d.HasDefault {
			continue
		}
		out = append(out, core.ValidationIssue{
			Column:       d.Name,
			Rule:         RuleMissingColumn,
			Message:      fmt.Sprintf("required column %q is not mapped", d.Name),
			Severity:     core.SeverityError,
			SuggestedFix: "Check the spreadsheet column names",
		})
	}
	for _, c := range tableColumns {
		if known[strings.ToLower(c)] {
			continue
		}
		out = append(out, core.ValidationIssue{
			Column:       c,
			Rule:         RuleExtraColumn,
			Message:      fmt.Sprintf("column %q does not exist in the destination", c),
			Severity:     core.SeverityInfo,
			SuggestedFix: "Consider whether it should be mapped",
		})
	}
	return out
}
