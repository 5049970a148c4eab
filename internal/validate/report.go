package validate

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetload/internal/core"
)

const (
	reportErrors   = 10
	reportWarnings = 5
)

// Headline is the one-line summary stored on a result.
func Headline(r *core.ValidationResult) string {
	state := "valid"
	if !r.Valid {
		state = "invalid"
	}
	return fmt.Sprintf("%d rows, %d errors in %d rows, %d warnings, %d info: %s",
		r.RowCount, r.ErrorCount, r.ErrorRows, r.WarningCount, r.InfoCount, state)
}

// Summary renders a plain-text report: the counts, the first errors and the
// first warnings.
func Summary(r *core.ValidationResult) string {
	var b strings.Builder
	rule := strings.Repeat("=", 60)

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "DATA VALIDATION REPORT")
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "SUMMARY:")
	fmt.Fprintf(&b, "  Rows processed: %d\n", r.RowCount)
	fmt.Fprintf(&b, "  Rows with errors: %d (%.1f%%)\n", r.ErrorRows, r.ErrorRate*100)
	fmt.Fprintf(&b, "  Errors: %d\n", r.ErrorCount)
	fmt.Fprintf(&b, "  Warnings: %d\n", r.WarningCount)
	state := "VALID"
	if !r.Valid {
		state = "INVALID"
	}
	fmt.Fprintf(&b, "  Status: %s\n", state)

	writeIssues(&b, "ERRORS", "errors", r.Errors(), reportErrors)
	writeIssues(&b, "WARNINGS", "warnings", r.Warnings(), reportWarnings)

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, rule)
	return b.String()
}

func writeIssues(b *strings.Builder, title, noun string, issues []core.ValidationIssue, limit int) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintln(b)
	fmt.Fprintf(b, "%s:\n", title)
	fmt.Fprintln(b, strings.Repeat("-", 40))
	for i, is := range issues {
		if i == limit {
			fmt.Fprintf(b, "... and %d more %s\n", len(issues)-limit, noun)
			break
		}
		fmt.Fprintf(b, "%d. %s: %s\n", i+1, Location(is), is.Message)
		if is.Value != nil {
			fmt.Fprintf(b, "   Value: %s\n", core.Stringify(is.Value))
		}
		if is.SuggestedFix != "" {
			fmt.Fprintf(b, "   Fix: %s\n", is.SuggestedFix)
		}
	}
}

// Location renders where an issue applies, e.g. "row 4, column Email".
func Location(is core.ValidationIssue) string {
	if is.Row == 0 {
		return "column " + is.Column
	}
	return fmt.Sprintf("row %d, column %s", is.Row, is.Column)
}
