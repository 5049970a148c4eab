// Package report renders pipeline results as terminal tables.
package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/JonMunkholm/sheetload/internal/core"
	"github.com/JonMunkholm/sheetload/internal/dedup"
	"github.com/JonMunkholm/sheetload/internal/inference"
	"github.com/JonMunkholm/sheetload/internal/keys"
	"github.com/JonMunkholm/sheetload/internal/matcher"
	"github.com/JonMunkholm/sheetload/internal/pipeline"
	"github.com/JonMunkholm/sheetload/internal/validate"
)

// MaxIssues is how many validation issues Validation lists.
const MaxIssues = 20

var (
	red    = color.New(color.FgHiRed).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	blue   = color.New(color.FgHiBlue).SprintFunc()
	faint  = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func render(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func title(w io.Writer, s string) {
	fmt.Fprintf(w, "\n%s\n", bold(s))
}

func percent(f float64) string {
	return strconv.FormatFloat(f*100, 'f', 1, 64) + "%"
}

// Columns lists inferred column types with their null share.
func Columns(w io.Writer, cols []core.SourceColumn, profiles []inference.Profile) error {
	rows := make([][]string, len(cols))
	for i, c := range cols {
		total := len(c.Values) + c.Nulls
		nulls := "0.0%"
		if total > 0 {
			nulls = percent(float64(c.Nulls) / float64(total))
		}
		share := ""
		if i < len(profiles) {
			share = percent(profiles[i].Share)
		}
		rows[i] = []string{strconv.Itoa(c.Position + 1), c.Name, string(c.Type), share, nulls, sample(c.Values)}
	}
	return render(w, []string{"#", "Column", "Type", "Share", "Nulls", "Sample"}, rows)
}

func sample(values []any) string {
	var parts []string
	for _, v := range values {
		if len(parts) == 3 {
			break
		}
		s := core.Stringify(v)
		if len([]rune(s)) > 20 {
			s = string([]rune(s)[:17]) + "..."
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

// Mappings lists every column mapping, then the mapping statistics.
func Mappings(w io.Writer, mappings []core.ColumnMapping) error {
	rows := make([][]string, len(mappings))
	for i, m := range mappings {
		dest := m.Destination
		if dest == "" {
			dest = faint("-")
		}
		var notes []string
		notes = append(notes, m.ValidationErrors...)
		if len(m.Alternatives) > 0 {
			var alts []string
			for _, a := range m.Alternatives {
				alts = append(alts, fmt.Sprintf("%s (%.0f)", a.Column, a.Score))
			}
			notes = append(notes, "try: "+strings.Join(alts, ", "))
		}
		rows[i] = []string{m.Source, dest, string(m.Type), confidence(m), category(m.Category), strings.Join(notes, "; ")}
	}
	if err := render(w, []string{"Source", "Destination", "Type", "Confidence", "Category", "Notes"}, rows); err != nil {
		return err
	}

	st := matcher.Statistics(mappings)
	fmt.Fprintf(w, "%d of %d columns mapped (%s), %d high confidence, average %.2f\n",
		st.Mapped, st.Total, percent(st.MappingRate), st.High, st.AverageConfidence)
	return nil
}

func confidence(m core.ColumnMapping) string {
	if !m.Mapped() {
		return faint("-")
	}
	return strconv.FormatFloat(m.Confidence, 'f', 2, 64)
}

func category(c core.MatchCategory) string {
	switch c {
	case core.MatchExact, core.MatchManual:
		return green(string(c))
	case core.MatchFuzzy:
		return blue(string(c))
	case core.MatchLowConfidence:
		return yellow(string(c))
	default:
		return red(string(c))
	}
}

func severity(s core.Severity) string {
	switch {
	case s >= core.SeverityError:
		return red(s.String())
	case s == core.SeverityWarning:
		return yellow(s.String())
	default:
		return faint(s.String())
	}
}

// Validation prints the headline and the most severe issues, up to
// MaxIssues.
func Validation(w io.Writer, r *core.ValidationResult) error {
	if r == nil {
		return nil
	}
	status := green("VALID")
	if !r.Valid {
		status = red("INVALID")
	}
	fmt.Fprintf(w, "%s  %s\n", status, validate.Headline(r))
	if len(r.Issues) == 0 {
		return nil
	}

	ordered := append(r.Errors(), r.Warnings()...)
	for _, is := range r.Issues {
		if is.Severity == core.SeverityInfo {
			ordered = append(ordered, is)
		}
	}

	limit := len(ordered)
	if limit > MaxIssues {
		limit = MaxIssues
	}
	rows := make([][]string, limit)
	for i, is := range ordered[:limit] {
		rows[i] = []string{severity(is.Severity), validate.Location(is), is.Rule, is.Message}
	}
	if err := render(w, []string{"Severity", "Where", "Rule", "Message"}, rows); err != nil {
		return err
	}
	if more := len(ordered) - limit; more > 0 {
		fmt.Fprintf(w, "... and %d more issues\n", more)
	}
	return nil
}

// Identifier prints the chosen identifier and every candidate.
func Identifier(w io.Writer, best *core.UniqueIdentifier, candidates []core.UniqueIdentifier) error {
	if best == nil {
		fmt.Fprintf(w, "%s: every row will be treated as new\n", yellow(core.ErrNoIdentifier.Error()))
		return nil
	}
	fmt.Fprintf(w, "Using %s\n", keys.Describe(best))
	rows := make([][]string, len(candidates))
	for i, c := range candidates {
		rows[i] = []string{strconv.Itoa(c.Priority), string(c.Kind), c.Name, strings.Join(c.Columns, ", ")}
	}
	return render(w, []string{"Priority", "Kind", "Name", "Columns"}, rows)
}

// Filter prints the duplicate filter counts.
func Filter(w io.Writer, r *core.FilterResult) error {
	if r == nil {
		return nil
	}
	s := dedup.Summary(r)
	rows := [][]string{
		{"Rows checked", strconv.Itoa(r.OriginalCount)},
		{"New", fmt.Sprintf("%d (%v%%)", r.NewCount, s["new_rate"])},
		{"Already present", fmt.Sprintf("%d (%v%%)", r.DuplicateCount, s["duplicate_rate"])},
		{"Identifier", fmt.Sprint(s["identifier"])},
		{"Time", fmt.Sprintf("%v ms", s["processing_ms"])},
	}
	return render(w, []string{"Duplicate filter", ""}, rows)
}

// Result prints a whole pipeline run.
func Result(w io.Writer, r *pipeline.Result) error {
	title(w, "Column mapping")
	if err := Mappings(w, r.Mappings); err != nil {
		return err
	}
	if r.Validation != nil {
		title(w, "Validation")
		if err := Validation(w, r.Validation); err != nil {
			return err
		}
	}
	if r.Filter != nil {
		title(w, "Duplicates")
		if r.InternalRemoved > 0 {
			fmt.Fprintf(w, "%d duplicate rows removed within the sheet\n", r.InternalRemoved)
		}
		if err := Filter(w, r.Filter); err != nil {
			return err
		}
	}
	if r.Inserted > 0 || r.InsertFailed > 0 {
		title(w, "Insert")
		fmt.Fprintf(w, "%s inserted, %s failed\n", green(strconv.Itoa(r.Inserted)), red(strconv.Itoa(r.InsertFailed)))
	}
	return outcome(w, r)
}

// Preview prints a dry run with its projection to the whole sheet.
func Preview(w io.Writer, p *pipeline.PreviewResult) error {
	if err := Result(w, p.Result); err != nil {
		return err
	}
	if p.Filter != nil && p.Filter.Success {
		fmt.Fprintf(w, "\nSampled %d of %d rows: about %d already present and %d new in the whole sheet\n",
			p.SampleRows, p.TotalRows, p.ProjectedDuplicates, p.ProjectedNew)
	}
	return nil
}

func outcome(w io.Writer, r *pipeline.Result) error {
	fmt.Fprintln(w)
	for _, msg := range r.Warnings {
		fmt.Fprintf(w, "%s %s\n", yellow("warning:"), msg)
	}
	for _, msg := range r.Errors {
		um := core.MapError(errors.New(msg))
		fmt.Fprintf(w, "%s [%s] %s\n", red("error:"), um.Code, msg)
		if um.Action != "" {
			fmt.Fprintf(w, "       %s\n", faint(um.Action))
		}
	}
	status := green("OK")
	if !r.Success {
		status = red("FAILED")
	}
	_, err := fmt.Fprintf(w, "%s run %s in %s\n", status, r.RunID, r.Duration.Round(1e6))
	return err
}
