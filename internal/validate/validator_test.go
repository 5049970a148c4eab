package validate

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/sheetload/internal/core"
)

var scenarioDest = []core.DestinationColumn{
	{Name: "CustomerName", SQLType: "nvarchar", Type: core.TypeString, Nullable: true, MaxLength: 50},
	{Name: "Email", SQLType: "nvarchar", Type: core.TypeString, Nullable: true},
	{Name: "Amount", SQLType: "decimal", Type: core.TypeDecimal},
}

func scenarioTable() *core.Table {
	tb := core.NewTable("CustomerName", "Email", "Amount")
	tb.Append("Ana", "ana@x.com", "10.50")
	tb.Append("Luis", "bad-email", "abc")
	tb.Append("Eva", "eva@x.com", nil)
	tb.Append("Ana", "ana@x.com", "10.50")
	return tb
}

func countRule(issues []core.ValidationIssue, rule string) int {
	n := 0
	for _, is := range issues {
		if is.Rule == rule {
			n++
		}
	}
	return n
}

// ----------------------------------------------------------------------------
// Validate Tests
// ----------------------------------------------------------------------------

func TestValidate_Scenario(t *testing.T) {
	res := New(Options{}).Validate(context.Background(), scenarioTable(), scenarioDest)

	if res.RowCount != 4 {
		t.Errorf("RowCount = %d, want 4", res.RowCount)
	}
	if res.ErrorRows != 2 {
		t.Errorf("ErrorRows = %d, want 2", res.ErrorRows)
	}
	if res.ErrorCount != 2 {
		t.Errorf("ErrorCount = %d, want 2 (data_type, not_null)", res.ErrorCount)
	}
	if res.Valid {
		t.Error("Valid = true, want false at 50% error rows")
	}

	checks := []struct {
		rule string
		want int
	}{
		{RuleDataType, 1},
		{RuleNotNull, 1},
		{"required_value", 0},
		{"email_format", 1},
		{RuleDuplicateRows, 1},
		{RuleErrorRate, 1},
	}
	for _, c := range checks {
		if got := countRule(res.Issues, c.rule); got != c.want {
			t.Errorf("issues with rule %s = %d, want %d", c.rule, got, c.want)
		}
	}

	for _, is := range res.Issues {
		if is.Rule == RuleNotNull && (is.Row != 4 || is.Column != "Amount" || is.Message != "required field empty") {
			t.Errorf("not_null issue = %+v, want row 4 Amount", is)
		}
		if is.Rule == RuleErrorRate && is.Column != GeneralColumn {
			t.Errorf("error rate issue column = %s, want GENERAL", is.Column)
		}
	}
	if !strings.Contains(res.Summary, "invalid") {
		t.Errorf("Summary = %q", res.Summary)
	}
}

func TestValidate_OneErrorPerNullUnderKeepAll(t *testing.T) {
	tb := core.NewTable("CustomerName", "Email", "Amount")
	tb.Append("Ana", "ana@x.com", nil)

	res := New(Options{Overlap: OverlapKeepAll}).Validate(context.Background(), tb, scenarioDest)
	if res.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", res.ErrorCount)
	}
	if got := countRule(res.Issues, RuleNotNull); got != 1 {
		t.Errorf("not_null issues = %d, want 1", got)
	}
}

func TestValidate_MostSevere(t *testing.T) {
	rules := append([]Rule{RequiredValue(), StringLength()}, DefaultRules()...)
	res := New(Options{Overlap: OverlapMostSevere, Rules: rules}).Validate(context.Background(), scenarioTable(), scenarioDest)

	if res.ErrorCount != 2 {
		t.Errorf("ErrorCount = %d, want 2", res.ErrorCount)
	}
	if got := countRule(res.Issues, "required_value"); got != 0 {
		t.Errorf("required_value issues = %d, want 0 (built-in check wins the tie)", got)
	}
	if got := countRule(res.Issues, RuleNotNull); got != 1 {
		t.Errorf("not_null issues = %d, want 1", got)
	}
}

func TestValidate_ErrorRateThreshold(t *testing.T) {
	tb := core.NewTable("Amount")
	for i := 0; i < 9; i++ {
		tb.Append(fmt.Sprint(i))
	}
	tb.Append("oops")

	v := New(Options{NoRules: true})
	res := v.Validate(context.Background(), tb, scenarioDest[2:])
	if !res.Valid {
		t.Errorf("Valid = false at exactly 10%% error rows, want true")
	}
	if countRule(res.Issues, RuleErrorRate) != 0 {
		t.Error("error_rate_check issued at the threshold")
	}

	tb.Append("again")
	res = v.Validate(context.Background(), tb, scenarioDest[2:])
	if res.Valid {
		t.Errorf("Valid = true at %.2f error rate, want false", res.ErrorRate)
	}
}

func TestValidate_EmptyTable(t *testing.T) {
	res := New(Options{}).Validate(context.Background(), core.NewTable("Amount"), scenarioDest)
	if !res.Valid || res.ErrorRows != 0 || res.ErrorRate != 0 {
		t.Errorf("empty table result = %+v", res)
	}
}

func TestValidate_HighNullRatio(t *testing.T) {
	tb := core.NewTable("Email")
	tb.Append("a@x.com")
	tb.Append(nil)
	tb.Append("")

	res := New(Options{NoRules: true}).Validate(context.Background(), tb, scenarioDest[1:2])
	if countRule(res.Issues, RuleHighNullRatio) != 1 {
		t.Errorf("issues = %+v, want one high_null_ratio", res.Issues)
	}
}

func TestCheckValue(t *testing.T) {
	tests := []struct {
		v    any
		typ  core.InferredType
		want bool
	}{
		{"1,234", core.TypeInteger, true},
		{12.0, core.TypeInteger, true},
		{"12.5", core.TypeInteger, false},
		{"$1,234.50", core.TypeDecimal, true},
		{"abc", core.TypeDecimal, false},
		{"y", core.TypeBoolean, true},
		{"falso", core.TypeBoolean, true},
		{"maybe", core.TypeBoolean, false},
		{"2024-01-15", core.TypeDate, true},
		{time.Now(), core.TypeDateTime, true},
		{"not a date", core.TypeDate, false},
		{"anything", core.TypeString, true},
	}

	for _, tt := range tests {
		if _, got := CheckValue(tt.v, tt.typ); got != tt.want {
			t.Errorf("CheckValue(%v, %s) = %v, want %v", tt.v, tt.typ, got, tt.want)
		}
	}
}

func TestParseOverlapPolicy(t *testing.T) {
	if p, err := ParseOverlapPolicy(""); err != nil || p != OverlapKeepAll {
		t.Errorf("ParseOverlapPolicy(\"\") = %v, %v", p, err)
	}
	if p, err := ParseOverlapPolicy("MOST_SEVERE"); err != nil || p != OverlapMostSevere {
		t.Errorf("ParseOverlapPolicy(MOST_SEVERE) = %v, %v", p, err)
	}
	if _, err := ParseOverlapPolicy("first"); err == nil {
		t.Error("ParseOverlapPolicy(first) should fail")
	}
}

// ----------------------------------------------------------------------------
// Structure Tests
// ----------------------------------------------------------------------------

func TestCheckStructure(t *testing.T) {
	dest := []core.DestinationColumn{
		{Name: "Name", Nullable: true},
		{Name: "Id", HasDefault: true},
		{Name: "Code"},
	}
	issues := CheckStructure([]string{"name", "Extra"}, dest)

	if len(issues) != 2 {
		t.Fatalf("issues = %+v, want 2", issues)
	}
	if issues[0].Rule != RuleMissingColumn || issues[0].Column != "Code" || issues[0].Severity != core.SeverityError {
		t.Errorf("issues[0] = %+v, want missing Code", issues[0])
	}
	if issues[1].Rule != RuleExtraColumn || issues[1].Column != "Extra" || issues[1].Severity != core.SeverityInfo {
		t.Errorf("issues[1] = %+v, want extra Extra", issues[1])
	}
}

// ----------------------------------------------------------------------------
// Report Tests
// ----------------------------------------------------------------------------

func TestSummary(t *testing.T) {
	res := &core.ValidationResult{RowCount: 20, ErrorRows: 12, ErrorRate: 0.6}
	for i := 0; i < 12; i++ {
		res.Issues = append(res.Issues, core.ValidationIssue{
			Row: i + 2, Column: "Amount", Message: "not a valid decimal", Severity: core.SeverityError,
		})
	}
	res.Issues = append(res.Issues, core.ValidationIssue{Column: "Email", Message: "x", Severity: core.SeverityWarning})
	res.ErrorCount, res.WarningCount = 12, 1

	out := Summary(res)
	for _, want := range []string{
		"Rows processed: 20",
		"Status: INVALID",
		"10. row 11, column Amount: not a valid decimal",
		"... and 2 more errors",
		"1. column Email: x",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Summary() missing %q\n%s", want, out)
		}
	}
}
