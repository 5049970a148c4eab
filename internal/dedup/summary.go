package dedup

import (
	"math"

	"github.com/JonMunkholm/sheetload/internal/core"
	"github.com/JonMunkholm/sheetload/internal/keys"
)

// Summary flattens a result for display.
func Summary(r *core.FilterResult) map[string]any {
	m := map[string]any{
		"success":         r.Success,
		"run_id":          r.RunID,
		"original_count":  r.OriginalCount,
		"new_count":       r.NewCount,
		"duplicate_count": r.DuplicateCount,
		"new_rate":        percent(r.NewCount, r.OriginalCount),
		"duplicate_rate":  percent(r.DuplicateCount, r.OriginalCount),
		"identifier":      keys.Describe(r.Identifier),
		"processing_ms":   r.ProcessingTime.Milliseconds(),
	}
	if len(r.Errors) > 0 {
		m["errors"] = r.Errors
	}
	if len(r.Warnings) > 0 {
		m["warnings"] = r.Warnings
	}
	return m
}

// percent returns part/total as a percentage with one decimal.
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}
