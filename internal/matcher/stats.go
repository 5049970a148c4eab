package matcher

import "github.com/JonMunkholm/sheetload/internal/core"

// Stats summarises a mapping result set.
type Stats struct {
	Total             int     `json:"total_columns"`
	Mapped            int     `json:"mapped_columns"`
	Unmapped          int     `json:"unmapped_columns"`
	High              int     `json:"high_confidence"`
	Medium            int     `json:"medium_confidence"`
	Low               int     `json:"low_confidence"`
	MappingRate       float64 `json:"mapping_rate"`
	HighRate          float64 `json:"high_confidence_rate"`
	AverageConfidence float64 `json:"average_confidence"` // over mapped columns
}

// Statistics counts mapped columns by confidence band: high >= 0.85,
// medium 0.70-0.85, low below 0.70.
func Statistics(mappings []core.ColumnMapping) Stats {
	st := Stats{Total: len(mappings)}
	sum := 0.0
	for _, m := range mappings {
		if !m.Mapped() {
			continue
		}
		st.Mapped++
		sum += m.Confidence
		switch {
		case m.Confidence >= DefaultHighThreshold/100:
			st.High++
		case m.Confidence >= DefaultThreshold/100:
			st.Medium++
		default:
			st.Low++
		}
	}
	st.Unmapped = st.Total - st.Mapped
	if st.Total > 0 {
		st.MappingRate = float64(st.Mapped) / float64(st.Total)
		st.HighRate = float64(st.High) / float64(st.Total)
	}
	if st.Mapped > 0 {
		st.AverageConfidence = sum / float64(st.Mapped)
	}
	return st
}
