package pipeline

// Phase is the stage a run is in.
type Phase string

const (
	PhaseReading    Phase = "reading"
	PhaseInferring  Phase = "inferring"
	PhaseMapping    Phase = "mapping"
	PhaseValidating Phase = "validating"
	PhaseFiltering  Phase = "filtering"
	PhaseInserting  Phase = "inserting"
	PhaseComplete   Phase = "complete"
	PhaseFailed     Phase = "failed"
)

// Progress is reported to Request.OnProgress at every phase change and
// periodically while inserting.
type Progress struct {
	RunID      string `json:"run_id"`
	Phase      Phase  `json:"phase"`
	TotalRows  int    `json:"total_rows"`
	CurrentRow int    `json:"current_row"`
	Inserted   int    `json:"inserted"`
	Failed     int    `json:"failed"`
	Error      string `json:"error,omitempty"`
}

// Done reports whether the run has finished.
func (p Progress) Done() bool {
	return p.Phase == PhaseComplete || p.Phase == PhaseFailed
}

func notify(req Request, p Progress) {
	if req.OnProgress != nil {
		req.OnProgress(p)
	}
}
