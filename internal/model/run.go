package model

import "time"

// RunStatus represents the lifecycle state of a collection run.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusComplete    RunStatus = "complete"
	RunStatusInterrupted RunStatus = "interrupted"
)

// RunOptions records the knobs a collection run was started with.
type RunOptions struct {
	MaxID        int          `json:"max_id"`
	SkipTo       int          `json:"skip_to"`
	ForceUpdate  bool         `json:"force_update"`
	ForceRewrite bool         `json:"force_rewrite"`
	Refresh      []FieldGroup `json:"always_refresh,omitempty"`
}

// RunSummary tallies entity outcomes for a run.
type RunSummary struct {
	Processed int `json:"processed"`
	Success   int `json:"success"`
	Warning   int `json:"warning"`
	Failure   int `json:"failure"`
	NoUpdate  int `json:"no_update"`
	Written   int `json:"written"`
	LastDexNo int `json:"last_dex_no"`
}

// Add folds one outcome into the summary.
func (s *RunSummary) Add(o Outcome) {
	s.Processed++
	switch o.Status {
	case StatusSuccess:
		s.Success++
	case StatusWarning:
		s.Warning++
	case StatusFailure:
		s.Failure++
	case StatusNoUpdate:
		s.NoUpdate++
	}
	if o.Wrote {
		s.Written++
	}
	if o.DexNo > s.LastDexNo {
		s.LastDexNo = o.DexNo
	}
}

// Run is one persisted collection run.
type Run struct {
	ID        string      `json:"id"`
	Status    RunStatus   `json:"status"`
	Options   RunOptions  `json:"options"`
	Summary   *RunSummary `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// EntityOutcome is the persisted form of an Outcome within a run.
type EntityOutcome struct {
	RunID       string    `json:"run_id"`
	DexNo       int       `json:"dex_no"`
	Name        string    `json:"name,omitempty"`
	Status      Status    `json:"status"`
	Degraded    []string  `json:"degraded,omitempty"`
	Wrote       bool      `json:"wrote"`
	Error       string    `json:"error,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ToEntityOutcome converts a processing outcome for storage.
func (o Outcome) ToEntityOutcome(runID string, at time.Time) EntityOutcome {
	eo := EntityOutcome{
		RunID:       runID,
		DexNo:       o.DexNo,
		Name:        o.Name,
		Status:      o.Status,
		Degraded:    o.Degraded,
		Wrote:       o.Wrote,
		ProcessedAt: at,
	}
	if o.Err != nil {
		eo.Error = o.Err.Error()
	}
	return eo
}
