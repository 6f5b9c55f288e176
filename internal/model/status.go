package model

// Status is the outcome of one processing pass over an entity. It is
// reported, never persisted on the record.
type Status string

const (
	StatusSuccess  Status = "SUCCESS"
	StatusWarning  Status = "WARNING"
	StatusFailure  Status = "FAILURE"
	StatusNoUpdate Status = "NO_UPDATE"
)

func (s Status) rank() int {
	switch s {
	case StatusFailure:
		return 3
	case StatusWarning:
		return 2
	case StatusNoUpdate:
		return 1
	default:
		return 0
	}
}

// Escalate returns whichever of s and other has the higher precedence:
// FAILURE > WARNING > NO_UPDATE > SUCCESS.
func (s Status) Escalate(other Status) Status {
	if other.rank() > s.rank() {
		return other
	}
	if s == "" {
		return StatusSuccess
	}
	return s
}

// GroupState is the per-group transition taken by the entity processor.
type GroupState string

const (
	GroupSkipped  GroupState = "SKIPPED"
	GroupFetched  GroupState = "FETCHED"
	GroupDegraded GroupState = "DEGRADED"
)

// Outcome describes one processed entity.
type Outcome struct {
	DexNo    int                       `json:"dex_no"`
	Name     string                    `json:"name,omitempty"`
	Status   Status                    `json:"status"`
	Degraded []string                  `json:"degraded,omitempty"`
	Groups   map[FieldGroup]GroupState `json:"groups,omitempty"`
	Wrote    bool                      `json:"wrote"`
	Err      error                     `json:"-"`
}

// NewOutcome starts an outcome in the SUCCESS state.
func NewOutcome(dexNo int) *Outcome {
	return &Outcome{
		DexNo:  dexNo,
		Status: StatusSuccess,
		Groups: make(map[FieldGroup]GroupState),
	}
}

// Mark escalates the outcome status.
func (o *Outcome) Mark(s Status) {
	o.Status = o.Status.Escalate(s)
}

// Degrade records a failed field label and escalates to WARNING.
func (o *Outcome) Degrade(label string) {
	o.Degraded = append(o.Degraded, label)
	o.Mark(StatusWarning)
}

// Fail records an entity-level error and escalates to FAILURE.
func (o *Outcome) Fail(err error) {
	o.Err = err
	o.Mark(StatusFailure)
}

// Fetched reports whether any field group was collected during the pass.
func (o *Outcome) Fetched() bool {
	for _, st := range o.Groups {
		if st != GroupSkipped {
			return true
		}
	}
	return false
}
