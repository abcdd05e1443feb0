package harness

import (
	"github.com/roach88/nodecheck/internal/check"
	"github.com/roach88/nodecheck/internal/job"
)

// TraceEvent is the job as observed after one step.
type TraceEvent struct {
	Step     string          `json:"step"`
	State    job.State       `json:"state"`
	Status   string          `json:"status,omitempty"`
	Results  int             `json:"results"`
	Messages []check.Message `json:"messages"`
	Error    string          `json:"error,omitempty"`
}

// canonical converts the event for check.MarshalCanonical.
func (e TraceEvent) canonical() map[string]any {
	m := map[string]any{
		"step":     e.Step,
		"state":    string(e.State),
		"results":  e.Results,
		"messages": e.Messages,
	}
	if e.Status != "" {
		m["status"] = e.Status
	}
	if e.Error != "" {
		m["error"] = e.Error
	}
	return m
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace has one event for job creation and one per step.
	Trace []TraceEvent `json:"trace"`

	// Errors lists failed assertions. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failed assertion and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Last returns the final trace event, or a zero event for an empty trace.
func (r *Result) Last() TraceEvent {
	if len(r.Trace) == 0 {
		return TraceEvent{}
	}
	return r.Trace[len(r.Trace)-1]
}
