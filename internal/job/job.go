package job

import (
	"time"

	"github.com/roach88/nodecheck/internal/check"
	"github.com/roach88/nodecheck/internal/history"
)

// Job is one checking job. Fields are read-only; use the With* methods to
// derive a new record.
type Job struct {
	ID        ID
	Target    check.Ref
	Kind      Kind
	Selection Selection
	Status    Status
	History   history.Buffer

	CreatedAt time.Time
	UpdatedAt time.Time

	// Runs counts executions that reached the checkers or resolution step.
	Runs int
}

// New builds a job record in the Created state with an empty history.
func New(id ID, target check.Ref, kind Kind, sel Selection, now time.Time) Job {
	return Job{
		ID:        id,
		Target:    target,
		Kind:      kind,
		Selection: sel,
		Status:    Created(),
		History:   history.New(history.Capacity),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithStatus returns a copy of j in the given status.
// It does not validate the transition; callers use ValidateTransition.
func (j Job) WithStatus(s Status, now time.Time) Job {
	j.Status = s
	j.UpdatedAt = now
	if s.State == StateRunning {
		j.Runs++
	}
	return j
}

// WithResult returns a copy of j with r appended to its history.
func (j Job) WithResult(r check.Result, now time.Time) Job {
	j.History = j.History.Append(r)
	j.UpdatedAt = now
	return j
}

// Latest returns the newest result in the job's history.
func (j Job) Latest() (check.Result, bool) {
	return j.History.Latest()
}

// Snapshot is the read model handed to callers.
type Snapshot struct {
	ID           ID        `json:"id"`
	Target       check.Ref `json:"target"`
	Kind         Kind      `json:"kind"`
	Selection    Selection `json:"selection"`
	Status       Status    `json:"status"`
	ResultCount  int       `json:"result_count"`
	LatestResult string    `json:"latest_result,omitempty"`
	Runs         int       `json:"runs"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Snapshot summarises the job for external readers.
func (j Job) Snapshot() Snapshot {
	s := Snapshot{
		ID:          j.ID,
		Target:      j.Target,
		Kind:        j.Kind,
		Selection:   j.Selection,
		Status:      j.Status,
		ResultCount: j.History.Len(),
		Runs:        j.Runs,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
	if latest, ok := j.History.Latest(); ok {
		s.LatestResult = latest.ID
	}
	return s
}
