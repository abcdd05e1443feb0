package check

import (
	"time"
)

// Result is the outcome of one job execution that produced new content.
// It is never modified after NewResult returns.
type Result struct {
	// ID is the content fingerprint of Messages. Clients use it as a cache
	// validator: equal IDs mean equal message sequences.
	ID          string    `json:"id"`
	CompletedAt time.Time `json:"completed_at"`
	Messages    []Message `json:"messages"`
}

// NewResult copies msgs and stamps the result with its fingerprint.
func NewResult(msgs []Message, completedAt time.Time) (Result, error) {
	copied := make([]Message, len(msgs))
	for i, m := range msgs {
		copied[i] = m
		if len(m.Sources) > 0 {
			copied[i].Sources = append([]Ref(nil), m.Sources...)
		}
		if len(m.Affected.Alternates) > 0 {
			copied[i].Affected.Alternates = append([]string(nil), m.Affected.Alternates...)
		}
	}

	id, err := ResultID(copied)
	if err != nil {
		return Result{}, err
	}
	return Result{ID: id, CompletedAt: completedAt, Messages: copied}, nil
}

// SameContent reports whether r carries the same message sequence as msgs.
func (r Result) SameContent(msgs []Message) bool {
	return MessagesEqual(r.Messages, msgs)
}

// CheckerInfo identifies a checker backend. ID is unique and stable for the
// life of the process; Name is for display and debugging only.
type CheckerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
