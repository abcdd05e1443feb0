package engine

import "sync"

// Reason says why an execution was requested.
type Reason string

const (
	ReasonInitial         Reason = "initial"
	ReasonDocumentChanged Reason = "document-changed"
	ReasonManual          Reason = "manual"
)

// trigger requests one execution of a job.
type trigger struct {
	Seq    int64
	Reason Reason
}

// mailbox is a one-slot trigger box. A Put while a trigger is pending
// replaces it, so at most one execution is ever owed.
//
// Waiting uses a buffered signal channel so the job loop can select on it
// without polling.
type mailbox struct {
	mu        sync.Mutex
	pending   trigger
	has       bool
	last      int64 // highest Seq ever accepted
	closed    bool
	coalesced int64
	signal    chan struct{} // buffered, size 1
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

// Put stores t, overwriting any pending trigger. When two puts race, the
// trigger with the higher Seq is the one kept. It never blocks.
// Returns false if the mailbox is closed.
func (b *mailbox) Put(t trigger) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}
	if t.Seq > b.last {
		b.last = t.Seq
	}
	if b.has {
		b.coalesced++
		if t.Seq < b.pending.Seq {
			return true
		}
	}
	b.pending = t
	b.has = true

	select {
	case b.signal <- struct{}{}:
	default:
	}
	return true
}

// Take removes and returns the pending trigger. A closed mailbox yields
// nothing, even if a trigger was pending when it closed.
func (b *mailbox) Take() (trigger, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || !b.has {
		return trigger{}, false
	}
	t := b.pending
	b.pending = trigger{}
	b.has = false
	return t, true
}

// Wait returns a channel that receives when a trigger may be pending and
// is closed when the mailbox closes.
func (b *mailbox) Wait() <-chan struct{} {
	return b.signal
}

// Last returns the highest Seq the mailbox accepted, or 0.
func (b *mailbox) Last() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// Coalesced returns how many triggers were overwritten before being taken.
func (b *mailbox) Coalesced() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.coalesced
}

// Close stops the mailbox and wakes the waiting loop.
func (b *mailbox) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.has = false
	close(b.signal)
}
