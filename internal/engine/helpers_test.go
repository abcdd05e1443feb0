package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/nodecheck/internal/check"
	"github.com/roach88/nodecheck/internal/checker"
	"github.com/roach88/nodecheck/internal/document"
	"github.com/roach88/nodecheck/internal/job"
	"github.com/roach88/nodecheck/internal/logging"
	"github.com/roach88/nodecheck/internal/testutil"
)

// memDoc is an in-memory document backend. Nodes are addressed as
// "mem:<doc>/<name>"; the alternate form "alt:<name>" resolves within doc
// "d". Mutations notify the document listener synchronously, after the
// lock is released.
type memDoc struct {
	mu        sync.RWMutex
	nodes     map[document.Key]document.Node
	listeners map[string]document.ChangeFunc

	addErr   error
	resolves int
}

func newMemDoc() *memDoc {
	return &memDoc{
		nodes:     make(map[document.Key]document.Node),
		listeners: make(map[string]document.ChangeFunc),
	}
}

func (d *memDoc) Parse(repr string) (document.Key, bool) {
	switch {
	case strings.HasPrefix(repr, "mem:") && strings.Contains(repr, "/"):
		return document.Key(repr), true
	case strings.HasPrefix(repr, "alt:"):
		return document.Key("mem:d/" + strings.TrimPrefix(repr, "alt:")), true
	}
	return "", false
}

func (d *memDoc) Resolve(_ context.Context, key document.Key) (document.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resolves++
	n, ok := d.nodes[key]
	if !ok {
		return document.Node{}, document.ErrNotFound
	}
	props := make(map[string]string, len(n.Properties))
	for k, v := range n.Properties {
		props[k] = v
	}
	n.Properties = props
	return n, nil
}

func (d *memDoc) OwnerDocumentID(n document.Node) string { return n.Document }

func (d *memDoc) AddListener(docID string, fn document.ChangeFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.addErr != nil {
		return d.addErr
	}
	d.listeners[docID] = fn
	return nil
}

func (d *memDoc) RemoveListener(docID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.listeners, docID)
}

func (d *memDoc) listening(docID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.listeners[docID]
	return ok
}

// put creates or replaces a node without notifying.
func (d *memDoc) put(ref string, props map[string]string) {
	key := document.Key(ref)
	docID := strings.SplitN(strings.TrimPrefix(ref, "mem:"), "/", 2)[0]
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes[key] = document.Node{
		Key:        key,
		Ref:        check.NewRef(ref),
		Document:   docID,
		Kind:       "Item",
		Label:      ref,
		Properties: props,
	}
}

func (d *memDoc) notify(docID string) {
	d.mu.RLock()
	fn := d.listeners[docID]
	d.mu.RUnlock()
	if fn != nil {
		fn(docID)
	}
}

// setProp changes one property and notifies.
func (d *memDoc) setProp(ref, name, value string) {
	key := document.Key(ref)
	d.mu.Lock()
	n := d.nodes[key]
	props := make(map[string]string, len(n.Properties)+1)
	for k, v := range n.Properties {
		props[k] = v
	}
	props[name] = value
	n.Properties = props
	d.nodes[key] = n
	d.mu.Unlock()
	d.notify(n.Document)
}

// remove deletes a node and notifies.
func (d *memDoc) remove(ref string) {
	key := document.Key(ref)
	d.mu.Lock()
	n := d.nodes[key]
	delete(d.nodes, key)
	d.mu.Unlock()
	d.notify(n.Document)
}

// errorWhenSet reports one Error message per property named "bad".
func errorWhenSet(id string) checker.Func {
	return checker.Func{ID: id, Fn: func(_ context.Context, t checker.Target, sink checker.ReportSink) error {
		if v, ok := t.Node.Property("bad"); ok {
			sink.Report(check.Message{
				Affected: t.Node.Ref,
				Location: check.PropertyLocation("bad"),
				Severity: check.SeverityError,
				Text:     "bad=" + v,
			})
		}
		return nil
	}}
}

// counting wraps a checker and counts invocations.
type counting struct {
	checker.Checker
	mu    sync.Mutex
	calls int
}

func (c *counting) Check(ctx context.Context, t checker.Target, sink checker.ReportSink) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.Checker.Check(ctx, t, sink)
}

func (c *counting) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// gate blocks a checker until released. entered receives once per call.
type gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 64), release: make(chan struct{})}
}

func (g *gate) checker(id string) checker.Func {
	return checker.Func{ID: id, Fn: func(ctx context.Context, _ checker.Target, _ checker.ReportSink) error {
		g.entered <- struct{}{}
		select {
		case <-g.release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}}
}

func (g *gate) open() { g.once.Do(func() { close(g.release) }) }

func (g *gate) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("checker was not entered")
	}
}

// fixedNow is a wall clock that advances one second per call.
func fixedNow() WallClock {
	return testutil.NewStepClock(testutil.Epoch, time.Second).Now
}

func newTestManager(t *testing.T, doc document.Collaborator, checkers []checker.Checker, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{
		WithClock(fixedNow()),
		WithLogger(logging.Discard()),
	}, opts...)
	m, err := NewManager(doc, checkers, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

// waitState waits until the job reaches state.
func waitState(t *testing.T, m *Manager, id job.ID, state job.State) job.Snapshot {
	t.Helper()
	var snap job.Snapshot
	require.Eventually(t, func() bool {
		s, err := m.Status(id)
		if err != nil {
			return false
		}
		snap = s
		return s.Status.State == state
	}, 2*time.Second, time.Millisecond, "job %s never reached %s", id, state)
	return snap
}

// waitRuns waits until the job settled after at least n executions.
func waitRuns(t *testing.T, m *Manager, id job.ID, n int) job.Snapshot {
	t.Helper()
	var snap job.Snapshot
	require.Eventually(t, func() bool {
		s, err := m.Status(id)
		if err != nil {
			return false
		}
		snap = s
		return s.Runs >= n && s.Status.State.IsSettled()
	}, 2*time.Second, time.Millisecond, "job %s never settled after %d runs", id, n)
	return snap
}

var errBoom = errors.New("boom")
