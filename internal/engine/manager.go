package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/roach88/nodecheck/internal/broadcast"
	"github.com/roach88/nodecheck/internal/check"
	"github.com/roach88/nodecheck/internal/checker"
	"github.com/roach88/nodecheck/internal/document"
	"github.com/roach88/nodecheck/internal/job"
)

// Manager creates, tracks, runs and cancels checking jobs.
//
// Thread-safety: every method is safe for concurrent use.
type Manager struct {
	doc      document.Collaborator
	checkers []checker.Checker
	known    map[string]struct{}

	ids    IDGenerator
	seq    *Clock
	now    WallClock
	sem    *semaphore.Weighted
	logger *slog.Logger

	jobs sync.Map // job.ID -> *entry

	// imu guards index and every entry's docID.
	imu   sync.Mutex
	index map[string]map[job.ID]struct{}

	// lmu orders CreateJob against Close so no job goroutine starts after
	// Close began waiting.
	lmu    sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// entry is the registry slot for one job.
type entry struct {
	record  atomic.Pointer[job.Job]
	box     *mailbox
	results *broadcast.Channel[check.Result]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// executed is the highest trigger Seq whose execution has finished.
	executed atomic.Int64

	docID string // guarded by Manager.imu
}

// Option configures a Manager.
type Option func(*Manager)

// WithIDGenerator sets the job id source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(m *Manager) { m.ids = g }
}

// WithClock sets the wall clock used for record and result timestamps.
// Default: SystemClock.
func WithClock(now WallClock) Option {
	return func(m *Manager) { m.now = now }
}

// WithMaxConcurrent bounds how many executions run at once across all
// jobs. n <= 0 means unbounded, which is the default.
func WithMaxConcurrent(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.sem = semaphore.NewWeighted(int64(n))
		} else {
			m.sem = nil
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a manager over a document backend and an ordered
// list of checkers. Checkers run in the order given.
func NewManager(doc document.Collaborator, checkers []checker.Checker, opts ...Option) (*Manager, error) {
	if doc == nil {
		return nil, fmt.Errorf("new manager: document collaborator is required")
	}
	if err := checker.Validate(checkers); err != nil {
		return nil, fmt.Errorf("new manager: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		doc:      doc,
		checkers: append([]checker.Checker(nil), checkers...),
		known:    make(map[string]struct{}, len(checkers)),
		ids:      UUIDv7Generator{},
		seq:      NewClock(),
		now:      SystemClock,
		logger:   slog.Default(),
		index:    make(map[string]map[job.ID]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, c := range m.checkers {
		m.known[c.Info().ID] = struct{}{}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// CreateJob registers a job for target and schedules its first execution.
//
// It fails with ErrInvalidTarget when no form of target parses, and with
// ErrUnknownChecker when the selection names an unregistered checker; no
// job is created in either case. For a continuous job the owning document
// is resolved and watched; if that fails the job is canceled and a
// SETUP_FAILED RuntimeError is returned.
func (m *Manager) CreateJob(ctx context.Context, target check.Ref, sel job.Selection, continuous bool) (job.ID, error) {
	if _, ok := document.ParseRef(m.doc, target); !ok {
		return "", invalidTargetError(target)
	}
	for _, id := range sel.IDs() {
		if _, ok := m.known[id]; !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownChecker, id)
		}
	}

	e, err := m.register(target, sel, job.KindOf(continuous))
	if err != nil {
		return "", err
	}
	rec := e.record.Load()

	m.logger.Info("job created",
		"job", rec.ID,
		"target", target.String(),
		"kind", rec.Kind,
		"selection", sel.String(),
	)
	m.put(e, ReasonInitial)

	if !continuous {
		return rec.ID, nil
	}

	node, err := document.ResolveRef(ctx, m.doc, target)
	if err == nil {
		err = m.watch(e, m.doc.OwnerDocumentID(node))
	}
	if err != nil {
		_ = m.CancelJob(rec.ID)
		m.logger.Error("continuous job setup failed", "job", rec.ID, "error", err)
		return "", setupFailedError(rec.ID, err)
	}
	return rec.ID, nil
}

// register stores a new entry and starts its loop.
func (m *Manager) register(target check.Ref, sel job.Selection, kind job.Kind) (*entry, error) {
	m.lmu.RLock()
	defer m.lmu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	id := job.ID(m.ids.Generate())
	rec := job.New(id, target, kind, sel, m.now())

	ctx, cancel := context.WithCancel(m.ctx)
	e := &entry{
		box:     newMailbox(),
		results: &broadcast.Channel[check.Result]{},
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	e.record.Store(&rec)

	if _, loaded := m.jobs.LoadOrStore(id, e); loaded {
		cancel()
		return nil, fmt.Errorf("duplicate job id %q", id)
	}

	m.wg.Add(1)
	go m.loop(e)
	return e, nil
}

// put stamps and delivers a trigger. It reports false if the job's
// mailbox is closed.
func (m *Manager) put(e *entry, reason Reason) bool {
	t := trigger{Seq: m.seq.Next(), Reason: reason}
	ok := e.box.Put(t)
	if ok {
		m.logger.Debug("trigger", "job", e.record.Load().ID, "seq", t.Seq, "reason", reason)
	}
	return ok
}

func (m *Manager) lookup(id job.ID) (*entry, error) {
	v, ok := m.jobs.Load(id)
	if !ok {
		return nil, notFoundError(id)
	}
	return v.(*entry), nil
}

// CancelJob cancels a job. Canceling an already canceled job is a no-op.
// Pending triggers are dropped, an in-flight execution is interrupted at
// its next checkpoint, and subscribers see their channel close.
func (m *Manager) CancelJob(id job.ID) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	if _, ok := m.transition(e, job.Canceled(), nil); ok {
		m.logger.Info("job canceled", "job", id)
	}
	m.teardown(e)
	return nil
}

func (m *Manager) teardown(e *entry) {
	e.box.Close()
	e.cancel()
	e.results.Close()
	m.unwatch(e)
}

// Status returns a snapshot of the job.
func (m *Manager) Status(id job.ID) (job.Snapshot, error) {
	e, err := m.lookup(id)
	if err != nil {
		return job.Snapshot{}, err
	}
	return e.record.Load().Snapshot(), nil
}

// Job returns the full current record of the job.
func (m *Manager) Job(id job.ID) (job.Job, error) {
	e, err := m.lookup(id)
	if err != nil {
		return job.Job{}, err
	}
	return *e.record.Load(), nil
}

// LatestResult returns the newest stored result. ok is false when the job
// has not stored any result yet.
func (m *Manager) LatestResult(id job.ID) (check.Result, bool, error) {
	e, err := m.lookup(id)
	if err != nil {
		return check.Result{}, false, err
	}
	r, ok := e.record.Load().Latest()
	return r, ok, nil
}

// LatestResultIfChanged is LatestResult for callers that already hold a
// result: it returns ErrNotModified when fingerprint equals the id of the
// newest result.
func (m *Manager) LatestResultIfChanged(id job.ID, fingerprint string) (check.Result, bool, error) {
	r, ok, err := m.LatestResult(id)
	if err != nil || !ok {
		return r, ok, err
	}
	if fingerprint != "" && fingerprint == r.ID {
		return check.Result{}, true, ErrNotModified
	}
	return r, true, nil
}

// AllResults returns the stored history, oldest first.
func (m *Manager) AllResults(id job.ID) ([]check.Result, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.record.Load().History.Slice(), nil
}

// Subscribe returns a live feed of the job's new results. The latest
// result, if any, is delivered first.
func (m *Manager) Subscribe(id job.ID) (*broadcast.Subscription[check.Result], error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.results.Subscribe(), nil
}

// Retrigger requests a fresh execution of a continuous job.
func (m *Manager) Retrigger(id job.ID) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	rec := e.record.Load()
	if rec.Kind != job.Continuous {
		return fmt.Errorf("retrigger %s: %w", id, ErrNotContinuous)
	}
	if rec.Status.State == job.StateCanceled || !m.put(e, ReasonManual) {
		return fmt.Errorf("retrigger %s: %w", id, ErrCanceled)
	}
	return nil
}

// idlePoll is how often WaitIdle re-reads a job.
const idlePoll = 2 * time.Millisecond

// WaitIdle blocks until the job has no owed execution: every trigger
// delivered so far has been executed (or coalesced into one that was) and
// the job is settled. A canceled job is idle immediately.
func (m *Manager) WaitIdle(ctx context.Context, id job.ID) (job.Snapshot, error) {
	e, err := m.lookup(id)
	if err != nil {
		return job.Snapshot{}, err
	}
	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()

	for {
		rec := e.record.Load()
		if rec.Status.State == job.StateCanceled {
			return rec.Snapshot(), nil
		}
		if rec.Status.State.IsSettled() && e.executed.Load() >= e.box.Last() {
			return rec.Snapshot(), nil
		}
		select {
		case <-ctx.Done():
			return rec.Snapshot(), ctx.Err()
		case <-ticker.C:
		}
	}
}

// Jobs returns snapshots of every job ever created, oldest first.
func (m *Manager) Jobs() []job.Snapshot {
	var out []job.Snapshot
	m.jobs.Range(func(_, v any) bool {
		out = append(out, v.(*entry).record.Load().Snapshot())
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Checkers lists the registered checkers in execution order.
func (m *Manager) Checkers() []check.CheckerInfo {
	out := make([]check.CheckerInfo, len(m.checkers))
	for i, c := range m.checkers {
		out[i] = c.Info()
	}
	return out
}

// Close cancels every job, unregisters every document listener and waits
// for all job goroutines to exit. It is idempotent.
func (m *Manager) Close() error {
	m.lmu.Lock()
	if m.closed {
		m.lmu.Unlock()
		return nil
	}
	m.closed = true
	m.lmu.Unlock()

	m.jobs.Range(func(_, v any) bool {
		e := v.(*entry)
		m.transition(e, job.Canceled(), nil)
		m.teardown(e)
		return true
	})
	m.cancel()
	m.wg.Wait()

	m.logger.Info("manager closed")
	return nil
}
