package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/nodecheck/internal/check"
	"github.com/roach88/nodecheck/internal/checker"
	"github.com/roach88/nodecheck/internal/document"
	"github.com/roach88/nodecheck/internal/job"
	"github.com/roach88/nodecheck/internal/logging"
)

// loop consumes e's mailbox until it is closed.
func (m *Manager) loop(e *entry) {
	defer m.wg.Done()
	defer close(e.done)

	for {
		if t, ok := e.box.Take(); ok {
			m.execute(e, t)
			continue
		}
		// The signal channel closes with the mailbox, which ends the loop.
		if _, open := <-e.box.Wait(); !open {
			return
		}
	}
}

// transition swaps in the record produced by applying status (and result,
// when non-nil) to the current record. It reports false without changing
// anything when the state machine forbids the transition, which is how a
// cancellation wins over a concurrently finishing execution.
func (m *Manager) transition(e *entry, status job.Status, result *check.Result) (job.Job, bool) {
	for {
		cur := e.record.Load()
		if err := job.ValidateTransition(cur.Kind, cur.Status.State, status.State); err != nil {
			return *cur, false
		}
		now := m.now()
		next := *cur
		if result != nil {
			next = next.WithResult(*result, now)
		}
		next = next.WithStatus(status, now)
		if e.record.CompareAndSwap(cur, &next) {
			return next, true
		}
	}
}

// outcome is what one execution produced.
type outcome struct {
	status   job.Status
	messages []check.Message
}

// execute runs one trigger to completion. It never returns an error: every
// failure becomes the job's Error state.
func (m *Manager) execute(e *entry, t trigger) {
	defer markExecuted(e, t.Seq)

	rec := e.record.Load()
	ctx := logging.ContextAttrs(e.ctx,
		slog.String("job", string(rec.ID)),
		slog.Int64("seq", t.Seq),
		slog.String("reason", string(t.Reason)),
	)

	if m.sem != nil {
		if err := m.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer m.sem.Release(1)
	}

	running, ok := m.transition(e, job.Running(), nil)
	if !ok {
		m.logger.DebugContext(ctx, "execution skipped", "state", rec.Status.State)
		return
	}

	out := m.run(ctx, e, running)

	switch out.status.State {
	case job.StateCompleted:
		m.complete(ctx, e, out.messages)
	case job.StateError:
		if _, ok := m.transition(e, out.status, nil); ok {
			m.logger.ErrorContext(ctx, "execution failed", "error", executionFailedError(running.ID, out.status.Message))
		}
	default:
		if _, ok := m.transition(e, out.status, nil); ok {
			m.logger.InfoContext(ctx, "execution finished", "state", out.status.State)
		}
	}
}

func markExecuted(e *entry, seq int64) {
	for {
		cur := e.executed.Load()
		if seq <= cur || e.executed.CompareAndSwap(cur, seq) {
			return
		}
	}
}

// run resolves the target and runs the selected checkers. Panics are
// recovered into the Error state.
func (m *Manager) run(ctx context.Context, e *entry, rec job.Job) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{status: job.Failed(fmt.Sprintf("panic: %v", r))}
		}
	}()

	node, err := document.ResolveRef(ctx, m.doc, rec.Target)
	if errors.Is(err, document.ErrNotFound) {
		return outcome{status: job.NodeDeleted()}
	}
	if err != nil {
		return outcome{status: job.Failed(fmt.Sprintf("resolve %s: %v", rec.Target, err))}
	}

	var sink checker.Collector
	target := checker.Target{Node: node, Resolver: m.doc}
	for _, c := range m.checkers {
		id := c.Info().ID
		if !rec.Selection.Selects(id) {
			continue
		}
		if m.canceled(e) {
			return outcome{status: job.Canceled()}
		}
		if err := c.Check(ctx, target, &sink); err != nil {
			return outcome{status: job.Failed(fmt.Sprintf("checker %s: %v", id, err))}
		}
	}
	return outcome{status: job.Completed(), messages: sink.Messages()}
}

func (m *Manager) canceled(e *entry) bool {
	return e.record.Load().Status.State == job.StateCanceled || e.ctx.Err() != nil
}

// complete stores and publishes a result unless it repeats the newest one.
// The job reaches Completed either way.
func (m *Manager) complete(ctx context.Context, e *entry, msgs []check.Message) {
	cur := e.record.Load()
	latest, has := cur.Latest()
	if has && latest.SameContent(msgs) {
		if _, ok := m.transition(e, job.Completed(), nil); ok {
			m.logger.InfoContext(ctx, "execution finished", "state", job.StateCompleted, "changed", false)
		}
		return
	}

	result, err := check.NewResult(msgs, m.now())
	if err != nil {
		if _, ok := m.transition(e, job.Failed(err.Error()), nil); ok {
			m.logger.ErrorContext(ctx, "execution failed", "error", executionFailedError(cur.ID, err.Error()))
		}
		return
	}

	if _, ok := m.transition(e, job.Completed(), &result); !ok {
		return
	}
	e.results.Publish(result)
	m.logger.InfoContext(ctx, "execution finished",
		"state", job.StateCompleted,
		"changed", true,
		"result", result.ID,
		"messages", len(result.Messages),
	)
}
