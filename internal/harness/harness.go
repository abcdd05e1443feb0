package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/nodecheck/internal/check"
	"github.com/roach88/nodecheck/internal/checker"
	"github.com/roach88/nodecheck/internal/checker/cuecheck"
	"github.com/roach88/nodecheck/internal/document/sqlitedoc"
	"github.com/roach88/nodecheck/internal/engine"
	"github.com/roach88/nodecheck/internal/job"
	"github.com/roach88/nodecheck/internal/logging"
	"github.com/roach88/nodecheck/internal/testutil"
)

// StepTimeout bounds how long a single step may take to settle.
const StepTimeout = 5 * time.Second

// scenarioJobID is the id every scenario job gets.
const scenarioJobID = "scenario-job"

// Run executes a scenario and evaluates its assertions.
//
// Each run gets a fresh in-memory store, a deterministic job id and a
// fixed clock, so two runs of the same scenario produce the same trace.
// The returned error is for harness failures (bad document, bad schema,
// a step that cannot be applied); failed assertions are reported in
// Result.Errors instead.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	store, err := sqlitedoc.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	if err := store.Import(ctx, scenario.Document); err != nil {
		return nil, fmt.Errorf("failed to import document: %w", err)
	}

	checkers, err := buildCheckers(scenario)
	if err != nil {
		return nil, err
	}

	mgr, err := engine.NewManager(store, checkers,
		engine.WithIDGenerator(engine.NewFixedGenerator(scenarioJobID)),
		engine.WithClock(testutil.NewStepClock(testutil.Epoch, time.Second).Now),
		engine.WithLogger(logging.Discard()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create manager: %w", err)
	}
	defer mgr.Close()

	result := NewResult()

	id, err := mgr.CreateJob(ctx, scenario.Job.Ref(), scenario.Job.Selection(), scenario.Job.Continuous)
	if err != nil {
		result.Trace = append(result.Trace, TraceEvent{Step: "create", Error: errorCode(err)})
		evaluateAssertions(scenario.Assertions, result)
		return result, nil
	}

	event, err := observe(mgr, id, "create")
	if err != nil {
		return nil, err
	}
	result.Trace = append(result.Trace, event)

	for i, step := range scenario.Steps {
		event, err := runStep(ctx, store, mgr, id, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Name, err)
		}
		result.Trace = append(result.Trace, event)
	}

	evaluateAssertions(scenario.Assertions, result)
	return result, nil
}

func buildCheckers(scenario *Scenario) ([]checker.Checker, error) {
	checkers, err := checker.Builtins(scenario.Checkers, scenario.ContainerKinds)
	if err != nil {
		return nil, err
	}
	if scenario.Schema != "" {
		schema, err := cuecheck.Compile("schema.cue", []byte(scenario.Schema))
		if err != nil {
			return nil, err
		}
		checkers = append(checkers, schema)
	}
	return checkers, nil
}

func runStep(ctx context.Context, store *sqlitedoc.Store, mgr *engine.Manager, id job.ID, step Step) (TraceEvent, error) {
	for j, m := range step.Mutations {
		if err := store.Apply(ctx, m); err != nil {
			return TraceEvent{}, fmt.Errorf("mutations[%d]: %w", j, err)
		}
		if _, err := waitIdle(mgr, id); err != nil {
			return TraceEvent{}, err
		}
	}

	var stepErr error
	if step.Retrigger {
		stepErr = mgr.Retrigger(id)
	}
	if step.Cancel && stepErr == nil {
		stepErr = mgr.CancelJob(id)
	}

	event, err := observe(mgr, id, step.Name)
	if err != nil {
		return TraceEvent{}, err
	}
	if stepErr != nil {
		event.Error = errorCode(stepErr)
	}
	return event, nil
}

func waitIdle(mgr *engine.Manager, id job.ID) (job.Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), StepTimeout)
	defer cancel()
	snap, err := mgr.WaitIdle(ctx, id)
	if err != nil {
		return snap, fmt.Errorf("job did not settle: %w", err)
	}
	return snap, nil
}

// observe waits for the job to settle and captures it.
func observe(mgr *engine.Manager, id job.ID, step string) (TraceEvent, error) {
	snap, err := waitIdle(mgr, id)
	if err != nil {
		return TraceEvent{}, err
	}
	latest, _, err := mgr.LatestResult(id)
	if err != nil {
		return TraceEvent{}, err
	}
	return TraceEvent{
		Step:     step,
		State:    snap.Status.State,
		Status:   snap.Status.Message,
		Results:  snap.ResultCount,
		Messages: latest.Messages,
	}, nil
}

// errorCode renders err without job ids so traces stay stable.
func errorCode(err error) string {
	if code := engine.CodeOf(err); code != "" {
		return string(code)
	}
	switch {
	case errors.Is(err, engine.ErrNotContinuous):
		return engine.ErrNotContinuous.Error()
	case errors.Is(err, engine.ErrCanceled):
		return engine.ErrCanceled.Error()
	case errors.Is(err, engine.ErrUnknownChecker):
		return engine.ErrUnknownChecker.Error()
	}
	return err.Error()
}

func evaluateAssertions(assertions []Assertion, result *Result) {
	for _, a := range assertions {
		if err := evaluate(a, result); err != nil {
			result.AddError(err.Error())
		}
	}
}

func messageCount(msgs []check.Message, severity check.Severity) int {
	if severity == "" {
		return len(msgs)
	}
	return check.CountBySeverity(msgs)[severity]
}
