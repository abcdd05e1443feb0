package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nodecheck/internal/check"
	"github.com/roach88/nodecheck/internal/document/sqlitedoc"
	"github.com/roach88/nodecheck/internal/job"
)

func TestScenarios_Golden(t *testing.T) {
	for _, name := range []string{
		"required_name_continuous",
		"node_deleted_restored",
		"dangling_reference",
		"one_off_ignores_changes",
		"invalid_target",
	} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "assertion errors: %v", result.Errors)
		})
	}
}

func TestScenario_CueSchema(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "cue_schema.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "assertion errors: %v", result.Errors)
	require.Len(t, result.Trace, 3)

	assert.Empty(t, result.Trace[0].Messages)
	broken := result.Trace[1].Messages
	require.NotEmpty(t, broken)
	for _, m := range broken {
		assert.Equal(t, check.PropertyLocation("price"), m.Location)
		assert.Equal(t, check.SeverityError, m.Severity)
		assert.Equal(t, "node:2", m.Affected.Primary)
	}
}

func TestRun_IsDeterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "dangling_reference.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := MarshalTrace(scenario.Name, first.Trace)
	require.NoError(t, err)
	b, err := MarshalTrace(scenario.Name, second.Trace)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_AlternateTargetForm(t *testing.T) {
	scenario := &Scenario{
		Name:        "alternate",
		Description: "primary form unknown, alternate resolves",
		Document: sqlitedoc.TreeFile{
			Document: "d",
			Nodes:    []sqlitedoc.TreeNode{{Kind: "Item", Label: "a"}},
		},
		Checkers:   []string{"required-name"},
		Job:        JobSpec{Target: "bogus:a", Alternates: []string{"path:d/a"}},
		Assertions: []Assertion{{Type: AssertMessageCount, Count: 1}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "assertion errors: %v", result.Errors)
	assert.Equal(t, "node:1", result.Last().Messages[0].Affected.Primary)
}

func TestRun_UnknownCheckerSelection(t *testing.T) {
	scenario := &Scenario{
		Name:        "unknown",
		Description: "selection names a checker that is not registered",
		Document:    sqlitedoc.TreeFile{Document: "d", Nodes: []sqlitedoc.TreeNode{{Kind: "Item", Label: "a"}}},
		Job:         JobSpec{Target: "path:d/a", Select: []string{"nope"}},
		Assertions:  []Assertion{{Type: AssertCreateError, Code: "unknown checker"}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "assertion errors: %v", result.Errors)
}

func TestRun_FailedAssertionsAreReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing",
		Description: "every assertion is wrong",
		Document:    sqlitedoc.TreeFile{Document: "d", Nodes: []sqlitedoc.TreeNode{{Kind: "Item", Label: "a"}}},
		Checkers:    []string{"required-name"},
		Job:         JobSpec{Target: "path:d/a"},
		Assertions: []Assertion{
			{Type: AssertFinalState, State: job.StateError},
			{Type: AssertResultCount, Count: 7},
			{Type: AssertMessageCount, Severity: check.SeverityWarning, Count: 1},
			{Type: AssertMessageText, Text: "nothing like this"},
			{Type: AssertCreateError, Code: "INVALID_TARGET"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "Expected: error")
	assert.Contains(t, result.Errors[0], "Actual: completed")
	assert.Contains(t, result.Errors[4], "Actual: job created")
}

func TestRun_BadStepIsHarnessError(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_step",
		Description: "mutation targets a missing node",
		Document:    sqlitedoc.TreeFile{Document: "d", Nodes: []sqlitedoc.TreeNode{{Kind: "Item", Label: "a"}}},
		Job:         JobSpec{Target: "path:d/a", Continuous: true},
		Steps: []Step{{
			Name:      "oops",
			Mutations: []sqlitedoc.Mutation{{Op: sqlitedoc.OpSetProperty, Node: "path:d/missing", Name: "x", Value: "y"}},
		}},
		Assertions: []Assertion{{Type: AssertFinalState, State: job.StateCompleted}},
	}

	_, err := Run(scenario)
	assert.ErrorContains(t, err, "oops")
}

func TestRun_BadSchema(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_schema",
		Description: "schema does not compile",
		Document:    sqlitedoc.TreeFile{Document: "d", Nodes: []sqlitedoc.TreeNode{{Kind: "Item", Label: "a"}}},
		Schema:      "#Item: {",
		Job:         JobSpec{Target: "path:d/a"},
		Assertions:  []Assertion{{Type: AssertFinalState, State: job.StateCompleted}},
	}

	_, err := Run(scenario)
	assert.ErrorContains(t, err, "compile schema")
}
