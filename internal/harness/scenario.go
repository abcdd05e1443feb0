package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/nodecheck/internal/check"
	"github.com/roach88/nodecheck/internal/document/sqlitedoc"
	"github.com/roach88/nodecheck/internal/job"
)

// Scenario is one end-to-end checking scenario loaded from YAML.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Document is imported into a fresh in-memory store before the job
	// starts.
	Document sqlitedoc.TreeFile `yaml:"document"`

	// Checkers lists the builtin checker ids to register, in order.
	// Empty registers every builtin.
	Checkers []string `yaml:"checkers,omitempty"`

	// ContainerKinds configures the empty-container checker.
	ContainerKinds []string `yaml:"container_kinds,omitempty"`

	// Schema is optional CUE source registered as one more checker after
	// the builtins. Its id is "cue:schema".
	Schema string `yaml:"schema,omitempty"`

	// Job describes the job under test.
	Job JobSpec `yaml:"job"`

	// Steps run in order after the job's first execution settled.
	Steps []Step `yaml:"steps,omitempty"`

	// Assertions are evaluated against the trace after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// JobSpec is the job a scenario creates.
type JobSpec struct {
	Target     string   `yaml:"target"`
	Alternates []string `yaml:"alternates,omitempty"`
	Select     []string `yaml:"select,omitempty"`
	Continuous bool     `yaml:"continuous"`
}

// Ref returns the job target.
func (j JobSpec) Ref() check.Ref {
	return check.NewRef(j.Target, j.Alternates...)
}

// Selection returns the checker selection; empty means all.
func (j JobSpec) Selection() job.Selection {
	if len(j.Select) == 0 {
		return job.All()
	}
	return job.Multiple(j.Select...)
}

// Step is one action against the document or the job.
type Step struct {
	Name string `yaml:"name"`

	// Mutations are applied one at a time; the job is waited out after
	// each so intermediate results are deterministic.
	Mutations []sqlitedoc.Mutation `yaml:"mutations,omitempty"`

	// Retrigger requests a manual execution after the mutations.
	Retrigger bool `yaml:"retrigger,omitempty"`

	// Cancel cancels the job after the mutations.
	Cancel bool `yaml:"cancel,omitempty"`
}

// Assertion is a check on the scenario's outcome.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// State is the expected state for final_state.
	State job.State `yaml:"state,omitempty"`

	// Count is the expected count for result_count and message_count.
	Count int `yaml:"count,omitempty"`

	// Severity narrows message_count to one severity.
	Severity check.Severity `yaml:"severity,omitempty"`

	// Text is the message text for message_text.
	Text string `yaml:"text,omitempty"`

	// Code is the runtime error code for create_error.
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState   = "final_state"
	AssertResultCount  = "result_count"
	AssertMessageCount = "message_count"
	AssertMessageText  = "message_text"
	AssertCreateError  = "create_error"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Document.Document == "" {
		return fmt.Errorf("document.document is required")
	}
	if s.Job.Target == "" {
		return fmt.Errorf("job.target is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Name == "" {
			return fmt.Errorf("steps[%d]: name is required", i)
		}
		if len(step.Mutations) == 0 && !step.Retrigger && !step.Cancel {
			return fmt.Errorf("steps[%d]: step does nothing", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalState:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for final_state", index)
		}
	case AssertResultCount, AssertMessageCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
		if a.Severity != "" && !a.Severity.Valid() {
			return fmt.Errorf("assertions[%d]: unknown severity %q", index, a.Severity)
		}
	case AssertMessageText:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for message_text", index)
		}
	case AssertCreateError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for create_error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
