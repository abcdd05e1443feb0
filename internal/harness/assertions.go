package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s: %s results=%d messages=%d", i+1, event.Step, event.State, event.Results, len(event.Messages))
		if event.Error != "" {
			fmt.Fprintf(&buf, " error=%s", event.Error)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

func evaluate(a Assertion, result *Result) error {
	last := result.Last()
	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Trace: result.Trace}
	}

	switch a.Type {
	case AssertFinalState:
		if last.State != a.State {
			return fail(string(a.State), string(last.State))
		}
	case AssertResultCount:
		if last.Results != a.Count {
			return fail(fmt.Sprintf("%d results", a.Count), fmt.Sprintf("%d results", last.Results))
		}
	case AssertMessageCount:
		if got := messageCount(last.Messages, a.Severity); got != a.Count {
			what := "messages"
			if a.Severity != "" {
				what = string(a.Severity) + " messages"
			}
			return fail(fmt.Sprintf("%d %s", a.Count, what), fmt.Sprintf("%d %s", got, what))
		}
	case AssertMessageText:
		for _, m := range last.Messages {
			if m.Text == a.Text {
				return nil
			}
		}
		return fail(fmt.Sprintf("message %q", a.Text), "not in latest result")
	case AssertCreateError:
		if len(result.Trace) == 0 || result.Trace[0].Step != "create" || result.Trace[0].Error != a.Code {
			actual := "job created"
			if len(result.Trace) > 0 && result.Trace[0].Error != "" {
				actual = result.Trace[0].Error
			}
			return fail(a.Code, actual)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
