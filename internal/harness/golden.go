package harness

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Render writes the deterministic trace of a scenario run. Content ids,
// created handles, transfer counts and durations are left out.
func Render(result *Result) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", result.Name)

	for _, s := range result.Steps {
		if s.Kind == StepEdit {
			fmt.Fprintf(&buf, "step %d: edit\n", s.Index)
			for _, n := range s.Notes {
				fmt.Fprintf(&buf, "  %s\n", n)
			}
			continue
		}
		fmt.Fprintf(&buf, "step %d: %s %s %s\n", s.Index, s.Kind, s.OperationID, s.State)
		fmt.Fprintf(&buf, "  trace: %s\n", strings.Join(s.Trace, " "))
		fmt.Fprintf(&buf, "  converted: %d, skipped: %d\n", s.Converted, s.Skipped)
		if len(s.ErrorCodes) > 0 {
			fmt.Fprintf(&buf, "  errors: %s\n", strings.Join(s.ErrorCodes, " "))
		}
		for _, o := range s.Outcomes {
			fmt.Fprintf(&buf, "  %s %s\n", o.Action, o.Key)
		}
	}

	buf.WriteString("target:\n")
	for _, el := range result.Target {
		fmt.Fprintf(&buf, "  %s %q\n", el.Kind, el.Label)
	}
	fmt.Fprintf(&buf, "placeholders: %d\n", result.Placeholders)
	fmt.Fprintf(&buf, "transactions: %s\n", strings.Join(result.Transactions, ", "))
	return buf.Bytes()
}

// RunWithGolden runs a scenario, fails the test on any expectation or
// assertion failure, and compares the rendered trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("scenario %s: %v", scenario.Name, err)
	}
	for _, msg := range result.Errors {
		t.Errorf("scenario %s: %s", scenario.Name, msg)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, Render(result))
	return result
}
