package harness

import (
	"fmt"
	"sort"
	"strings"
)

// checkExpect compares one step against its expect clause and returns a
// message per mismatch.
func checkExpect(sr StepResult, e *Expect) []string {
	var msgs []string
	if e.State != "" && e.State != sr.State {
		msgs = append(msgs, fmt.Sprintf("expected state %s, got %s", e.State, sr.State))
	}
	if e.Converted != nil && *e.Converted != sr.Converted {
		msgs = append(msgs, fmt.Sprintf("expected %d converted, got %d", *e.Converted, sr.Converted))
	}
	if e.Skipped != nil && *e.Skipped != sr.Skipped {
		msgs = append(msgs, fmt.Sprintf("expected %d skipped, got %d", *e.Skipped, sr.Skipped))
	}
	msgs = append(msgs, compareCounts("action", e.Actions, sr.countActions())...)
	msgs = append(msgs, compareCounts("error", e.Errors, sr.countErrors())...)
	return msgs
}

// compareCounts checks each expected count. Names absent from want are
// not checked.
func compareCounts(what string, want, got map[string]int) []string {
	names := make([]string, 0, len(want))
	for name := range want {
		names = append(names, name)
	}
	sort.Strings(names)

	var msgs []string
	for _, name := range names {
		if got[name] != want[name] {
			msgs = append(msgs, fmt.Sprintf("expected %d %s %s, got %d", want[name], what, name, got[name]))
		}
	}
	return msgs
}

// EvaluateAssertions checks the final target state and returns a message
// per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var msgs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			msgs = append(msgs, fmt.Sprintf("assertion %d (%s): %v", i+1, a.Type, err))
		}
	}
	return msgs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTargetCount:
		if len(result.Target) != a.Count {
			return fmt.Errorf("expected %d target elements, got %d", a.Count, len(result.Target))
		}
	case AssertTargetContains:
		for _, el := range result.Target {
			if el.Kind == a.Kind && (a.Label == "" || el.Label == a.Label) {
				return nil
			}
		}
		if a.Label == "" {
			return fmt.Errorf("no %s in target", a.Kind)
		}
		return fmt.Errorf("no %s %q in target", a.Kind, a.Label)
	case AssertPlaceholders:
		if result.Placeholders != a.Count {
			return fmt.Errorf("expected %d placeholders, got %d", a.Count, result.Placeholders)
		}
	case AssertTransactions:
		if !equalStrings(result.Transactions, a.Names) {
			return fmt.Errorf("expected transactions [%s], got [%s]",
				strings.Join(a.Names, ", "), strings.Join(result.Transactions, ", "))
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
