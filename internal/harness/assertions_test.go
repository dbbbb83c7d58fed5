package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intp(n int) *int { return &n }

func TestCheckExpect(t *testing.T) {
	sr := StepResult{
		State:     "done",
		Converted: 2,
		Skipped:   1,
		Outcomes: []StepOutcome{
			{Action: "created", Key: "a"},
			{Action: "created", Key: "b"},
			{Action: "deleted", Key: "c"},
		},
		ErrorCodes: []string{"SKIPPED_TYPE"},
	}

	assert.Empty(t, checkExpect(sr, &Expect{
		State:     "done",
		Converted: intp(2),
		Skipped:   intp(1),
		Actions:   map[string]int{"created": 2, "deleted": 1, "updated": 0},
		Errors:    map[string]int{"SKIPPED_TYPE": 1},
	}))
	assert.Empty(t, checkExpect(sr, &Expect{}))

	assert.Equal(t, []string{
		"expected state failed, got done",
		"expected 0 skipped, got 1",
		"expected 1 action created, got 2",
		"expected 0 error SKIPPED_TYPE, got 1",
	}, checkExpect(sr, &Expect{
		State:   "failed",
		Skipped: intp(0),
		Actions: map[string]int{"created": 1},
		Errors:  map[string]int{"SKIPPED_TYPE": 0},
	}))
}

func TestEvaluateAssertions(t *testing.T) {
	result := &Result{
		Target: []TargetElement{
			{Kind: "Level", Label: "Level 2"},
			{Kind: "Wall", Label: "Basic Wall"},
		},
		Placeholders: 2,
		Transactions: []string{"Baking", "Cleaning up old elements", "Baking"},
	}

	passing := []Assertion{
		{Type: AssertTargetCount, Count: 2},
		{Type: AssertTargetContains, Kind: "Wall"},
		{Type: AssertTargetContains, Kind: "Level", Label: "Level 2"},
		{Type: AssertPlaceholders, Count: 2},
		{Type: AssertTransactions, Names: []string{"Baking", "Cleaning up old elements", "Baking"}},
	}
	assert.Empty(t, EvaluateAssertions(result, passing))

	failing := []Assertion{
		{Type: AssertTargetCount, Count: 3},
		{Type: AssertTargetContains, Kind: "Floor"},
		{Type: AssertTargetContains, Kind: "Level", Label: "Level 1"},
		{Type: AssertPlaceholders, Count: 0},
		{Type: AssertTransactions, Names: []string{"Baking"}},
	}
	assert.Equal(t, []string{
		"assertion 1 (target_count): expected 3 target elements, got 2",
		`assertion 2 (target_contains): no Floor in target`,
		`assertion 3 (target_contains): no Level "Level 1" in target`,
		"assertion 4 (placeholders): expected 0 placeholders, got 2",
		"assertion 5 (transactions): expected transactions [Baking], got [Baking, Cleaning up old elements, Baking]",
	}, EvaluateAssertions(result, failing))
}

func TestResultAddError(t *testing.T) {
	r := NewResult("x")
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}

func TestRender(t *testing.T) {
	result := &Result{
		Name: "render",
		Steps: []StepResult{
			{
				Index: 1, Kind: StepReceive, OperationID: "dst-0001", State: "done",
				Trace:      []string{"collecting", "done"},
				Converted:  1,
				ErrorCodes: []string{"SKIPPED_TYPE"},
				Outcomes:   []StepOutcome{{Action: "created", Key: "lvl-1"}},
			},
			{Index: 2, Kind: StepEdit, Notes: []string{"delete lvl-1"}},
		},
		Target:       []TargetElement{{Kind: "Level", Label: "Level 1"}},
		Placeholders: 1,
		Transactions: []string{"Baking"},
	}

	want := "scenario: render\n" +
		"step 1: receive dst-0001 done\n" +
		"  trace: collecting done\n" +
		"  converted: 1, skipped: 0\n" +
		"  errors: SKIPPED_TYPE\n" +
		"  created lvl-1\n" +
		"step 2: edit\n" +
		"  delete lvl-1\n" +
		"target:\n" +
		"  Level \"Level 1\"\n" +
		"placeholders: 1\n" +
		"transactions: Baking\n"
	assert.Equal(t, want, string(Render(result)))
}
