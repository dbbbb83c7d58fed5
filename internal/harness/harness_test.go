package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)
		t.Run(scenario.Name, func(t *testing.T) {
			result := RunWithGolden(t, scenario)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRunIsDeterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/source_edit.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)
	assert.Equal(t, string(Render(first)), string(Render(second)))
}

func TestRunReportsFailedExpectations(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_counts
description: "Expectations that do not hold fail the result"
source:
  - kind: Level
    handle: lvl-1
    name: Level 1
steps:
  - send: {}
    expect: {converted: 2}
  - receive: {}
    expect:
      actions: {updated: 1}
assertions:
  - type: target_count
    count: 4
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{
		"step 1 (send): expected 2 converted, got 1",
		"step 2 (receive): expected 1 action updated, got 0",
		"assertion 1 (target_count): expected 4 target elements, got 1",
	}, result.Errors)
}

func TestRunSendSelection(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: walls_only
description: "A category selection sends only matching elements"
source:
  - kind: Level
    handle: lvl-1
    name: Level 1
  - kind: Wall
    handle: wall-1
    name: Basic Wall
    curve: line
    start: {x: 0, y: 0, z: 0}
    end: {x: 1, y: 0, z: 0}
    height: 2
steps:
  - send: {categories: [Walls]}
  - receive: {}
assertions:
  - type: target_count
    count: 1
  - type: target_contains
    kind: Wall
    label: Basic Wall
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
	require.Len(t, result.Steps, 2)
	assert.Equal(t, 1, result.Steps[0].Converted)
	assert.Equal(t, []StepOutcome{{Action: "created", Key: "wall-1"}}, result.Steps[1].Outcomes)
}

func TestRunFailedSendLeavesNothingToReceive(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: nothing_sent
description: "A send that selects nothing fails and the receive has no commit"
source:
  - kind: Level
    handle: lvl-1
    name: Level 1
steps:
  - send: {elements: [missing]}
    expect:
      state: failed
      errors: {FATAL_SETUP_FAILURE: 1}
  - receive: {}
    expect:
      state: failed
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
	assert.Empty(t, result.Target)
	assert.Empty(t, result.Transactions)
}
