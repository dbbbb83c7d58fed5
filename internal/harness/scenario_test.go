package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/source_edit.yaml")
	require.NoError(t, err)

	assert.Equal(t, "source_edit", s.Name)
	assert.Len(t, s.Source, 3)
	require.Len(t, s.Steps, 5)
	assert.Equal(t, StepSend, s.Steps[0].Kind())
	assert.Equal(t, StepReceive, s.Steps[1].Kind())
	assert.Equal(t, StepEdit, s.Steps[2].Kind())
	assert.Equal(t, []string{"lvl-1"}, s.Steps[2].Edit.Delete)
	assert.Len(t, s.Steps[2].Edit.Upsert, 2)
	require.NotNil(t, s.Steps[4].Expect)
	assert.Equal(t, 1, s.Steps[4].Expect.Actions["recreated"])
	assert.Len(t, s.Assertions, 4)
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\nsteps: [{send: {}}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: n\nsteps: [{send: {}}]\n",
			want: "description is required",
		},
		{
			name: "no steps",
			yaml: "name: n\ndescription: d\n",
			want: "steps list is required",
		},
		{
			name: "step with two actions",
			yaml: "name: n\ndescription: d\nsteps: [{send: {}, receive: {}}]\n",
			want: "exactly one of send, receive, edit",
		},
		{
			name: "empty step",
			yaml: "name: n\ndescription: d\nsteps: [{expect: {state: done}}]\n",
			want: "exactly one of send, receive, edit",
		},
		{
			name: "receive first",
			yaml: "name: n\ndescription: d\nsteps: [{receive: {}}]\n",
			want: "receive before any send",
		},
		{
			name: "empty edit",
			yaml: "name: n\ndescription: d\nsteps: [{send: {}}, {edit: {}}]\n",
			want: "edit changes nothing",
		},
		{
			name: "edit with expect",
			yaml: "name: n\ndescription: d\nsteps: [{send: {}}, {edit: {delete: [a]}, expect: {state: done}}]\n",
			want: "edit steps take no expect",
		},
		{
			name: "unknown field",
			yaml: "name: n\ndescription: d\nsteps: [{send: {}}]\nflow_token: x\n",
			want: "field flow_token not found",
		},
		{
			name: "unknown assertion",
			yaml: "name: n\ndescription: d\nsteps: [{send: {}}]\nassertions: [{type: trace_order}]\n",
			want: `unknown assertion type "trace_order"`,
		},
		{
			name: "assertion without type",
			yaml: "name: n\ndescription: d\nsteps: [{send: {}}]\nassertions: [{count: 1}]\n",
			want: "type is required",
		},
		{
			name: "negative count",
			yaml: "name: n\ndescription: d\nsteps: [{send: {}}]\nassertions: [{type: target_count, count: -1}]\n",
			want: "count must be non-negative",
		},
		{
			name: "contains without kind",
			yaml: "name: n\ndescription: d\nsteps: [{send: {}}]\nassertions: [{type: target_contains, label: x}]\n",
			want: "kind is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
