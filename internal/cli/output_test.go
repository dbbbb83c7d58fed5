package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objsync/internal/engine"
	"github.com/roach88/objsync/internal/report"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Success(map[string]string{"result": "success"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Error("CONFIG", "invalid config", map[string]string{"file": "objsync.cue"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONFIG", resp.Error.Code)
	assert.Equal(t, "invalid config", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, f.Error("CONFIG", "invalid config", "line 3"))
	assert.Equal(t, "Error [CONFIG]: invalid config\nDetails: line 3\n", buf.String())
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag}

	f.VerboseLog("hidden %d", 1)
	assert.Empty(t, diag.String())

	f.Verbose = true
	f.VerboseLog("shown %d", 2)
	assert.Empty(t, out.String())
	assert.Equal(t, "shown 2\n", diag.String())
}

func TestOperationOutputText(t *testing.T) {
	res := &engine.Result{
		OperationID: "op-0001",
		Kind:        engine.KindSend,
		Stream:      "main",
		State:       engine.StateDone,
		Trace:       []engine.State{engine.StateCollecting, engine.StateDone},
		RootID:      "abc",
		Converted:   2,
		Skipped:     1,
		Transferred: 5,
		Percent:     100,
		Logs:        []string{"sent 5 objects as abc"},
		Errors: []*report.Error{
			report.Skipped("Annotation(n1)", "Annotation"),
		},
	}

	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}
	require.NoError(t, f.Success(newOperationOutput(res, []string{"sqlite:objects.db"})))

	want := "send op-0001: done (collecting -> done)\n" +
		"  stream:      main\n" +
		"  root:        abc\n" +
		"  transports:  sqlite:objects.db\n" +
		"  converted:   2\n" +
		"  skipped:     1\n" +
		"  transferred: 5\n" +
		"  progress:    100%\n" +
		"  sent 5 objects as abc\n" +
		"  [SKIPPED_TYPE] Annotation(n1): Skipping not supported type: Annotation\n"
	assert.Equal(t, want, buf.String())
}

func TestFinishExitCodes(t *testing.T) {
	tests := []struct {
		state engine.State
		errs  []*report.Error
		code  int
	}{
		{engine.StateDone, nil, ExitSuccess},
		{engine.StateCancelled, nil, ExitFailure},
		{engine.StateFailed, []*report.Error{report.FatalSetup("no elements selected")}, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			f := &OutputFormatter{Format: "json", Writer: &bytes.Buffer{}}
			err := finish(f, &engine.Result{Kind: engine.KindSend, State: tt.state, Errors: tt.errs}, nil)
			assert.Equal(t, tt.code, GetExitCode(err))
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "inner", errors.New("cause")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "outer: inner: cause", wrapped.Error())
}
