package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objsync/internal/host/memdoc"
)

const sourceDocument = `elements:
  - kind: Level
    handle: lvl-1
    name: Level 1
    elevation: 0
  - kind: Wall
    handle: wall-1
    name: Basic Wall
    curve: line
    start: {x: 0, y: 0, z: 0}
    end: {x: 5, y: 0, z: 0}
    height: 3
    level: Level 1
    parameters:
      Mark: W-1
  - kind: Level
    handle: lvl-2
    name: Level 2
    elevation: 3
`

// workspace is one side of a sync: its own document and state database,
// sharing the object database with its peer.
type workspace struct {
	dir    string
	config string
	doc    string
}

func newWorkspace(t *testing.T, dir, name, objects, document string) workspace {
	t.Helper()
	ws := workspace{
		dir:    dir,
		config: filepath.Join(dir, name+".cue"),
		doc:    filepath.Join(dir, name+".yaml"),
	}
	cfg := fmt.Sprintf(`store: %q
document: %q
transports: [{name: "shared", kind: "sqlite", path: %q}, {name: "scratch", kind: "memory"}]
`, filepath.Join(dir, name+".db"), ws.doc, objects)
	require.NoError(t, os.WriteFile(ws.config, []byte(cfg), 0o644))
	if document != "" {
		require.NoError(t, os.WriteFile(ws.doc, []byte(document), 0o644))
	}
	return ws
}

type response[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *CLIError `json:"error"`
}

// run executes the CLI with --format json and decodes the response.
func run[T any](t *testing.T, ws workspace, args ...string) (response[T], error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", ws.config, "--format", "json"}, args...))
	err := cmd.Execute()

	var resp response[T]
	if out.Len() > 0 {
		require.NoError(t, json.Unmarshal(out.Bytes(), &resp), out.String())
	}
	return resp, err
}

func TestSendReceiveThroughCLI(t *testing.T) {
	dir := t.TempDir()
	objects := filepath.Join(dir, "objects.db")
	src := newWorkspace(t, dir, "source", objects, sourceDocument)
	dst := newWorkspace(t, dir, "target", objects, "")

	sent, err := run[OperationOutput](t, src, "send", "--transport", "shared")
	require.NoError(t, err)
	assert.Equal(t, "ok", sent.Status)
	assert.Equal(t, "done", sent.Data.State)
	assert.Equal(t, 3, sent.Data.Converted)
	assert.Equal(t, []string{"collecting", "converting", "transferring", "committing", "done"}, sent.Data.Trace)
	require.NotEmpty(t, sent.Data.RootID)

	got, err := run[OperationOutput](t, dst, "receive", "--from", "shared", "--root", sent.Data.RootID)
	require.NoError(t, err)
	assert.Equal(t, "done", got.Data.State)
	assert.Equal(t, 3, got.Data.Converted)
	require.Len(t, got.Data.Outcomes, 3)
	for _, o := range got.Data.Outcomes {
		assert.Equal(t, "created", o.Action, o.Key)
	}

	doc, err := memdoc.LoadFile(dst.doc)
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Len())

	// The stream now remembers the commit, so --root is optional.
	again, err := run[OperationOutput](t, dst, "receive", "--from", "shared")
	require.NoError(t, err)
	for _, o := range again.Data.Outcomes {
		assert.Equal(t, "updated", o.Action, o.Key)
	}
	doc, err = memdoc.LoadFile(dst.doc)
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Len())

	hist, err := run[HistoryResult](t, dst, "history")
	require.NoError(t, err)
	require.Len(t, hist.Data.Operations, 2)
	assert.Equal(t, "receive", hist.Data.Operations[0].Kind)
	assert.Equal(t, int64(1), hist.Data.Operations[0].Seq)
	assert.Equal(t, int64(2), hist.Data.Operations[1].Seq)

	flat, err := run[FlattenResult](t, src, "flatten", sent.Data.RootID, "--from", "shared")
	require.NoError(t, err)
	assert.Equal(t, sent.Data.RootID, flat.Data.Nodes[0].ID)
	assert.Equal(t, "Commit", flat.Data.Nodes[0].Kind)
	apps := map[string]bool{}
	for _, n := range flat.Data.Nodes {
		apps[n.ApplicationID] = true
	}
	assert.True(t, apps["lvl-1"])
	assert.True(t, apps["wall-1"])
	assert.True(t, apps["lvl-2"])
}

func TestSendSelectionFlags(t *testing.T) {
	dir := t.TempDir()
	ws := newWorkspace(t, dir, "source", filepath.Join(dir, "objects.db"), sourceDocument)

	sent, err := run[OperationOutput](t, ws, "send", "-t", "shared", "--category", "walls")
	require.NoError(t, err)
	assert.Equal(t, 1, sent.Data.Converted)

	sent, err = run[OperationOutput](t, ws, "send", "-t", "shared", "--param", "Mark", "--op", "contains", "--value", "w-")
	require.NoError(t, err)
	assert.Equal(t, 1, sent.Data.Converted)

	sent, err = run[OperationOutput](t, ws, "send", "-t", "shared", "--element", "lvl-2")
	require.NoError(t, err)
	assert.Equal(t, 1, sent.Data.Converted)

	_, err = run[OperationOutput](t, ws, "send", "--element", "lvl-2", "--category", "Levels")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = run[OperationOutput](t, ws, "send", "--param", "Mark", "--op", "starts with")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSendFailureExitCode(t *testing.T) {
	dir := t.TempDir()
	ws := newWorkspace(t, dir, "empty", filepath.Join(dir, "objects.db"), "elements: []\n")

	resp, err := run[OperationOutput](t, ws, "send")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "failed", resp.Data.State)
	require.NotEmpty(t, resp.Data.Errors)
	assert.Equal(t, "FATAL_SETUP_FAILURE", resp.Data.Errors[0].Code)
}

func TestUnknownTransport(t *testing.T) {
	dir := t.TempDir()
	ws := newWorkspace(t, dir, "source", filepath.Join(dir, "objects.db"), sourceDocument)

	_, err := run[OperationOutput](t, ws, "send", "--transport", "nowhere")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, errUnknownTransport)
}

func TestInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.cue")
	require.NoError(t, os.WriteFile(path, []byte(`transports: [{name: "x", kind: "ftp"}]`), 0o644))

	_, err := run[OperationOutput](t, workspace{config: path}, "history")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestServeExposesTransport(t *testing.T) {
	dir := t.TempDir()
	ws := newWorkspace(t, dir, "source", filepath.Join(dir, "objects.db"), sourceDocument)

	ready := make(chan string, 1)
	opts := &ServeOptions{
		RootOptions: &RootOptions{Format: "text", Config: ws.config},
		Transport:   "shared",
		Listen:      "127.0.0.1:0",
		ready:       ready,
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := NewServeCommand(opts.RootOptions)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- runServe(opts, cmd) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/objects/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
