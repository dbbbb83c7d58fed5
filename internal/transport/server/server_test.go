package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objsync/internal/transport/memory"
	"github.com/roach88/objsync/internal/transport/transporttest"
)

func newTestServer(t *testing.T) (*memory.Transport, *Client) {
	t.Helper()
	backing := memory.New("backing")
	srv := httptest.NewServer(NewHandler(backing, nil))
	t.Cleanup(srv.Close)
	return backing, NewClient(srv.URL+"/", srv.Client())
}

func TestClientContract(t *testing.T) {
	_, c := newTestServer(t)
	transporttest.Run(t, c)
}

func TestPutRejectsMismatchedID(t *testing.T) {
	backing, c := newTestServer(t)
	items := transporttest.Objects(t, "mismatch", 2)

	err := c.Put(context.Background(), items[0].ID, items[1].Data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Zero(t, backing.Len())
}

func TestPutRejectsGarbage(t *testing.T) {
	_, c := newTestServer(t)
	err := c.Put(context.Background(), "abc", []byte("not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestBatchWritesReachBackingTransport(t *testing.T) {
	backing, c := newTestServer(t)
	items := transporttest.Objects(t, "fanout", 4)
	require.NoError(t, c.PutBatch(context.Background(), items))
	assert.Equal(t, 4, backing.Len())
}

func TestMetricsEndpoint(t *testing.T) {
	_, c := newTestServer(t)
	_, _ = c.Has(context.Background(), "missing")

	resp, err := http.Get(c.base + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "objsync_server_requests_total")
}
