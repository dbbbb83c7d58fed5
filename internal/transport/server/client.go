package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/roach88/objsync/internal/transport"
)

// Client is a transport that talks to a remote object server.
type Client struct {
	base string
	http *http.Client
}

var (
	_ transport.Transport   = (*Client)(nil)
	_ transport.BatchPutter = (*Client)(nil)
	_ transport.BatchGetter = (*Client)(nil)
)

// NewClient creates a client for the server at baseURL. A nil httpClient
// uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) Name() string { return "server:" + c.base }

func (c *Client) objectURL(id string) string {
	return c.base + "/objects/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, u string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("server transport: %s %s: %s: %s",
		resp.Request.Method, resp.Request.URL.Path, resp.Status, strings.TrimSpace(string(msg)))
}

func (c *Client) Put(ctx context.Context, id string, data []byte) error {
	resp, err := c.do(ctx, http.MethodPut, c.objectURL(id), data)
	if err != nil {
		return fmt.Errorf("server transport: put %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return statusError(resp)
	}
	return nil
}

func (c *Client) PutBatch(ctx context.Context, items []transport.Item) error {
	body := objectsBody{Objects: make(map[string]json.RawMessage, len(items))}
	for _, it := range items {
		body.Objects[it.ID] = it.Data
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return fmt.Errorf("server transport: encode batch: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, c.base+"/objects", buf.Bytes())
	if err != nil {
		return fmt.Errorf("server transport: put batch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return statusError(resp)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, c.objectURL(id), nil)
	if err != nil {
		return nil, fmt.Errorf("server transport: get %s: %w", id, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("server transport: %s: %w", id, transport.ErrNotFound)
	case resp.StatusCode/100 != 2:
		return nil, statusError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("server transport: read %s: %w", id, err)
	}
	return data, nil
}

func (c *Client) GetBatch(ctx context.Context, ids []string) (map[string][]byte, error) {
	data, err := json.Marshal(batchGetRequest{IDs: ids})
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, c.base+"/objects/batch", data)
	if err != nil {
		return nil, fmt.Errorf("server transport: get batch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, statusError(resp)
	}
	var body objectsBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("server transport: decode batch: %w", err)
	}
	out := make(map[string][]byte, len(body.Objects))
	for id, raw := range body.Objects {
		out[id] = []byte(raw)
	}
	return out, nil
}

func (c *Client) Has(ctx context.Context, id string) (bool, error) {
	resp, err := c.do(ctx, http.MethodHead, c.objectURL(id), nil)
	if err != nil {
		return false, fmt.Errorf("server transport: has %s: %w", id, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode/100 != 2:
		return false, statusError(resp)
	}
	return true, nil
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
