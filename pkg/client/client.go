// Package client is the Go SDK for talking to a knowledge hub: creating
// signed entities, searching fragments, and querying the trust graph over
// the hub's HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is the hub SDK entry point.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the request timeout on the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a Client targeting the hub at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the hub's uniform response wrapper.
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	HubStatus json.RawMessage `json:"hub_status"`
}

// APIError is a non-success reply from the hub.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hub returned status %d: %s", e.StatusCode, e.Message)
}

// do sends one request and decodes the enveloped reply into out (which
// may be nil to discard the data).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Error}
	}
	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// CreateAgent POSTs a signed agent create request. The request must carry
// the signature over the canonical agent payload.
func (c *Client) CreateAgent(ctx context.Context, req, out any) error {
	return c.do(ctx, http.MethodPost, "/api/v1/agents", req, out)
}

// GetAgent fetches one agent by UUID into out.
func (c *Client) GetAgent(ctx context.Context, uuid string, out any) error {
	return c.do(ctx, http.MethodGet, "/api/v1/agents/"+url.PathEscape(uuid), nil, out)
}

// DeleteAgent removes an agent. Idempotent.
func (c *Client) DeleteAgent(ctx context.Context, uuid string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/agents/"+url.PathEscape(uuid), nil, nil)
}

// CreateFragment POSTs a signed fragment create request.
func (c *Client) CreateFragment(ctx context.Context, req, out any) error {
	return c.do(ctx, http.MethodPost, "/api/v1/fragments", req, out)
}

// SearchFragments runs the hub's local substring search.
func (c *Client) SearchFragments(ctx context.Context, query string, limit int, out any) error {
	path := "/api/v1/fragments/search?q=" + url.QueryEscape(query) + "&limit=" + strconv.Itoa(limit)
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// FederatedSearch runs a search that may fan out to peer hubs.
func (c *Client) FederatedSearch(ctx context.Context, query string, limit, minResults int, out any) error {
	q := url.Values{}
	q.Set("q", query)
	q.Set("federate", "true")
	q.Set("limit", strconv.Itoa(limit))
	if minResults > 0 {
		q.Set("min_results", strconv.Itoa(minResults))
	}
	return c.do(ctx, http.MethodGet, "/api/v1/search?"+q.Encode(), nil, out)
}

// TrustPath fetches the best trust path between two addresses.
func (c *Client) TrustPath(ctx context.Context, from, to string, out any) error {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	return c.do(ctx, http.MethodGet, "/api/v1/trust/path?"+q.Encode(), nil, out)
}

// TrustScore fetches an entity's trust score from a viewer's perspective.
func (c *Client) TrustScore(ctx context.Context, entity, viewer string, out any) error {
	q := url.Values{}
	q.Set("entity", entity)
	q.Set("viewer", viewer)
	return c.do(ctx, http.MethodGet, "/api/v1/trust/score?"+q.Encode(), nil, out)
}

// ListHubs fetches the hub directory snapshot.
func (c *Client) ListHubs(ctx context.Context, out any) error {
	return c.do(ctx, http.MethodGet, "/api/v1/discovery/hubs", nil, out)
}
