package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sagenet/sage-hub/internal/model"
)

// envelope is the hub API response wrapper the primary replies with.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data"`
	Error   string `json:"error"`
}

// Client is the secondary hub's connection to its primary: it pushes
// registrations and heartbeats and caches the returned hub directory.
// The cache is guarded by a single RW lock; Register and Refresh are the
// only writers.
type Client struct {
	primaryHubURL string
	hubID         string
	publicURL     string
	capabilities  []string
	version       string
	http          *http.Client

	mu               sync.RWMutex
	cachedHubList    *HubList
	lastRegistration time.Time
}

// NewClient creates a discovery client targeting the primary hub.
func NewClient(primaryHubURL, hubID, publicURL string, capabilities []string, version string) *Client {
	return &Client{
		primaryHubURL: primaryHubURL,
		hubID:         hubID,
		publicURL:     publicURL,
		capabilities:  capabilities,
		version:       version,
		http:          &http.Client{Timeout: 30 * time.Second},
	}
}

// HubID returns this hub's identifier.
func (c *Client) HubID() string { return c.hubID }

// Register announces this hub to the primary and stores the returned
// directory. publicKey may be empty.
func (c *Client) Register(ctx context.Context, publicKey string) (*HubList, error) {
	req := RegisterHubRequest{
		HubID:        c.hubID,
		PublicURL:    c.publicURL,
		Capabilities: c.capabilities,
		Version:      c.version,
		PublicKey:    publicKey,
	}

	var resp envelope[RegisterHubResponse]
	if err := c.post(ctx, "/api/v1/discovery/register", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data == nil {
		return nil, model.FederationError("registration failed: " + resp.Error)
	}
	if !resp.Data.Registered {
		return nil, model.FederationError("registration rejected")
	}
	if resp.Data.HubList == nil {
		return nil, model.FederationError("no hub list in registration response")
	}

	c.mu.Lock()
	c.cachedHubList = resp.Data.HubList
	c.lastRegistration = time.Now().UTC()
	c.mu.Unlock()

	return resp.Data.HubList, nil
}

// Heartbeat pushes current stats to the primary.
func (c *Client) Heartbeat(ctx context.Context, stats HubStats) error {
	req := HeartbeatRequest{HubID: c.hubID, Status: string(StatusHealthy), Stats: stats}

	var resp envelope[HeartbeatResponse]
	if err := c.post(ctx, "/api/v1/discovery/heartbeat", req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return model.FederationError("heartbeat failed: " + resp.Error)
	}
	return nil
}

// RefreshHubList pulls the directory from the primary and caches it.
func (c *Client) RefreshHubList(ctx context.Context) (*HubList, error) {
	url := c.primaryHubURL + "/api/v1/discovery/hubs"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, model.NetworkError(err.Error())
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, model.NetworkError(err.Error())
	}
	defer httpResp.Body.Close() //nolint:errcheck

	if httpResp.StatusCode != http.StatusOK {
		return nil, model.FederationError(fmt.Sprintf("hub list request returned status %d", httpResp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, model.NetworkError(err.Error())
	}

	var resp envelope[HubList]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, model.NetworkError("decode hub list response: " + err.Error())
	}
	if !resp.Success || resp.Data == nil {
		return nil, model.FederationError("hub list request failed: " + resp.Error)
	}

	c.mu.Lock()
	c.cachedHubList = resp.Data
	c.mu.Unlock()

	return resp.Data, nil
}

// CachedHubList returns the last directory snapshot, or nil.
func (c *Client) CachedHubList() *HubList {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cachedHubList
}

// OtherHubs returns the healthy directory entries other than this hub.
func (c *Client) OtherHubs() []HubInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cachedHubList == nil {
		return nil
	}
	var hubs []HubInfo
	for _, hub := range c.cachedHubList.Hubs {
		if hub.HubID != c.hubID && hub.Status == StatusHealthy {
			hubs = append(hubs, hub)
		}
	}
	return hubs
}

// NeedsRegistration reports whether this hub has never registered or the
// last registration is older than the interval.
func (c *Client) NeedsRegistration(interval time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastRegistration.IsZero() {
		return true
	}
	return time.Since(c.lastRegistration) > interval
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return model.SerializationError(err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.primaryHubURL+path, bytes.NewReader(body))
	if err != nil {
		return model.NetworkError(err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return model.NetworkError(err.Error())
	}
	defer httpResp.Body.Close() //nolint:errcheck

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return model.FederationError(fmt.Sprintf("%s returned status %d", path, httpResp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return model.NetworkError(err.Error())
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return model.NetworkError("decode response: " + err.Error())
	}
	return nil
}
