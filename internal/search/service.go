// Package search coordinates fragment search across the federation:
// local-first, with best-effort parallel fan-out to healthy peer hubs
// when local results fall short.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/sagenet/sage-hub/internal/discovery"
	"github.com/sagenet/sage-hub/internal/model"
	"github.com/sagenet/sage-hub/internal/store"
	"go.uber.org/zap"
)

// Relevance scores by origin. Local results always outrank remote ones.
const (
	localRelevance  = 1.0
	remoteRelevance = 0.9
)

// LocalSearcher runs the hub's own fragment search. The entity service
// satisfies this interface.
type LocalSearcher interface {
	SearchFragments(ctx context.Context, query string, limit int) ([]model.Fragment, error)
}

// PeerSource supplies the healthy peers to fan out to and this hub's id.
// The discovery service satisfies this interface.
type PeerSource interface {
	HubID() string
	FederationTargets() []discovery.HubInfo
}

// ResultItem is one search hit tagged with its origin hub.
type ResultItem struct {
	Fragment       model.Fragment `json:"fragment"`
	SourceHubID    string         `json:"source_hub_id"`
	RelevanceScore float64        `json:"relevance_score"`
}

// Source records one hub's contribution to a federated response.
type Source struct {
	HubID string `json:"hub_id"`
	Count int    `json:"count"`
}

// Response is the federated search reply.
type Response struct {
	Results   []ResultItem `json:"results"`
	Sources   []Source     `json:"sources"`
	Federated bool         `json:"federated"`
	Total     int          `json:"total"`
}

// Service is the federated search coordinator.
type Service struct {
	local       LocalSearcher
	peers       PeerSource
	http        *http.Client
	peerTimeout time.Duration
	logger      *zap.Logger
}

// NewService creates a coordinator with the default 5s per-peer timeout.
func NewService(local LocalSearcher, peers PeerSource, logger *zap.Logger) *Service {
	return &Service{
		local:       local,
		peers:       peers,
		http:        &http.Client{Timeout: 10 * time.Second},
		peerTimeout: 5 * time.Second,
		logger:      logger,
	}
}

// SetPeerTimeout overrides the per-peer request timeout.
func (s *Service) SetPeerTimeout(d time.Duration) {
	if d > 0 {
		s.peerTimeout = d
	}
}

// Search runs a local search and, when federate is set and local results
// fall short of minResults (0 = limit), fans the query out to every
// healthy peer in parallel. Peer failures are warnings, never errors.
// Results are deduplicated by fragment UUID, sorted by relevance, and
// truncated to limit.
func (s *Service) Search(ctx context.Context, query string, limit int, federate bool, minResults int) (*Response, error) {
	limit = store.ClampLimit(limit, 20)
	localHubID := s.peers.HubID()

	localResults, err := s.local.SearchFragments(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	results := make([]ResultItem, 0, len(localResults))
	for _, fragment := range localResults {
		results = append(results, ResultItem{
			Fragment:       fragment,
			SourceHubID:    localHubID,
			RelevanceScore: localRelevance,
		})
	}
	localCount := len(results)
	sources := []Source{{HubID: localHubID, Count: localCount}}

	if minResults <= 0 {
		minResults = limit
	}
	if !federate || localCount >= minResults {
		return &Response{Results: results, Sources: sources, Federated: false, Total: len(results)}, nil
	}

	peers := s.peers.FederationTargets()
	if len(peers) == 0 {
		return &Response{Results: results, Sources: sources, Federated: false, Total: len(results)}, nil
	}

	remaining := minResults - localCount
	s.logger.Debug("federating search",
		zap.String("query", query),
		zap.Int("peers", len(peers)),
		zap.Int("remaining", remaining),
	)

	type peerResult struct {
		idx       int
		fragments []model.Fragment
		err       error
	}
	resultCh := make(chan peerResult, len(peers))

	for i, peer := range peers {
		go func(idx int, hub discovery.HubInfo) {
			fragments, err := s.queryPeer(ctx, hub, query, remaining)
			resultCh <- peerResult{idx: idx, fragments: fragments, err: err}
		}(i, peer)
	}

	byPeer := make([][]model.Fragment, len(peers))
	errByPeer := make([]error, len(peers))
	for range peers {
		pr := <-resultCh
		byPeer[pr.idx] = pr.fragments
		errByPeer[pr.idx] = pr.err
	}

	seen := make(map[string]bool, len(results))
	for _, r := range results {
		seen[r.Fragment.UUID] = true
	}

	for i, peer := range peers {
		if errByPeer[i] != nil {
			s.logger.Warn("peer search failed",
				zap.String("hub_id", peer.HubID),
				zap.Error(errByPeer[i]),
			)
			continue
		}
		for _, fragment := range byPeer[i] {
			if seen[fragment.UUID] {
				continue
			}
			seen[fragment.UUID] = true
			results = append(results, ResultItem{
				Fragment:       fragment,
				SourceHubID:    peer.HubID,
				RelevanceScore: remoteRelevance,
			})
		}
		sources = append(sources, Source{HubID: peer.HubID, Count: len(byPeer[i])})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	if len(results) > limit {
		results = results[:limit]
	}

	return &Response{Results: results, Sources: sources, Federated: true, Total: len(results)}, nil
}

// queryPeer GETs one peer's fragment-search endpoint under the per-peer
// timeout and parses the hub reply envelope.
func (s *Service) queryPeer(ctx context.Context, hub discovery.HubInfo, query string, limit int) ([]model.Fragment, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.peerTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/api/v1/fragments/search?q=%s&limit=%d",
		hub.PublicURL, url.QueryEscape(query), limit)

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u, nil)
	if err != nil {
		return nil, model.NetworkError(err.Error())
	}

	httpResp, err := s.http.Do(httpReq)
	if err != nil {
		return nil, model.NetworkError(fmt.Sprintf("querying hub %s: %v", hub.HubID, err))
	}
	defer httpResp.Body.Close() //nolint:errcheck

	if httpResp.StatusCode != http.StatusOK {
		return nil, model.FederationError(fmt.Sprintf("hub %s returned status %d", hub.HubID, httpResp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 4<<20))
	if err != nil {
		return nil, model.NetworkError(err.Error())
	}

	var resp struct {
		Success bool `json:"success"`
		Data    *struct {
			Items []model.Fragment `json:"items"`
		} `json:"data"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, model.NetworkError("parse peer response: " + err.Error())
	}
	if !resp.Success {
		return nil, model.FederationError(fmt.Sprintf("hub %s returned error in response", hub.HubID))
	}
	if resp.Data == nil {
		return nil, nil
	}
	return resp.Data.Items, nil
}
