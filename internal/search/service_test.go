package search_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sagenet/sage-hub/internal/discovery"
	"github.com/sagenet/sage-hub/internal/model"
	"github.com/sagenet/sage-hub/internal/search"
	"go.uber.org/zap"
)

var ctx = context.Background()

type staticLocal struct {
	fragments []model.Fragment
}

func (s staticLocal) SearchFragments(context.Context, string, int) ([]model.Fragment, error) {
	return s.fragments, nil
}

type staticPeers struct {
	hubID string
	peers []discovery.HubInfo
}

func (s staticPeers) HubID() string { return s.hubID }

func (s staticPeers) FederationTargets() []discovery.HubInfo { return s.peers }

func fragment(id string) model.Fragment {
	f := model.NewFragment(id, "content about x "+id, model.AgentAddress("hub:8080", "a1"))
	f.Signature = "sig"
	return *f
}

// peerServer serves the hub search envelope with the given fragments.
func peerServer(t *testing.T, fragments []model.Fragment) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/fragments/search" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"items": fragments},
		})
	}))
}

func TestSearch_localOnly(t *testing.T) {
	svc := search.NewService(
		staticLocal{fragments: []model.Fragment{fragment("f1"), fragment("f2")}},
		staticPeers{hubID: "h1"},
		zap.NewNop(),
	)

	resp, err := svc.Search(ctx, "x", 10, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Federated {
		t.Error("federate=false must not federate")
	}
	if resp.Total != 2 {
		t.Errorf("total: got %d, want 2", resp.Total)
	}
	for _, r := range resp.Results {
		if r.SourceHubID != "h1" || r.RelevanceScore != 1.0 {
			t.Errorf("local result mistagged: %+v", r)
		}
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Count != 2 {
		t.Errorf("sources: %+v", resp.Sources)
	}
}

func TestSearch_enoughLocalSkipsFederation(t *testing.T) {
	svc := search.NewService(
		staticLocal{fragments: []model.Fragment{fragment("f1"), fragment("f2"), fragment("f3")}},
		staticPeers{hubID: "h1", peers: []discovery.HubInfo{{HubID: "h2", PublicURL: "http://127.0.0.1:1"}}},
		zap.NewNop(),
	)

	resp, err := svc.Search(ctx, "x", 10, true, 3)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Federated {
		t.Error("min_results satisfied locally; must not federate")
	}
}

func TestSearch_noPeersSkipsFederation(t *testing.T) {
	svc := search.NewService(
		staticLocal{},
		staticPeers{hubID: "h1"},
		zap.NewNop(),
	)

	resp, err := svc.Search(ctx, "x", 10, true, 3)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Federated {
		t.Error("no peers; must not federate")
	}
}

func TestSearch_federatedFallback(t *testing.T) {
	remote := peerServer(t, []model.Fragment{fragment("r1"), fragment("r2")})
	defer remote.Close()

	svc := search.NewService(
		staticLocal{fragments: []model.Fragment{fragment("f1")}},
		staticPeers{hubID: "h1", peers: []discovery.HubInfo{
			{HubID: "h2", PublicURL: remote.URL, Status: discovery.StatusHealthy},
		}},
		zap.NewNop(),
	)

	resp, err := svc.Search(ctx, "x", 10, true, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Federated {
		t.Fatal("expected a federated response")
	}
	if resp.Total != 3 {
		t.Fatalf("total: got %d, want 3", resp.Total)
	}

	// Local result first with score 1.0, remote after with 0.9.
	if resp.Results[0].SourceHubID != "h1" || resp.Results[0].RelevanceScore != 1.0 {
		t.Errorf("first result should be local: %+v", resp.Results[0])
	}
	for _, r := range resp.Results[1:] {
		if r.SourceHubID != "h2" || r.RelevanceScore != 0.9 {
			t.Errorf("remote result mistagged: %+v", r)
		}
	}

	if len(resp.Sources) != 2 {
		t.Fatalf("sources: %+v", resp.Sources)
	}
	if resp.Sources[0].HubID != "h1" || resp.Sources[0].Count != 1 {
		t.Errorf("local source: %+v", resp.Sources[0])
	}
	if resp.Sources[1].HubID != "h2" || resp.Sources[1].Count != 2 {
		t.Errorf("remote source: %+v", resp.Sources[1])
	}
}

func TestSearch_dedupByUUID(t *testing.T) {
	// Remote returns a fragment the local hub already has, plus a new one.
	remote := peerServer(t, []model.Fragment{fragment("f1"), fragment("r1")})
	defer remote.Close()

	svc := search.NewService(
		staticLocal{fragments: []model.Fragment{fragment("f1")}},
		staticPeers{hubID: "h1", peers: []discovery.HubInfo{
			{HubID: "h2", PublicURL: remote.URL},
		}},
		zap.NewNop(),
	)

	resp, err := svc.Search(ctx, "x", 10, true, 5)
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]int)
	for _, r := range resp.Results {
		seen[r.Fragment.UUID]++
	}
	if seen["f1"] != 1 {
		t.Errorf("duplicate fragment f1 appeared %d times", seen["f1"])
	}
	if len(resp.Results) != 2 {
		t.Errorf("results: got %d, want 2", len(resp.Results))
	}
}

func TestSearch_failedPeerIsSkipped(t *testing.T) {
	good := peerServer(t, []model.Fragment{fragment("r1")})
	defer good.Close()

	svc := search.NewService(
		staticLocal{},
		staticPeers{hubID: "h1", peers: []discovery.HubInfo{
			{HubID: "dead", PublicURL: "http://127.0.0.1:1"},
			{HubID: "good", PublicURL: good.URL},
		}},
		zap.NewNop(),
	)

	resp, err := svc.Search(ctx, "x", 10, true, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Federated {
		t.Fatal("expected a federated response")
	}
	if resp.Total != 1 {
		t.Errorf("total: got %d, want 1 from the healthy peer", resp.Total)
	}
	// The dead peer contributes no source entry.
	for _, src := range resp.Sources {
		if src.HubID == "dead" {
			t.Error("failed peer must not appear in sources")
		}
	}
}

func TestSearch_malformedPeerResponse(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not json"))
	}))
	defer bad.Close()

	svc := search.NewService(
		staticLocal{},
		staticPeers{hubID: "h1", peers: []discovery.HubInfo{
			{HubID: "bad", PublicURL: bad.URL},
		}},
		zap.NewNop(),
	)

	resp, err := svc.Search(ctx, "x", 10, true, 3)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 0 {
		t.Errorf("malformed peer must contribute nothing, got %d", resp.Total)
	}
}

func TestSearch_truncatesToLimit(t *testing.T) {
	remote := peerServer(t, []model.Fragment{fragment("r1"), fragment("r2"), fragment("r3")})
	defer remote.Close()

	svc := search.NewService(
		staticLocal{fragments: []model.Fragment{fragment("f1"), fragment("f2")}},
		staticPeers{hubID: "h1", peers: []discovery.HubInfo{
			{HubID: "h2", PublicURL: remote.URL},
		}},
		zap.NewNop(),
	)

	resp, err := svc.Search(ctx, "x", 3, true, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("results: got %d, want 3", len(resp.Results))
	}
	// Stable sort keeps locals ahead.
	if resp.Results[0].RelevanceScore != 1.0 || resp.Results[1].RelevanceScore != 1.0 {
		t.Error("local results must sort ahead of remote")
	}
}
