package handler_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sagenet/sage-hub/internal/api/handler"
	"github.com/sagenet/sage-hub/internal/discovery"
	"github.com/sagenet/sage-hub/internal/entity"
	"github.com/sagenet/sage-hub/internal/identity"
	"github.com/sagenet/sage-hub/internal/model"
	"github.com/sagenet/sage-hub/internal/resources"
	"github.com/sagenet/sage-hub/internal/search"
	"github.com/sagenet/sage-hub/internal/store"
	"github.com/sagenet/sage-hub/internal/trust"
	"go.uber.org/zap"
)

type testHub struct {
	router  *gin.Engine
	svc     *entity.Service
	monitor *resources.Monitor
	peers   *stubPeers
}

type stubPeers struct {
	hubID string
	hubs  []discovery.HubInfo
}

func (s *stubPeers) HubID() string { return s.hubID }

func (s *stubPeers) FederationTargets() []discovery.HubInfo { return s.hubs }

func newTestHub(t *testing.T) *testHub {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	st := store.NewEntityStore(store.NewMemoryKV())
	monitor := resources.NewMonitor(resources.Config{}, logger)
	svc := entity.NewService(st, monitor, logger)
	engine := trust.NewEngine(st, trust.DefaultConfig(), logger)
	peers := &stubPeers{hubID: "h1"}
	searchSvc := search.NewService(svc, peers, logger)

	router := gin.New()
	handler.NewHealthHandler("h1", "test").Register(router)
	v1 := router.Group("/api/v1")
	handler.NewEntityHandler(svc, monitor, logger).Register(v1)
	handler.NewTrustHandler(engine, monitor, logger).Register(v1)
	handler.NewSearchHandler(searchSvc, monitor, logger).Register(v1)

	return &testHub{router: router, svc: svc, monitor: monitor, peers: peers}
}

func (h *testHub) request(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, handler.APIResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	var env handler.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope from %q: %v", rec.Body.String(), err)
	}
	return rec, env
}

func signedAgent(t *testing.T, kp *identity.KeyPair, id string) *model.CreateAgentRequest {
	t.Helper()
	req := &model.CreateAgentRequest{UUID: id, PublicKey: kp.PublicKeyBase64()}
	sig, err := identity.SignCanonical(kp, entity.AgentSignablePayload(req))
	if err != nil {
		t.Fatal(err)
	}
	req.Signature = sig
	return req
}

func TestCreateAndFetchAgent(t *testing.T) {
	hub := newTestHub(t)
	kp, _ := identity.GenerateKeyPair()

	rec, env := hub.request(t, http.MethodPost, "/api/v1/agents", signedAgent(t, kp, "a1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d, body %s", rec.Code, rec.Body.String())
	}
	if !env.Success {
		t.Fatalf("create envelope: %+v", env)
	}

	rec, env = hub.request(t, http.MethodGet, "/api/v1/agents/a1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("fetch: got %d", rec.Code)
	}

	raw, _ := json.Marshal(env.Data)
	var agent model.Agent
	if err := json.Unmarshal(raw, &agent); err != nil {
		t.Fatal(err)
	}
	if agent.UUID != "a1" || agent.PublicKey != kp.PublicKeyBase64() || agent.Version != 1 {
		t.Errorf("fetched agent: %+v", agent)
	}
}

func TestRejectForgedFragment(t *testing.T) {
	hub := newTestHub(t)
	kp, _ := identity.GenerateKeyPair()
	hub.request(t, http.MethodPost, "/api/v1/agents", signedAgent(t, kp, "a1"))

	req := &model.CreateFragmentRequest{
		UUID:      "f1",
		Content:   "forged",
		Creator:   model.AgentAddress("hub:8080", "a1"),
		Signature: base64.StdEncoding.EncodeToString(make([]byte, 64)),
	}
	rec, env := hub.request(t, http.MethodPost, "/api/v1/fragments", req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged fragment: got %d, want 401", rec.Code)
	}
	if env.Success {
		t.Error("forged fragment envelope should not be success")
	}

	count, err := hub.svc.Store().CountFragments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("fragment count changed: %d", count)
	}
}

func TestTrustTriangleOverHTTP(t *testing.T) {
	hub := newTestHub(t)

	keys := map[string]*identity.KeyPair{}
	for _, id := range []string{"a1", "a2", "a3"} {
		kp, _ := identity.GenerateKeyPair()
		keys[id] = kp
		hub.request(t, http.MethodPost, "/api/v1/agents", signedAgent(t, kp, id))
	}

	// Publish trust edges by replacement; the signing surface carries the
	// empty trust object, so the same signature stays valid.
	update := func(id, trustee string, level float32) {
		req := signedAgent(t, keys[id], id)
		req.Trust = &model.TrustStore{Trusts: []model.Trust{
			{Agent: model.AgentAddress("hub:8080", trustee), Trust: level},
		}}
		rec, _ := hub.request(t, http.MethodPut, "/api/v1/agents/"+id, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("update %s: got %d", id, rec.Code)
		}
	}
	update("a1", "a2", 0.9)
	update("a2", "a3", 0.8)

	rec, env := hub.request(t, http.MethodGet,
		"/api/v1/trust/path?from=hub:8080:AGENT:a1&to=hub:8080:AGENT:a3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("trust path: got %d, body %s", rec.Code, rec.Body.String())
	}

	raw, _ := json.Marshal(env.Data)
	var path model.TrustPath
	if err := json.Unmarshal(raw, &path); err != nil {
		t.Fatal(err)
	}
	if path.Depth != 2 {
		t.Errorf("depth: got %d, want 2", path.Depth)
	}
	if diff := path.EffectiveTrust - 0.576; diff > 0.001 || diff < -0.001 {
		t.Errorf("effective trust: got %v, want 0.576", path.EffectiveTrust)
	}
}

func TestTrustPathNotFound(t *testing.T) {
	hub := newTestHub(t)
	kp, _ := identity.GenerateKeyPair()
	hub.request(t, http.MethodPost, "/api/v1/agents", signedAgent(t, kp, "a1"))
	hub.request(t, http.MethodPost, "/api/v1/agents", signedAgent(t, kp, "a2"))

	rec, _ := hub.request(t, http.MethodGet,
		"/api/v1/trust/path?from=hub:8080:AGENT:a1&to=hub:8080:AGENT:a2", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("got %d, want 404", rec.Code)
	}
}

func TestPaginationOverHTTP(t *testing.T) {
	hub := newTestHub(t)
	kp, _ := identity.GenerateKeyPair()
	for i := 0; i < 5; i++ {
		hub.request(t, http.MethodPost, "/api/v1/agents", signedAgent(t, kp, fmt.Sprintf("a%d", i)))
	}

	type page struct {
		Items      []model.Agent `json:"items"`
		NextCursor string        `json:"next_cursor"`
		HasMore    bool          `json:"has_more"`
	}

	_, env := hub.request(t, http.MethodGet, "/api/v1/agents?limit=3", nil)
	raw, _ := json.Marshal(env.Data)
	var p1 page
	if err := json.Unmarshal(raw, &p1); err != nil {
		t.Fatal(err)
	}
	if len(p1.Items) != 3 || p1.NextCursor != "a2" || !p1.HasMore {
		t.Fatalf("page 1: %d items, next=%q, more=%v", len(p1.Items), p1.NextCursor, p1.HasMore)
	}

	_, env = hub.request(t, http.MethodGet, "/api/v1/agents?cursor=a2&limit=3", nil)
	raw, _ = json.Marshal(env.Data)
	var p2 page
	if err := json.Unmarshal(raw, &p2); err != nil {
		t.Fatal(err)
	}
	if len(p2.Items) != 2 || p2.NextCursor != "" || p2.HasMore {
		t.Fatalf("page 2: %d items, next=%q, more=%v", len(p2.Items), p2.NextCursor, p2.HasMore)
	}
}

func TestAgentCreationAtCriticalLevel(t *testing.T) {
	hub := newTestHub(t)
	kp, _ := identity.GenerateKeyPair()

	hub.monitor.SetStatusForTest(resources.Status{
		Level:    resources.LevelCritical,
		Hint:     "full",
		Warnings: []string{"disk almost full"},
	})

	rec, env := hub.request(t, http.MethodPost, "/api/v1/agents", signedAgent(t, kp, "a1"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503", rec.Code)
	}
	if env.HubStatus == nil || env.HubStatus.Level != resources.LevelCritical {
		t.Errorf("hub_status missing on gated reply: %+v", env.HubStatus)
	}
}

func TestHubStatusAttachedAtWarning(t *testing.T) {
	hub := newTestHub(t)
	kp, _ := identity.GenerateKeyPair()

	hub.monitor.SetStatusForTest(resources.Status{Level: resources.LevelWarning, Hint: "low"})

	rec, env := hub.request(t, http.MethodPost, "/api/v1/agents", signedAgent(t, kp, "a1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("warning level should still accept agents: %d", rec.Code)
	}
	if env.HubStatus == nil || env.HubStatus.Level != resources.LevelWarning {
		t.Errorf("hub_status should ride along at warning level: %+v", env.HubStatus)
	}
}

func TestLocalFragmentSearchEnvelope(t *testing.T) {
	hub := newTestHub(t)
	kp, _ := identity.GenerateKeyPair()
	hub.request(t, http.MethodPost, "/api/v1/agents", signedAgent(t, kp, "a1"))

	req := &model.CreateFragmentRequest{
		UUID:    "f1",
		Content: "searchable payload about gophers",
		Creator: model.AgentAddress("hub:8080", "a1"),
	}
	sig, err := identity.SignCanonical(kp, entity.FragmentSignablePayload(req))
	if err != nil {
		t.Fatal(err)
	}
	req.Signature = sig
	if rec, _ := hub.request(t, http.MethodPost, "/api/v1/fragments", req); rec.Code != http.StatusCreated {
		t.Fatalf("create fragment: %d", rec.Code)
	}

	_, env := hub.request(t, http.MethodGet, "/api/v1/fragments/search?q=GOPHERS", nil)
	raw, _ := json.Marshal(env.Data)
	var data struct {
		Items []model.Fragment `json:"items"`
		Total int              `json:"total"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatal(err)
	}
	if data.Total != 1 || len(data.Items) != 1 || data.Items[0].UUID != "f1" {
		t.Errorf("search data: %+v", data)
	}
}

func TestFederatedFallbackOverHTTP(t *testing.T) {
	hub := newTestHub(t)
	kp, _ := identity.GenerateKeyPair()
	hub.request(t, http.MethodPost, "/api/v1/agents", signedAgent(t, kp, "a1"))

	// One local fragment matching "x".
	req := &model.CreateFragmentRequest{
		UUID:    "f-local",
		Content: "local x content",
		Creator: model.AgentAddress("hub:8080", "a1"),
	}
	sig, _ := identity.SignCanonical(kp, entity.FragmentSignablePayload(req))
	req.Signature = sig
	hub.request(t, http.MethodPost, "/api/v1/fragments", req)

	// Peer hub with two matches.
	creator := model.AgentAddress("hub:8080", "a1")
	remote := []model.Fragment{}
	for _, id := range []string{"r1", "r2"} {
		f := model.NewFragment(id, "remote x content "+id, creator)
		f.Signature = "sig"
		remote = append(remote, *f)
	}
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"items": remote},
		})
	}))
	defer peer.Close()
	hub.peers.hubs = []discovery.HubInfo{{HubID: "h2", PublicURL: peer.URL, Status: discovery.StatusHealthy}}

	_, env := hub.request(t, http.MethodGet, "/api/v1/search?q=x&federate=true&min_results=3", nil)
	raw, _ := json.Marshal(env.Data)
	var resp search.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatal(err)
	}

	if !resp.Federated {
		t.Fatal("expected federated=true")
	}
	if resp.Total != 3 {
		t.Fatalf("total: got %d, want 3", resp.Total)
	}
	if resp.Results[0].SourceHubID != "h1" || resp.Results[0].RelevanceScore != 1.0 {
		t.Errorf("first result should be local at 1.0: %+v", resp.Results[0])
	}
	if len(resp.Sources) != 2 || resp.Sources[0].Count != 1 || resp.Sources[1].Count != 2 {
		t.Errorf("sources: %+v", resp.Sources)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	hub := newTestHub(t)
	kp, _ := identity.GenerateKeyPair()
	hub.request(t, http.MethodPost, "/api/v1/agents", signedAgent(t, kp, "a1"))

	for i := 0; i < 2; i++ {
		rec, _ := hub.request(t, http.MethodDelete, "/api/v1/agents/a1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("delete %d: got %d", i, rec.Code)
		}
	}

	rec, _ := hub.request(t, http.MethodGet, "/api/v1/agents/a1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleted agent fetch: got %d, want 404", rec.Code)
	}
}

func TestHealthProbes(t *testing.T) {
	hub := newTestHub(t)
	for _, path := range []string{"/health", "/ready", "/live"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		hub.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: got %d", path, rec.Code)
		}
	}
}
