package discovery_test

import (
	"testing"
	"time"

	"github.com/sagenet/sage-hub/internal/discovery"
)

func testHub(id string) discovery.HubInfo {
	return discovery.HubInfo{
		HubID:        id,
		PublicURL:    "https://" + id + ".example.com",
		Role:         "secondary",
		Status:       discovery.StatusHealthy,
		LastSeen:     time.Now().UTC(),
		Capabilities: []string{"entities"},
	}
}

func TestRegistry_registerAndGet(t *testing.T) {
	registry := discovery.NewRegistry(time.Minute)
	registry.Register(testHub("h1"))

	hub, ok := registry.Get("h1")
	if !ok {
		t.Fatal("registered hub not found")
	}
	if hub.PublicURL != "https://h1.example.com" {
		t.Errorf("public_url: got %q", hub.PublicURL)
	}

	list := registry.List()
	if len(list.Hubs) != 1 {
		t.Errorf("list: got %d hubs", len(list.Hubs))
	}
}

func TestRegistry_versionMonotone(t *testing.T) {
	registry := discovery.NewRegistry(time.Minute)
	if registry.Version() != 0 {
		t.Fatalf("fresh registry version: got %d", registry.Version())
	}

	registry.Register(testHub("h1"))
	v1 := registry.Version()
	registry.Register(testHub("h1")) // upsert still bumps
	v2 := registry.Version()
	registry.Remove("h1")
	v3 := registry.Version()

	if !(v1 < v2 && v2 < v3) {
		t.Errorf("version not monotone: %d, %d, %d", v1, v2, v3)
	}
}

func TestRegistry_heartbeat(t *testing.T) {
	registry := discovery.NewRegistry(time.Minute)

	hub := testHub("h1")
	hub.Status = discovery.StatusUnknown
	hub.LastSeen = time.Now().Add(-5 * time.Minute)
	registry.Register(hub)

	if !registry.Heartbeat("h1", discovery.HubStats{EntitiesCount: 100}) {
		t.Fatal("heartbeat for registered hub should succeed")
	}

	updated, _ := registry.Get("h1")
	if updated.Status != discovery.StatusHealthy {
		t.Errorf("status: got %q, want healthy", updated.Status)
	}
	if updated.Stats.EntitiesCount != 100 {
		t.Errorf("stats: got %d", updated.Stats.EntitiesCount)
	}

	if registry.Heartbeat("unknown", discovery.HubStats{}) {
		t.Error("heartbeat for unknown hub should report false")
	}
}

func TestRegistry_livenessSweep(t *testing.T) {
	registry := discovery.NewRegistry(time.Minute)

	stale := testHub("stale")
	stale.LastSeen = time.Now().Add(-time.Hour)
	registry.Register(stale)
	registry.Register(testHub("fresh"))

	registry.CheckInactive()

	got, _ := registry.Get("stale")
	if got.Status != discovery.StatusInactive {
		t.Errorf("stale hub: got %q, want inactive", got.Status)
	}
	got, _ = registry.Get("fresh")
	if got.Status != discovery.StatusHealthy {
		t.Errorf("fresh hub: got %q, want healthy", got.Status)
	}

	healthy := registry.ListHealthy()
	if len(healthy) != 1 || healthy[0].HubID != "fresh" {
		t.Errorf("healthy list: %+v", healthy)
	}
}

func TestRegistry_remove(t *testing.T) {
	registry := discovery.NewRegistry(time.Minute)
	registry.Register(testHub("h1"))

	if !registry.Remove("h1") {
		t.Error("remove of existing hub should report true")
	}
	if registry.Remove("h1") {
		t.Error("second remove should report false")
	}
	if _, ok := registry.Get("h1"); ok {
		t.Error("removed hub still present")
	}
}
