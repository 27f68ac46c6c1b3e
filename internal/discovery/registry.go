package discovery

import (
	"sync"
	"time"
)

// Registry is the primary hub's mutable directory of registered peers.
// All mutations serialise behind one writer lock; reads return snapshot
// copies. The directory version is monotone.
type Registry struct {
	mu               sync.RWMutex
	hubs             map[string]*HubInfo
	version          uint64
	heartbeatTimeout time.Duration
}

// NewRegistry creates a Registry with the given liveness timeout.
func NewRegistry(heartbeatTimeout time.Duration) *Registry {
	if heartbeatTimeout == 0 {
		heartbeatTimeout = 15 * time.Minute
	}
	return &Registry{
		hubs:             make(map[string]*HubInfo),
		heartbeatTimeout: heartbeatTimeout,
	}
}

// Register upserts the given directory entry as-is and bumps the version.
// Status, last_seen and stats are taken from the entry; Service.RegisterHub
// is what starts a peer healthy with zeroed stats and last_seen = now.
func (r *Registry) Register(hub HubInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := hub
	r.hubs[hub.HubID] = &entry
	r.version++
}

// Heartbeat refreshes an entry's liveness and stats. Returns false when
// the hub is not registered.
func (r *Registry) Heartbeat(hubID string, stats HubStats) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	hub, ok := r.hubs[hubID]
	if !ok {
		return false
	}
	hub.LastSeen = time.Now().UTC()
	hub.Status = StatusHealthy
	hub.Stats = stats
	return true
}

// Get returns a copy of the entry for hubID.
func (r *Registry) Get(hubID string) (HubInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hub, ok := r.hubs[hubID]
	if !ok {
		return HubInfo{}, false
	}
	return *hub, true
}

// List returns a snapshot of the full directory.
func (r *Registry) List() HubList {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hubs := make([]HubInfo, 0, len(r.hubs))
	for _, hub := range r.hubs {
		hubs = append(hubs, *hub)
	}
	return HubList{Hubs: hubs, Version: r.version, UpdatedAt: time.Now().UTC()}
}

// ListHealthy returns copies of the healthy entries only.
func (r *Registry) ListHealthy() []HubInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var hubs []HubInfo
	for _, hub := range r.hubs {
		if hub.Status == StatusHealthy {
			hubs = append(hubs, *hub)
		}
	}
	return hubs
}

// CheckInactive marks entries whose last heartbeat is older than the
// timeout as inactive.
func (r *Registry) CheckInactive() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for _, hub := range r.hubs {
		if now.Sub(hub.LastSeen) > r.heartbeatTimeout {
			hub.Status = StatusInactive
		}
	}
}

// Remove drops an entry and bumps the version. Returns whether an entry
// was removed.
func (r *Registry) Remove(hubID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.hubs[hubID]; !ok {
		return false
	}
	delete(r.hubs, hubID)
	r.version++
	return true
}

// Version returns the current directory version.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}
