package discovery

import (
	"context"
	"time"

	"github.com/sagenet/sage-hub/internal/model"
	"go.uber.org/zap"
)

// StatsSource supplies the hub's current entity counts for heartbeats and
// self-info. The entity service satisfies this through a small adapter in
// cmd/hub.
type StatsSource interface {
	HubStats(ctx context.Context) (HubStats, error)
}

// Config identifies this hub and sets federation cadence.
type Config struct {
	Role          Role
	HubID         string
	PublicURL     string
	PrimaryHubURL string // required for secondary hubs
	Capabilities  []string
	Version       string

	// HeartbeatTimeout marks peers inactive; defaults to
	// RegistrationInterval * 3.
	HeartbeatTimeout     time.Duration
	RegistrationInterval time.Duration
	HubListRefresh       time.Duration
}

// Service is the role-differentiated discovery façade. A primary hub owns
// a Registry and no Client; a secondary hub owns a Client and no
// Registry.
type Service struct {
	cfg      Config
	registry *Registry // primary only
	client   *Client   // secondary only
	stats    StatsSource
	logger   *zap.Logger

	startedAt time.Time
}

// NewService wires a discovery service for the configured role.
func NewService(cfg Config, stats StatsSource, logger *zap.Logger) *Service {
	if cfg.RegistrationInterval == 0 {
		cfg.RegistrationInterval = 5 * time.Minute
	}
	if cfg.HeartbeatTimeout == 0 {
		cfg.HeartbeatTimeout = cfg.RegistrationInterval * 3
	}
	if cfg.HubListRefresh == 0 {
		cfg.HubListRefresh = time.Minute
	}
	if len(cfg.Capabilities) == 0 {
		cfg.Capabilities = []string{"entities", "trust", "search"}
	}

	svc := &Service{cfg: cfg, stats: stats, logger: logger, startedAt: time.Now().UTC()}
	switch cfg.Role {
	case RolePrimary:
		svc.registry = NewRegistry(cfg.HeartbeatTimeout)
	default:
		svc.client = NewClient(cfg.PrimaryHubURL, cfg.HubID, cfg.PublicURL, cfg.Capabilities, cfg.Version)
	}
	return svc
}

// HubID returns this hub's identifier.
func (s *Service) HubID() string { return s.cfg.HubID }

// IsPrimary reports whether this hub owns the directory.
func (s *Service) IsPrimary() bool { return s.cfg.Role == RolePrimary }

// SelfInfo describes this hub as a directory entry with fresh stats.
func (s *Service) SelfInfo(ctx context.Context) HubInfo {
	return HubInfo{
		HubID:        s.cfg.HubID,
		PublicURL:    s.cfg.PublicURL,
		Role:         string(s.cfg.Role),
		Status:       StatusHealthy,
		LastSeen:     time.Now().UTC(),
		Capabilities: s.cfg.Capabilities,
		Stats:        s.currentStats(ctx),
	}
}

func (s *Service) currentStats(ctx context.Context) HubStats {
	if s.stats == nil {
		return HubStats{}
	}
	stats, err := s.stats.HubStats(ctx)
	if err != nil {
		s.logger.Warn("hub stats unavailable", zap.Error(err))
		return HubStats{}
	}
	stats.UptimeSeconds = time.Since(s.startedAt).Seconds()
	return stats
}

// ── Primary hub operations ──────────────────────────────────────────────

// RegisterHub records a peer registration and returns the full directory.
func (s *Service) RegisterHub(req RegisterHubRequest) (*RegisterHubResponse, error) {
	if s.registry == nil {
		return nil, model.FederationError("not a primary hub")
	}
	if req.HubID == "" {
		return nil, model.Validation("hub_id is required")
	}
	if req.PublicURL == "" {
		return nil, model.Validation("public_url is required")
	}

	s.registry.Register(HubInfo{
		HubID:        req.HubID,
		PublicURL:    req.PublicURL,
		Role:         string(RoleSecondary),
		Status:       StatusHealthy,
		LastSeen:     time.Now().UTC(),
		Capabilities: req.Capabilities,
		PublicKey:    req.PublicKey,
	})

	s.logger.Info("hub registered",
		zap.String("hub_id", req.HubID),
		zap.String("public_url", req.PublicURL),
	)

	list := s.registry.List()
	return &RegisterHubResponse{
		Registered: true,
		Message:    "hub registered successfully",
		HubList:    &list,
	}, nil
}

// ProcessHeartbeat refreshes a peer's liveness. Unknown senders get an
// acknowledgement with Registered=false so they re-register.
func (s *Service) ProcessHeartbeat(req HeartbeatRequest) (*HeartbeatResponse, error) {
	if s.registry == nil {
		return nil, model.FederationError("not a primary hub")
	}
	if s.registry.Heartbeat(req.HubID, req.Stats) {
		return &HeartbeatResponse{Acknowledged: true, Registered: true}, nil
	}
	s.logger.Warn("heartbeat from unknown hub", zap.String("hub_id", req.HubID))
	return &HeartbeatResponse{Acknowledged: true, Registered: false, Message: "hub not registered"}, nil
}

// KnownHubs returns the directory. On a primary this hub's own entry
// leads the list; on a secondary the cached directory is served.
func (s *Service) KnownHubs(ctx context.Context) (*HubList, error) {
	if s.registry != nil {
		list := s.registry.List()
		list.Hubs = append([]HubInfo{s.SelfInfo(ctx)}, list.Hubs...)
		return &list, nil
	}
	if s.client != nil {
		if cached := s.client.CachedHubList(); cached != nil {
			return cached, nil
		}
		return nil, model.FederationError("hub list not available")
	}
	return nil, model.FederationError("discovery not configured")
}

// CheckInactiveHubs sweeps the registry for peers past the liveness
// timeout. No-op on secondary hubs.
func (s *Service) CheckInactiveHubs() {
	if s.registry != nil {
		s.registry.CheckInactive()
	}
}

// ── Secondary hub operations ────────────────────────────────────────────

// RegisterWithPrimary announces this hub to its primary.
func (s *Service) RegisterWithPrimary(ctx context.Context, publicKey string) (*HubList, error) {
	if s.client == nil {
		return nil, model.FederationError("not a secondary hub")
	}
	list, err := s.client.Register(ctx, publicKey)
	if err != nil {
		s.logger.Error("registration with primary failed", zap.Error(err))
		return nil, err
	}
	s.logger.Info("registered with primary hub",
		zap.String("primary", s.cfg.PrimaryHubURL),
		zap.Int("hubs", len(list.Hubs)),
	)
	return list, nil
}

// SendHeartbeat pushes current stats to the primary.
func (s *Service) SendHeartbeat(ctx context.Context) error {
	if s.client == nil {
		return model.FederationError("not a secondary hub")
	}
	return s.client.Heartbeat(ctx, s.currentStats(ctx))
}

// RefreshHubList pulls the directory from the primary.
func (s *Service) RefreshHubList(ctx context.Context) (*HubList, error) {
	if s.client == nil {
		return nil, model.FederationError("not a secondary hub")
	}
	return s.client.RefreshHubList(ctx)
}

// NeedsRegistration reports whether the secondary must (re-)register.
func (s *Service) NeedsRegistration() bool {
	return s.client != nil && s.client.NeedsRegistration(s.cfg.RegistrationInterval)
}

// FederationTargets returns the healthy peers to fan queries out to.
func (s *Service) FederationTargets() []HubInfo {
	if s.client != nil {
		return s.client.OtherHubs()
	}
	if s.registry != nil {
		return s.registry.ListHealthy()
	}
	return nil
}

// Run drives the background discovery loops until ctx is cancelled: the
// liveness sweep on a primary; registration, heartbeat, and directory
// refresh on a secondary.
func (s *Service) Run(ctx context.Context) {
	if s.registry != nil {
		s.runPrimary(ctx)
		return
	}
	if s.client != nil {
		s.runSecondary(ctx)
	}
}

func (s *Service) runPrimary(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RegistrationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.CheckInactiveHubs()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) runSecondary(ctx context.Context) {
	register := func() {
		if !s.NeedsRegistration() {
			return
		}
		regCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if _, err := s.RegisterWithPrimary(regCtx, ""); err != nil {
			s.logger.Warn("registration attempt failed", zap.Error(err))
		}
	}
	register()

	heartbeat := time.NewTicker(s.cfg.RegistrationInterval)
	refresh := time.NewTicker(s.cfg.HubListRefresh)
	defer heartbeat.Stop()
	defer refresh.Stop()

	for {
		select {
		case <-heartbeat.C:
			register()
			hbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := s.SendHeartbeat(hbCtx); err != nil {
				s.logger.Warn("heartbeat failed", zap.Error(err))
			}
			cancel()
		case <-refresh.C:
			rCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if _, err := s.RefreshHubList(rCtx); err != nil {
				s.logger.Warn("hub list refresh failed", zap.Error(err))
			}
			cancel()
		case <-ctx.Done():
			return
		}
	}
}
