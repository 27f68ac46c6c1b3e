// Package resources watches disk usage of the hub's data directory and
// exposes a severity level the entity service consults before accepting
// new agents and content.
package resources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level is the resource severity derived from usage thresholds.
type Level string

const (
	LevelNormal   Level = "normal"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Hint texts attached to non-normal statuses.
const (
	warningHint  = "Hub resources are running low. Please consider integrating new hubs into the network."
	criticalHint = "Hub has reached resource limits. New agents are not accepted and content from unknown agents is restricted. Please set up your own hub."
)

// Status is the most recent resource snapshot.
type Status struct {
	Level            Level    `json:"level"`
	DiskUsagePercent float32  `json:"disk_usage_percent"`
	Hint             string   `json:"hint,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
}

// StatusSummary is the slimmed status attached to API responses when the
// hub is not at normal level.
type StatusSummary struct {
	Level    Level    `json:"level"`
	Hint     string   `json:"hint,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Config holds monitor thresholds and cadence.
type Config struct {
	WarningThreshold  float32       // percent, default 60
	CriticalThreshold float32       // percent, default 80
	MonitorPath       string        // path whose filesystem is sampled
	CheckInterval     time.Duration // default 60s
}

// Monitor samples disk usage out-of-band and serves the latest snapshot.
// Readers only ever see the most recent status.
type Monitor struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.RWMutex
	status Status

	// diskUsageFn samples the filesystem. Tests override it.
	diskUsageFn func(path string) (float32, error)
}

// NewMonitor creates a Monitor with defaults applied.
func NewMonitor(cfg Config, logger *zap.Logger) *Monitor {
	if cfg.WarningThreshold == 0 {
		cfg.WarningThreshold = 60
	}
	if cfg.CriticalThreshold == 0 {
		cfg.CriticalThreshold = 80
	}
	if cfg.MonitorPath == "" {
		cfg.MonitorPath = "."
	}
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = time.Minute
	}
	return &Monitor{
		cfg:         cfg,
		logger:      logger,
		status:      Status{Level: LevelNormal},
		diskUsageFn: diskUsagePercent,
	}
}

// Status returns the latest snapshot.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Summary returns the status summary for API responses, or nil when the
// hub is at normal level.
func (m *Monitor) Summary() *StatusSummary {
	status := m.Status()
	if status.Level == LevelNormal {
		return nil
	}
	return &StatusSummary{Level: status.Level, Hint: status.Hint, Warnings: status.Warnings}
}

// CanAcceptAgent reports whether a new agent may be created at the given
// level. Agents are rejected only at critical level.
func CanAcceptAgent(level Level) bool {
	return level != LevelCritical
}

// CanAcceptContent reports whether content may be created. At critical
// level only known agents may create content.
func CanAcceptContent(level Level, agentKnown bool) bool {
	return level != LevelCritical || agentKnown
}

// SetStatusForTest overrides the current status. Test hook only.
func (m *Monitor) SetStatusForTest(status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// Update samples disk usage and recomputes the status.
func (m *Monitor) Update() {
	usage, err := m.diskUsageFn(m.cfg.MonitorPath)
	if err != nil {
		m.logger.Warn("disk usage sample failed", zap.Error(err))
		return
	}

	level := LevelNormal
	hint := ""
	var warnings []string
	switch {
	case usage >= m.cfg.CriticalThreshold:
		level = LevelCritical
		hint = criticalHint
		warnings = append(warnings, fmt.Sprintf(
			"Disk usage at %.1f%% (critical threshold: %.0f%%)", usage, m.cfg.CriticalThreshold))
	case usage >= m.cfg.WarningThreshold:
		level = LevelWarning
		hint = warningHint
		warnings = append(warnings, fmt.Sprintf(
			"Disk usage at %.1f%% (warning threshold: %.0f%%)", usage, m.cfg.WarningThreshold))
	}

	m.mu.Lock()
	old := m.status.Level
	m.status = Status{
		Level:            level,
		DiskUsagePercent: usage,
		Hint:             hint,
		Warnings:         warnings,
	}
	m.mu.Unlock()

	if old != level {
		m.logger.Warn("resource level changed",
			zap.String("from", string(old)),
			zap.String("to", string(level)),
			zap.Float64("disk_usage_percent", float64(usage)),
		)
	}
}

// Run samples immediately, then on every tick until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.Update()
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Update()
		case <-ctx.Done():
			return
		}
	}
}
