package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Check pings one dependency.
type Check struct {
	Name    string
	Ping    func(ctx context.Context) error
	Timeout time.Duration
}

type Monitor struct {
	checks []Check

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(interval time.Duration, logger *zap.Logger, checks ...Check) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	for i := range checks {
		if checks[i].Timeout <= 0 {
			checks[i].Timeout = 3 * time.Second
		}
	}
	return &Monitor{
		checks:   checks,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether every component is healthy.
func (m *Monitor) IsOnline() bool {
	return m.GetStatus().Healthy()
}

// Online reports the last result of the named check.
func (m *Monitor) Online(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Components[name]
}

// Component narrows the monitor to a single check.
func (m *Monitor) Component(name string) ComponentHealth {
	return ComponentHealth{monitor: m, name: name}
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	components := make(map[string]bool, len(m.status.Components))
	for name, ok := range m.status.Components {
		components[name] = ok
	}
	return Status{Components: components, LastCheck: m.status.LastCheck}
}

// Refresh runs every check once and stores the result.
func (m *Monitor) Refresh(ctx context.Context) Status {
	components := make(map[string]bool, len(m.checks))
	for _, dep := range m.checks {
		components[dep.Name] = m.check(ctx, dep)
	}
	status := Status{Components: components, LastCheck: time.Now()}

	m.mu.Lock()
	previous := m.status.Components
	m.status = status
	m.mu.Unlock()

	for name, ok := range components {
		if was, seen := previous[name]; seen && was != ok {
			if ok {
				m.logger.Info("component recovered", zap.String("component", name))
			} else {
				m.logger.Warn("component unreachable", zap.String("component", name))
			}
		}
	}
	return status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh(context.Background())
	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) check(ctx context.Context, dep Check) bool {
	if dep.Ping == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, dep.Timeout)
	defer cancel()
	if err := dep.Ping(ctx); err != nil {
		m.logger.Debug("health check failed", zap.String("component", dep.Name), zap.Error(err))
		return false
	}
	return true
}

// ComponentHealth reports the health of one named check.
type ComponentHealth struct {
	monitor *Monitor
	name    string
}

func (c ComponentHealth) IsOnline() bool {
	if c.monitor == nil {
		return false
	}
	return c.monitor.Online(c.name)
}
