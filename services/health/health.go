// Package health polls the backend health endpoint and reports healthy, degraded, down or checking.
package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/meghashyamc/contextview/cache"
	"github.com/meghashyamc/contextview/logger"
	"github.com/meghashyamc/contextview/models"
	"github.com/meghashyamc/contextview/normalize"
	"github.com/meghashyamc/contextview/services/fetch"
)

const (
	hookName        = "health"
	DefaultInterval = 30 * time.Second
)

type Backend interface {
	Health(ctx context.Context) (models.RawHealth, error)
}

type Observer interface {
	HookError(hook string)
}

type View struct {
	Health      *models.HealthStatus `json:"health"`
	Status      models.HealthState   `json:"status"`
	IsLoading   bool                 `json:"isLoading"`
	Error       string               `json:"error,omitempty"`
	LastChecked *time.Time           `json:"lastChecked,omitempty"`
}

// Monitor runs at most one poller at a time.
type Monitor struct {
	logger   logger.Logger
	backend  Backend
	cache    *cache.Cache
	observer Observer
	store    *fetch.Store[*models.HealthStatus]
	now      func() time.Time

	// runMu serializes poller start and stop.
	runMu sync.Mutex

	mu          sync.Mutex
	state       models.HealthState
	lastChecked *time.Time
	interval    time.Duration
	cancel      context.CancelFunc
	done        chan struct{}
	parent      context.Context
}

func New(logger logger.Logger, backend Backend, c *cache.Cache, observer Observer, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		logger:   logger,
		backend:  backend,
		cache:    c,
		observer: observer,
		store:    fetch.NewStore[*models.HealthStatus](),
		now:      time.Now,
		state:    models.HealthChecking,
		interval: interval,
	}
}

// CheckNow runs one health check and returns the resulting view.
func (m *Monitor) CheckNow(ctx context.Context) View {
	m.store.Dispatch(fetch.Start[*models.HealthStatus](false))

	raw, err := m.backend.Health(ctx)
	checked := m.now()

	if err != nil {
		m.logger.Warn("health check failed", "err", err.Error())
		if m.observer != nil {
			m.observer.HookError(hookName)
		}
		m.record(models.HealthDown, checked)
		m.store.Dispatch(fetch.Fail[*models.HealthStatus](err, true))
	} else {
		status := normalize.Health(raw)
		m.record(normalize.HealthState(status), checked)
		m.store.Dispatch(fetch.Succeed(&status))
	}

	view := m.View()
	m.cache.Set(cache.HealthKey(), view, cache.HealthTTL)
	return view
}

func (m *Monitor) record(state models.HealthState, checked time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = state
	m.lastChecked = &checked
}

// VisibilityChanged checks immediately when the UI becomes visible again.
func (m *Monitor) VisibilityChanged(ctx context.Context, visible bool) {
	if visible {
		m.CheckNow(ctx)
	}
}

// Start checks once and then every interval until ctx ends or Stop is called. A running poller is replaced.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	m.parent = ctx
	m.mu.Unlock()

	m.restart()
}

func (m *Monitor) restart() {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	m.stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.parent == nil {
		return
	}
	ctx, cancel := context.WithCancel(m.parent)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	go m.poll(ctx, m.interval, done)
}

func (m *Monitor) poll(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	m.CheckNow(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// Stop tears down the running poller, if any, and waits for it to exit.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	m.stop()
}

func (m *Monitor) stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// SetInterval changes the poll interval, restarting a running poller with it.
func (m *Monitor) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}

	m.mu.Lock()
	changed := interval != m.interval
	m.interval = interval
	running := m.cancel != nil
	m.mu.Unlock()

	if changed && running {
		m.logger.Info("health check interval changed", "interval", interval.String())
		m.restart()
	}
}

func (m *Monitor) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.interval
}

func (m *Monitor) View() View {
	return m.view(m.store.Snapshot())
}

func (m *Monitor) view(snapshot fetch.Snapshot[*models.HealthStatus]) View {
	m.mu.Lock()
	view := View{
		Health:      snapshot.Data,
		Status:      m.state,
		IsLoading:   snapshot.IsLoading(),
		LastChecked: m.lastChecked,
	}
	m.mu.Unlock()

	if snapshot.Status == fetch.StatusError && snapshot.Err != nil {
		view.Error = ErrorMessage(snapshot.Err)
	}
	return view
}

func (m *Monitor) Subscribe(fn func(View)) func() {
	return m.store.Subscribe(func(snapshot fetch.Snapshot[*models.HealthStatus]) {
		fn(m.view(snapshot))
	})
}

func ErrorMessage(err error) string {
	switch {
	case models.IsNetworkError(err):
		return "Network connection failed"
	case errors.Is(err, models.ErrServer):
		return "Server error occurred"
	default:
		return "Health check failed"
	}
}
