package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantfabric/livedata/internal/client"
	"github.com/quantfabric/livedata/internal/model"
)

// State is the lifecycle state of one adapter.
type State string

const (
	StateRegistered State = "registered"
	StateConnecting State = "connecting"
	StateReady      State = "ready"
	StateDefective  State = "defective" // Required hook unimplemented; never retried
	StateStopped    State = "stopped"
)

// Config configures the manager.
type Config struct {
	ConnectTimeout    time.Duration
	ReconnectBaseWait time.Duration
	ReconnectMaxWait  time.Duration
	MaxConnectRetries int // 0 = unlimited
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:    30 * time.Second,
		ReconnectBaseWait: 1 * time.Second,
		ReconnectMaxWait:  60 * time.Second,
		MaxConnectRetries: 5,
	}
}

// Health is a point-in-time view of one adapter.
type Health struct {
	Name    string
	Venue   model.Venue
	State   State
	LastErr string
}

type entry struct {
	client  client.DataClient
	state   State
	lastErr error
}

// Manager owns the connect/disconnect cycle for registered adapters.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewManager creates a lifecycle manager.
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectBaseWait == 0 {
		cfg = DefaultConfig()
	}
	return &Manager{
		cfg:     cfg,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Register adds an adapter. Names must be unique per manager.
func (m *Manager) Register(c client.DataClient) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[c.Name()]; exists {
		return fmt.Errorf("client %q already registered", c.Name())
	}
	m.entries[c.Name()] = &entry{client: c, state: StateRegistered}
	m.logger.Info("client registered", "client", c.Name(), "venue", string(c.Venue()))
	return nil
}

// Start connects all registered adapters in parallel. A required-hook gap
// marks the adapter defective and fails Start; transport failures are
// retried with exponential backoff up to MaxConnectRetries.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.RLock()
	clients := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		clients = append(clients, e)
	}
	m.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range clients {
		e := e
		g.Go(func() error {
			return m.connect(gctx, e)
		})
	}
	return g.Wait()
}

// connect brings one adapter to ready, retrying transport failures.
func (m *Manager) connect(ctx context.Context, e *entry) error {
	m.setState(e, StateConnecting, nil)

	wait := m.cfg.ReconnectBaseWait
	for attempt := 1; ; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
		err := e.client.Connect(cctx)
		cancel()

		if err == nil {
			m.setState(e, StateReady, nil)
			m.logger.Info("client connected", "client", e.client.Name())
			return nil
		}

		if client.IsNotImplemented(err) {
			// Integration defect: the adapter can never become ready.
			m.setState(e, StateDefective, err)
			m.logger.Error("client is missing a required hook",
				"client", e.client.Name(),
				"error", err,
			)
			return err
		}

		m.setState(e, StateConnecting, err)
		m.logger.Warn("connect failed",
			"client", e.client.Name(),
			"attempt", attempt,
			"error", err,
		)

		if m.cfg.MaxConnectRetries > 0 && attempt >= m.cfg.MaxConnectRetries {
			return fmt.Errorf("connect %s: %w", e.client.Name(), err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		wait *= 2
		if wait > m.cfg.ReconnectMaxWait {
			wait = m.cfg.ReconnectMaxWait
		}
	}
}

// Stop disconnects all ready adapters, then runs their optional Reset and
// Dispose hooks. Capability gaps are skipped; other hook errors are
// logged but do not fail the shutdown.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.RLock()
	clients := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		clients = append(clients, e)
	}
	m.mu.RUnlock()

	var g errgroup.Group
	for _, e := range clients {
		e := e
		g.Go(func() error {
			return m.shutdown(ctx, e)
		})
	}
	return g.Wait()
}

// shutdown tears one adapter down.
func (m *Manager) shutdown(ctx context.Context, e *entry) error {
	state := m.state(e)
	if state == StateDefective || state == StateStopped {
		return nil
	}

	if err := e.client.Disconnect(ctx); err != nil {
		if client.IsNotImplemented(err) {
			m.setState(e, StateDefective, err)
			return err
		}
		m.logger.Warn("disconnect failed", "client", e.client.Name(), "error", err)
	}

	if err := e.client.Reset(); err != nil {
		if client.IsUnsupported(err) {
			m.logger.Debug("reset unsupported, skipping", "client", e.client.Name())
		} else {
			m.logger.Warn("reset failed", "client", e.client.Name(), "error", err)
		}
	}

	if err := e.client.Dispose(); err != nil {
		if client.IsUnsupported(err) {
			m.logger.Debug("dispose unsupported, skipping", "client", e.client.Name())
		} else {
			m.logger.Warn("dispose failed", "client", e.client.Name(), "error", err)
		}
	}

	m.setState(e, StateStopped, nil)
	m.logger.Info("client stopped", "client", e.client.Name())
	return nil
}

// Health returns a snapshot of every registered adapter.
func (m *Manager) Health() []Health {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Health, 0, len(m.entries))
	for _, e := range m.entries {
		h := Health{
			Name:  e.client.Name(),
			Venue: e.client.Venue(),
			State: e.state,
		}
		if e.lastErr != nil {
			h.LastErr = e.lastErr.Error()
		}
		out = append(out, h)
	}
	return out
}

func (m *Manager) setState(e *entry, s State, err error) {
	m.mu.Lock()
	e.state = s
	e.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) state(e *entry) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return e.state
}
