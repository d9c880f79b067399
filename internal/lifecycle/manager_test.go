package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/quantfabric/livedata/internal/client"
)

// fakeAdapter records lifecycle calls and fails Connect failures times
// before succeeding.
type fakeAdapter struct {
	*client.BaseMarketDataClient

	mu          sync.Mutex
	failures    int
	connects    int
	disconnects int
	resets      int
	disposes    int
	noReset     bool // Decline Reset like an adapter without the optional hook
}

func newFakeAdapter(t *testing.T, name string) *fakeAdapter {
	t.Helper()
	base, err := client.NewBaseMarketDataClient(name, "TESTVENUE", nil)
	if err != nil {
		t.Fatalf("NewBaseMarketDataClient failed: %v", err)
	}
	return &fakeAdapter{BaseMarketDataClient: base}
}

func (a *fakeAdapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connects++
	if a.connects <= a.failures {
		return errors.New("dial tcp: connection refused")
	}
	return nil
}

func (a *fakeAdapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disconnects++
	return nil
}

func (a *fakeAdapter) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.noReset {
		return a.BaseMarketDataClient.Reset()
	}
	a.resets++
	return nil
}

func (a *fakeAdapter) Dispose() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disposes++
	return nil
}

func testConfig() Config {
	return Config{
		ConnectTimeout:    time.Second,
		ReconnectBaseWait: time.Millisecond,
		ReconnectMaxWait:  10 * time.Millisecond,
		MaxConnectRetries: 5,
	}
}

func TestManager_StartStop(t *testing.T) {
	m := NewManager(testConfig(), nil)
	a := newFakeAdapter(t, "alpha")
	b := newFakeAdapter(t, "beta")

	if err := m.Register(a); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := m.Register(b); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for _, h := range m.Health() {
		if h.State != StateReady {
			t.Errorf("%s state = %s, want ready", h.Name, h.State)
		}
	}

	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if a.disconnects != 1 || a.resets != 1 || a.disposes != 1 {
		t.Errorf("alpha shutdown calls = %d/%d/%d, want 1/1/1", a.disconnects, a.resets, a.disposes)
	}
	for _, h := range m.Health() {
		if h.State != StateStopped {
			t.Errorf("%s state = %s, want stopped", h.Name, h.State)
		}
	}
}

func TestManager_DuplicateRegistration(t *testing.T) {
	m := NewManager(testConfig(), nil)
	a := newFakeAdapter(t, "alpha")

	if err := m.Register(a); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := m.Register(a); err == nil {
		t.Error("expected error on duplicate registration")
	}
}

func TestManager_ConnectRetries(t *testing.T) {
	m := NewManager(testConfig(), nil)
	a := newFakeAdapter(t, "flaky")
	a.failures = 2

	if err := m.Register(a); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed after retries: %v", err)
	}
	if a.connects != 3 {
		t.Errorf("connects = %d, want 3", a.connects)
	}
}

func TestManager_ConnectRetriesExhausted(t *testing.T) {
	m := NewManager(testConfig(), nil)
	a := newFakeAdapter(t, "down")
	a.failures = 100

	if err := m.Register(a); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail when the venue stays down")
	}
	if a.connects != 5 {
		t.Errorf("connects = %d, want MaxConnectRetries (5)", a.connects)
	}
}

func TestManager_DefectiveAdapterNeverRetried(t *testing.T) {
	m := NewManager(testConfig(), nil)

	// A bare client whose required hooks are unimplemented.
	base, err := client.NewBaseMarketDataClient("broken", "TESTVENUE", nil)
	if err != nil {
		t.Fatalf("NewBaseMarketDataClient failed: %v", err)
	}
	type bare struct{ *client.BaseMarketDataClient }
	if err := m.Register(&bare{base}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	err = m.Start(context.Background())
	if err == nil {
		t.Fatal("expected Start to fail for a defective adapter")
	}
	if !client.IsNotImplemented(err) {
		t.Errorf("Start error = %v, want not-implemented", err)
	}

	health := m.Health()
	if len(health) != 1 || health[0].State != StateDefective {
		t.Errorf("health = %+v, want defective", health)
	}

	// Stop skips defective adapters entirely.
	if err := m.Stop(context.Background()); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if health := m.Health(); health[0].State != StateDefective {
		t.Errorf("state after Stop = %s, want defective", health[0].State)
	}
}

func TestManager_StopSkipsUnsupportedOptionalHooks(t *testing.T) {
	m := NewManager(testConfig(), nil)
	a := newFakeAdapter(t, "minimal")
	a.noReset = true

	if err := m.Register(a); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// A declined Reset must not fail the shutdown.
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if a.resets != 0 {
		t.Errorf("resets = %d, want 0", a.resets)
	}
	if a.disposes != 1 {
		t.Errorf("disposes = %d, want 1", a.disposes)
	}
}
