package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/quantfabric/livedata/internal/model"
)

// Engine routes adapter events to kind-keyed subscribers and forwards
// request responses to the response sink.
type Engine interface {
	// Start begins the routing loop.
	Start(ctx context.Context) error

	// Stop gracefully shuts down and closes subscriber buffers.
	Stop(ctx context.Context) error

	// Publisher returns the adapter-facing publish handle.
	Publisher() Publisher

	// SubscribeData returns a buffer receiving all data events of a kind.
	// Must be called before Start.
	SubscribeData(kind model.DataKind) *Buffer[DataEvent]

	// SetResponseSink registers the handler for request responses.
	// Must be called before Start.
	SetResponseSink(sink func(Response))

	// Stats returns current engine statistics.
	Stats() Stats
}

// Stats contains runtime statistics.
type Stats struct {
	EventsReceived  int64
	DataRouted      int64
	ResponsesRouted int64
	Dropped         int64
	Input           BufferStats
}

// Config configures the engine.
type Config struct {
	InputBufferSize      int
	SubscriberBufferSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		InputBufferSize:      10000,
		SubscriberBufferSize: 1000,
	}
}

type engine struct {
	cfg    Config
	logger *slog.Logger

	input *Buffer[Event]

	subsMu sync.RWMutex
	subs   map[model.DataKind][]*Buffer[DataEvent]

	respSink func(Response)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	received  int64
	data      int64
	responses int64
	dropped   int64
}

// New creates a data engine.
func New(cfg Config, logger *slog.Logger) Engine {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.InputBufferSize == 0 {
		cfg.InputBufferSize = def.InputBufferSize
	}
	if cfg.SubscriberBufferSize == 0 {
		cfg.SubscriberBufferSize = def.SubscriberBufferSize
	}
	return &engine{
		cfg:    cfg,
		logger: logger,
		input:  NewBuffer[Event](cfg.InputBufferSize),
		subs:   make(map[model.DataKind][]*Buffer[DataEvent]),
	}
}

// Start begins the routing loop.
func (e *engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go e.routeLoop()

	e.logger.Info("data engine started",
		"input_buffer", e.cfg.InputBufferSize,
	)
	return nil
}

// Stop gracefully shuts down.
func (e *engine) Stop(ctx context.Context) error {
	e.logger.Info("stopping data engine")

	if e.cancel != nil {
		e.cancel()
	}
	e.input.Close()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("data engine stopped")
	case <-ctx.Done():
		e.logger.Warn("data engine stop timed out")
	}

	e.subsMu.RLock()
	for _, bufs := range e.subs {
		for _, b := range bufs {
			b.Close()
		}
	}
	e.subsMu.RUnlock()

	return nil
}

// Publisher returns the adapter-facing publish handle.
func (e *engine) Publisher() Publisher { return (*enginePublisher)(e) }

// SubscribeData registers a subscriber buffer for a data kind.
func (e *engine) SubscribeData(kind model.DataKind) *Buffer[DataEvent] {
	buf := NewBuffer[DataEvent](e.cfg.SubscriberBufferSize)

	e.subsMu.Lock()
	e.subs[kind] = append(e.subs[kind], buf)
	e.subsMu.Unlock()

	return buf
}

// SetResponseSink registers the response handler.
func (e *engine) SetResponseSink(sink func(Response)) {
	e.respSink = sink
}

// Stats returns current statistics.
func (e *engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		EventsReceived:  e.received,
		DataRouted:      e.data,
		ResponsesRouted: e.responses,
		Dropped:         e.dropped,
		Input:           e.input.Stats(),
	}
}

// routeLoop drains the input buffer and routes each event.
func (e *engine) routeLoop() {
	defer e.wg.Done()

	for {
		ev, ok := e.input.Receive()
		if !ok {
			return
		}
		e.route(ev)
	}
}

// route dispatches a single event.
func (e *engine) route(ev Event) {
	e.mu.Lock()
	e.received++
	e.mu.Unlock()

	switch {
	case ev.Response != nil:
		if e.respSink == nil {
			e.logger.Warn("response with no sink registered",
				"correlation_id", ev.Response.CorrelationID,
			)
			e.mu.Lock()
			e.dropped++
			e.mu.Unlock()
			return
		}
		e.respSink(*ev.Response)
		e.mu.Lock()
		e.responses++
		e.mu.Unlock()

	case ev.Data != nil:
		e.subsMu.RLock()
		bufs := e.subs[ev.Data.Kind]
		e.subsMu.RUnlock()

		if len(bufs) == 0 {
			e.mu.Lock()
			e.dropped++
			e.mu.Unlock()
			return
		}
		for _, b := range bufs {
			b.Send(*ev.Data)
		}
		e.mu.Lock()
		e.data++
		e.mu.Unlock()
	}
}

// enginePublisher adapts the engine input buffer to the Publisher interface.
type enginePublisher engine

func (p *enginePublisher) PublishData(ev DataEvent) {
	if !p.input.Send(Event{Data: &ev}) {
		p.logger.Warn("publish on closed engine, dropping data event", "kind", ev.Kind)
	}
}

func (p *enginePublisher) PublishResponse(resp Response) {
	if !p.input.Send(Event{Response: &resp}) {
		p.logger.Warn("publish on closed engine, dropping response",
			"correlation_id", resp.CorrelationID,
		)
	}
}
