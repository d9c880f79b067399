package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantfabric/livedata/internal/client"
	"github.com/quantfabric/livedata/internal/engine"
	"github.com/quantfabric/livedata/internal/model"
)

// Errors
var (
	ErrTimeout      = errors.New("request timed out")
	ErrInvalidRange = errors.New("start is after end")
)

// Request describes a data query. The identifying key depends on
// DataType.Kind: bars use BarType, bulk instrument requests use Venue,
// everything else uses InstrumentID. Zero Start means earliest available,
// zero End means up to now, Limit 0 means adapter default.
type Request struct {
	DataType     model.DataType
	InstrumentID model.InstrumentID
	Venue        model.Venue
	BarType      model.BarType
	Limit        int
	Start        time.Time
	End          time.Time
	Params       client.Params
}

// Handle tracks one in-flight request.
type Handle struct {
	CorrelationID uuid.UUID

	d  *Dispatcher
	ch chan engine.Response
}

// Wait blocks until the response arrives, ctx is done, or the dispatcher
// timeout elapses. On expiry the correlation entry is dropped so a late
// response is discarded.
func (h *Handle) Wait(ctx context.Context) (engine.Response, error) {
	timer := time.NewTimer(h.d.timeout)
	defer timer.Stop()

	select {
	case resp := <-h.ch:
		return resp, nil
	case <-ctx.Done():
		h.d.expire(h.CorrelationID)
		return engine.Response{}, ctx.Err()
	case <-timer.C:
		h.d.expire(h.CorrelationID)
		return engine.Response{}, fmt.Errorf("correlation %s: %w", h.CorrelationID, ErrTimeout)
	}
}

// Dispatcher dispatches requests against one adapter and matches
// responses by correlation identifier.
type Dispatcher struct {
	client  client.MarketDataClient
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	pending map[uuid.UUID]chan engine.Response
}

// NewDispatcher creates a request dispatcher. timeout bounds Handle.Wait;
// the contract itself models no timeout, so this is the caller-side policy.
func NewDispatcher(c client.MarketDataClient, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		client:  c,
		logger:  logger.With("client", c.Name()),
		timeout: timeout,
		pending: make(map[uuid.UUID]chan engine.Response),
	}
}

// Dispatch generates a correlation id and invokes the matching request
// hook. Caller errors (invalid time range) and declared capability gaps
// are reported through the handle under the correlation id, preserving
// correlation-based error reporting; only transport-level dispatch
// failures are returned synchronously.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Handle, error) {
	id := uuid.New()
	ch := make(chan engine.Response, 1)

	d.mu.Lock()
	d.pending[id] = ch
	d.mu.Unlock()

	h := &Handle{CorrelationID: id, d: d, ch: ch}

	if !req.Start.IsZero() && !req.End.IsZero() && req.Start.After(req.End) {
		d.HandleResponse(engine.Response{
			CorrelationID: id,
			DataType:      req.DataType,
			Err:           fmt.Errorf("%s: %w", req.DataType.Kind, ErrInvalidRange),
			ReceivedAt:    time.Now(),
		})
		return h, nil
	}

	typed, err := d.dispatch(ctx, id, req)
	if client.IsUnsupported(err) {
		// Fall back to the generic request hook before declaring a gap.
		if typed {
			if genErr := d.client.Request(ctx, req.DataType, id, req.Params); genErr == nil {
				err = nil
			} else if !client.IsUnsupported(genErr) {
				err = genErr
			}
		}
		if client.IsUnsupported(err) {
			d.HandleResponse(engine.Response{
				CorrelationID: id,
				DataType:      req.DataType,
				Err:           err,
				ReceivedAt:    time.Now(),
			})
			return h, nil
		}
	}
	if err != nil {
		d.expire(id)
		return nil, fmt.Errorf("dispatch %s: %w", req.DataType.Kind, err)
	}

	d.logger.Debug("request dispatched",
		"kind", req.DataType.Kind,
		"correlation_id", id,
	)
	return h, nil
}

// HandleResponse delivers a response to the waiting handle. Responses for
// unknown or expired correlation ids are discarded; the adapter may
// legitimately deliver late after the caller gave up.
func (d *Dispatcher) HandleResponse(resp engine.Response) {
	d.mu.Lock()
	ch, ok := d.pending[resp.CorrelationID]
	if ok {
		delete(d.pending, resp.CorrelationID)
	}
	d.mu.Unlock()

	if !ok {
		d.logger.Debug("discarding response for unknown correlation id",
			"correlation_id", resp.CorrelationID,
		)
		return
	}

	select {
	case ch <- resp:
	default:
	}
}

// Pending returns the number of in-flight requests.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// expire removes a correlation entry after timeout or cancellation.
func (d *Dispatcher) expire(id uuid.UUID) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

// dispatch calls the typed request hook for the kind. typed reports
// whether a typed hook handled the kind; adapter-specific kinds go
// straight to the generic hook.
func (d *Dispatcher) dispatch(ctx context.Context, id uuid.UUID, req Request) (typed bool, err error) {
	switch req.DataType.Kind {
	case model.KindInstrument:
		return true, d.client.RequestInstrument(ctx, req.InstrumentID, id, req.Start, req.End, req.Params)
	case model.KindInstruments:
		return true, d.client.RequestInstruments(ctx, req.Venue, id, req.Start, req.End, req.Params)
	case model.KindBookSnapshot:
		return true, d.client.RequestOrderBookSnapshot(ctx, req.InstrumentID, req.Limit, id, req.Params)
	case model.KindQuoteTick:
		return true, d.client.RequestQuoteTicks(ctx, req.InstrumentID, req.Limit, id, req.Start, req.End, req.Params)
	case model.KindTradeTick:
		return true, d.client.RequestTradeTicks(ctx, req.InstrumentID, req.Limit, id, req.Start, req.End, req.Params)
	case model.KindBar:
		return true, d.client.RequestBars(ctx, req.BarType, req.Limit, id, req.Start, req.End, req.Params)
	default:
		return false, d.client.Request(ctx, req.DataType, id, req.Params)
	}
}
