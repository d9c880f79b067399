package routing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/quantfabric/livedata/internal/client"
	"github.com/quantfabric/livedata/internal/model"
)

// Subscription describes a single subscription command. The identifying
// key depends on Kind: bar subscriptions use BarType, bulk instrument
// subscriptions use no key, everything else uses InstrumentID. DataType
// carries adapter-specific metadata for generic subscriptions.
type Subscription struct {
	Kind         model.DataKind
	InstrumentID model.InstrumentID
	BarType      model.BarType
	BookType     model.BookType // Book subscriptions only
	Depth        int            // 0 = full depth as provided by venue
	DataType     model.DataType // Generic subscriptions only
	Params       client.Params
}

// Key returns the deduplication key for this subscription.
func (s Subscription) Key() string {
	switch s.Kind {
	case model.KindBar:
		return string(s.Kind) + "|" + s.BarType.String()
	case model.KindInstruments:
		return string(s.Kind)
	case "":
		return "generic|" + s.DataType.String()
	default:
		return string(s.Kind) + "|" + s.InstrumentID.String()
	}
}

// dataType returns the DataType used for the generic-hook fallback.
func (s Subscription) dataType() model.DataType {
	if s.Kind == "" {
		return s.DataType
	}
	dt := model.DataType{Kind: s.Kind, Metadata: map[string]string{}}
	for k, v := range s.DataType.Metadata {
		dt.Metadata[k] = v
	}
	switch s.Kind {
	case model.KindBar:
		dt.Metadata["bar_type"] = s.BarType.String()
	case model.KindInstruments:
	default:
		dt.Metadata["instrument_id"] = s.InstrumentID.String()
	}
	return dt
}

// Router routes subscription commands to one adapter.
type Router struct {
	client client.MarketDataClient
	logger *slog.Logger

	mu      sync.Mutex
	active  map[string]Subscription
	pending map[string]struct{} // Keys with an adapter call in flight
}

// NewRouter creates a subscription router for the given adapter.
func NewRouter(c client.MarketDataClient, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		client:  c,
		logger:  logger.With("client", c.Name()),
		active:  make(map[string]Subscription),
		pending: make(map[string]struct{}),
	}
}

// Subscribe routes a subscription to the matching typed hook. Subscribing
// an already-active key is a no-op. If the typed hook is a declared
// capability gap the router falls back to the adapter's generic Subscribe;
// if both are gaps the original gap is returned so callers can surface it
// as "unsupported" rather than crash.
func (r *Router) Subscribe(ctx context.Context, sub Subscription) error {
	key := sub.Key()

	// Reserve the key before dispatching so a concurrent duplicate
	// cannot invoke the adapter hook a second time.
	if !r.reserve(key) {
		r.logger.Debug("already subscribed", "key", key)
		return nil
	}

	err := r.dispatchSubscribe(ctx, sub)
	if client.IsUnsupported(err) && sub.Kind != "" {
		fallbackErr := r.client.Subscribe(ctx, sub.dataType(), sub.Params)
		if fallbackErr == nil {
			r.logger.Debug("typed subscribe unsupported, using generic", "key", key)
			err = nil
		} else if client.IsUnsupported(fallbackErr) {
			// Keep the typed gap: it names the operation the caller asked for.
			r.release(key)
			return err
		} else {
			r.release(key)
			return fallbackErr
		}
	}
	if err != nil {
		r.release(key)
		return err
	}

	r.mu.Lock()
	delete(r.pending, key)
	r.active[key] = sub
	r.mu.Unlock()

	r.logger.Debug("subscribed", "key", key)
	return nil
}

// reserve marks a key in flight unless it is already active or reserved.
func (r *Router) reserve(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[key]; exists {
		return false
	}
	if _, inflight := r.pending[key]; inflight {
		return false
	}
	r.pending[key] = struct{}{}
	return true
}

// release rolls back a reservation after a failed adapter call.
func (r *Router) release(key string) {
	r.mu.Lock()
	delete(r.pending, key)
	r.mu.Unlock()
}

// Unsubscribe routes the inverse command. Unknown keys are a no-op.
func (r *Router) Unsubscribe(ctx context.Context, sub Subscription) error {
	key := sub.Key()

	r.mu.Lock()
	if _, exists := r.active[key]; !exists {
		r.mu.Unlock()
		r.logger.Debug("unsubscribe of inactive key, skipping", "key", key)
		return nil
	}
	if _, inflight := r.pending[key]; inflight {
		r.mu.Unlock()
		r.logger.Debug("unsubscribe already in flight, skipping", "key", key)
		return nil
	}
	r.pending[key] = struct{}{}
	r.mu.Unlock()

	err := r.dispatchUnsubscribe(ctx, sub)
	if client.IsUnsupported(err) && sub.Kind != "" {
		fallbackErr := r.client.Unsubscribe(ctx, sub.dataType(), sub.Params)
		if fallbackErr == nil {
			err = nil
		} else if client.IsUnsupported(fallbackErr) {
			r.release(key)
			return err
		} else {
			r.release(key)
			return fallbackErr
		}
	}
	if err != nil {
		r.release(key)
		return err
	}

	r.mu.Lock()
	delete(r.pending, key)
	delete(r.active, key)
	r.mu.Unlock()

	r.logger.Debug("unsubscribed", "key", key)
	return nil
}

// Active returns a snapshot of active subscriptions.
func (r *Router) Active() []Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := make([]Subscription, 0, len(r.active))
	for _, s := range r.active {
		subs = append(subs, s)
	}
	return subs
}

// dispatchSubscribe calls the typed subscribe hook for the kind.
func (r *Router) dispatchSubscribe(ctx context.Context, sub Subscription) error {
	switch sub.Kind {
	case model.KindInstruments:
		return r.client.SubscribeInstruments(ctx, sub.Params)
	case model.KindInstrument:
		return r.client.SubscribeInstrument(ctx, sub.InstrumentID, sub.Params)
	case model.KindBookDelta:
		return r.client.SubscribeOrderBookDeltas(ctx, sub.InstrumentID, sub.BookType, sub.Depth, sub.Params)
	case model.KindBookSnapshot:
		return r.client.SubscribeOrderBookSnapshots(ctx, sub.InstrumentID, sub.BookType, sub.Depth, sub.Params)
	case model.KindQuoteTick:
		return r.client.SubscribeQuoteTicks(ctx, sub.InstrumentID, sub.Params)
	case model.KindTradeTick:
		return r.client.SubscribeTradeTicks(ctx, sub.InstrumentID, sub.Params)
	case model.KindBar:
		return r.client.SubscribeBars(ctx, sub.BarType, sub.Params)
	case model.KindInstrumentStatus:
		return r.client.SubscribeInstrumentStatus(ctx, sub.InstrumentID, sub.Params)
	case model.KindInstrumentClose:
		return r.client.SubscribeInstrumentClose(ctx, sub.InstrumentID, sub.Params)
	case "":
		return r.client.Subscribe(ctx, sub.DataType, sub.Params)
	default:
		return fmt.Errorf("unknown data kind %q", sub.Kind)
	}
}

// dispatchUnsubscribe calls the typed unsubscribe hook for the kind.
func (r *Router) dispatchUnsubscribe(ctx context.Context, sub Subscription) error {
	switch sub.Kind {
	case model.KindInstruments:
		return r.client.UnsubscribeInstruments(ctx, sub.Params)
	case model.KindInstrument:
		return r.client.UnsubscribeInstrument(ctx, sub.InstrumentID, sub.Params)
	case model.KindBookDelta:
		return r.client.UnsubscribeOrderBookDeltas(ctx, sub.InstrumentID, sub.Params)
	case model.KindBookSnapshot:
		return r.client.UnsubscribeOrderBookSnapshots(ctx, sub.InstrumentID, sub.Params)
	case model.KindQuoteTick:
		return r.client.UnsubscribeQuoteTicks(ctx, sub.InstrumentID, sub.Params)
	case model.KindTradeTick:
		return r.client.UnsubscribeTradeTicks(ctx, sub.InstrumentID, sub.Params)
	case model.KindBar:
		return r.client.UnsubscribeBars(ctx, sub.BarType, sub.Params)
	case model.KindInstrumentStatus:
		return r.client.UnsubscribeInstrumentStatus(ctx, sub.InstrumentID, sub.Params)
	case model.KindInstrumentClose:
		return r.client.UnsubscribeInstrumentClose(ctx, sub.InstrumentID, sub.Params)
	case "":
		return r.client.Unsubscribe(ctx, sub.DataType, sub.Params)
	default:
		return fmt.Errorf("unknown data kind %q", sub.Kind)
	}
}
