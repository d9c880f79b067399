package client

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quantfabric/livedata/internal/model"
)

// Params is an open key-value options bag. Recognized keys are
// adapter-specific; unrecognized keys are ignored and nil means defaults.
type Params map[string]string

// DataClient is the contract for a venue adapter handling non-market or
// custom data feeds.
//
// Connect and Disconnect are required. All other hooks are optional:
// an adapter that does not override them declares a capability gap
// (ErrUnsupported), which callers must surface without crashing.
//
// All operations are safe to invoke concurrently against one adapter
// instance; the adapter serializes access to its transport internally.
// Timeout and retry policy belong to the caller, via ctx or a surrounding
// resilience layer.
type DataClient interface {
	// Name returns the adapter name, unique per process.
	Name() string

	// Venue returns the venue this adapter connects to.
	Venue() model.Venue

	// Connect establishes the underlying session. Required. Callers must
	// not route operations to the adapter until Connect succeeds.
	Connect(ctx context.Context) error

	// Disconnect tears down the session and releases resources acquired
	// by Connect. Required. Safe to call when already disconnected.
	Disconnect(ctx context.Context) error

	// Reset returns the adapter to a fresh pre-connection state without
	// necessarily closing the transport. Optional.
	Reset() error

	// Dispose releases resources not covered by Disconnect. Optional.
	Dispose() error

	// Subscribe registers interest in an adapter-defined data kind.
	// Delivery happens asynchronously via the ingestion path. Optional.
	Subscribe(ctx context.Context, dataType model.DataType, params Params) error

	// Unsubscribe stops delivery for the matching subscription. A kind
	// with no active subscription is a no-op. Optional.
	Unsubscribe(ctx context.Context, dataType model.DataType, params Params) error

	// Request dispatches a correlation-tracked query for an
	// adapter-defined data kind. The response is delivered via the
	// ingestion path echoing correlationID; the call itself only confirms
	// acceptance. Optional.
	Request(ctx context.Context, dataType model.DataType, correlationID uuid.UUID, params Params) error
}

// MarketDataClient extends DataClient with the standard typed market-data
// surface: one subscribe/unsubscribe pair per data kind plus
// correlation-tracked history requests.
//
// For requests, a zero start means "earliest available" and a zero end
// means "up to now"; limit 0 means adapter default. A start after end is
// rejected through the response channel under the correlation id, not
// synchronously. Optional operations that are unimplemented must surface
// the gap under the correlation id rather than silently dropping the
// request.
type MarketDataClient interface {
	DataClient

	// -- Subscriptions --------------------------------------------------

	SubscribeInstruments(ctx context.Context, params Params) error
	SubscribeInstrument(ctx context.Context, id model.InstrumentID, params Params) error

	// SubscribeOrderBookDeltas subscribes to incremental book updates.
	// depth 0 means full depth as provided by the venue.
	SubscribeOrderBookDeltas(ctx context.Context, id model.InstrumentID, bookType model.BookType, depth int, params Params) error

	// SubscribeOrderBookSnapshots subscribes to periodic full-book states.
	SubscribeOrderBookSnapshots(ctx context.Context, id model.InstrumentID, bookType model.BookType, depth int, params Params) error

	SubscribeQuoteTicks(ctx context.Context, id model.InstrumentID, params Params) error
	SubscribeTradeTicks(ctx context.Context, id model.InstrumentID, params Params) error
	SubscribeBars(ctx context.Context, barType model.BarType, params Params) error
	SubscribeInstrumentStatus(ctx context.Context, id model.InstrumentID, params Params) error
	SubscribeInstrumentClose(ctx context.Context, id model.InstrumentID, params Params) error

	UnsubscribeInstruments(ctx context.Context, params Params) error
	UnsubscribeInstrument(ctx context.Context, id model.InstrumentID, params Params) error
	UnsubscribeOrderBookDeltas(ctx context.Context, id model.InstrumentID, params Params) error
	UnsubscribeOrderBookSnapshots(ctx context.Context, id model.InstrumentID, params Params) error
	UnsubscribeQuoteTicks(ctx context.Context, id model.InstrumentID, params Params) error
	UnsubscribeTradeTicks(ctx context.Context, id model.InstrumentID, params Params) error
	UnsubscribeBars(ctx context.Context, barType model.BarType, params Params) error
	UnsubscribeInstrumentStatus(ctx context.Context, id model.InstrumentID, params Params) error
	UnsubscribeInstrumentClose(ctx context.Context, id model.InstrumentID, params Params) error

	// -- Requests -------------------------------------------------------

	RequestInstrument(ctx context.Context, id model.InstrumentID, correlationID uuid.UUID, start, end time.Time, params Params) error
	RequestInstruments(ctx context.Context, venue model.Venue, correlationID uuid.UUID, start, end time.Time, params Params) error
	RequestOrderBookSnapshot(ctx context.Context, id model.InstrumentID, limit int, correlationID uuid.UUID, params Params) error
	RequestQuoteTicks(ctx context.Context, id model.InstrumentID, limit int, correlationID uuid.UUID, start, end time.Time, params Params) error
	RequestTradeTicks(ctx context.Context, id model.InstrumentID, limit int, correlationID uuid.UUID, start, end time.Time, params Params) error
	RequestBars(ctx context.Context, barType model.BarType, limit int, correlationID uuid.UUID, start, end time.Time, params Params) error
}
