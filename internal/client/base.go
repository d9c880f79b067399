package client

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quantfabric/livedata/internal/model"
)

// BaseDataClient provides default implementations for every DataClient
// hook. Embed it in a concrete adapter and override the supported hooks.
//
// The required hooks (Connect, Disconnect) default to ErrNotImplemented;
// everything else defaults to ErrUnsupported.
type BaseDataClient struct {
	name  string
	venue model.Venue
	log   *slog.Logger
}

// NewBaseDataClient creates the embeddable base. Name and venue are
// mandatory; a nil logger falls back to slog.Default().
func NewBaseDataClient(name string, venue model.Venue, logger *slog.Logger) (*BaseDataClient, error) {
	if name == "" {
		return nil, errors.New("client name is required")
	}
	if venue == "" {
		return nil, errors.New("client venue is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BaseDataClient{
		name:  name,
		venue: venue,
		log:   logger.With("client", name, "venue", string(venue)),
	}, nil
}

// Name returns the adapter name.
func (c *BaseDataClient) Name() string { return c.name }

// Venue returns the adapter venue.
func (c *BaseDataClient) Venue() model.Venue { return c.venue }

// Logger returns the adapter-scoped logger.
func (c *BaseDataClient) Logger() *slog.Logger { return c.log }

// Connect is required; the default reports a fatal integration defect.
func (c *BaseDataClient) Connect(ctx context.Context) error {
	return notImplemented(c.name, "Connect")
}

// Disconnect is required; the default reports a fatal integration defect.
func (c *BaseDataClient) Disconnect(ctx context.Context) error {
	return notImplemented(c.name, "Disconnect")
}

// Reset is optional.
func (c *BaseDataClient) Reset() error {
	return unsupported(c.name, "Reset")
}

// Dispose is optional.
func (c *BaseDataClient) Dispose() error {
	return unsupported(c.name, "Dispose")
}

// Subscribe is optional.
func (c *BaseDataClient) Subscribe(ctx context.Context, dataType model.DataType, params Params) error {
	return unsupported(c.name, "Subscribe")
}

// Unsubscribe is optional.
func (c *BaseDataClient) Unsubscribe(ctx context.Context, dataType model.DataType, params Params) error {
	return unsupported(c.name, "Unsubscribe")
}

// Request is optional.
func (c *BaseDataClient) Request(ctx context.Context, dataType model.DataType, correlationID uuid.UUID, params Params) error {
	return unsupported(c.name, "Request")
}

// BaseMarketDataClient extends BaseDataClient with defaults for the
// typed market-data surface. Every typed hook is optional.
type BaseMarketDataClient struct {
	*BaseDataClient
}

// NewBaseMarketDataClient creates the embeddable market-data base.
func NewBaseMarketDataClient(name string, venue model.Venue, logger *slog.Logger) (*BaseMarketDataClient, error) {
	base, err := NewBaseDataClient(name, venue, logger)
	if err != nil {
		return nil, err
	}
	return &BaseMarketDataClient{BaseDataClient: base}, nil
}

// -- Subscription defaults ---------------------------------------------------

func (c *BaseMarketDataClient) SubscribeInstruments(ctx context.Context, params Params) error {
	return unsupported(c.name, "SubscribeInstruments")
}

func (c *BaseMarketDataClient) SubscribeInstrument(ctx context.Context, id model.InstrumentID, params Params) error {
	return unsupported(c.name, "SubscribeInstrument")
}

func (c *BaseMarketDataClient) SubscribeOrderBookDeltas(ctx context.Context, id model.InstrumentID, bookType model.BookType, depth int, params Params) error {
	return unsupported(c.name, "SubscribeOrderBookDeltas")
}

func (c *BaseMarketDataClient) SubscribeOrderBookSnapshots(ctx context.Context, id model.InstrumentID, bookType model.BookType, depth int, params Params) error {
	return unsupported(c.name, "SubscribeOrderBookSnapshots")
}

func (c *BaseMarketDataClient) SubscribeQuoteTicks(ctx context.Context, id model.InstrumentID, params Params) error {
	return unsupported(c.name, "SubscribeQuoteTicks")
}

func (c *BaseMarketDataClient) SubscribeTradeTicks(ctx context.Context, id model.InstrumentID, params Params) error {
	return unsupported(c.name, "SubscribeTradeTicks")
}

func (c *BaseMarketDataClient) SubscribeBars(ctx context.Context, barType model.BarType, params Params) error {
	return unsupported(c.name, "SubscribeBars")
}

func (c *BaseMarketDataClient) SubscribeInstrumentStatus(ctx context.Context, id model.InstrumentID, params Params) error {
	return unsupported(c.name, "SubscribeInstrumentStatus")
}

func (c *BaseMarketDataClient) SubscribeInstrumentClose(ctx context.Context, id model.InstrumentID, params Params) error {
	return unsupported(c.name, "SubscribeInstrumentClose")
}

func (c *BaseMarketDataClient) UnsubscribeInstruments(ctx context.Context, params Params) error {
	return unsupported(c.name, "UnsubscribeInstruments")
}

func (c *BaseMarketDataClient) UnsubscribeInstrument(ctx context.Context, id model.InstrumentID, params Params) error {
	return unsupported(c.name, "UnsubscribeInstrument")
}

func (c *BaseMarketDataClient) UnsubscribeOrderBookDeltas(ctx context.Context, id model.InstrumentID, params Params) error {
	return unsupported(c.name, "UnsubscribeOrderBookDeltas")
}

func (c *BaseMarketDataClient) UnsubscribeOrderBookSnapshots(ctx context.Context, id model.InstrumentID, params Params) error {
	return unsupported(c.name, "UnsubscribeOrderBookSnapshots")
}

func (c *BaseMarketDataClient) UnsubscribeQuoteTicks(ctx context.Context, id model.InstrumentID, params Params) error {
	return unsupported(c.name, "UnsubscribeQuoteTicks")
}

func (c *BaseMarketDataClient) UnsubscribeTradeTicks(ctx context.Context, id model.InstrumentID, params Params) error {
	return unsupported(c.name, "UnsubscribeTradeTicks")
}

func (c *BaseMarketDataClient) UnsubscribeBars(ctx context.Context, barType model.BarType, params Params) error {
	return unsupported(c.name, "UnsubscribeBars")
}

func (c *BaseMarketDataClient) UnsubscribeInstrumentStatus(ctx context.Context, id model.InstrumentID, params Params) error {
	return unsupported(c.name, "UnsubscribeInstrumentStatus")
}

func (c *BaseMarketDataClient) UnsubscribeInstrumentClose(ctx context.Context, id model.InstrumentID, params Params) error {
	return unsupported(c.name, "UnsubscribeInstrumentClose")
}

// -- Request defaults --------------------------------------------------------

func (c *BaseMarketDataClient) RequestInstrument(ctx context.Context, id model.InstrumentID, correlationID uuid.UUID, start, end time.Time, params Params) error {
	return unsupported(c.name, "RequestInstrument")
}

func (c *BaseMarketDataClient) RequestInstruments(ctx context.Context, venue model.Venue, correlationID uuid.UUID, start, end time.Time, params Params) error {
	return unsupported(c.name, "RequestInstruments")
}

func (c *BaseMarketDataClient) RequestOrderBookSnapshot(ctx context.Context, id model.InstrumentID, limit int, correlationID uuid.UUID, params Params) error {
	return unsupported(c.name, "RequestOrderBookSnapshot")
}

func (c *BaseMarketDataClient) RequestQuoteTicks(ctx context.Context, id model.InstrumentID, limit int, correlationID uuid.UUID, start, end time.Time, params Params) error {
	return unsupported(c.name, "RequestQuoteTicks")
}

func (c *BaseMarketDataClient) RequestTradeTicks(ctx context.Context, id model.InstrumentID, limit int, correlationID uuid.UUID, start, end time.Time, params Params) error {
	return unsupported(c.name, "RequestTradeTicks")
}

func (c *BaseMarketDataClient) RequestBars(ctx context.Context, barType model.BarType, limit int, correlationID uuid.UUID, start, end time.Time, params Params) error {
	return unsupported(c.name, "RequestBars")
}
