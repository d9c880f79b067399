package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/quantfabric/livedata/internal/model"
)

// DataEvent is a market-data payload published by an adapter.
type DataEvent struct {
	Kind         model.DataKind
	InstrumentID model.InstrumentID // Zero for bulk events
	Data         any                // model.QuoteTick, model.TradeTick, model.Bar, ...
	ReceivedAt   time.Time
}

// Response is the asynchronous answer to a correlation-tracked request.
// Exactly one Response is delivered per accepted request; Err is set when
// the adapter rejected the request (including unsupported request kinds).
type Response struct {
	CorrelationID uuid.UUID
	DataType      model.DataType
	Data          any // []model.Instrument, []model.QuoteTick, model.BookSnapshot, ...
	Err           error
	ReceivedAt    time.Time
}

// Event is a single item on the ingestion path. Exactly one of Data or
// Response is set.
type Event struct {
	Data     *DataEvent
	Response *Response
}

// Publisher is the adapter-facing side of the ingestion path.
type Publisher interface {
	// PublishData delivers a market-data event. Non-blocking.
	PublishData(ev DataEvent)

	// PublishResponse delivers a request response. Non-blocking.
	PublishResponse(resp Response)
}
