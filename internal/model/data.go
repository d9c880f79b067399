package model

import "github.com/google/uuid"

// -----------------------------------------------------------------------------
// Market Data Payloads
// -----------------------------------------------------------------------------

// QuoteTick is a top-of-book quote update.
type QuoteTick struct {
	InstrumentID InstrumentID
	BidPrice     float64
	AskPrice     float64
	BidSize      float64
	AskSize      float64
	TsEvent      int64 // Venue timestamp (µs since epoch)
	TsRecv       int64 // Local receive timestamp (µs since epoch)
}

// TradeTick is an executed trade.
type TradeTick struct {
	InstrumentID  InstrumentID
	TradeID       uuid.UUID // Venue trade ID, or generated if venue omits one
	Price         float64
	Size          float64
	AggressorSide OrderSide // Side of the taker
	TsEvent       int64
	TsRecv        int64
}

// Bar is an aggregated OHLCV bar.
type Bar struct {
	BarType BarType
	Open    float64
	High    float64
	Low     float64
	Close   float64
	Volume  float64
	TsEvent int64 // Bar close time
	TsRecv  int64
}

// BookLevel is a single price level in an order book.
type BookLevel struct {
	Price float64
	Size  float64
}

// BookDelta is an incremental order book update.
type BookDelta struct {
	InstrumentID InstrumentID
	Action       BookAction
	Side         OrderSide
	Level        BookLevel
	Seq          int64 // Venue sequence number (per-subscription)
	TsEvent      int64
	TsRecv       int64
}

// BookSnapshot is a full order book state at a point in time.
type BookSnapshot struct {
	InstrumentID InstrumentID
	Bids         []BookLevel
	Asks         []BookLevel
	Seq          int64
	TsEvent      int64
	TsRecv       int64
}

// InstrumentStatus is a trading-status change for an instrument.
type InstrumentStatus struct {
	InstrumentID InstrumentID
	Status       string // Venue status (e.g., "open", "halted", "closed")
	Reason       string // Optional venue-supplied reason
	TsEvent      int64
	TsRecv       int64
}

// InstrumentClose is a close event carrying the closing price.
type InstrumentClose struct {
	InstrumentID InstrumentID
	ClosePrice   float64
	CloseType    string // "end_of_session" or "expired"
	TsEvent      int64
	TsRecv       int64
}

// Instrument holds instrument metadata returned by metadata requests.
type Instrument struct {
	ID             InstrumentID
	BaseCurrency   string
	QuoteCurrency  string
	PriceIncrement float64
	SizeIncrement  float64
	MinSize        float64
	MaxSize        float64
	Expiration     int64 // 0 for perpetual instruments
	TsEvent        int64
}
