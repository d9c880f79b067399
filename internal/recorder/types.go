package recorder

import (
	"time"
)

// Config contains configuration for batch recorders.
type Config struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     1000,
		FlushInterval: 5 * time.Second,
	}
}

// tradeRow represents a row to be inserted into the trades table.
type tradeRow struct {
	TradeID      string // UUID
	InstrumentID string // "SYMBOL.VENUE"
	Price        float64
	Size         float64
	Aggressor    string // "bid" or "ask"
	TsEvent      int64  // Microseconds
	TsRecv       int64  // Microseconds
}

// quoteRow represents a row for the quotes table.
type quoteRow struct {
	InstrumentID string
	BidPrice     float64
	AskPrice     float64
	BidSize      float64
	AskSize      float64
	TsEvent      int64
	TsRecv       int64
}

// barRow represents a row for the bars table.
type barRow struct {
	BarType string // "SYMBOL.VENUE-STEP-AGG"
	Open    float64
	High    float64
	Low     float64
	Close   float64
	Volume  float64
	TsEvent int64
	TsRecv  int64
}

// Metrics holds metrics for a recorder.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Skipped   int64
	Flushes   int64
}
