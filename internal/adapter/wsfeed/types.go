package wsfeed

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrCommandTimeout  = errors.New("command timeout")
	ErrAlreadyClosed   = errors.New("already closed")
)

// Config configures the adapter.
type Config struct {
	Name           string        // Adapter name (unique per process)
	Venue          string        // Venue identifier (e.g., "COINBASE")
	WSURL          string        // WebSocket endpoint
	RestURL        string        // REST history endpoint
	Token          string        // Bearer token (empty = no auth)
	PingTimeout    time.Duration // Max time without ping before the session is stale
	WriteTimeout   time.Duration // Write deadline for sends
	CommandTimeout time.Duration // Timeout for subscribe/unsubscribe acks
	BufferSize     int           // Session message channel buffer
	MaxRetries     int           // REST retry attempts

	ReconnectBaseWait time.Duration // Base wait before redialing a dropped session
	ReconnectMaxWait  time.Duration // Backoff cap for redials
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PingTimeout:    60 * time.Second,
		WriteTimeout:   5 * time.Second,
		CommandTimeout: 10 * time.Second,
		BufferSize:     10000,
		MaxRetries:     3,

		ReconnectBaseWait: 1 * time.Second,
		ReconnectMaxWait:  60 * time.Second,
	}
}

// Stream channels, one per standard data kind.
const (
	channelQuotes        = "quotes"
	channelTrades        = "trades"
	channelBook          = "book"
	channelBookSnapshots = "book_snapshots"
	channelBars          = "bars"
	channelStatus        = "status"
	channelClose         = "close"
	channelInstruments   = "instruments"
)

// command is a WebSocket command sent to the venue.
type command struct {
	ID      int64             `json:"id"`
	Op      string            `json:"op"` // "subscribe" or "unsubscribe"
	Channel string            `json:"channel"`
	Symbol  string            `json:"symbol,omitempty"`
	Depth   int               `json:"depth,omitempty"`
	BarSpec string            `json:"bar_spec,omitempty"`
	Args    map[string]string `json:"args,omitempty"`
}

// commandResponse is the venue's answer to a command.
type commandResponse struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"` // "ack" or "error"
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// streamEnvelope carries the type discriminator for a stream message.
type streamEnvelope struct {
	Type string `json:"type"`
}

// timestampedMessage wraps raw message data with receive timestamp.
type timestampedMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// Wire formats for stream messages.

type quoteWire struct {
	Symbol  string  `json:"symbol"`
	Bid     float64 `json:"bid"`
	Ask     float64 `json:"ask"`
	BidSize float64 `json:"bid_size"`
	AskSize float64 `json:"ask_size"`
	Ts      int64   `json:"ts"` // µs since epoch
}

type tradeWire struct {
	Symbol  string  `json:"symbol"`
	TradeID string  `json:"trade_id"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
	Side    string  `json:"side"` // Aggressor: "bid" or "ask"
	Ts      int64   `json:"ts"`
}

type bookDeltaWire struct {
	Symbol string  `json:"symbol"`
	Action string  `json:"action"` // "add", "update", "delete", "clear"
	Side   string  `json:"side"`
	Price  float64 `json:"price"`
	Size   float64 `json:"size"`
	Seq    int64   `json:"seq"`
	Ts     int64   `json:"ts"`
}

type bookSnapshotWire struct {
	Symbol string       `json:"symbol"`
	Bids   [][2]float64 `json:"bids"` // [price, size]
	Asks   [][2]float64 `json:"asks"`
	Seq    int64        `json:"seq"`
	Ts     int64        `json:"ts"`
}

type barWire struct {
	Symbol  string  `json:"symbol"`
	BarSpec string  `json:"bar_spec"`
	Open    float64 `json:"open"`
	High    float64 `json:"high"`
	Low     float64 `json:"low"`
	Close   float64 `json:"close"`
	Volume  float64 `json:"volume"`
	Ts      int64   `json:"ts"` // Bar close time
}

type statusWire struct {
	Symbol string `json:"symbol"`
	Status string `json:"status"`
	Reason string `json:"reason"`
	Ts     int64  `json:"ts"`
}

type closeWire struct {
	Symbol     string  `json:"symbol"`
	ClosePrice float64 `json:"close_price"`
	CloseType  string  `json:"close_type"`
	Ts         int64   `json:"ts"`
}

type instrumentWire struct {
	Symbol         string  `json:"symbol"`
	BaseCurrency   string  `json:"base_currency"`
	QuoteCurrency  string  `json:"quote_currency"`
	PriceIncrement float64 `json:"price_increment"`
	SizeIncrement  float64 `json:"size_increment"`
	MinSize        float64 `json:"min_size"`
	MaxSize        float64 `json:"max_size"`
	Expiration     int64   `json:"expiration"`
	Ts             int64   `json:"ts"`
}

// tryParseResponse attempts to parse a message as a command response.
func tryParseResponse(data []byte) (commandResponse, bool) {
	var resp commandResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return commandResponse{}, false
	}
	switch resp.Type {
	case "ack", "error":
		return resp, true
	}
	return commandResponse{}, false
}
