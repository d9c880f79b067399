package model

import (
	"fmt"
	"strings"
)

// Venue identifies an external market-data source (e.g., "COINBASE").
type Venue string

// InstrumentID uniquely identifies an instrument on a venue.
type InstrumentID struct {
	Symbol string
	Venue  Venue
}

// NewInstrumentID creates an InstrumentID from a symbol and venue.
func NewInstrumentID(symbol string, venue Venue) InstrumentID {
	return InstrumentID{Symbol: symbol, Venue: venue}
}

// String returns the canonical "SYMBOL.VENUE" form.
func (id InstrumentID) String() string {
	return id.Symbol + "." + string(id.Venue)
}

// IsZero reports whether the identifier is empty.
func (id InstrumentID) IsZero() bool {
	return id.Symbol == "" && id.Venue == ""
}

// ParseInstrumentID parses the "SYMBOL.VENUE" form. The venue is everything
// after the last dot, so symbols may themselves contain dots.
func ParseInstrumentID(s string) (InstrumentID, error) {
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return InstrumentID{}, fmt.Errorf("parse instrument id %q: expected SYMBOL.VENUE", s)
	}
	return InstrumentID{Symbol: s[:i], Venue: Venue(s[i+1:])}, nil
}
