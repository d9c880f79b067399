package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// Data Kinds
// -----------------------------------------------------------------------------

// DataKind identifies a logical category of data the framework can route.
type DataKind string

const (
	KindInstruments      DataKind = "instruments"       // Bulk instrument metadata
	KindInstrument       DataKind = "instrument"        // Single instrument metadata
	KindBookDelta        DataKind = "book_delta"        // Incremental order book updates
	KindBookSnapshot     DataKind = "book_snapshot"     // Full order book state
	KindQuoteTick        DataKind = "quote_tick"        // Top-of-book quotes
	KindTradeTick        DataKind = "trade_tick"        // Executed trades
	KindBar              DataKind = "bar"               // Aggregated bars
	KindInstrumentStatus DataKind = "instrument_status" // Trading status changes
	KindInstrumentClose  DataKind = "instrument_close"  // Instrument close events
)

// DataType describes a data kind plus adapter-specific metadata. Metadata
// keys are adapter-defined; nil means default configuration.
type DataType struct {
	Kind     DataKind
	Metadata map[string]string
}

// NewDataType creates a DataType with no metadata.
func NewDataType(kind DataKind) DataType {
	return DataType{Kind: kind}
}

// String returns the kind plus any metadata in stable form.
func (dt DataType) String() string {
	if len(dt.Metadata) == 0 {
		return string(dt.Kind)
	}
	keys := make([]string, 0, len(dt.Metadata))
	for k := range dt.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys) // map iteration order is not stable
	var b strings.Builder
	b.WriteString(string(dt.Kind))
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(dt.Metadata[k])
	}
	return b.String()
}

// -----------------------------------------------------------------------------
// Order Book
// -----------------------------------------------------------------------------

// BookType indicates order book granularity.
type BookType int

const (
	BookL1 BookType = iota + 1 // Top-of-book only
	BookL2                     // Aggregated depth per price level
	BookL3                     // Individual orders
)

// String returns the book type name.
func (bt BookType) String() string {
	switch bt {
	case BookL1:
		return "L1"
	case BookL2:
		return "L2"
	case BookL3:
		return "L3"
	default:
		return fmt.Sprintf("BookType(%d)", int(bt))
	}
}

// OrderSide indicates which side of the book an entry belongs to.
type OrderSide string

const (
	SideBid OrderSide = "bid"
	SideAsk OrderSide = "ask"
)

// BookAction indicates how a delta mutates the book.
type BookAction string

const (
	ActionAdd    BookAction = "add"
	ActionUpdate BookAction = "update"
	ActionDelete BookAction = "delete"
	ActionClear  BookAction = "clear"
)

// -----------------------------------------------------------------------------
// Bars
// -----------------------------------------------------------------------------

// BarAggregation is the unit a bar aggregates over.
type BarAggregation string

const (
	AggSecond BarAggregation = "SECOND"
	AggMinute BarAggregation = "MINUTE"
	AggHour   BarAggregation = "HOUR"
	AggDay    BarAggregation = "DAY"
	AggTick   BarAggregation = "TICK"
	AggVolume BarAggregation = "VOLUME"
)

// BarSpec defines the aggregation of a bar series (e.g., 5-MINUTE).
type BarSpec struct {
	Step        int
	Aggregation BarAggregation
}

// String returns the "STEP-AGGREGATION" form.
func (s BarSpec) String() string {
	return strconv.Itoa(s.Step) + "-" + string(s.Aggregation)
}

// BarType identifies a bar series for an instrument.
type BarType struct {
	InstrumentID InstrumentID
	Spec         BarSpec
}

// String returns the "SYMBOL.VENUE-STEP-AGGREGATION" form.
func (bt BarType) String() string {
	return bt.InstrumentID.String() + "-" + bt.Spec.String()
}

// IsZero reports whether the bar type is empty.
func (bt BarType) IsZero() bool {
	return bt.InstrumentID.IsZero() && bt.Spec.Step == 0
}

// ParseBarType parses the "SYMBOL.VENUE-STEP-AGGREGATION" form.
func ParseBarType(s string) (BarType, error) {
	parts := strings.Split(s, "-")
	if len(parts) < 3 {
		return BarType{}, fmt.Errorf("parse bar type %q: expected SYMBOL.VENUE-STEP-AGGREGATION", s)
	}
	agg := parts[len(parts)-1]
	step, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil || step <= 0 {
		return BarType{}, fmt.Errorf("parse bar type %q: invalid step", s)
	}
	id, err := ParseInstrumentID(strings.Join(parts[:len(parts)-2], "-"))
	if err != nil {
		return BarType{}, fmt.Errorf("parse bar type %q: %w", s, err)
	}
	switch BarAggregation(agg) {
	case AggSecond, AggMinute, AggHour, AggDay, AggTick, AggVolume:
	default:
		return BarType{}, fmt.Errorf("parse bar type %q: unknown aggregation %q", s, agg)
	}
	return BarType{InstrumentID: id, Spec: BarSpec{Step: step, Aggregation: BarAggregation(agg)}}, nil
}
