package model

import (
	"testing"
)

func TestParseInstrumentID(t *testing.T) {
	tests := []struct {
		input   string
		want    InstrumentID
		wantErr bool
	}{
		{"BTC-USD.COINBASE", InstrumentID{Symbol: "BTC-USD", Venue: "COINBASE"}, false},
		{"ES.Z5.CME", InstrumentID{Symbol: "ES.Z5", Venue: "CME"}, false},
		{"NOVENUE", InstrumentID{}, true},
		{".VENUE", InstrumentID{}, true},
		{"SYMBOL.", InstrumentID{}, true},
		{"", InstrumentID{}, true},
	}

	for _, tt := range tests {
		got, err := ParseInstrumentID(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseInstrumentID(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseInstrumentID(%q) failed: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseInstrumentID(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
		if got.String() != tt.input {
			t.Errorf("round trip of %q = %q", tt.input, got.String())
		}
	}
}

func TestInstrumentID_IsZero(t *testing.T) {
	if !(InstrumentID{}).IsZero() {
		t.Error("zero value should report IsZero")
	}
	if NewInstrumentID("BTC-USD", "COINBASE").IsZero() {
		t.Error("populated id should not report IsZero")
	}
}

func TestDataType_String(t *testing.T) {
	dt := DataType{Kind: KindQuoteTick}
	if dt.String() != "quote_tick" {
		t.Errorf("String = %q, want %q", dt.String(), "quote_tick")
	}

	// Metadata renders sorted by key, so equal types render equally.
	a := DataType{Kind: KindBar, Metadata: map[string]string{"b": "2", "a": "1"}}
	b := DataType{Kind: KindBar, Metadata: map[string]string{"a": "1", "b": "2"}}
	if a.String() != b.String() {
		t.Errorf("identical metadata rendered differently: %q vs %q", a.String(), b.String())
	}
	want := "bar|a=1|b=2"
	if a.String() != want {
		t.Errorf("String = %q, want %q", a.String(), want)
	}
}

func TestParseBarType(t *testing.T) {
	bt, err := ParseBarType("BTC-USD.COINBASE-5-MINUTE")
	if err != nil {
		t.Fatalf("ParseBarType failed: %v", err)
	}
	if bt.InstrumentID.Symbol != "BTC-USD" {
		t.Errorf("Symbol = %q, want %q", bt.InstrumentID.Symbol, "BTC-USD")
	}
	if bt.InstrumentID.Venue != "COINBASE" {
		t.Errorf("Venue = %q, want %q", bt.InstrumentID.Venue, "COINBASE")
	}
	if bt.Spec.Step != 5 || bt.Spec.Aggregation != AggMinute {
		t.Errorf("Spec = %+v, want 5-MINUTE", bt.Spec)
	}
	if bt.String() != "BTC-USD.COINBASE-5-MINUTE" {
		t.Errorf("round trip = %q", bt.String())
	}

	invalid := []string{
		"",
		"BTC-USD.COINBASE",
		"BTC-USD.COINBASE-0-MINUTE",
		"BTC-USD.COINBASE-5-FORTNIGHT",
		"BTC-USD.COINBASE-x-MINUTE",
	}
	for _, s := range invalid {
		if _, err := ParseBarType(s); err == nil {
			t.Errorf("ParseBarType(%q): expected error", s)
		}
	}
}

func TestBookType_String(t *testing.T) {
	tests := []struct {
		bt   BookType
		want string
	}{
		{BookL1, "L1"},
		{BookL2, "L2"},
		{BookL3, "L3"},
	}
	for _, tt := range tests {
		if tt.bt.String() != tt.want {
			t.Errorf("BookType(%d).String() = %q, want %q", tt.bt, tt.bt.String(), tt.want)
		}
	}
}
