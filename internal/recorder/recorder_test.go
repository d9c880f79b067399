package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/quantfabric/livedata/internal/engine"
	"github.com/quantfabric/livedata/internal/model"
)

func TestTradeRecorder_Transform(t *testing.T) {
	tradeID := uuid.New()
	trade := model.TradeTick{
		InstrumentID:  model.NewInstrumentID("BTC-USD", "COINBASE"),
		TradeID:       tradeID,
		Price:         100.5,
		Size:          0.25,
		AggressorSide: model.SideAsk,
		TsEvent:       1705320000000000,
		TsRecv:        1705320000000123,
	}

	row := transformTrade(trade)

	if row.TradeID != tradeID.String() {
		t.Errorf("TradeID = %s, want %s", row.TradeID, tradeID)
	}
	if row.InstrumentID != "BTC-USD.COINBASE" {
		t.Errorf("InstrumentID = %s, want BTC-USD.COINBASE", row.InstrumentID)
	}
	if row.Price != 100.5 {
		t.Errorf("Price = %v, want 100.5", row.Price)
	}
	if row.Aggressor != "ask" {
		t.Errorf("Aggressor = %q, want ask", row.Aggressor)
	}
	if row.TsEvent != 1705320000000000 {
		t.Errorf("TsEvent = %d, want 1705320000000000", row.TsEvent)
	}
	if row.TsRecv != 1705320000000123 {
		t.Errorf("TsRecv = %d, want 1705320000000123", row.TsRecv)
	}
}

func TestTradeRecorder_HandleEvent_AddsToBatch(t *testing.T) {
	cfg := Config{
		BatchSize:     100,
		FlushInterval: time.Hour,
	}
	input := engine.NewBuffer[engine.DataEvent](10)
	r := NewTradeRecorder(cfg, input, nil, nil)

	r.handleEvent(engine.DataEvent{
		Kind: model.KindTradeTick,
		Data: model.TradeTick{TradeID: uuid.New(), Price: 1},
	})
	r.handleEvent(engine.DataEvent{
		Kind: model.KindTradeTick,
		Data: model.TradeTick{TradeID: uuid.New(), Price: 2},
	})

	r.batchMu.Lock()
	n := len(r.batch)
	r.batchMu.Unlock()
	if n != 2 {
		t.Errorf("batch = %d rows, want 2", n)
	}
}

func TestTradeRecorder_SkipsForeignPayloads(t *testing.T) {
	cfg := DefaultConfig()
	input := engine.NewBuffer[engine.DataEvent](10)
	r := NewTradeRecorder(cfg, input, nil, nil)

	r.handleEvent(engine.DataEvent{
		Kind: model.KindQuoteTick,
		Data: model.QuoteTick{BidPrice: 1},
	})

	r.batchMu.Lock()
	n := len(r.batch)
	skipped := r.metrics.Skipped
	r.batchMu.Unlock()
	if n != 0 {
		t.Errorf("batch = %d rows, want 0", n)
	}
	if skipped != 1 {
		t.Errorf("Skipped = %d, want 1", skipped)
	}
}

func TestQuoteRecorder_HandleEvent(t *testing.T) {
	cfg := Config{
		BatchSize:     100,
		FlushInterval: time.Hour,
	}
	input := engine.NewBuffer[engine.DataEvent](10)
	r := NewQuoteRecorder(cfg, input, nil, nil)

	quote := model.QuoteTick{
		InstrumentID: model.NewInstrumentID("BTC-USD", "COINBASE"),
		BidPrice:     100.4,
		AskPrice:     100.6,
		BidSize:      2,
		AskSize:      3,
		TsEvent:      1705320000000000,
		TsRecv:       1705320000000050,
	}
	r.handleEvent(engine.DataEvent{Kind: model.KindQuoteTick, Data: quote})

	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	if len(r.batch) != 1 {
		t.Fatalf("batch = %d rows, want 1", len(r.batch))
	}
	row := r.batch[0]
	if row.InstrumentID != "BTC-USD.COINBASE" {
		t.Errorf("InstrumentID = %s", row.InstrumentID)
	}
	if row.BidPrice != 100.4 || row.AskPrice != 100.6 {
		t.Errorf("prices = %v/%v", row.BidPrice, row.AskPrice)
	}
}

func TestBarRecorder_HandleEvent(t *testing.T) {
	cfg := Config{
		BatchSize:     100,
		FlushInterval: time.Hour,
	}
	input := engine.NewBuffer[engine.DataEvent](10)
	r := NewBarRecorder(cfg, input, nil, nil)

	bar := model.Bar{
		BarType: model.BarType{
			InstrumentID: model.NewInstrumentID("BTC-USD", "COINBASE"),
			Spec:         model.BarSpec{Step: 5, Aggregation: model.AggMinute},
		},
		Open:    100,
		High:    102,
		Low:     99,
		Close:   101,
		Volume:  42,
		TsEvent: 1705320300000000,
	}
	r.handleEvent(engine.DataEvent{Kind: model.KindBar, Data: bar})

	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	if len(r.batch) != 1 {
		t.Fatalf("batch = %d rows, want 1", len(r.batch))
	}
	row := r.batch[0]
	if row.BarType != "BTC-USD.COINBASE-5-MINUTE" {
		t.Errorf("BarType = %s", row.BarType)
	}
	if row.Close != 101 {
		t.Errorf("Close = %v, want 101", row.Close)
	}
}

func TestTradeRecorder_Lifecycle(t *testing.T) {
	cfg := Config{
		BatchSize:     10,
		FlushInterval: 100 * time.Millisecond,
	}
	input := engine.NewBuffer[engine.DataEvent](10)

	r := NewTradeRecorder(cfg, input, nil, nil)

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := r.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BatchSize != 1000 {
		t.Errorf("BatchSize = %d, want 1000", cfg.BatchSize)
	}
	if cfg.FlushInterval != 5*time.Second {
		t.Errorf("FlushInterval = %v, want 5s", cfg.FlushInterval)
	}
}
