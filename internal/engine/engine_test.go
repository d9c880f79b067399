package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/quantfabric/livedata/internal/model"
)

func startEngine(t *testing.T) Engine {
	t.Helper()
	eng := New(Config{InputBufferSize: 100, SubscriberBufferSize: 10}, nil)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		eng.Stop(ctx)
	})
	return eng
}

func receiveEvent(t *testing.T, buf *Buffer[DataEvent]) DataEvent {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if ev, ok := buf.TryReceive(); ok {
			return ev
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timeout waiting for event")
	return DataEvent{}
}

func TestEngine_RoutesDataByKind(t *testing.T) {
	eng := startEngine(t)

	quotes := eng.SubscribeData(model.KindQuoteTick)
	trades := eng.SubscribeData(model.KindTradeTick)

	id := model.NewInstrumentID("BTC-USD", "TESTVENUE")
	eng.Publisher().PublishData(DataEvent{
		Kind:         model.KindQuoteTick,
		InstrumentID: id,
		Data:         model.QuoteTick{InstrumentID: id, BidPrice: 100, AskPrice: 101},
		ReceivedAt:   time.Now(),
	})

	ev := receiveEvent(t, quotes)
	quote, ok := ev.Data.(model.QuoteTick)
	if !ok {
		t.Fatalf("Data type = %T, want model.QuoteTick", ev.Data)
	}
	if quote.BidPrice != 100 {
		t.Errorf("BidPrice = %v, want 100", quote.BidPrice)
	}

	if _, ok := trades.TryReceive(); ok {
		t.Error("trade buffer received a quote event")
	}
}

func TestEngine_FansOutToAllSubscribers(t *testing.T) {
	eng := startEngine(t)

	a := eng.SubscribeData(model.KindTradeTick)
	b := eng.SubscribeData(model.KindTradeTick)

	eng.Publisher().PublishData(DataEvent{
		Kind: model.KindTradeTick,
		Data: model.TradeTick{Price: 99},
	})

	for _, buf := range []*Buffer[DataEvent]{a, b} {
		ev := receiveEvent(t, buf)
		trade := ev.Data.(model.TradeTick)
		if trade.Price != 99 {
			t.Errorf("Price = %v, want 99", trade.Price)
		}
	}
}

func TestEngine_RoutesResponsesToSink(t *testing.T) {
	eng := startEngine(t)

	var mu sync.Mutex
	var got []Response
	eng.SetResponseSink(func(resp Response) {
		mu.Lock()
		got = append(got, resp)
		mu.Unlock()
	})

	id := uuid.New()
	eng.Publisher().PublishResponse(Response{
		CorrelationID: id,
		DataType:      model.DataType{Kind: model.KindBar},
		Data:          []model.Bar{},
	})

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for response sink")
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0].CorrelationID != id {
		t.Errorf("CorrelationID = %s, want %s", got[0].CorrelationID, id)
	}
}

func TestEngine_DropsUnroutableEvents(t *testing.T) {
	eng := startEngine(t)

	// No subscriber for bars, no response sink.
	eng.Publisher().PublishData(DataEvent{Kind: model.KindBar})
	eng.Publisher().PublishResponse(Response{CorrelationID: uuid.New()})

	deadline := time.Now().Add(time.Second)
	for {
		stats := eng.Stats()
		if stats.Dropped == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Dropped = %d, want 2", stats.Dropped)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestEngine_ConfigFieldsDefaultIndependently(t *testing.T) {
	def := DefaultConfig()

	// A caller-set subscriber size survives when the input size defaults.
	eng := New(Config{SubscriberBufferSize: 7}, nil)
	buf := eng.SubscribeData(model.KindQuoteTick)
	if got := buf.Cap(); got != 7 {
		t.Errorf("subscriber buffer cap = %d, want 7", got)
	}
	if got := eng.Stats().Input.Capacity; got != def.InputBufferSize {
		t.Errorf("input buffer cap = %d, want default %d", got, def.InputBufferSize)
	}

	// And the reverse.
	eng = New(Config{InputBufferSize: 13}, nil)
	buf = eng.SubscribeData(model.KindQuoteTick)
	if got := buf.Cap(); got != def.SubscriberBufferSize {
		t.Errorf("subscriber buffer cap = %d, want default %d", got, def.SubscriberBufferSize)
	}
	if got := eng.Stats().Input.Capacity; got != 13 {
		t.Errorf("input buffer cap = %d, want 13", got)
	}
}

func TestEngine_StatsCountRoutedEvents(t *testing.T) {
	eng := startEngine(t)
	quotes := eng.SubscribeData(model.KindQuoteTick)

	for i := 0; i < 5; i++ {
		eng.Publisher().PublishData(DataEvent{
			Kind: model.KindQuoteTick,
			Data: model.QuoteTick{BidPrice: float64(i)},
		})
	}
	for i := 0; i < 5; i++ {
		receiveEvent(t, quotes)
	}

	stats := eng.Stats()
	if stats.EventsReceived != 5 {
		t.Errorf("EventsReceived = %d, want 5", stats.EventsReceived)
	}
	if stats.DataRouted != 5 {
		t.Errorf("DataRouted = %d, want 5", stats.DataRouted)
	}
}
