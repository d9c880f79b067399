package wsfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantfabric/livedata/internal/client"
	"github.com/quantfabric/livedata/internal/engine"
	"github.com/quantfabric/livedata/internal/model"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// ackServer acks every command and optionally forwards them.
func ackServer(t *testing.T, commands chan<- command) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd command
			if err := json.Unmarshal(msg, &cmd); err != nil {
				t.Logf("bad command: %v", err)
				continue
			}
			if commands != nil {
				commands <- cmd
			}
			resp := commandResponse{ID: cmd.ID, Type: "ack"}
			data, _ := json.Marshal(resp)
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

// capturingPublisher collects published events for assertions.
type capturingPublisher struct {
	mu        sync.Mutex
	data      []engine.DataEvent
	responses []engine.Response
}

func (p *capturingPublisher) PublishData(ev engine.DataEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = append(p.data, ev)
}

func (p *capturingPublisher) PublishResponse(resp engine.Response) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, resp)
}

func (p *capturingPublisher) waitData(t *testing.T, n int) []engine.DataEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		if len(p.data) >= n {
			out := append([]engine.DataEvent(nil), p.data...)
			p.mu.Unlock()
			return out
		}
		p.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timeout waiting for %d data events", n)
	return nil
}

func newTestClient(t *testing.T, server *httptest.Server, pub engine.Publisher) *Client {
	t.Helper()
	c, err := New(Config{
		Name:           "test",
		Venue:          "TESTVENUE",
		WSURL:          wsURL(server),
		RestURL:        server.URL,
		CommandTimeout: 2 * time.Second,
	}, pub, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestClient_ConnectDisconnect(t *testing.T) {
	server := mockWSServer(t, ackServer(t, nil))
	defer server.Close()

	c := newTestClient(t, server, &capturingPublisher{})
	ctx := context.Background()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// Connect is idempotent while the session is live.
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("second Connect failed: %v", err)
	}

	if err := c.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	// Disconnect when already disconnected is a no-op.
	if err := c.Disconnect(ctx); err != nil {
		t.Fatalf("second Disconnect failed: %v", err)
	}
}

func TestClient_SubscribeSendsCommand(t *testing.T) {
	commands := make(chan command, 10)
	server := mockWSServer(t, ackServer(t, commands))
	defer server.Close()

	c := newTestClient(t, server, &capturingPublisher{})
	ctx := context.Background()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Disconnect(ctx)

	id := model.NewInstrumentID("BTC-USD", "TESTVENUE")
	if err := c.SubscribeQuoteTicks(ctx, id, nil); err != nil {
		t.Fatalf("SubscribeQuoteTicks failed: %v", err)
	}

	select {
	case cmd := <-commands:
		if cmd.Op != "subscribe" {
			t.Errorf("Op = %q, want subscribe", cmd.Op)
		}
		if cmd.Channel != channelQuotes {
			t.Errorf("Channel = %q, want %q", cmd.Channel, channelQuotes)
		}
		if cmd.Symbol != "BTC-USD" {
			t.Errorf("Symbol = %q, want BTC-USD", cmd.Symbol)
		}
	case <-time.After(time.Second):
		t.Fatal("server never received the command")
	}

	if err := c.UnsubscribeQuoteTicks(ctx, id, nil); err != nil {
		t.Fatalf("UnsubscribeQuoteTicks failed: %v", err)
	}
	cmd := <-commands
	if cmd.Op != "unsubscribe" {
		t.Errorf("Op = %q, want unsubscribe", cmd.Op)
	}
}

func TestClient_SubscribeWhenDisconnected(t *testing.T) {
	server := mockWSServer(t, ackServer(t, nil))
	defer server.Close()

	c := newTestClient(t, server, &capturingPublisher{})

	err := c.SubscribeQuoteTicks(context.Background(), model.NewInstrumentID("BTC-USD", "TESTVENUE"), nil)
	if err == nil {
		t.Fatal("expected error when not connected")
	}
}

func TestClient_CommandError(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd command
			json.Unmarshal(msg, &cmd)
			resp := commandResponse{ID: cmd.ID, Type: "error", Code: "bad_symbol", Message: "unknown symbol"}
			data, _ := json.Marshal(resp)
			conn.WriteMessage(websocket.TextMessage, data)
		}
	})
	defer server.Close()

	c := newTestClient(t, server, &capturingPublisher{})
	ctx := context.Background()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Disconnect(ctx)

	err := c.SubscribeQuoteTicks(ctx, model.NewInstrumentID("NOPE", "TESTVENUE"), nil)
	if err == nil {
		t.Fatal("expected error for rejected command")
	}
	if !strings.Contains(err.Error(), "bad_symbol") {
		t.Errorf("error %q does not carry the venue code", err)
	}
}

func TestClient_L3BookUnsupported(t *testing.T) {
	server := mockWSServer(t, ackServer(t, nil))
	defer server.Close()

	c := newTestClient(t, server, &capturingPublisher{})
	id := model.NewInstrumentID("BTC-USD", "TESTVENUE")

	err := c.SubscribeOrderBookDeltas(context.Background(), id, model.BookL3, 0, nil)
	if !client.IsUnsupported(err) {
		t.Errorf("error = %v, want unsupported", err)
	}
}

func TestClient_StreamPublishesTypedEvents(t *testing.T) {
	ready := make(chan *websocket.Conn, 1)
	server := mockWSServer(t, func(conn *websocket.Conn) {
		ready <- conn
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	pub := &capturingPublisher{}
	c := newTestClient(t, server, pub)
	ctx := context.Background()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Disconnect(ctx)

	conn := <-ready
	stream := []string{
		`{"type":"quote","symbol":"BTC-USD","bid":100.5,"ask":100.7,"bid_size":2,"ask_size":3,"ts":1700000000000000}`,
		`{"type":"trade","symbol":"BTC-USD","trade_id":"e7a1c2d4-0b1f-4c5a-9a2e-1f2d3c4b5a69","price":100.6,"size":0.5,"side":"bid","ts":1700000000000001}`,
		`{"type":"bar","symbol":"BTC-USD","bar_spec":"1-MINUTE","open":100,"high":101,"low":99,"close":100.5,"volume":12,"ts":1700000060000000}`,
	}
	for _, msg := range stream {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("server write failed: %v", err)
		}
	}

	events := pub.waitData(t, 3)

	quote, ok := events[0].Data.(model.QuoteTick)
	if !ok {
		t.Fatalf("event 0 type = %T, want model.QuoteTick", events[0].Data)
	}
	if quote.InstrumentID.String() != "BTC-USD.TESTVENUE" {
		t.Errorf("quote id = %s, want BTC-USD.TESTVENUE", quote.InstrumentID)
	}
	if quote.BidPrice != 100.5 || quote.AskPrice != 100.7 {
		t.Errorf("quote prices = %v/%v", quote.BidPrice, quote.AskPrice)
	}
	if quote.TsRecv == 0 {
		t.Error("quote TsRecv not set")
	}

	trade, ok := events[1].Data.(model.TradeTick)
	if !ok {
		t.Fatalf("event 1 type = %T, want model.TradeTick", events[1].Data)
	}
	if trade.TradeID.String() != "e7a1c2d4-0b1f-4c5a-9a2e-1f2d3c4b5a69" {
		t.Errorf("trade id = %s", trade.TradeID)
	}
	if trade.AggressorSide != model.SideBid {
		t.Errorf("aggressor = %q, want bid", trade.AggressorSide)
	}

	bar, ok := events[2].Data.(model.Bar)
	if !ok {
		t.Fatalf("event 2 type = %T, want model.Bar", events[2].Data)
	}
	if bar.BarType.String() != "BTC-USD.TESTVENUE-1-MINUTE" {
		t.Errorf("bar type = %s", bar.BarType)
	}
	if bar.Close != 100.5 {
		t.Errorf("bar close = %v, want 100.5", bar.Close)
	}
}

func TestClient_ReconnectsAndResubscribes(t *testing.T) {
	var dials atomic.Int32
	replayed := make(chan command, 10)
	server := mockWSServer(t, func(conn *websocket.Conn) {
		n := dials.Add(1)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd command
			if err := json.Unmarshal(msg, &cmd); err != nil {
				continue
			}
			resp := commandResponse{ID: cmd.ID, Type: "ack"}
			data, _ := json.Marshal(resp)
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			if n == 1 {
				// Drop the first session right after acking the subscribe.
				conn.Close()
				return
			}
			replayed <- cmd
		}
	})
	defer server.Close()

	c, err := New(Config{
		Name:              "test",
		Venue:             "TESTVENUE",
		WSURL:             wsURL(server),
		RestURL:           server.URL,
		CommandTimeout:    2 * time.Second,
		ReconnectBaseWait: 10 * time.Millisecond,
		ReconnectMaxWait:  50 * time.Millisecond,
	}, &capturingPublisher{}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Disconnect(ctx)

	id := model.NewInstrumentID("BTC-USD", "TESTVENUE")
	if err := c.SubscribeQuoteTicks(ctx, id, nil); err != nil {
		t.Fatalf("SubscribeQuoteTicks failed: %v", err)
	}

	// The server kills the session; the adapter must redial and replay
	// the quote subscription on the new connection.
	select {
	case cmd := <-replayed:
		if cmd.Op != "subscribe" || cmd.Channel != channelQuotes || cmd.Symbol != "BTC-USD" {
			t.Errorf("replayed command = %+v, want subscribe %s BTC-USD", cmd, channelQuotes)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription was never replayed after the session drop")
	}

	if n := dials.Load(); n < 2 {
		t.Errorf("dials = %d, want at least 2", n)
	}

	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil || !sess.isConnected() {
		t.Error("session not connected after reconnect")
	}
}

func TestClient_Reset(t *testing.T) {
	server := mockWSServer(t, ackServer(t, nil))
	defer server.Close()

	c := newTestClient(t, server, &capturingPublisher{})
	ctx := context.Background()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	id := model.NewInstrumentID("BTC-USD", "TESTVENUE")
	if err := c.SubscribeQuoteTicks(ctx, id, nil); err != nil {
		t.Fatalf("SubscribeQuoteTicks failed: %v", err)
	}

	if err := c.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if err := c.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	c.subsMu.Lock()
	n := len(c.subs)
	c.subsMu.Unlock()
	if n != 0 {
		t.Errorf("subscription bookkeeping = %d entries after Reset, want 0", n)
	}

	// The adapter reconnects cleanly after a reset.
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect after Reset failed: %v", err)
	}
	if err := c.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if err := c.Dispose(); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}
}
