package wsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/quantfabric/livedata/internal/client"
	"github.com/quantfabric/livedata/internal/engine"
	"github.com/quantfabric/livedata/internal/model"
)

// Client is a MarketDataClient for a WebSocket streaming venue.
type Client struct {
	*client.BaseMarketDataClient

	cfg    Config
	logger *slog.Logger
	pub    engine.Publisher
	rest   *restClient

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Session state
	mu   sync.Mutex
	sess *session

	// Command/response correlation
	pendingMu sync.Mutex
	pending   map[int64]chan commandResponse
	cmdID     atomic.Int64

	// Active channel subscriptions, for Reset bookkeeping
	subsMu sync.Mutex
	subs   map[string]command
}

// New creates a wsfeed adapter publishing into the given engine.
func New(cfg Config, pub engine.Publisher, logger *slog.Logger) (*Client, error) {
	base, err := client.NewBaseMarketDataClient(cfg.Name, model.Venue(cfg.Venue), logger)
	if err != nil {
		return nil, err
	}
	if cfg.WSURL == "" {
		return nil, fmt.Errorf("%s: ws url is required", cfg.Name)
	}
	def := DefaultConfig()
	if cfg.PingTimeout == 0 {
		cfg.PingTimeout = def.PingTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = def.CommandTimeout
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.ReconnectBaseWait == 0 {
		cfg.ReconnectBaseWait = def.ReconnectBaseWait
	}
	if cfg.ReconnectMaxWait == 0 {
		cfg.ReconnectMaxWait = def.ReconnectMaxWait
	}

	c := &Client{
		BaseMarketDataClient: base,
		cfg:                  cfg,
		logger:               base.Logger(),
		pub:                  pub,
		pending:              make(map[int64]chan commandResponse),
		subs:                 make(map[string]command),
	}
	c.rest = newRestClient(cfg, base.Logger())
	return c, nil
}

// -- Lifecycle ---------------------------------------------------------------

// Connect establishes the WebSocket session and starts the stream reader.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil && c.sess.isConnected() {
		return nil // Idempotent per activation
	}

	sess := newSession(c.cfg, c.logger)
	if err := sess.connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", c.Name(), err)
	}

	c.sess = sess
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.wg.Add(1)
	go c.readLoop(sess)

	c.logger.Info("adapter connected")
	return nil
}

// Disconnect tears down the session. Safe to call when already
// disconnected.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if sess == nil {
		return nil
	}

	if cancel != nil {
		cancel()
	}
	err := sess.close()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		c.logger.Warn("disconnect timed out waiting for reader")
	}

	c.failPending(ErrNotConnected)

	c.logger.Info("adapter disconnected")
	return err
}

// Reset returns the adapter to a fresh pre-connection state; the
// transport, if open, is left to Disconnect.
func (c *Client) Reset() error {
	c.failPending(ErrNotConnected)

	c.subsMu.Lock()
	c.subs = make(map[string]command)
	c.subsMu.Unlock()

	c.logger.Debug("adapter reset")
	return nil
}

// Dispose releases resources not covered by Disconnect.
func (c *Client) Dispose() error {
	c.rest.closeIdle()
	return nil
}

// -- Generic hooks -----------------------------------------------------------

// Subscribe subscribes to a venue-specific channel named by the data kind.
func (c *Client) Subscribe(ctx context.Context, dataType model.DataType, params client.Params) error {
	cmd := command{
		Op:      "subscribe",
		Channel: string(dataType.Kind),
		Args:    mergeArgs(dataType.Metadata, params),
	}
	return c.sendCommand(ctx, cmd)
}

// Unsubscribe stops a venue-specific channel subscription.
func (c *Client) Unsubscribe(ctx context.Context, dataType model.DataType, params client.Params) error {
	cmd := command{
		Op:      "unsubscribe",
		Channel: string(dataType.Kind),
		Args:    mergeArgs(dataType.Metadata, params),
	}
	return c.sendCommand(ctx, cmd)
}

// -- Typed subscriptions -----------------------------------------------------

func (c *Client) SubscribeInstruments(ctx context.Context, params client.Params) error {
	return c.sendCommand(ctx, command{Op: "subscribe", Channel: channelInstruments})
}

func (c *Client) UnsubscribeInstruments(ctx context.Context, params client.Params) error {
	return c.sendCommand(ctx, command{Op: "unsubscribe", Channel: channelInstruments})
}

func (c *Client) SubscribeOrderBookDeltas(ctx context.Context, id model.InstrumentID, bookType model.BookType, depth int, params client.Params) error {
	if bookType == model.BookL3 {
		// Venue publishes aggregated levels only.
		return fmt.Errorf("%s: %s book feed: %w", c.Name(), bookType, client.ErrUnsupported)
	}
	return c.sendCommand(ctx, command{
		Op:      "subscribe",
		Channel: channelBook,
		Symbol:  id.Symbol,
		Depth:   depth,
	})
}

func (c *Client) UnsubscribeOrderBookDeltas(ctx context.Context, id model.InstrumentID, params client.Params) error {
	return c.sendCommand(ctx, command{Op: "unsubscribe", Channel: channelBook, Symbol: id.Symbol})
}

func (c *Client) SubscribeOrderBookSnapshots(ctx context.Context, id model.InstrumentID, bookType model.BookType, depth int, params client.Params) error {
	if bookType == model.BookL3 {
		return fmt.Errorf("%s: %s book feed: %w", c.Name(), bookType, client.ErrUnsupported)
	}
	return c.sendCommand(ctx, command{
		Op:      "subscribe",
		Channel: channelBookSnapshots,
		Symbol:  id.Symbol,
		Depth:   depth,
	})
}

func (c *Client) UnsubscribeOrderBookSnapshots(ctx context.Context, id model.InstrumentID, params client.Params) error {
	return c.sendCommand(ctx, command{Op: "unsubscribe", Channel: channelBookSnapshots, Symbol: id.Symbol})
}

func (c *Client) SubscribeQuoteTicks(ctx context.Context, id model.InstrumentID, params client.Params) error {
	return c.sendCommand(ctx, command{Op: "subscribe", Channel: channelQuotes, Symbol: id.Symbol})
}

func (c *Client) UnsubscribeQuoteTicks(ctx context.Context, id model.InstrumentID, params client.Params) error {
	return c.sendCommand(ctx, command{Op: "unsubscribe", Channel: channelQuotes, Symbol: id.Symbol})
}

func (c *Client) SubscribeTradeTicks(ctx context.Context, id model.InstrumentID, params client.Params) error {
	return c.sendCommand(ctx, command{Op: "subscribe", Channel: channelTrades, Symbol: id.Symbol})
}

func (c *Client) UnsubscribeTradeTicks(ctx context.Context, id model.InstrumentID, params client.Params) error {
	return c.sendCommand(ctx, command{Op: "unsubscribe", Channel: channelTrades, Symbol: id.Symbol})
}

func (c *Client) SubscribeBars(ctx context.Context, barType model.BarType, params client.Params) error {
	return c.sendCommand(ctx, command{
		Op:      "subscribe",
		Channel: channelBars,
		Symbol:  barType.InstrumentID.Symbol,
		BarSpec: barType.Spec.String(),
	})
}

func (c *Client) UnsubscribeBars(ctx context.Context, barType model.BarType, params client.Params) error {
	return c.sendCommand(ctx, command{
		Op:      "unsubscribe",
		Channel: channelBars,
		Symbol:  barType.InstrumentID.Symbol,
		BarSpec: barType.Spec.String(),
	})
}

func (c *Client) SubscribeInstrumentStatus(ctx context.Context, id model.InstrumentID, params client.Params) error {
	return c.sendCommand(ctx, command{Op: "subscribe", Channel: channelStatus, Symbol: id.Symbol})
}

func (c *Client) UnsubscribeInstrumentStatus(ctx context.Context, id model.InstrumentID, params client.Params) error {
	return c.sendCommand(ctx, command{Op: "unsubscribe", Channel: channelStatus, Symbol: id.Symbol})
}

func (c *Client) SubscribeInstrumentClose(ctx context.Context, id model.InstrumentID, params client.Params) error {
	return c.sendCommand(ctx, command{Op: "subscribe", Channel: channelClose, Symbol: id.Symbol})
}

func (c *Client) UnsubscribeInstrumentClose(ctx context.Context, id model.InstrumentID, params client.Params) error {
	return c.sendCommand(ctx, command{Op: "unsubscribe", Channel: channelClose, Symbol: id.Symbol})
}

// -- Internals ---------------------------------------------------------------

// sendCommand sends a command and waits for the venue's ack.
func (c *Client) sendCommand(ctx context.Context, cmd command) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	if sess == nil || !sess.isConnected() {
		return fmt.Errorf("%s: %w", c.Name(), ErrNotConnected)
	}

	cmd.ID = c.cmdID.Add(1)
	respCh := make(chan commandResponse, 1)

	c.pendingMu.Lock()
	c.pending[cmd.ID] = respCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, cmd.ID)
		c.pendingMu.Unlock()
	}()

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	if err := sess.send(data); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.cfg.CommandTimeout):
		return fmt.Errorf("%s %s: %w", cmd.Op, cmd.Channel, ErrCommandTimeout)
	case resp := <-respCh:
		if resp.Type == "error" {
			return fmt.Errorf("%s %s: %s: %s", cmd.Op, cmd.Channel, resp.Code, resp.Message)
		}
		c.trackCommand(cmd)
		c.logger.Debug("command acknowledged",
			"op", cmd.Op,
			"channel", cmd.Channel,
			"symbol", cmd.Symbol,
		)
		return nil
	}
}

// trackCommand records or clears the channel subscription for Reset.
func (c *Client) trackCommand(cmd command) {
	key := cmd.Channel + "|" + cmd.Symbol + "|" + cmd.BarSpec

	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	if cmd.Op == "subscribe" {
		c.subs[key] = cmd
	} else {
		delete(c.subs, key)
	}
}

// failPending unblocks all waiters with an error response.
func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	for id, ch := range c.pending {
		select {
		case ch <- commandResponse{ID: id, Type: "error", Message: err.Error()}:
		default:
		}
		delete(c.pending, id)
	}
}

// routeResponse delivers a command response to the waiting goroutine.
func (c *Client) routeResponse(resp commandResponse) {
	c.pendingMu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.pendingMu.Unlock()

	if ok {
		select {
		case ch <- resp:
		default:
		}
	}
}

// readLoop consumes session messages and routes them.
func (c *Client) readLoop(sess *session) {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return

		case err := <-sess.errors:
			c.logger.Warn("session error", "error", err)
			c.failPending(err)
			c.wg.Add(1)
			go c.reconnect()
			return

		case msg, ok := <-sess.messages:
			if !ok {
				return
			}

			if resp, ok := tryParseResponse(msg.Data); ok {
				c.routeResponse(resp)
				continue
			}

			c.publishStream(msg)
		}
	}
}

// reconnect redials a dropped session with exponential backoff and
// replays the tracked channel subscriptions. Runs until the session is
// re-established or Disconnect cancels the adapter context.
func (c *Client) reconnect() {
	defer c.wg.Done()

	wait := c.cfg.ReconnectBaseWait

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(wait):
		}

		c.logger.Info("attempting reconnection")

		sess := newSession(c.cfg, c.logger)
		if err := sess.connect(c.ctx); err != nil {
			c.logger.Warn("reconnection failed", "error", err)

			wait *= 2
			if wait > c.cfg.ReconnectMaxWait {
				wait = c.cfg.ReconnectMaxWait
			}
			continue
		}

		c.mu.Lock()
		if c.cancel == nil {
			// Disconnect raced the redial; discard the new session.
			c.mu.Unlock()
			sess.close()
			return
		}
		old := c.sess
		c.sess = sess
		c.mu.Unlock()

		if old != nil {
			old.close()
		}

		c.logger.Info("reconnected")

		// Start the reader first so resubscribe acks are routed.
		c.wg.Add(1)
		go c.readLoop(sess)

		c.resubscribe()
		return
	}
}

// resubscribe replays every tracked subscription on the current session.
func (c *Client) resubscribe() {
	c.subsMu.Lock()
	cmds := make([]command, 0, len(c.subs))
	for _, cmd := range c.subs {
		cmds = append(cmds, cmd)
	}
	c.subsMu.Unlock()

	for _, cmd := range cmds {
		if err := c.sendCommand(c.ctx, cmd); err != nil {
			c.logger.Warn("resubscribe failed",
				"channel", cmd.Channel,
				"symbol", cmd.Symbol,
				"error", err,
			)
		}
	}
}

// mergeArgs merges data-type metadata and call params into command args.
// Params win on key conflicts.
func mergeArgs(metadata map[string]string, params client.Params) map[string]string {
	if len(metadata) == 0 && len(params) == 0 {
		return nil
	}
	args := make(map[string]string, len(metadata)+len(params))
	for k, v := range metadata {
		args[k] = v
	}
	for k, v := range params {
		args[k] = v
	}
	return args
}

// correlate guards that the uuid is set; dispatchers always supply one.
func correlate(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return uuid.New()
	}
	return id
}
