package wsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/quantfabric/livedata/internal/client"
	"github.com/quantfabric/livedata/internal/engine"
	"github.com/quantfabric/livedata/internal/model"
)

// restError represents an error response from the venue REST API.
type restError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *restError) Error() string {
	return fmt.Sprintf("rest error %d: %s", e.StatusCode, e.Message)
}

// isRetryable returns true if the error should trigger a retry.
func (e *restError) isRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// restClient fetches historical data from the venue REST endpoint.
type restClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

func newRestClient(cfg Config, logger *slog.Logger) *restClient {
	return &restClient{
		baseURL: cfg.RestURL,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       logger,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: time.Second,
	}
}

// closeIdle releases pooled connections.
func (r *restClient) closeIdle() {
	r.httpClient.CloseIdleConnections()
}

// doRequest performs a single GET against the given path.
func (r *restClient) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := r.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &restError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	return body, nil
}

// get performs a GET with exponential backoff retry and decodes the result.
func (r *restClient) get(ctx context.Context, path string, query url.Values, result any) error {
	var lastErr error
	backoff := r.retryBackoff

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int63n(int64(backoff)))
			r.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"path", path,
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		body, err := r.doRequest(ctx, path, query)
		if err == nil {
			if err := json.Unmarshal(body, result); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
			return nil
		}

		lastErr = err

		apiErr, ok := err.(*restError)
		if !ok || !apiErr.isRetryable() {
			return err
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// historyQuery builds the shared limit/start/end query parameters.
// A zero limit or time is omitted and the venue applies its default.
func historyQuery(limit int, start, end time.Time, params client.Params) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if !start.IsZero() {
		q.Set("start", strconv.FormatInt(start.UnixMicro(), 10))
	}
	if !end.IsZero() {
		q.Set("end", strconv.FormatInt(end.UnixMicro(), 10))
	}
	for k, v := range params {
		q.Set(k, v)
	}
	return q
}

// -- Request hooks -----------------------------------------------------------
//
// Each hook fetches asynchronously and publishes the outcome tagged with
// the correlation id. The REST path is independent of the WebSocket
// session, so requests work while the stream is down. The returned error
// covers dispatch only; fetch failures travel in the response.

func (c *Client) RequestInstrument(ctx context.Context, id model.InstrumentID, correlationID uuid.UUID, start, end time.Time, params client.Params) error {
	dt := model.DataType{Kind: model.KindInstrument, Metadata: map[string]string{"instrument_id": id.String()}}
	c.fetch(ctx, dt, correlationID, func(ctx context.Context) (any, error) {
		var wire instrumentWire
		if err := c.rest.get(ctx, "/instruments/"+url.PathEscape(id.Symbol), nil, &wire); err != nil {
			return nil, fmt.Errorf("request instrument %s: %w", id, err)
		}
		return instrumentFromWire(wire, c.Venue()), nil
	})
	return nil
}

func (c *Client) RequestInstruments(ctx context.Context, venue model.Venue, correlationID uuid.UUID, start, end time.Time, params client.Params) error {
	dt := model.DataType{Kind: model.KindInstruments, Metadata: map[string]string{"venue": string(venue)}}
	c.fetch(ctx, dt, correlationID, func(ctx context.Context) (any, error) {
		var wire struct {
			Instruments []instrumentWire `json:"instruments"`
		}
		if err := c.rest.get(ctx, "/instruments", historyQuery(0, start, end, params), &wire); err != nil {
			return nil, fmt.Errorf("request instruments: %w", err)
		}
		out := make([]model.Instrument, 0, len(wire.Instruments))
		for _, w := range wire.Instruments {
			out = append(out, instrumentFromWire(w, c.Venue()))
		}
		return out, nil
	})
	return nil
}

func (c *Client) RequestOrderBookSnapshot(ctx context.Context, id model.InstrumentID, limit int, correlationID uuid.UUID, params client.Params) error {
	dt := model.DataType{Kind: model.KindBookSnapshot, Metadata: map[string]string{"instrument_id": id.String()}}
	c.fetch(ctx, dt, correlationID, func(ctx context.Context) (any, error) {
		q := url.Values{}
		if limit > 0 {
			q.Set("depth", strconv.Itoa(limit))
		}
		for k, v := range params {
			q.Set(k, v)
		}
		var wire bookSnapshotWire
		if err := c.rest.get(ctx, "/book/"+url.PathEscape(id.Symbol), q, &wire); err != nil {
			return nil, fmt.Errorf("request book snapshot %s: %w", id, err)
		}
		return model.BookSnapshot{
			InstrumentID: id,
			Bids:         parseLevels(wire.Bids),
			Asks:         parseLevels(wire.Asks),
			Seq:          wire.Seq,
			TsEvent:      wire.Ts,
			TsRecv:       time.Now().UnixMicro(),
		}, nil
	})
	return nil
}

func (c *Client) RequestQuoteTicks(ctx context.Context, id model.InstrumentID, limit int, correlationID uuid.UUID, start, end time.Time, params client.Params) error {
	dt := model.DataType{Kind: model.KindQuoteTick, Metadata: map[string]string{"instrument_id": id.String()}}
	c.fetch(ctx, dt, correlationID, func(ctx context.Context) (any, error) {
		var wire struct {
			Quotes []quoteWire `json:"quotes"`
		}
		if err := c.rest.get(ctx, "/quotes/"+url.PathEscape(id.Symbol), historyQuery(limit, start, end, params), &wire); err != nil {
			return nil, fmt.Errorf("request quotes %s: %w", id, err)
		}
		recv := time.Now().UnixMicro()
		out := make([]model.QuoteTick, 0, len(wire.Quotes))
		for _, w := range wire.Quotes {
			out = append(out, model.QuoteTick{
				InstrumentID: id,
				BidPrice:     w.Bid,
				AskPrice:     w.Ask,
				BidSize:      w.BidSize,
				AskSize:      w.AskSize,
				TsEvent:      w.Ts,
				TsRecv:       recv,
			})
		}
		return out, nil
	})
	return nil
}

func (c *Client) RequestTradeTicks(ctx context.Context, id model.InstrumentID, limit int, correlationID uuid.UUID, start, end time.Time, params client.Params) error {
	dt := model.DataType{Kind: model.KindTradeTick, Metadata: map[string]string{"instrument_id": id.String()}}
	c.fetch(ctx, dt, correlationID, func(ctx context.Context) (any, error) {
		var wire struct {
			Trades []tradeWire `json:"trades"`
		}
		if err := c.rest.get(ctx, "/trades/"+url.PathEscape(id.Symbol), historyQuery(limit, start, end, params), &wire); err != nil {
			return nil, fmt.Errorf("request trades %s: %w", id, err)
		}
		recv := time.Now().UnixMicro()
		out := make([]model.TradeTick, 0, len(wire.Trades))
		for _, w := range wire.Trades {
			out = append(out, model.TradeTick{
				InstrumentID:  id,
				TradeID:       parseTradeID(w.TradeID),
				Price:         w.Price,
				Size:          w.Size,
				AggressorSide: model.OrderSide(w.Side),
				TsEvent:       w.Ts,
				TsRecv:        recv,
			})
		}
		return out, nil
	})
	return nil
}

func (c *Client) RequestBars(ctx context.Context, barType model.BarType, limit int, correlationID uuid.UUID, start, end time.Time, params client.Params) error {
	dt := model.DataType{Kind: model.KindBar, Metadata: map[string]string{"bar_type": barType.String()}}
	c.fetch(ctx, dt, correlationID, func(ctx context.Context) (any, error) {
		q := historyQuery(limit, start, end, params)
		q.Set("spec", barType.Spec.String())
		var wire struct {
			Bars []barWire `json:"bars"`
		}
		if err := c.rest.get(ctx, "/bars/"+url.PathEscape(barType.InstrumentID.Symbol), q, &wire); err != nil {
			return nil, fmt.Errorf("request bars %s: %w", barType, err)
		}
		recv := time.Now().UnixMicro()
		out := make([]model.Bar, 0, len(wire.Bars))
		for _, w := range wire.Bars {
			out = append(out, model.Bar{
				BarType: barType,
				Open:    w.Open,
				High:    w.High,
				Low:     w.Low,
				Close:   w.Close,
				Volume:  w.Volume,
				TsEvent: w.Ts,
				TsRecv:  recv,
			})
		}
		return out, nil
	})
	return nil
}

// fetch runs fn asynchronously and publishes the outcome as a response.
func (c *Client) fetch(ctx context.Context, dt model.DataType, correlationID uuid.UUID, fn func(context.Context) (any, error)) {
	id := correlate(correlationID)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		data, err := fn(ctx)
		c.pub.PublishResponse(engine.Response{
			CorrelationID: id,
			DataType:      dt,
			Data:          data,
			Err:           err,
			ReceivedAt:    time.Now(),
		})
	}()
}
