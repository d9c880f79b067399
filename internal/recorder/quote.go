package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfabric/livedata/internal/engine"
	"github.com/quantfabric/livedata/internal/model"
)

// QuoteRecorder consumes quote events from an engine buffer and writes
// them to the quotes table.
type QuoteRecorder struct {
	cfg    Config
	logger *slog.Logger

	input *engine.Buffer[engine.DataEvent]
	db    *pgxpool.Pool

	batch       []quoteRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// NewQuoteRecorder creates a new QuoteRecorder.
func NewQuoteRecorder(
	cfg Config,
	input *engine.Buffer[engine.DataEvent],
	db *pgxpool.Pool,
	logger *slog.Logger,
) *QuoteRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteRecorder{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]quoteRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming events and writing to the database.
func (r *QuoteRecorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)

	r.wg.Add(1)
	go r.consumeLoop()

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("quote recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the recorder.
func (r *QuoteRecorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping quote recorder")

	if r.cancel != nil {
		r.cancel()
	}

	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("quote recorder stopped")
	case <-ctx.Done():
		r.logger.Warn("quote recorder stop timed out")
	}

	r.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (r *QuoteRecorder) Stats() Metrics {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.metrics
}

func (r *QuoteRecorder) consumeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		default:
			ev, ok := r.input.TryReceive()
			if !ok {
				select {
				case <-r.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			r.handleEvent(ev)
		}
	}
}

func (r *QuoteRecorder) flushLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.flushTicker.C:
			r.flush(r.ctx)
		}
	}
}

func (r *QuoteRecorder) handleEvent(ev engine.DataEvent) {
	quote, ok := ev.Data.(model.QuoteTick)
	if !ok {
		r.batchMu.Lock()
		r.metrics.Skipped++
		r.batchMu.Unlock()
		return
	}

	row := quoteRow{
		InstrumentID: quote.InstrumentID.String(),
		BidPrice:     quote.BidPrice,
		AskPrice:     quote.AskPrice,
		BidSize:      quote.BidSize,
		AskSize:      quote.AskSize,
		TsEvent:      quote.TsEvent,
		TsRecv:       quote.TsRecv,
	}

	r.batchMu.Lock()
	r.batch = append(r.batch, row)
	shouldFlush := len(r.batch) >= r.cfg.BatchSize
	r.batchMu.Unlock()

	if shouldFlush {
		r.flush(r.ctx)
	}
}

func (r *QuoteRecorder) flush(ctx context.Context) {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}

	batch := r.batch
	r.batch = make([]quoteRow, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()

	conflicts, err := r.batchInsert(ctx, batch)
	if err != nil {
		r.logger.Error("batch insert failed", "error", err, "count", len(batch))
		r.batchMu.Lock()
		r.metrics.Errors++
		r.batchMu.Unlock()
		return
	}

	r.batchMu.Lock()
	r.metrics.Inserts += int64(len(batch) - conflicts)
	r.metrics.Conflicts += int64(conflicts)
	r.metrics.Flushes++
	r.batchMu.Unlock()

	r.logger.Debug("flushed quotes",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch. Quotes are keyed by
// instrument and event time.
func (r *QuoteRecorder) batchInsert(ctx context.Context, rows []quoteRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO quotes (instrument_id, bid_price, ask_price, bid_size, ask_size, ts_event, ts_recv)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (instrument_id, ts_event) DO NOTHING
		`, row.InstrumentID, row.BidPrice, row.AskPrice, row.BidSize, row.AskSize, row.TsEvent, row.TsRecv)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
