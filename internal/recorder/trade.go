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

// TradeRecorder consumes trade events from an engine buffer and writes
// them to the trades table.
type TradeRecorder struct {
	cfg    Config
	logger *slog.Logger

	// Input from the data engine
	input *engine.Buffer[engine.DataEvent]

	// Database
	db *pgxpool.Pool

	// Batching
	batch       []tradeRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics Metrics
}

// NewTradeRecorder creates a new TradeRecorder.
func NewTradeRecorder(
	cfg Config,
	input *engine.Buffer[engine.DataEvent],
	db *pgxpool.Pool,
	logger *slog.Logger,
) *TradeRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &TradeRecorder{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]tradeRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming events and writing to the database.
func (r *TradeRecorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)

	r.wg.Add(1)
	go r.consumeLoop()

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("trade recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the recorder.
func (r *TradeRecorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping trade recorder")

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
		r.logger.Info("trade recorder stopped")
	case <-ctx.Done():
		r.logger.Warn("trade recorder stop timed out")
	}

	// Final flush runs on the caller's context, the consume context is
	// already cancelled here.
	r.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (r *TradeRecorder) Stats() Metrics {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.metrics
}

// consumeLoop reads from the input buffer and accumulates batches.
func (r *TradeRecorder) consumeLoop() {
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

// flushLoop periodically flushes the batch.
func (r *TradeRecorder) flushLoop() {
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

// handleEvent transforms and adds an event to the batch.
func (r *TradeRecorder) handleEvent(ev engine.DataEvent) {
	trade, ok := ev.Data.(model.TradeTick)
	if !ok {
		r.batchMu.Lock()
		r.metrics.Skipped++
		r.batchMu.Unlock()
		return
	}

	row := transformTrade(trade)

	r.batchMu.Lock()
	r.batch = append(r.batch, row)
	shouldFlush := len(r.batch) >= r.cfg.BatchSize
	r.batchMu.Unlock()

	if shouldFlush {
		r.flush(r.ctx)
	}
}

// transformTrade converts a TradeTick to a tradeRow.
func transformTrade(t model.TradeTick) tradeRow {
	return tradeRow{
		TradeID:      t.TradeID.String(),
		InstrumentID: t.InstrumentID.String(),
		Price:        t.Price,
		Size:         t.Size,
		Aggressor:    string(t.AggressorSide),
		TsEvent:      t.TsEvent,
		TsRecv:       t.TsRecv,
	}
}

// flush writes the current batch to the database.
func (r *TradeRecorder) flush(ctx context.Context) {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := r.batch
	r.batch = make([]tradeRow, 0, r.cfg.BatchSize)
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

	r.logger.Debug("flushed trades",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (r *TradeRecorder) batchInsert(ctx context.Context, rows []tradeRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO trades (trade_id, instrument_id, price, size, aggressor, ts_event, ts_recv)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (trade_id) DO NOTHING
		`, row.TradeID, row.InstrumentID, row.Price, row.Size, row.Aggressor, row.TsEvent, row.TsRecv)
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
