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

// BarRecorder consumes bar events from an engine buffer and writes them
// to the bars table.
type BarRecorder struct {
	cfg    Config
	logger *slog.Logger

	input *engine.Buffer[engine.DataEvent]
	db    *pgxpool.Pool

	batch       []barRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// NewBarRecorder creates a new BarRecorder.
func NewBarRecorder(
	cfg Config,
	input *engine.Buffer[engine.DataEvent],
	db *pgxpool.Pool,
	logger *slog.Logger,
) *BarRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &BarRecorder{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]barRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming events and writing to the database.
func (r *BarRecorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)

	r.wg.Add(1)
	go r.consumeLoop()

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("bar recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the recorder.
func (r *BarRecorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping bar recorder")

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
		r.logger.Info("bar recorder stopped")
	case <-ctx.Done():
		r.logger.Warn("bar recorder stop timed out")
	}

	r.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (r *BarRecorder) Stats() Metrics {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.metrics
}

func (r *BarRecorder) consumeLoop() {
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

func (r *BarRecorder) flushLoop() {
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

func (r *BarRecorder) handleEvent(ev engine.DataEvent) {
	bar, ok := ev.Data.(model.Bar)
	if !ok {
		r.batchMu.Lock()
		r.metrics.Skipped++
		r.batchMu.Unlock()
		return
	}

	row := barRow{
		BarType: bar.BarType.String(),
		Open:    bar.Open,
		High:    bar.High,
		Low:     bar.Low,
		Close:   bar.Close,
		Volume:  bar.Volume,
		TsEvent: bar.TsEvent,
		TsRecv:  bar.TsRecv,
	}

	r.batchMu.Lock()
	r.batch = append(r.batch, row)
	shouldFlush := len(r.batch) >= r.cfg.BatchSize
	r.batchMu.Unlock()

	if shouldFlush {
		r.flush(r.ctx)
	}
}

func (r *BarRecorder) flush(ctx context.Context) {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}

	batch := r.batch
	r.batch = make([]barRow, 0, r.cfg.BatchSize)
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

	r.logger.Debug("flushed bars",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch. A bar is keyed by its type
// and close time, re-delivered closes are dropped.
func (r *BarRecorder) batchInsert(ctx context.Context, rows []barRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO bars (bar_type, open, high, low, close, volume, ts_event, ts_recv)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (bar_type, ts_event) DO NOTHING
		`, row.BarType, row.Open, row.High, row.Low, row.Close, row.Volume, row.TsEvent, row.TsRecv)
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
