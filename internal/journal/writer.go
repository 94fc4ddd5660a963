package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/callpilot/console-realtime/internal/events"
)

// Schema creates the journal table.
const Schema = `
CREATE TABLE IF NOT EXISTS console_events (
	event_id        UUID PRIMARY KEY,
	subscription_id TEXT NOT NULL,
	event_type      TEXT NOT NULL,
	payload         JSONB NOT NULL,
	event_ts        TEXT,
	received_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS console_events_sub_type_idx
	ON console_events (subscription_id, event_type, received_at);
`

const insertEvent = `
	INSERT INTO console_events (event_id, subscription_id, event_type, payload, event_ts, received_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (event_id) DO NOTHING
`

// BatchSender sends a queued batch. *pgxpool.Pool satisfies it.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Execer runs a statement. *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EnsureSchema creates the journal table if it does not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	return nil
}

// Config configures a Writer.
type Config struct {
	SubscriptionID string
	BatchSize      int
	FlushInterval  time.Duration
	BufferSize     int // Max queued events before Record drops
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// Stats provides statistics about the writer.
type Stats struct {
	Queued    int
	Dropped   int64
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
}

type eventRow struct {
	EventID        uuid.UUID
	SubscriptionID string
	EventType      string
	Payload        json.RawMessage
	EventTs        string
	ReceivedAt     time.Time
}

// Writer batches envelopes into the console_events table.
type Writer struct {
	cfg    Config
	logger *slog.Logger
	db     BatchSender

	queue *Queue[eventRow]

	// Batching
	batch   []eventRow
	batchMu sync.Mutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics Stats
}

// NewWriter creates a new Writer.
func NewWriter(cfg Config, db BatchSender, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}

	initial := cfg.BatchSize * 2
	return &Writer{
		cfg:    cfg,
		logger: logger,
		db:     db,
		queue:  NewQueue[eventRow](initial, cfg.BufferSize),
		batch:  make([]eventRow, 0, cfg.BatchSize),
	}
}

// Record queues env without blocking. Events are dropped when the queue
// is full or the writer is stopped.
func (w *Writer) Record(env events.Envelope) {
	receivedAt := env.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	row := eventRow{
		EventID:        uuid.New(),
		SubscriptionID: w.cfg.SubscriptionID,
		EventType:      env.Type,
		Payload:        env.Data,
		EventTs:        env.Timestamp,
		ReceivedAt:     receivedAt,
	}

	if !w.queue.Push(row) {
		w.batchMu.Lock()
		w.metrics.Dropped++
		dropped := w.metrics.Dropped
		w.batchMu.Unlock()

		// Log the first drop and then every thousandth.
		if dropped == 1 || dropped%1000 == 0 {
			w.logger.Warn("journal queue full, dropping events",
				"event_type", env.Type,
				"dropped", dropped,
			)
		}
	}
}

// Start begins draining the queue and writing to the database.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("journal writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
		"buffer_size", w.cfg.BufferSize,
	)
	return nil
}

// Stop rejects new events, waits for the loops and writes whatever is
// still queued using ctx.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	w.queue.Close()
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
		return ctx.Err()
	}

	// Final flush
	for {
		rows := w.queue.DrainTo(w.cfg.BatchSize)
		if len(rows) == 0 {
			break
		}
		w.add(ctx, rows)
	}
	if err := w.flush(ctx); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}

	w.logger.Info("journal writer stopped")
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() Stats {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	s := w.metrics
	s.Queued = w.queue.Len() + len(w.batch)
	return s
}

// consumeLoop moves queued rows into the current batch.
func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	// Rows already taken from the queue are written even if Stop races us.
	writeCtx := context.WithoutCancel(w.ctx)

	for {
		rows := w.queue.DrainTo(w.cfg.BatchSize)
		if len(rows) == 0 {
			// Queue empty, wait a bit before trying again
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}

		w.add(writeCtx, rows)

		if w.ctx.Err() != nil {
			return
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	writeCtx := context.WithoutCancel(w.ctx)

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(writeCtx)
		}
	}
}

// add appends rows to the batch, flushing each time it fills.
func (w *Writer) add(ctx context.Context, rows []eventRow) {
	for _, r := range rows {
		w.batchMu.Lock()
		w.batch = append(w.batch, r)
		full := len(w.batch) >= w.cfg.BatchSize
		w.batchMu.Unlock()

		if full {
			w.flush(ctx)
		}
	}
}

// flush writes the current batch to the database.
func (w *Writer) flush(ctx context.Context) error {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return nil
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]eventRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return err
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed events",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
	return nil
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) batchInsert(ctx context.Context, rows []eventRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertEvent,
			r.EventID, r.SubscriptionID, r.EventType, r.Payload, r.EventTs, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
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
