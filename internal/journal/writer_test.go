package journal

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/callpilot/console-realtime/internal/events"
)

// fakeResults answers every Exec with the same tag or error.
type fakeResults struct {
	tags []pgconn.CommandTag
	err  error
	i    int
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	tag := r.tags[r.i]
	r.i++
	return tag, nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (r *fakeResults) QueryRow() pgx.Row        { return nil }
func (r *fakeResults) Close() error             { return nil }

// fakeSender records every batch it is asked to send.
type fakeSender struct {
	mu       sync.Mutex
	batches  [][]*pgx.QueuedQuery
	err      error
	conflict map[int]bool // Query index within a batch reported as a conflict
}

func (s *fakeSender) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches = append(s.batches, b.QueuedQueries)

	tags := make([]pgconn.CommandTag, b.Len())
	for i := range tags {
		if s.conflict[i] {
			tags[i] = pgconn.NewCommandTag("INSERT 0 0")
		} else {
			tags[i] = pgconn.NewCommandTag("INSERT 0 1")
		}
	}
	return &fakeResults{tags: tags, err: s.err}
}

func (s *fakeSender) sent() [][]*pgx.QueuedQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]*pgx.QueuedQuery(nil), s.batches...)
}

func (s *fakeSender) rows() int {
	n := 0
	for _, b := range s.sent() {
		n += len(b)
	}
	return n
}

func envelope(eventType, data string) events.Envelope {
	return events.Envelope{
		Type:       eventType,
		Data:       json.RawMessage(data),
		Timestamp:  "2026-01-15T12:00:00Z",
		ReceivedAt: time.Date(2026, 1, 15, 12, 0, 1, 0, time.UTC),
	}
}

func TestWriter_StopFlushesQueued(t *testing.T) {
	sender := &fakeSender{}
	cfg := Config{
		SubscriptionID: "agent-42",
		BatchSize:      100, // Large batch so no auto-flush
		FlushInterval:  time.Hour,
		BufferSize:     100,
	}
	w := NewWriter(cfg, sender, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	w.Record(envelope(events.TypeCallStatus, `{"call_id":"c1"}`))
	w.Record(envelope(events.TypeBookingUpdate, `{"id":1}`))

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	batches := sender.sent()
	if len(batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(batches))
	}
	if len(batches[0]) != 2 {
		t.Fatalf("rows = %d, want 2", len(batches[0]))
	}

	q := batches[0][0]
	if !strings.Contains(q.SQL, "INSERT INTO console_events") {
		t.Errorf("SQL = %q", q.SQL)
	}
	if len(q.Arguments) != 6 {
		t.Fatalf("arguments = %d, want 6", len(q.Arguments))
	}
	if id, ok := q.Arguments[0].(uuid.UUID); !ok || id == uuid.Nil {
		t.Errorf("event_id = %v, want non-nil uuid", q.Arguments[0])
	}
	if q.Arguments[1] != "agent-42" {
		t.Errorf("subscription_id = %v, want agent-42", q.Arguments[1])
	}
	if q.Arguments[2] != events.TypeCallStatus {
		t.Errorf("event_type = %v, want call_status", q.Arguments[2])
	}
	if p, ok := q.Arguments[3].(json.RawMessage); !ok || string(p) != `{"call_id":"c1"}` {
		t.Errorf("payload = %v", q.Arguments[3])
	}
	if q.Arguments[4] != "2026-01-15T12:00:00Z" {
		t.Errorf("event_ts = %v", q.Arguments[4])
	}

	stats := w.Stats()
	if stats.Inserts != 2 || stats.Flushes != 1 || stats.Queued != 0 {
		t.Errorf("stats = %+v, want 2 inserts, 1 flush, 0 queued", stats)
	}
}

func TestWriter_FlushesFullBatch(t *testing.T) {
	sender := &fakeSender{}
	cfg := Config{
		SubscriptionID: "agent-42",
		BatchSize:      3,
		FlushInterval:  time.Hour,
		BufferSize:     100,
	}
	w := NewWriter(cfg, sender, nil)
	w.Start(context.Background())

	for i := 0; i < 7; i++ {
		w.Record(envelope(events.TypeTranscript, `{}`))
	}

	deadline := time.Now().Add(time.Second)
	for sender.rows() < 6 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := len(sender.sent()); n != 2 {
		t.Errorf("batches before Stop = %d, want 2", n)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Stop(stopCtx)

	if n := sender.rows(); n != 7 {
		t.Errorf("rows written = %d, want 7", n)
	}
}

func TestWriter_FlushInterval(t *testing.T) {
	sender := &fakeSender{}
	cfg := Config{
		BatchSize:     100,
		FlushInterval: 20 * time.Millisecond,
		BufferSize:    100,
	}
	w := NewWriter(cfg, sender, nil)
	w.Start(context.Background())
	defer w.Stop(context.Background())

	w.Record(envelope(events.TypeMissedCalls, `{"count":1}`))

	deadline := time.Now().Add(time.Second)
	for sender.rows() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := sender.rows(); n != 1 {
		t.Errorf("rows written by ticker = %d, want 1", n)
	}
}

func TestWriter_Conflicts(t *testing.T) {
	sender := &fakeSender{conflict: map[int]bool{1: true}}
	w := NewWriter(Config{BatchSize: 10, FlushInterval: time.Hour, BufferSize: 10}, sender, nil)

	w.Record(envelope("a", `{}`))
	w.Record(envelope("b", `{}`))
	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	stats := w.Stats()
	if stats.Inserts != 1 || stats.Conflicts != 1 {
		t.Errorf("Inserts = %d Conflicts = %d, want 1 and 1", stats.Inserts, stats.Conflicts)
	}
}

func TestWriter_InsertError(t *testing.T) {
	sender := &fakeSender{err: errors.New("relation does not exist")}
	w := NewWriter(Config{BatchSize: 10, FlushInterval: time.Hour, BufferSize: 10}, sender, nil)

	w.Record(envelope("a", `{}`))
	if err := w.Stop(context.Background()); err == nil {
		t.Error("Stop() expected final flush error, got nil")
	}
	if e := w.Stats().Errors; e != 1 {
		t.Errorf("Errors = %d, want 1", e)
	}
}

func TestWriter_DropsWhenFull(t *testing.T) {
	sender := &fakeSender{}
	w := NewWriter(Config{BatchSize: 1, FlushInterval: time.Hour, BufferSize: 2}, sender, nil)

	// Not started: nothing drains the queue.
	w.Record(envelope("a", `{}`))
	w.Record(envelope("b", `{}`))
	w.Record(envelope("c", `{}`))

	stats := w.Stats()
	if stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
	if stats.Queued != 2 {
		t.Errorf("Queued = %d, want 2", stats.Queued)
	}

	w.Stop(context.Background())
	w.Record(envelope("d", `{}`))
	if d := w.Stats().Dropped; d != 2 {
		t.Errorf("Dropped after Stop = %d, want 2", d)
	}
	if n := sender.rows(); n != 2 {
		t.Errorf("rows written = %d, want 2", n)
	}
}

func TestWriter_ZeroReceivedAt(t *testing.T) {
	sender := &fakeSender{}
	w := NewWriter(Config{BatchSize: 10, FlushInterval: time.Hour, BufferSize: 10}, sender, nil)

	before := time.Now()
	w.Record(events.Envelope{Type: "a", Data: json.RawMessage(`{}`)})
	w.Stop(context.Background())

	ts, ok := sender.sent()[0][0].Arguments[5].(time.Time)
	if !ok || ts.Before(before) {
		t.Errorf("received_at = %v, want time at or after %v", sender.sent()[0][0].Arguments[5], before)
	}
}

// fakeExecer records statements.
type fakeExecer struct {
	sql []string
	err error
}

func (e *fakeExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.sql = append(e.sql, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), e.err
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeExecer{}
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if len(db.sql) != 1 || !strings.Contains(db.sql[0], "CREATE TABLE IF NOT EXISTS console_events") {
		t.Errorf("executed %v", db.sql)
	}

	db = &fakeExecer{err: errors.New("permission denied")}
	if err := EnsureSchema(context.Background(), db); err == nil {
		t.Error("EnsureSchema() expected error, got nil")
	}
}
