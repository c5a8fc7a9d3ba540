// Package runlog records per-service pipeline events in SQLite.
//
// Events are queued on a buffered channel and flushed in transactional
// batches by a background goroutine, so recording never blocks the
// pipeline. Recording is best-effort: when the buffer is full, events
// are dropped rather than applying backpressure to the worker.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prontopub/inkwell/dbopen"
)

// Pipeline stages recorded during a service run.
const (
	StageClaimed   = "claimed"
	StageExtracted = "extracted"
	StageAnalyzed  = "analyzed"
	StageStored    = "stored"
	StageCompleted = "completed"
	StageFailed    = "failed"
)

// Entry is a single pipeline event.
type Entry struct {
	ServiceID string          `json:"service_id"`
	Stage     string          `json:"stage"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	Timestamp int64           `json:"timestamp"` // unix microseconds
}

// Schema for the run_events table. Applied by New.
const Schema = `
CREATE TABLE IF NOT EXISTS run_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	service_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_events_service ON run_events(service_id, id);
`

// Log persists pipeline events asynchronously.
type Log struct {
	db   *sql.DB
	ch   chan *Entry
	done chan struct{}
	once sync.Once
}

// New creates a Log backed by the given database, applies the schema,
// and starts the flush goroutine.
func New(db *sql.DB) (*Log, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("runlog schema: %w", err)
	}
	l := &Log{
		db:   db,
		ch:   make(chan *Entry, 1024),
		done: make(chan struct{}),
	}
	go l.flushLoop()
	return l, nil
}

// Record queues an event for async persistence. Non-blocking; drops the
// event if the buffer is full. detail may be nil; otherwise it is stored
// as JSON.
func (l *Log) Record(serviceID, stage string, detail any) {
	e := &Entry{
		ServiceID: serviceID,
		Stage:     stage,
		Timestamp: time.Now().UnixMicro(),
	}
	if detail != nil {
		data, err := json.Marshal(detail)
		if err != nil {
			slog.Error("runlog: marshal detail", "stage", stage, "error", err)
		} else {
			e.Detail = data
		}
	}
	select {
	case l.ch <- e:
	default:
		// buffer full: drop rather than stall the pipeline
	}
}

// ListByService returns all events for a service in insertion order.
func (l *Log) ListByService(ctx context.Context, serviceID string) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT service_id, stage, detail, timestamp FROM run_events
		 WHERE service_id = ? ORDER BY id`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("runlog: list %s: %w", serviceID, err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var detail string
		if err := rows.Scan(&e.ServiceID, &e.Stage, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("runlog: scan: %w", err)
		}
		if detail != "" {
			e.Detail = json.RawMessage(detail)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close drains the buffer, flushes pending events, and stops the flush
// goroutine. The database connection stays open.
func (l *Log) Close() error {
	l.once.Do(func() {
		close(l.ch)
		<-l.done
	})
	return nil
}

func (l *Log) flushLoop() {
	defer close(l.done)

	batch := make([]*Entry, 0, 64)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-l.ch:
			if !ok {
				l.flushBatch(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= 64 {
				l.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				l.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (l *Log) flushBatch(batch []*Entry) {
	if len(batch) == 0 {
		return
	}

	err := dbopen.RunTx(context.Background(), l.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO run_events (service_id, stage, detail, timestamp)
			VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for _, e := range batch {
			if _, err := stmt.Exec(e.ServiceID, e.Stage, string(e.Detail), e.Timestamp); err != nil {
				return fmt.Errorf("insert: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("runlog: flush batch", "error", err, "events", len(batch))
	}
}
