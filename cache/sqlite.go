package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteSink is a SQLite-backed Sink storing finalize records in a
// single-file database.
//
// Designed for the common single-executor deployment: zero setup, one
// file next to the run's metadata. The database uses WAL mode so resume
// logic can read concurrently with the writer.
//
// Writes happen on a dedicated goroutine fed by a bounded queue, keeping
// FinalizeAsync non-blocking. When the queue is full the record is
// dropped with a warning; the cache is best-effort by contract.
//
// Schema:
//   - task_finalize: task_hash (unique), consumer_hashes (JSON), created_at
type SQLiteSink struct {
	db    *sql.DB
	queue chan Record
	done  chan struct{}
	log   zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// sinkQueueDepth bounds the async writer queue of the database-backed
// sinks. Deep enough for burst deletions at process close.
const sinkQueueDepth = 1024

// NewSQLiteSink opens (or creates) the database at path and starts the
// writer goroutine.
//
// Path examples:
//   - "./cache.db" - file in current directory
//   - ":memory:"   - in-memory database, for tests
//
// Example:
//
//	sink, err := cache.NewSQLiteSink("./cache.db", logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sink.Close()
func NewSQLiteSink(path string, log zerolog.Logger) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS task_finalize (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_hash TEXT NOT NULL UNIQUE,
			consumer_hashes TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create task_finalize table: %w", err)
	}

	s := &SQLiteSink{
		db:    db,
		queue: make(chan Record, sinkQueueDepth),
		done:  make(chan struct{}),
		log:   log,
	}
	go s.writeLoop()
	return s, nil
}

// FinalizeAsync enqueues the record without blocking. Records offered to a
// full queue are dropped with a warning; records offered to a closed sink
// are dropped silently.
func (s *SQLiteSink) FinalizeAsync(taskHash string, consumerHashes []string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	consumers := make([]string, len(consumerHashes))
	copy(consumers, consumerHashes)

	select {
	case s.queue <- Record{TaskHash: taskHash, ConsumerHashes: consumers, CreatedAt: time.Now()}:
	default:
		s.log.Warn().Str("task_hash", taskHash).Msg("cache queue full, dropping finalize record")
	}
}

// Record returns the finalize record for the given task hash. Intended
// for resume logic and tests; the async writer may not have persisted a
// just-submitted record yet (Close drains the queue).
func (s *SQLiteSink) Record(ctx context.Context, taskHash string) (Record, error) {
	var consumersJSON string
	var createdAt time.Time
	row := s.db.QueryRowContext(ctx,
		"SELECT consumer_hashes, created_at FROM task_finalize WHERE task_hash = ?", taskHash)
	if err := row.Scan(&consumersJSON, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("failed to load finalize record: %w", err)
	}

	var consumers []string
	if err := json.Unmarshal([]byte(consumersJSON), &consumers); err != nil {
		return Record{}, fmt.Errorf("failed to decode consumer hashes: %w", err)
	}
	return Record{TaskHash: taskHash, ConsumerHashes: consumers, CreatedAt: createdAt}, nil
}

// Close stops accepting records, drains the queue, and closes the
// database.
func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.queue)
	<-s.done
	return s.db.Close()
}

func (s *SQLiteSink) writeLoop() {
	defer close(s.done)
	ctx := context.Background()
	for record := range s.queue {
		if err := s.write(ctx, record); err != nil {
			s.log.Warn().Err(err).Str("task_hash", record.TaskHash).Msg("failed to persist finalize record")
		}
	}
}

func (s *SQLiteSink) write(ctx context.Context, record Record) error {
	consumers, err := json.Marshal(record.ConsumerHashes)
	if err != nil {
		return fmt.Errorf("failed to encode consumer hashes: %w", err)
	}

	// A later record for the same task hash replaces the earlier one.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_finalize (task_hash, consumer_hashes, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(task_hash) DO UPDATE SET
			consumer_hashes = excluded.consumer_hashes,
			created_at = excluded.created_at
	`, record.TaskHash, string(consumers), record.CreatedAt)
	return err
}
