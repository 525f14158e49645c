package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

// MySQLSink is a MySQL/MariaDB-backed Sink for deployments that
// centralize run metadata in a shared database.
//
// The DSN (Data Source Name) format is:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...]
//
// Never hardcode credentials; read the DSN from the environment:
//
//	sink, err := cache.NewMySQLSink(os.Getenv("MYSQL_DSN"), logger)
//
// Like SQLiteSink, writes run on a dedicated goroutine fed by a bounded
// queue; FinalizeAsync never blocks and drops on overflow.
//
// Schema:
//   - task_finalize: task_hash (unique), consumer_hashes (JSON), created_at
type MySQLSink struct {
	db    *sql.DB
	queue chan Record
	done  chan struct{}
	log   zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewMySQLSink connects to the database, creates the schema if missing,
// and starts the writer goroutine.
func NewMySQLSink(dsn string, log zerolog.Logger) (*MySQLSink, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS task_finalize (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			task_hash VARCHAR(255) NOT NULL,
			consumer_hashes JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY unique_task_hash (task_hash)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create task_finalize table: %w", err)
	}

	s := &MySQLSink{
		db:    db,
		queue: make(chan Record, sinkQueueDepth),
		done:  make(chan struct{}),
		log:   log,
	}
	go s.writeLoop()
	return s, nil
}

// FinalizeAsync enqueues the record without blocking. Records offered to
// a full queue are dropped with a warning; records offered to a closed
// sink are dropped silently.
func (s *MySQLSink) FinalizeAsync(taskHash string, consumerHashes []string) {
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

// Record returns the finalize record for the given task hash.
func (s *MySQLSink) Record(ctx context.Context, taskHash string) (Record, error) {
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
// connection pool.
func (s *MySQLSink) Close() error {
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

func (s *MySQLSink) writeLoop() {
	defer close(s.done)
	ctx := context.Background()
	for record := range s.queue {
		if err := s.write(ctx, record); err != nil {
			s.log.Warn().Err(err).Str("task_hash", record.TaskHash).Msg("failed to persist finalize record")
		}
	}
}

func (s *MySQLSink) write(ctx context.Context, record Record) error {
	consumers, err := json.Marshal(record.ConsumerHashes)
	if err != nil {
		return fmt.Errorf("failed to encode consumer hashes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_finalize (task_hash, consumer_hashes, created_at)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			consumer_hashes = VALUES(consumer_hashes),
			created_at = VALUES(created_at)
	`, record.TaskHash, string(consumers), record.CreatedAt)
	return err
}
