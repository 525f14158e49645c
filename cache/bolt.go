package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"
)

// boltBucket holds finalize records keyed by task hash.
var boltBucket = []byte("task_finalize")

// BoltSink is a BoltDB-backed Sink: a pure-Go, file-backed key-value
// store for executors that want durable finalize records without a SQL
// dependency.
//
// Records are keyed by task hash; the value is the JSON-encoded Record.
// As with the SQL sinks, a writer goroutine drains a bounded queue so
// FinalizeAsync never blocks.
type BoltSink struct {
	db    *bbolt.DB
	queue chan Record
	done  chan struct{}
	log   zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewBoltSink opens (or creates) the database file at path and starts the
// writer goroutine.
func NewBoltSink(path string, log zerolog.Logger) (*BoltSink, error) {
	opts := &bbolt.Options{
		Timeout: 1 * time.Second,
	}
	db, err := bbolt.Open(path, 0o600, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	s := &BoltSink{
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
func (s *BoltSink) FinalizeAsync(taskHash string, consumerHashes []string) {
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
func (s *BoltSink) Record(taskHash string) (Record, error) {
	var record Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(boltBucket).Get([]byte(taskHash))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return Record{}, err
	}
	return record, nil
}

// Close stops accepting records, drains the queue, and closes the
// database.
func (s *BoltSink) Close() error {
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

func (s *BoltSink) writeLoop() {
	defer close(s.done)
	for record := range s.queue {
		if err := s.write(record); err != nil {
			s.log.Warn().Err(err).Str("task_hash", record.TaskHash).Msg("failed to persist finalize record")
		}
	}
}

func (s *BoltSink) write(record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode finalize record: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(record.TaskHash), data)
	})
}
