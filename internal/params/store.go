// Package params provides the persisted parameter store backing the
// sequence counters. Values are cached in memory and written to BadgerDB
// only when they change; writes are synchronous so a value reported as
// saved survives a power cycle.
package params

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/sweeney/flight-monitor/internal/logic"
)

// Config holds configuration for the parameter store.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps values in memory only. Useful for testing.
	InMemory bool
}

// Store is a write-if-changed int16 parameter store.
// Safe for concurrent use.
type Store struct {
	db *badger.DB

	mu     sync.RWMutex
	cache  map[logic.ParamID]int16
	writes int
}

// Open opens (or creates) the store and loads all stored values.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("params: path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create params directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open params store: %w", err)
	}

	s := &Store{db: db, cache: make(map[logic.ParamID]int16)}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := logic.ParamID(item.KeyCopy(nil))
			err := item.Value(func(val []byte) error {
				v, err := decode(val)
				if err != nil {
					return fmt.Errorf("param %s: %w", id, err)
				}
				s.cache[id] = v
				return nil
			})
			if err != nil {
				return fmt.Errorf("load params: %w", err)
			}
		}
		return nil
	})
}

// Int16 returns the current value of id, or 0 if it has never been set.
func (s *Store) Int16(id logic.ParamID) int16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[id]
}

// SetInt16IfChanged stores v if it differs from the current value.
// A failed write is logged and the cached value is left unchanged, so the
// next call retries.
func (s *Store) SetInt16IfChanged(id logic.ParamID, v int16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.cache[id]; ok && cur == v {
		return
	}
	if err := s.write(id, v); err != nil {
		log.Printf("params: save %s=%d failed: %v", id, v, err)
	}
}

// Set stores v unconditionally (e.g. a ground station parameter write).
func (s *Store) Set(id logic.ParamID, v int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(id, v)
}

// write persists v and updates the cache. Caller must hold mu.
func (s *Store) write(id logic.ParamID, v int16) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(id), encode(v))
	})
	if err != nil {
		return fmt.Errorf("write param %s: %w", id, err)
	}
	s.cache[id] = v
	s.writes++
	return nil
}

// Writes returns the number of successful writes since Open.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close params store: %w", err)
	}
	return nil
}

func encode(v int16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, uint16(v))
	return b
}

func decode(b []byte) (int16, error) {
	if len(b) != 2 {
		return 0, fmt.Errorf("invalid value length %d", len(b))
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

// badgerLogger forwards BadgerDB warnings and errors to the process log.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	log.Printf("params: badger error: "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	log.Printf("params: badger warning: "+format, args...)
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
