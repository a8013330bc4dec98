// Package store keeps desensitization mappings so that a document
// desensitized through the API can be restored later by mapping ID.
//
// Two implementations are provided:
//   - memoryStore: in-memory only, used in tests and when no path is configured.
//   - bboltStore: embedded key-value store (bbolt), used in production,
//     optionally fronted by an S3-FIFO cache of decoded records.
//
// A stored mapping is the only way back to the original numbers, so records
// are never evicted; they live until deleted explicitly.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"numeric-desensitizer/internal/desensitizer"
	"numeric-desensitizer/internal/logger"
)

// ErrMappingNotFound is returned for unknown mapping IDs.
var ErrMappingNotFound = errors.New("mapping not found")

// Record is one stored mapping with its provenance.
type Record struct {
	ID        string                `json:"id"`
	Source    string                `json:"source,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
	Mapping   *desensitizer.Mapping `json:"mapping"`
}

// Summary describes a Record without its entries.
type Summary struct {
	ID        string    `json:"id"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Entries   int       `json:"entries"`
}

// Store persists mapping records. All implementations must be safe for
// concurrent use.
type Store interface {
	// Put saves m under a new ID and returns that ID.
	Put(source string, m *desensitizer.Mapping) (string, error)

	// Get returns the record for id or ErrMappingNotFound.
	Get(id string) (*Record, error)

	// Delete removes id; deleting an unknown ID returns ErrMappingNotFound.
	Delete(id string) error

	// List returns summaries ordered by creation time, oldest first.
	List() ([]Summary, error)

	// Close releases any resources held by the store.
	Close() error
}

// Open returns a bbolt-backed store at path, or an in-memory store when path
// is empty. A positive cacheSize keeps that many decoded bbolt records in
// memory.
func Open(path string, cacheSize int, log *logger.Logger) (Store, error) {
	if path == "" {
		return NewMemory(), nil
	}
	s, err := newBboltStore(path, log)
	if err != nil || cacheSize <= 0 {
		return s, err
	}
	return NewCached(s, cacheSize, log), nil
}

func newID() string { return uuid.NewString() }

func summarize(r *Record) Summary {
	return Summary{ID: r.ID, Source: r.Source, CreatedAt: r.CreatedAt, Entries: r.Mapping.Len()}
}

func sortSummaries(out []Summary) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
}

// --- memoryStore ---------------------------------------------------------

type memoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte // id → encoded Record
}

// NewMemory returns an in-memory Store. Records are encoded on Put so later
// changes to the caller's Mapping do not leak into the store.
func NewMemory() Store {
	return &memoryStore{records: make(map[string][]byte)}
}

func (s *memoryStore) Put(source string, m *desensitizer.Mapping) (string, error) {
	rec := &Record{ID: newID(), Source: source, CreatedAt: time.Now().UTC(), Mapping: m}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	s.mu.Lock()
	s.records[rec.ID] = data
	s.mu.Unlock()
	return rec.ID, nil
}

func (s *memoryStore) Get(id string) (*Record, error) {
	s.mu.RLock()
	data, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMappingNotFound, id)
	}
	return decodeRecord(data)
}

func (s *memoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: %s", ErrMappingNotFound, id)
	}
	delete(s.records, id)
	return nil
}

func (s *memoryStore) List() ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, 0, len(s.records))
	for _, data := range s.records {
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(rec))
	}
	sortSummaries(out)
	return out, nil
}

func (s *memoryStore) Close() error { return nil }

func decodeRecord(data []byte) (*Record, error) {
	rec := &Record{Mapping: desensitizer.NewMapping()}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// --- bboltStore ----------------------------------------------------------

const bboltBucket = "mappings"

// bboltStore is a Store backed by an embedded bbolt database. The database
// file is created at the given path if it does not exist.
type bboltStore struct {
	db  *bolt.DB
	log *logger.Logger
}

func newBboltStore(path string, log *logger.Logger) (Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt store %q: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bboltBucket))
		return err
	}); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("create bbolt bucket: %w", err)
	}

	if log != nil {
		log.Infof("store_open", "mapping store opened at %s", path)
	}
	return &bboltStore{db: db, log: log}, nil
}

func (s *bboltStore) Put(source string, m *desensitizer.Mapping) (string, error) {
	rec := &Record{ID: newID(), Source: source, CreatedAt: time.Now().UTC(), Mapping: m}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bboltBucket))
		if b == nil {
			return fmt.Errorf("bucket %q not found", bboltBucket)
		}
		return b.Put([]byte(rec.ID), data)
	}); err != nil {
		return "", fmt.Errorf("store mapping: %w", err)
	}
	if s.log != nil {
		s.log.Debugf("store_put", "mapping %s (%d entries) source=%q", rec.ID, m.Len(), source)
	}
	return rec.ID, nil
}

func (s *bboltStore) Get(id string) (*Record, error) {
	var data []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bboltBucket))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(id)); v != nil {
			// v is only valid inside the transaction.
			data = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrMappingNotFound, id)
	}
	return decodeRecord(data)
}

func (s *bboltStore) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bboltBucket))
		if b == nil || b.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrMappingNotFound, id)
		}
		return b.Delete([]byte(id))
	})
}

func (s *bboltStore) List() ([]Summary, error) {
	var out []Summary
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bboltBucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			rec, err := decodeRecord(v)
			if err != nil {
				return err
			}
			out = append(out, summarize(rec))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	sortSummaries(out)
	return out, nil
}

func (s *bboltStore) Close() error {
	return s.db.Close()
}
