package storage

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

const defaultCapacity = 500

var (
	// ErrNotFound indicates no escalation exists for the reference ID.
	ErrNotFound = errors.New("escalation not found")
	// ErrInvalidRecord indicates a record without a reference ID.
	ErrInvalidRecord = errors.New("escalation record requires a reference ID")
)

// Escalation is the local log entry kept for every dispatch attempt, sent
// or not, so a requester's reference ID can always be looked up.
type Escalation struct {
	ReferenceID string
	To          string
	Subject     string
	Sent        bool
	Error       string
	CreatedAt   time.Time
}

// Storage keeps the escalation log.
type Storage interface {
	Save(record Escalation) error
	Get(referenceID string) (Escalation, error)
	List() ([]Escalation, error)
}

// MemoryStorage keeps the most recent escalations in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	records  map[string]Escalation
}

// NewMemoryStorage creates a log retaining up to capacity records. A
// non-positive capacity selects the default.
func NewMemoryStorage(capacity int) *MemoryStorage {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &MemoryStorage{
		capacity: capacity,
		records:  make(map[string]Escalation),
	}
}

// Save stores record, replacing any earlier record with the same reference
// ID. The oldest record is evicted once capacity is reached.
func (s *MemoryStorage) Save(record Escalation) error {
	record.ReferenceID = strings.TrimSpace(record.ReferenceID)
	if record.ReferenceID == "" {
		return ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ReferenceID]; !exists {
		s.order = append(s.order, record.ReferenceID)
	}
	s.records[record.ReferenceID] = record

	for len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.records, oldest)
	}
	return nil
}

// Get returns the record for referenceID.
func (s *MemoryStorage) Get(referenceID string) (Escalation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[strings.TrimSpace(referenceID)]
	if !ok {
		return Escalation{}, ErrNotFound
	}
	return record, nil
}

// List returns a copy of all records, newest first.
func (s *MemoryStorage) List() ([]Escalation, error) {
	s.mu.RLock()
	out := make([]Escalation, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.records[s.order[i]])
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
