package store

import (
	"sync"
	"time"

	"github.com/i474232898/assistant-api-facade/internal/pairing"
)

// MemoryStore is a concurrency-safe in-memory store of active pairings.
type MemoryStore struct {
	mu sync.RWMutex

	// key: pairing code
	data map[string]pairing.Pairing

	// max number of live pairings (0 = unlimited)
	maxActive int
}

// NewMemoryStore creates a new MemoryStore.
// If maxActive is <= 0, it is treated as unlimited.
func NewMemoryStore(maxActive int) *MemoryStore {
	return &MemoryStore{
		data:      make(map[string]pairing.Pairing),
		maxActive: maxActive,
	}
}

// Insert stores p unless its code is held by a live pairing. An expired
// holder is replaced. When full, expired entries are purged before giving up.
func (s *MemoryStore) Insert(p pairing.Pairing, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.data[p.Code]; ok && !existing.Expired(now) {
		return pairing.ErrCodeTaken
	}

	if s.maxActive > 0 && len(s.data) >= s.maxActive {
		s.purgeLocked(now)
		if len(s.data) >= s.maxActive {
			return pairing.ErrExhausted
		}
	}

	s.data[p.Code] = p
	return nil
}

// Get returns the pairing stored under code.
func (s *MemoryStore) Get(code string) (pairing.Pairing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[code]
	if !ok {
		return pairing.Pairing{}, pairing.ErrNotFound
	}
	return p, nil
}

// Delete removes and returns the pairing stored under code.
func (s *MemoryStore) Delete(code string) (pairing.Pairing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.data[code]
	if !ok {
		return pairing.Pairing{}, pairing.ErrNotFound
	}
	delete(s.data, code)
	return p, nil
}

// PurgeExpired enforces retention by age.
func (s *MemoryStore) PurgeExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purgeLocked(now)
}

// Len returns the number of stored pairings, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemoryStore) purgeLocked(now time.Time) int {
	removed := 0
	for code, p := range s.data {
		if p.Expired(now) {
			delete(s.data, code)
			removed++
		}
	}
	return removed
}
