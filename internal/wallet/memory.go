package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/ggonzalez94/bark-bot/internal/model"
)

// MemoryStore is an in-process Store used in tests and as a non-persistent
// fallback.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[model.UserID]Record
}

func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[model.UserID]Record)}
}

func (s *MemoryStore) Get(_ context.Context, userID model.UserID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	copied := rec
	return &copied, nil
}

func (s *MemoryStore) Upsert(_ context.Context, userID model.UserID, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[userID] = Record{UserID: userID, Address: address, UpdatedAt: time.Now().UTC()}
	return nil
}

func (s *MemoryStore) DeleteAll(_ context.Context, userID model.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
