package archive

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps finished songs in-process for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []SongRecord
	byID    map[string]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[string]int)}
}

func (s *InMemoryStore) SaveSong(_ context.Context, record SongRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.Themes = append([]string(nil), record.Themes...)
	s.byID[record.ID] = len(s.records)
	s.records = append(s.records, record)
	return nil
}

func (s *InMemoryStore) RecentSongs(_ context.Context, limit int) ([]SongRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	out := make([]SongRecord, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *InMemoryStore) GetSong(_ context.Context, id string) (SongRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return SongRecord{}, ErrNotFound
	}
	return s.records[idx], nil
}

func (s *InMemoryStore) Close() error { return nil }
