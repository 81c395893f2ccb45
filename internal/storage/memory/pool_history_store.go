package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"npc-stake/internal/domain"
	"npc-stake/internal/storage"
)

// PoolHistoryStore is an in-memory implementation of storage.PoolHistoryStore.
type PoolHistoryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PoolHistoryPoint // keyed by (pool, timestamp_ms)
}

// NewPoolHistoryStore creates a new in-memory pool history store.
func NewPoolHistoryStore() *PoolHistoryStore {
	return &PoolHistoryStore{
		data: make(map[string]*domain.PoolHistoryPoint),
	}
}

func historyKey(pool string, timestampMs int64) string {
	return fmt.Sprintf("%s|%d", pool, timestampMs)
}

// Insert adds a new point. Returns ErrDuplicateKey if (pool, timestamp_ms) exists.
func (s *PoolHistoryStore) Insert(_ context.Context, p *domain.PoolHistoryPoint) error {
	if p == nil || p.Pool == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := historyKey(p.Pool, p.TimestampMs)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	pointCopy := *p
	s.data[key] = &pointCopy
	return nil
}

// GetRange retrieves points for a pool within [from, to] (inclusive), ordered by timestamp ASC.
func (s *PoolHistoryStore) GetRange(_ context.Context, pool string, from, to int64) ([]*domain.PoolHistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PoolHistoryPoint
	for _, p := range s.data {
		if p.Pool == pool && p.TimestampMs >= from && p.TimestampMs <= to {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

// Latest retrieves the most recent point for a pool. Returns ErrNotFound if none exist.
func (s *PoolHistoryStore) Latest(_ context.Context, pool string) (*domain.PoolHistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.PoolHistoryPoint
	for _, p := range s.data {
		if p.Pool == pool && (latest == nil || p.TimestampMs > latest.TimestampMs) {
			latest = p
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	pointCopy := *latest
	return &pointCopy, nil
}

var _ storage.PoolHistoryStore = (*PoolHistoryStore)(nil)
