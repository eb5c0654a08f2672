// Package memory provides in-memory storage implementations for tests
// and local runs without external databases.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zhenek73/vaultatrees/internal/domain"
	"github.com/zhenek73/vaultatrees/internal/storage"
)

// DecorationStore is an in-memory implementation of storage.DecorationStore.
type DecorationStore struct {
	mu     sync.RWMutex
	data   []*domain.Decoration
	byTxID map[string]*domain.Decoration
	nextID int64
}

// NewDecorationStore creates a new in-memory decoration store.
func NewDecorationStore() *DecorationStore {
	return &DecorationStore{
		byTxID: make(map[string]*domain.Decoration),
		nextID: 1,
	}
}

// Compile-time interface check.
var _ storage.DecorationStore = (*DecorationStore)(nil)

// Insert adds a decoration, filling ID and CreatedAt on success.
// Returns ErrDuplicateKey if the tx_id already exists.
func (s *DecorationStore) Insert(_ context.Context, d *domain.Decoration) error {
	if d == nil || d.TxID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byTxID[d.TxID]; ok {
		return storage.ErrDuplicateKey
	}

	d.ID = s.nextID
	s.nextID++
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	// Store a copy
	stored := *d
	s.data = append(s.data, &stored)
	s.byTxID[d.TxID] = &stored

	return nil
}

// GetByTxID retrieves a decoration by transaction id.
func (s *DecorationStore) GetByTxID(_ context.Context, txID string) (*domain.Decoration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.byTxID[txID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	result := *d
	return &result, nil
}

// TxIDExists reports whether a decoration with the given tx_id exists.
func (s *DecorationStore) TxIDExists(_ context.Context, txID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byTxID[txID]
	return ok, nil
}

// RecentTxIDs returns tx ids of the most recently created decorations.
func (s *DecorationStore) RecentTxIDs(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := s.sortedNewestFirst()

	var ids []string
	for _, d := range sorted {
		if len(ids) >= limit {
			break
		}
		ids = append(ids, d.TxID)
	}
	return ids, nil
}

// ExistingTxIDs returns the subset of txIDs that are already persisted.
func (s *DecorationStore) ExistingTxIDs(_ context.Context, txIDs []string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	existing := make(map[string]struct{})
	for _, id := range txIDs {
		if _, ok := s.byTxID[id]; ok {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

// ListSince retrieves decorations created at or after since, newest first.
func (s *DecorationStore) ListSince(_ context.Context, since time.Time, limit int) ([]*domain.Decoration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Decoration
	for _, d := range s.sortedNewestFirst() {
		if len(result) >= limit {
			break
		}
		if d.CreatedAt.Before(since) {
			continue
		}
		copied := *d
		result = append(result, &copied)
	}
	return result, nil
}

// LeadingStarBid returns the star decoration with the highest amount,
// earliest row winning ties.
func (s *DecorationStore) LeadingStarBid(_ context.Context) (*domain.Decoration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.Decoration
	var bestAmount decimal.Decimal

	for _, d := range s.data {
		if d.Type != domain.TypeStar {
			continue
		}
		amount, err := decimal.NewFromString(d.Amount)
		if err != nil {
			continue
		}
		if best == nil || amount.GreaterThan(bestAmount) {
			best = d
			bestAmount = amount
		}
	}

	if best == nil {
		return nil, storage.ErrNotFound
	}
	result := *best
	return &result, nil
}

// sortedNewestFirst returns the rows ordered like the postgres store:
// created_at DESC, then insert order DESC. Caller must hold the lock.
func (s *DecorationStore) sortedNewestFirst() []*domain.Decoration {
	sorted := make([]*domain.Decoration, len(s.data))
	copy(sorted, s.data)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID > sorted[j].ID
	})
	return sorted
}
