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

// DonationEventStore is an in-memory implementation of
// storage.DonationEventStore.
type DonationEventStore struct {
	mu   sync.RWMutex
	data []*domain.DonationEvent
}

// NewDonationEventStore creates a new in-memory donation event store.
func NewDonationEventStore() *DonationEventStore {
	return &DonationEventStore{}
}

// Compile-time interface check.
var _ storage.DonationEventStore = (*DonationEventStore)(nil)

// Insert records one donation event.
func (s *DonationEventStore) Insert(_ context.Context, e *domain.DonationEvent) error {
	if e == nil || e.TxID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *e
	s.data = append(s.data, &copied)
	return nil
}

// DailyTotals aggregates donation volume per day within [from, to),
// ordered day ascending. Events with unparseable amounts are skipped.
func (s *DonationEventStore) DailyTotals(_ context.Context, from, to time.Time) ([]domain.DailyTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := make(map[time.Time]*domain.DailyTotal)
	for _, e := range s.data {
		if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
			continue
		}
		amount, err := decimal.NewFromString(e.Amount)
		if err != nil {
			continue
		}

		day := e.CreatedAt.UTC().Truncate(24 * time.Hour)
		t, ok := byDay[day]
		if !ok {
			t = &domain.DailyTotal{Day: day}
			byDay[day] = t
		}
		t.Count++
		t.Amount = t.Amount.Add(amount)
	}

	totals := make([]domain.DailyTotal, 0, len(byDay))
	for _, t := range byDay {
		totals = append(totals, *t)
	}
	sort.Slice(totals, func(i, j int) bool {
		return totals[i].Day.Before(totals[j].Day)
	})
	return totals, nil
}

// All returns every recorded event, in insert order. Test helper.
func (s *DonationEventStore) All() []*domain.DonationEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.DonationEvent, 0, len(s.data))
	for _, e := range s.data {
		copied := *e
		result = append(result, &copied)
	}
	return result
}
