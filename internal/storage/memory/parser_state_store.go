package memory

import (
	"context"
	"sync"

	"github.com/zhenek73/vaultatrees/internal/storage"
)

// ParserStateStore is an in-memory implementation of storage.ParserStateStore.
type ParserStateStore struct {
	mu       sync.RWMutex
	lastTxID string
	set      bool
}

// NewParserStateStore creates a new in-memory parser state store.
func NewParserStateStore() *ParserStateStore {
	return &ParserStateStore{}
}

// Compile-time interface check.
var _ storage.ParserStateStore = (*ParserStateStore)(nil)

// LastTxID returns the most recently recorded transaction id.
func (s *ParserStateStore) LastTxID(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.set {
		return "", storage.ErrNotFound
	}
	return s.lastTxID, nil
}

// SetLastTxID records the newest processed transaction id.
func (s *ParserStateStore) SetLastTxID(_ context.Context, txID string) error {
	if txID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastTxID = txID
	s.set = true
	return nil
}
