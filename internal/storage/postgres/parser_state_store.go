package postgres

import (
	"context"
	"fmt"

	"github.com/zhenek73/vaultatrees/internal/storage"
)

// ParserStateStore implements storage.ParserStateStore using PostgreSQL.
// The table holds a single row with id = 1.
type ParserStateStore struct {
	pool *Pool
}

// NewParserStateStore creates a new ParserStateStore.
func NewParserStateStore(pool *Pool) *ParserStateStore {
	return &ParserStateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ParserStateStore = (*ParserStateStore)(nil)

// LastTxID returns the most recently recorded transaction id.
func (s *ParserStateStore) LastTxID(ctx context.Context) (string, error) {
	var txID string
	err := s.pool.QueryRow(ctx,
		`SELECT last_tx_id FROM parser_state WHERE id = 1`,
	).Scan(&txID)
	if err != nil {
		if isNotFoundError(err) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("get last tx_id: %w", err)
	}
	return txID, nil
}

// SetLastTxID records the newest processed transaction id.
func (s *ParserStateStore) SetLastTxID(ctx context.Context, txID string) error {
	if txID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO parser_state (id, last_tx_id, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET last_tx_id = $1, updated_at = now()
	`

	if _, err := s.pool.Exec(ctx, query, txID); err != nil {
		return fmt.Errorf("set last tx_id: %w", err)
	}
	return nil
}
