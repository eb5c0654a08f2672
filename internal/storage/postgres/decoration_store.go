package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/zhenek73/vaultatrees/internal/domain"
	"github.com/zhenek73/vaultatrees/internal/storage"
)

// DecorationStore implements storage.DecorationStore using PostgreSQL.
type DecorationStore struct {
	pool *Pool
}

// NewDecorationStore creates a new DecorationStore.
func NewDecorationStore(pool *Pool) *DecorationStore {
	return &DecorationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DecorationStore = (*DecorationStore)(nil)

// Insert adds a decoration, filling ID and CreatedAt on success.
// ON CONFLICT (tx_id) DO NOTHING makes the insert a no-op for
// duplicates; an empty RETURNING set is reported as ErrDuplicateKey
// so callers can treat it as the expected outcome it is.
func (s *DecorationStore) Insert(ctx context.Context, d *domain.Decoration) error {
	if d == nil || d.TxID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO decorations (type, from_account, display_name, message_text, amount, tx_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tx_id) DO NOTHING
		RETURNING id, created_at
	`

	err := s.pool.QueryRow(ctx, query,
		string(d.Type),
		d.FromAccount,
		d.DisplayName,
		d.MessageText,
		d.Amount,
		d.TxID,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		// Empty RETURNING set means the conflict clause swallowed the
		// row; a raw 23505 can still surface from concurrent inserts.
		if isNotFoundError(err) || isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert decoration: %w", err)
	}
	return nil
}

// GetByTxID retrieves a decoration by transaction id.
func (s *DecorationStore) GetByTxID(ctx context.Context, txID string) (*domain.Decoration, error) {
	query := `
		SELECT id, type, from_account, display_name, message_text, amount::text, tx_id, created_at
		FROM decorations
		WHERE tx_id = $1
	`

	d, err := scanDecoration(s.pool.QueryRow(ctx, query, txID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get decoration by tx_id: %w", err)
	}
	return d, nil
}

// TxIDExists reports whether a decoration with the given tx_id exists.
func (s *DecorationStore) TxIDExists(ctx context.Context, txID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM decorations WHERE tx_id = $1)`, txID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check tx_id exists: %w", err)
	}
	return exists, nil
}

// RecentTxIDs returns tx ids of the most recently created decorations.
func (s *DecorationStore) RecentTxIDs(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT tx_id
		FROM decorations
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent tx_ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tx_id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tx_id rows: %w", err)
	}

	return ids, nil
}

// ExistingTxIDs returns the subset of txIDs that are already persisted.
func (s *DecorationStore) ExistingTxIDs(ctx context.Context, txIDs []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(txIDs) == 0 {
		return existing, nil
	}

	query := `SELECT tx_id FROM decorations WHERE tx_id = ANY($1)`

	rows, err := s.pool.Query(ctx, query, txIDs)
	if err != nil {
		return nil, fmt.Errorf("check existing tx_ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan existing tx_id: %w", err)
		}
		existing[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate existing tx_id rows: %w", err)
	}

	return existing, nil
}

// ListSince retrieves decorations created at or after since, newest first.
func (s *DecorationStore) ListSince(ctx context.Context, since time.Time, limit int) ([]*domain.Decoration, error) {
	query := `
		SELECT id, type, from_account, display_name, message_text, amount::text, tx_id, created_at
		FROM decorations
		WHERE created_at >= $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list decorations: %w", err)
	}
	defer rows.Close()

	return scanDecorations(rows)
}

// LeadingStarBid returns the star decoration with the highest amount.
// amount is stored as NUMERIC so ordering is exact; the earliest row
// wins ties.
func (s *DecorationStore) LeadingStarBid(ctx context.Context) (*domain.Decoration, error) {
	query := `
		SELECT id, type, from_account, display_name, message_text, amount::text, tx_id, created_at
		FROM decorations
		WHERE type = 'star'
		ORDER BY amount DESC, created_at ASC, id ASC
		LIMIT 1
	`

	d, err := scanDecoration(s.pool.QueryRow(ctx, query))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get leading star bid: %w", err)
	}
	return d, nil
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDecoration scans a single decoration row.
func scanDecoration(row rowScanner) (*domain.Decoration, error) {
	var d domain.Decoration
	var typ string

	err := row.Scan(
		&d.ID,
		&typ,
		&d.FromAccount,
		&d.DisplayName,
		&d.MessageText,
		&d.Amount,
		&d.TxID,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Type = domain.DecorationType(typ)
	return &d, nil
}

// scanDecorations scans multiple rows into a slice of Decoration.
func scanDecorations(rows pgx.Rows) ([]*domain.Decoration, error) {
	var decorations []*domain.Decoration

	for rows.Next() {
		d, err := scanDecoration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decoration row: %w", err)
		}
		decorations = append(decorations, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decoration rows: %w", err)
	}

	return decorations, nil
}
