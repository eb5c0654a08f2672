package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zhenek73/vaultatrees/internal/domain"
	"github.com/zhenek73/vaultatrees/internal/storage"
)

// DonationEventStore implements storage.DonationEventStore using
// ClickHouse. The table is a ReplacingMergeTree keyed on tx_id, so
// replayed writes collapse during merges rather than failing.
type DonationEventStore struct {
	conn *Conn
}

// NewDonationEventStore creates a new DonationEventStore.
func NewDonationEventStore(conn *Conn) *DonationEventStore {
	return &DonationEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DonationEventStore = (*DonationEventStore)(nil)

// Insert records one donation event.
func (s *DonationEventStore) Insert(ctx context.Context, e *domain.DonationEvent) error {
	if e == nil || e.TxID == "" {
		return storage.ErrInvalidInput
	}

	amount, err := decimal.NewFromString(e.Amount)
	if err != nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO donation_events (tx_id, type, from_account, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	err = s.conn.Exec(ctx, query,
		e.TxID,
		string(e.Type),
		e.FromAccount,
		amount,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert donation event: %w", err)
	}
	return nil
}

// DailyTotals aggregates donation volume per day within [from, to).
func (s *DonationEventStore) DailyTotals(ctx context.Context, from, to time.Time) ([]domain.DailyTotal, error) {
	query := `
		SELECT toStartOfDay(created_at) AS day, count() AS cnt, sum(amount) AS total
		FROM donation_events
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY day
		ORDER BY day ASC
	`

	rows, err := s.conn.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query daily totals: %w", err)
	}
	defer rows.Close()

	var totals []domain.DailyTotal
	for rows.Next() {
		var t domain.DailyTotal
		if err := rows.Scan(&t.Day, &t.Count, &t.Amount); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		totals = append(totals, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily total rows: %w", err)
	}

	return totals, nil
}
