package storage

import (
	"context"
	"time"

	"github.com/zhenek73/vaultatrees/internal/domain"
)

// DecorationStore provides access to decorations storage. The tx_id
// unique constraint carried by every implementation is the system's
// actual deduplication boundary; in-memory caches sitting in front of
// it are optimizations only.
type DecorationStore interface {
	// Insert adds a decoration, filling ID and CreatedAt on success.
	// Returns ErrDuplicateKey if a row with the same tx_id already
	// exists; the store is left unchanged in that case.
	Insert(ctx context.Context, d *domain.Decoration) error

	// GetByTxID retrieves a decoration by transaction id.
	// Returns ErrNotFound if it does not exist.
	GetByTxID(ctx context.Context, txID string) (*domain.Decoration, error)

	// TxIDExists reports whether a decoration with the given
	// transaction id has been persisted.
	TxIDExists(ctx context.Context, txID string) (bool, error)

	// RecentTxIDs returns the transaction ids of the most recently
	// created decorations, newest first, up to limit.
	RecentTxIDs(ctx context.Context, limit int) ([]string, error)

	// ExistingTxIDs returns the subset of txIDs that are already
	// persisted.
	ExistingTxIDs(ctx context.Context, txIDs []string) (map[string]struct{}, error)

	// ListSince retrieves decorations created at or after since,
	// newest first, up to limit.
	ListSince(ctx context.Context, since time.Time, limit int) ([]*domain.Decoration, error)

	// LeadingStarBid returns the star decoration with the highest
	// amount. The earliest such row wins ties. Returns ErrNotFound
	// when no bids exist.
	LeadingStarBid(ctx context.Context) (*domain.Decoration, error)
}

// ParserStateStore persists the single-row poller position marker.
// Informational only: the decorations tx_id constraint, not this
// marker, guarantees exactly-once effects.
type ParserStateStore interface {
	// LastTxID returns the most recently recorded transaction id.
	// Returns ErrNotFound when the marker has never been set.
	LastTxID(ctx context.Context) (string, error)

	// SetLastTxID records the transaction id of the newest processed
	// transfer, replacing any previous value.
	SetLastTxID(ctx context.Context, txID string) error
}

// DonationEventStore is an append-only analytics sink mirroring every
// inserted decoration. Best effort: a failed mirror write never fails
// the primary insert.
type DonationEventStore interface {
	// Insert records one donation event.
	Insert(ctx context.Context, e *domain.DonationEvent) error

	// DailyTotals aggregates donation volume per day within [from, to),
	// ordered day ascending.
	DailyTotals(ctx context.Context, from, to time.Time) ([]domain.DailyTotal, error)
}
