package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/zhenek73/vaultatrees/internal/classify"
	"github.com/zhenek73/vaultatrees/internal/domain"
	"github.com/zhenek73/vaultatrees/internal/storage"
)

// WriteOutcome tags what happened to one transfer inside the writer.
type WriteOutcome int

const (
	// Inserted means a new decoration row was created.
	Inserted WriteOutcome = iota
	// AlreadyExists means the tx id was seen before (cache, store
	// lookup, or unique-constraint conflict) and nothing was written.
	AlreadyExists
	// Rejected means the transfer did not classify into a decoration
	// or carried an unusable tx id.
	Rejected
)

// String returns the outcome name for logs and metrics labels.
func (o WriteOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// WriteResult reports the outcome of one transfer and the decoration
// that was created, if any.
type WriteResult struct {
	Outcome    WriteOutcome
	Decoration *domain.Decoration
}

// Writer turns raw transfers into stored decorations. It is the only
// component that inserts into the decoration store; every layer of
// dedup (cache, existence check, unique constraint) lives here so the
// poller can treat a transfer as a unit of work.
type Writer struct {
	store       storage.DecorationStore
	events      storage.DonationEventStore
	cache       *TxCache
	bypassDedup bool
	logger      *log.Logger
}

// WriterOptions contains configuration for creating a Writer.
type WriterOptions struct {
	Store storage.DecorationStore
	// Events is optional: when set, every inserted decoration is
	// mirrored into the analytics sink. Mirror failures are logged,
	// never propagated.
	Events storage.DonationEventStore
	Cache  *TxCache
	// BypassDedup skips the cache and existence check so conflicts
	// surface at the unique constraint. Used by force-reprocess runs.
	BypassDedup bool
	Logger      *log.Logger
}

// NewWriter creates a writer over the given store.
func NewWriter(opts WriterOptions) (*Writer, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("decoration store is required")
	}

	cache := opts.Cache
	if cache == nil {
		cache = NewTxCache(DefaultCacheCapacity)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Writer{
		store:       opts.Store,
		events:      opts.Events,
		cache:       cache,
		bypassDedup: opts.BypassDedup,
		logger:      logger,
	}, nil
}

// Write classifies and stores one transfer. The error return is
// reserved for storage failures; classification misses and duplicates
// come back as outcomes, not errors.
func (w *Writer) Write(ctx context.Context, t *domain.Transfer) (WriteResult, error) {
	txID, ok := normalizeTxID(t.TxID)
	if !ok {
		return WriteResult{Outcome: Rejected}, nil
	}

	if !w.bypassDedup {
		if w.cache.Has(txID) {
			return WriteResult{Outcome: AlreadyExists}, nil
		}
		exists, err := w.store.TxIDExists(ctx, txID)
		if err != nil {
			return WriteResult{}, fmt.Errorf("check tx id %s: %w", txID, err)
		}
		if exists {
			w.cache.Add(txID)
			return WriteResult{Outcome: AlreadyExists}, nil
		}
	}

	c, ok := classify.Classify(t.Quantity, t.Memo)
	if !ok {
		// Remember rejected ids too, otherwise every cycle re-checks
		// the same unclassifiable transfers against the store.
		w.cache.Add(txID)
		return WriteResult{Outcome: Rejected}, nil
	}

	dec := &domain.Decoration{
		Type:        c.Type,
		FromAccount: t.From,
		Amount:      c.Amount.String(),
		TxID:        txID,
	}
	if c.CaptureSender {
		name := t.From
		dec.DisplayName = &name
	}
	if c.Message != "" {
		msg := c.Message
		dec.MessageText = &msg
	}

	if err := w.store.Insert(ctx, dec); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Lost the race or cache was cold; the constraint held.
			w.cache.Add(txID)
			return WriteResult{Outcome: AlreadyExists}, nil
		}
		return WriteResult{}, fmt.Errorf("insert decoration %s: %w", txID, err)
	}
	w.cache.Add(txID)

	if w.events != nil {
		ev := &domain.DonationEvent{
			TxID:        dec.TxID,
			Type:        dec.Type,
			FromAccount: dec.FromAccount,
			Amount:      dec.Amount,
			CreatedAt:   dec.CreatedAt,
		}
		if err := w.events.Insert(ctx, ev); err != nil {
			w.logger.Printf("Error mirroring donation event %s: %v", dec.TxID, err)
		}
	}

	return WriteResult{Outcome: Inserted, Decoration: dec}, nil
}

// normalizeTxID trims and validates a transaction id. Upstream
// serialization bugs have produced literal "[object Object]" ids;
// those and empty ids are unusable as dedup keys.
func normalizeTxID(txID string) (string, bool) {
	txID = strings.TrimSpace(txID)
	if txID == "" || txID == "[object Object]" {
		return "", false
	}
	return txID, true
}
