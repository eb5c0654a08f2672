package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync/atomic"
	"time"

	"github.com/zhenek73/vaultatrees/internal/domain"
	"github.com/zhenek73/vaultatrees/internal/observability"
	"github.com/zhenek73/vaultatrees/internal/storage"
)

// DefaultPollInterval is how often the poller asks the history API for
// new transfers.
const DefaultPollInterval = 10 * time.Second

// Poller drives the ingest loop: fetch matching transfers, drop the
// ones already processed, hand the rest to the writer oldest first,
// and advance the progress marker. One cycle runs at a time; a tick
// that fires while the previous cycle is still working is skipped.
type Poller struct {
	source      TransferSource
	writer      *Writer
	store       storage.DecorationStore
	state       storage.ParserStateStore
	cache       *TxCache
	denylist    map[string]struct{}
	interval    time.Duration
	warmSize    int
	bypassDedup bool
	logger      *log.Logger

	running atomic.Bool
}

// PollerOptions contains configuration for creating a Poller.
type PollerOptions struct {
	Source TransferSource
	Writer *Writer
	Store  storage.DecorationStore
	// State is optional: when set, the id of the newest processed
	// transfer is recorded after each cycle.
	State storage.ParserStateStore
	Cache *TxCache
	// Denylist holds sender accounts whose transfers are ignored
	// before classification.
	Denylist []string
	Interval time.Duration
	// WarmSize is how many recent tx ids to preload into the cache on
	// startup.
	WarmSize int
	// BypassDedup skips the known-id filter so every fetched transfer
	// reaches the writer. Force-reprocess runs set this together with
	// the writer's own bypass; conflicts then surface at the unique
	// constraint.
	BypassDedup bool
	Logger      *log.Logger
}

// NewPoller creates a poller over the given source and writer.
func NewPoller(opts PollerOptions) (*Poller, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("transfer source is required")
	}
	if opts.Writer == nil {
		return nil, fmt.Errorf("writer is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("decoration store is required")
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	warmSize := opts.WarmSize
	if warmSize <= 0 {
		warmSize = DefaultCacheCapacity
	}

	cache := opts.Cache
	if cache == nil {
		cache = NewTxCache(warmSize)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	denylist := make(map[string]struct{}, len(opts.Denylist))
	for _, acct := range opts.Denylist {
		if acct != "" {
			denylist[acct] = struct{}{}
		}
	}

	return &Poller{
		source:      opts.Source,
		writer:      opts.Writer,
		store:       opts.Store,
		state:       opts.State,
		cache:       cache,
		denylist:    denylist,
		interval:    interval,
		warmSize:    warmSize,
		bypassDedup: opts.BypassDedup,
		logger:      logger,
	}, nil
}

// Run warms the cache, runs one cycle immediately, then polls on the
// configured interval until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.warmCache(ctx); err != nil {
		// A cold cache only costs extra existence checks.
		p.logger.Printf("Cache warm-up failed, continuing cold: %v", err)
	}

	p.logger.Printf("Poller started, interval: %v, cache: %d ids", p.interval, p.cache.Len())

	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Println("Poller stopping...")
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick runs one cycle unless another is still in flight.
func (p *Poller) tick(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.Println("Previous poll cycle still running, skipping tick")
		observability.RecordPollSkipped()
		return
	}
	defer p.running.Store(false)

	start := time.Now()
	if err := p.runCycle(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		p.logger.Printf("Poll cycle failed: %v", err)
		observability.RecordPollCycle("error", time.Since(start).Seconds())
		return
	}
	observability.RecordPollCycle("ok", time.Since(start).Seconds())
	observability.MarkPollSuccess(float64(time.Now().Unix()))
}

// RunOnce executes a single poll cycle. It exists for force-reprocess
// runs and tests; Run is the normal entry point.
func (p *Poller) RunOnce(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("poll cycle already running")
	}
	defer p.running.Store(false)
	return p.runCycle(ctx)
}

func (p *Poller) runCycle(ctx context.Context) error {
	fetchStart := time.Now()
	transfers, err := p.source.FetchRecent(ctx)
	observability.RecordFetchLatency(time.Since(fetchStart).Seconds(), err)
	if err != nil {
		return fmt.Errorf("fetch transfers: %w", err)
	}
	observability.RecordTransfersFetched(len(transfers))

	// The source delivers newest first; process oldest first so
	// decorations get ids in chain order.
	sort.SliceStable(transfers, func(i, j int) bool {
		return transfers[i].BlockTime.Before(transfers[j].BlockTime)
	})

	if !p.bypassDedup {
		transfers = p.filterKnown(ctx, transfers)
	}
	if len(transfers) == 0 {
		return nil
	}

	var lastTxID string
	inserted := 0
	for _, t := range transfers {
		if _, denied := p.denylist[t.From]; denied {
			p.cache.Add(t.TxID)
			continue
		}

		observability.RecordTransferProcessed()
		res, err := p.writer.Write(ctx, t)
		if err != nil {
			// One bad transfer must not stall the rest of the batch.
			p.logger.Printf("Error writing transfer %s: %v", t.TxID, err)
			continue
		}
		observability.RecordWriteOutcome(res.Outcome.String())
		if res.Outcome == Inserted {
			inserted++
			observability.RecordDecoration(string(res.Decoration.Type))
			p.logger.Printf("Decoration stored: type=%s from=%s amount=%s tx=%s",
				res.Decoration.Type, res.Decoration.FromAccount, res.Decoration.Amount, t.TxID)
		}
		lastTxID = t.TxID
	}
	observability.UpdateDedupCacheSize(p.cache.Len())

	if inserted > 0 {
		p.logger.Printf("Poll cycle stored %d decorations", inserted)
	}

	if p.state != nil && lastTxID != "" {
		if err := p.state.SetLastTxID(ctx, lastTxID); err != nil {
			p.logger.Printf("Error updating parser state: %v", err)
		}
	}

	return nil
}

// filterKnown drops transfers whose ids are in the cache, then checks
// the remaining ids against the store in one batch. Store-known ids
// are added to the cache so the next cycle skips them locally.
func (p *Poller) filterKnown(ctx context.Context, transfers []*domain.Transfer) []*domain.Transfer {
	unknown := transfers[:0]
	var candidates []string
	for _, t := range transfers {
		if p.cache.Has(t.TxID) {
			observability.RecordDedupCacheHit()
			continue
		}
		unknown = append(unknown, t)
		candidates = append(candidates, t.TxID)
	}
	if len(candidates) == 0 {
		return nil
	}

	existing, err := p.store.ExistingTxIDs(ctx, candidates)
	if err != nil {
		// Fall through with the cache-filtered batch; the writer's
		// per-transfer checks and the unique constraint still hold.
		p.logger.Printf("Batch existence check failed: %v", err)
		return unknown
	}

	fresh := unknown[:0]
	for _, t := range unknown {
		if _, ok := existing[t.TxID]; ok {
			observability.RecordDedupStoreHit()
			p.cache.Add(t.TxID)
			continue
		}
		fresh = append(fresh, t)
	}
	return fresh
}

// warmCache preloads the most recent tx ids from the store.
func (p *Poller) warmCache(ctx context.Context) error {
	txIDs, err := p.store.RecentTxIDs(ctx, p.warmSize)
	if err != nil {
		return err
	}
	// RecentTxIDs returns newest first; warm oldest first so the
	// newest ids are the last to be evicted.
	for i := len(txIDs) - 1; i >= 0; i-- {
		p.cache.Add(txIDs[i])
	}
	observability.UpdateDedupCacheSize(p.cache.Len())
	return nil
}
