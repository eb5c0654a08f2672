package ingestion

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/zhenek73/vaultatrees/internal/domain"
	"github.com/zhenek73/vaultatrees/internal/hyperion"
)

// TransferSource yields candidate transfers for one poll cycle.
type TransferSource interface {
	FetchRecent(ctx context.Context) ([]*domain.Transfer, error)
}

// HyperionFetcher pulls transfer actions from a Hyperion history API
// and reduces them to the transfers the pipeline cares about: incoming
// transfers to the watched account from an allowlisted token contract.
type HyperionFetcher struct {
	client    *hyperion.Client
	account   string
	contracts map[string]struct{}
	limit     int
	logger    *log.Logger
}

// DefaultFetchLimit is the number of transfers requested per cycle
// before overfetch.
const DefaultFetchLimit = 100

// HyperionFetcherOptions contains configuration for creating a HyperionFetcher.
type HyperionFetcherOptions struct {
	Client    *hyperion.Client
	Account   string
	Contracts []string
	Limit     int
	Logger    *log.Logger
}

// NewHyperionFetcher creates a fetcher for the given account and
// contract allowlist.
func NewHyperionFetcher(opts HyperionFetcherOptions) (*HyperionFetcher, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("hyperion client is required")
	}
	if opts.Account == "" {
		return nil, fmt.Errorf("account is required")
	}
	if len(opts.Contracts) == 0 {
		return nil, fmt.Errorf("at least one contract is required")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultFetchLimit
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	contracts := make(map[string]struct{}, len(opts.Contracts))
	for _, c := range opts.Contracts {
		c = strings.TrimSpace(c)
		if c != "" {
			contracts[c] = struct{}{}
		}
	}

	return &HyperionFetcher{
		client:    opts.Client,
		account:   opts.Account,
		contracts: contracts,
		limit:     limit,
		logger:    logger,
	}, nil
}

// Compile-time interface check.
var _ TransferSource = (*HyperionFetcher)(nil)

// FetchRecent returns the most recent matching transfers, block time
// descending, at most limit entries. The API is asked for limit*2
// actions because filtering discards outgoing transfers and other
// contracts. Within one page the same trx_id can appear more than once
// (notified receivers); only the first occurrence is kept.
func (f *HyperionFetcher) FetchRecent(ctx context.Context) ([]*domain.Transfer, error) {
	actions, err := f.client.GetTransferActions(ctx, f.account, f.limit*2)
	if err != nil {
		return nil, fmt.Errorf("fetch transfer actions: %w", err)
	}

	seen := make(map[string]struct{}, len(actions))
	transfers := make([]*domain.Transfer, 0, f.limit)

	for _, act := range actions {
		if act.To != f.account {
			continue
		}
		if _, ok := f.contracts[act.Contract]; !ok {
			continue
		}
		if _, dup := seen[act.TrxID]; dup {
			continue
		}
		seen[act.TrxID] = struct{}{}

		transfers = append(transfers, &domain.Transfer{
			From:      act.From,
			To:        act.To,
			Quantity:  act.Quantity,
			Memo:      act.Memo,
			TxID:      act.TrxID,
			BlockTime: act.BlockTime,
			Contract:  act.Contract,
		})
		if len(transfers) >= f.limit {
			break
		}
	}

	// API pages are already newest first; the sort keeps that contract
	// even when the upstream ordering drifts. The poller reorders for
	// processing.
	sort.SliceStable(transfers, func(i, j int) bool {
		return transfers[i].BlockTime.After(transfers[j].BlockTime)
	})

	return transfers, nil
}
