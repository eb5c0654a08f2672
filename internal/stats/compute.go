// Package stats computes read-side aggregates over stored decorations.
// Everything here is pure: the HTTP layer fetches rows and hands them
// in, so the same code serves live queries and tests.
package stats

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/zhenek73/vaultatrees/internal/domain"
)

// ComputeDonors aggregates decorations per sender account, sorted by
// total amount descending with account name as the tiebreaker. Rows
// whose amount does not parse are skipped rather than failing the
// whole aggregation.
func ComputeDonors(decorations []*domain.Decoration, limit int) []*domain.DonorStats {
	type acc struct {
		total decimal.Decimal
		stats *domain.DonorStats
	}

	byAccount := make(map[string]*acc)
	for _, d := range decorations {
		amount, err := decimal.NewFromString(d.Amount)
		if err != nil {
			continue
		}

		a, ok := byAccount[d.FromAccount]
		if !ok {
			a = &acc{
				total: decimal.Zero,
				stats: &domain.DonorStats{FromAccount: d.FromAccount},
			}
			byAccount[d.FromAccount] = a
		}

		a.total = a.total.Add(amount)
		a.stats.Count++
		switch d.Type {
		case domain.TypeLight:
			a.stats.LightsCount++
		case domain.TypeBall:
			a.stats.BallsCount++
		case domain.TypeEnvelope:
			a.stats.EnvelopesCount++
		case domain.TypeStar:
			a.stats.StarsCount++
		}
	}

	donors := make([]*domain.DonorStats, 0, len(byAccount))
	totals := make(map[string]decimal.Decimal, len(byAccount))
	for account, a := range byAccount {
		a.stats.TotalAmount = a.total.String()
		totals[account] = a.total
		donors = append(donors, a.stats)
	}

	sort.Slice(donors, func(i, j int) bool {
		ti, tj := totals[donors[i].FromAccount], totals[donors[j].FromAccount]
		if !ti.Equal(tj) {
			return ti.GreaterThan(tj)
		}
		return donors[i].FromAccount < donors[j].FromAccount
	})

	if limit > 0 && len(donors) > limit {
		donors = donors[:limit]
	}
	return donors
}

// LeadingBid returns the highest star bid among the given decorations.
// Ties go to the earliest row, so an equal later bid never displaces
// the current leader. Returns nil when no star rows are present.
func LeadingBid(decorations []*domain.Decoration) *domain.Decoration {
	var leader *domain.Decoration
	var leaderAmount decimal.Decimal

	for _, d := range decorations {
		if d.Type != domain.TypeStar {
			continue
		}
		amount, err := decimal.NewFromString(d.Amount)
		if err != nil {
			continue
		}
		if leader == nil || amount.GreaterThan(leaderAmount) ||
			(amount.Equal(leaderAmount) && earlierThan(d, leader)) {
			leader = d
			leaderAmount = amount
		}
	}
	return leader
}

func earlierThan(a, b *domain.Decoration) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
