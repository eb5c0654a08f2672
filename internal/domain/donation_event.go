package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DonationEvent is the analytics mirror of one inserted decoration,
// written to the columnar store for historical charts. Unlike
// Decoration rows it carries no uniqueness guarantee; the analytics
// table is ReplacingMergeTree-keyed on tx_id instead.
type DonationEvent struct {
	TxID        string
	Type        DecorationType
	FromAccount string
	Amount      string
	CreatedAt   time.Time
}

// DailyTotal is one day's aggregated donation volume.
type DailyTotal struct {
	Day    time.Time
	Count  uint64
	Amount decimal.Decimal
}
