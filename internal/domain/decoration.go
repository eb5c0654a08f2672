package domain

import "time"

// DecorationType identifies what a classified transfer renders as on the tree.
type DecorationType string

const (
	// TypeLight is a single light, bought with the smallest fixed amount.
	TypeLight DecorationType = "light"

	// TypeBall is a ball carrying the sender's display name.
	TypeBall DecorationType = "ball"

	// TypeEnvelope is a postcard carrying a message from the memo.
	// Stored as "candle" historically; both values are accepted on read.
	TypeEnvelope DecorationType = "candle"

	// TypeStar is a sealed-bid auction entry for the tree-top star.
	TypeStar DecorationType = "star"

	// TypeGift is a legacy type from the first token generation.
	// Never produced by the current classifier, still readable.
	TypeGift DecorationType = "gift"
)

// Decoration is one classified, deduplicated on-chain transfer.
// Corresponds to the decorations table. Immutable after insert.
type Decoration struct {
	ID          int64 // assigned by the store
	Type        DecorationType
	FromAccount string    // on-chain sender account
	DisplayName *string   // shown next to balls and star bids (nullable)
	MessageText *string   // envelope text, truncated to 200 chars (nullable)
	Amount      string    // transfer amount as a fixed-point string, e.g. "2.0000"
	TxID        string    // UNIQUE; the idempotence key
	CreatedAt   time.Time // assigned by the store
}
