// Package classify maps a transfer's amount and memo to a decoration
// type. Pure functions only: no I/O, no clock, no configuration reads.
package classify

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zhenek73/vaultatrees/internal/domain"
)

// MaxMessageLen is the stored-field limit for envelope message text.
// Longer memos are truncated, never rejected.
const MaxMessageLen = 200

// Amount bands of the current token generation. Comparisons are exact
// fixed-point, never float equality.
var (
	lightAmount    = decimal.RequireFromString("0.2")
	ballAmount     = decimal.RequireFromString("2")
	envelopeAmount = decimal.RequireFromString("20")
	starFloor      = decimal.RequireFromString("1")
)

// Classification is the result of classifying one transfer.
type Classification struct {
	Type domain.DecorationType

	// Message carries the envelope text (truncated memo). Empty for
	// all other types.
	Message string

	// Amount is the parsed transfer amount.
	Amount decimal.Decimal

	// CaptureSender reports whether the sender account should be
	// recorded as the decoration's display name.
	CaptureSender bool
}

// Classify decides which decoration a transfer represents.
//
// quantity must look like "<decimal> <SYMBOL>"; the symbol suffix is
// optional and ignored. Returns false when the amount matches no band
// or the quantity has no leading numeric token; the transfer is then
// ignored for decoration purposes but still counts as processed for
// deduplication.
func Classify(quantity, memo string) (Classification, bool) {
	amount, ok := parseAmount(quantity)
	if !ok {
		return Classification{}, false
	}

	switch {
	case amount.Equal(lightAmount):
		return Classification{Type: domain.TypeLight, Amount: amount}, true

	case amount.Equal(ballAmount):
		return Classification{Type: domain.TypeBall, Amount: amount, CaptureSender: true}, true

	case amount.Equal(envelopeAmount):
		return Classification{
			Type:    domain.TypeEnvelope,
			Amount:  amount,
			Message: TruncateMessage(memo),
		}, true

	case amount.GreaterThanOrEqual(starFloor):
		// Any remaining amount at or above the auction floor is a
		// star bid. Whether it actually leads is derived on read.
		return Classification{Type: domain.TypeStar, Amount: amount, CaptureSender: true}, true
	}

	return Classification{}, false
}

// parseAmount extracts the leading decimal token from a quantity string.
func parseAmount(quantity string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(quantity)
	if s == "" {
		return decimal.Decimal{}, false
	}

	end := 0
	seenDigit := false
	seenDot := false
	for end < len(s) {
		c := s[end]
		if c >= '0' && c <= '9' {
			seenDigit = true
			end++
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			end++
			continue
		}
		break
	}
	if !seenDigit {
		return decimal.Decimal{}, false
	}
	// A bare trailing dot ("5.") is still parseable; anything after
	// the numeric token must be whitespace followed by the symbol.
	if end < len(s) && s[end] != ' ' && s[end] != '\t' {
		return decimal.Decimal{}, false
	}

	amount, err := decimal.NewFromString(strings.TrimSuffix(s[:end], "."))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return amount, true
}

// TruncateMessage trims a memo and clips it to MaxMessageLen runes,
// so a multi-byte memo is never cut mid-character.
func TruncateMessage(memo string) string {
	msg := strings.TrimSpace(memo)
	runes := []rune(msg)
	if len(runes) > MaxMessageLen {
		return string(runes[:MaxMessageLen])
	}
	return msg
}
