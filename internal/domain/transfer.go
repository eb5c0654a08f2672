package domain

import "time"

// Transfer is a normalized token transfer action fetched from the
// Hyperion history API. Ephemeral: consumed once per poll cycle,
// never persisted verbatim.
type Transfer struct {
	From      string    // sender account
	To        string    // recipient account (the tracked tree account)
	Quantity  string    // raw quantity string, e.g. "2.0000 MLNK"
	Memo      string    // raw memo, arbitrary UTF-8
	TxID      string    // transaction id
	BlockTime time.Time // block timestamp
	Contract  string    // token contract the action came from
}
