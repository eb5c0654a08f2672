package hyperion

import (
	"encoding/json"
	"time"
)

// actionsResponse mirrors the subset of the Hyperion
// /v2/history/get_actions response this client consumes.
type actionsResponse struct {
	Actions []json.RawMessage `json:"actions"`
}

// rawAction is the loose wire shape of one action entry. Every field
// is optional: entries that fail shape checks are skipped, never fatal.
type rawAction struct {
	Timestamp   string    `json:"@timestamp"`
	BlockTime   string    `json:"block_time"`
	TrxID       string    `json:"trx_id"`
	Act         *rawAct   `json:"act"`
	ActionTrace *rawTrace `json:"action_trace"`
}

type rawAct struct {
	Account string          `json:"account"`
	Name    string          `json:"name"`
	Data    json.RawMessage `json:"data"`
}

type rawTrace struct {
	TrxID string `json:"trx_id"`
}

// transferData is the act.data payload of a token transfer action.
type transferData struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Quantity string `json:"quantity"`
	Memo     string `json:"memo"`
}

// Action is the strict intermediate representation handed past the
// client boundary. Only fully-shaped transfer actions become Actions.
type Action struct {
	Contract  string
	Name      string
	From      string
	To        string
	Quantity  string
	Memo      string
	TrxID     string
	BlockTime time.Time
}

// Hyperion timestamps come without a zone suffix and are UTC.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
