package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhenek73/vaultatrees/internal/hyperion"
)

func actionJSON(trxID, contract, from, to, quantity, memo, ts string) string {
	return fmt.Sprintf(`{
		"@timestamp": %q,
		"trx_id": %q,
		"act": {
			"account": %q,
			"name": "transfer",
			"data": {"from": %q, "to": %q, "quantity": %q, "memo": %q}
		}
	}`, ts, trxID, contract, from, to, quantity, memo)
}

func newTestFetcher(t *testing.T, handler http.HandlerFunc) (*HyperionFetcher, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := hyperion.NewClient(server.URL, hyperion.WithMaxRetries(0))
	fetcher, err := NewHyperionFetcher(HyperionFetcherOptions{
		Client:    client,
		Account:   "malinkatrees",
		Contracts: []string{"malinka.token", "swap.pcash"},
		Limit:     10,
	})
	require.NoError(t, err)
	return fetcher, server
}

func TestHyperionFetcher_FiltersAndOrders(t *testing.T) {
	body := fmt.Sprintf(`{"actions": [%s, %s, %s, %s, %s]}`,
		// Newest first, as Hyperion returns them
		actionJSON("tx3", "malinka.token", "alice", "malinkatrees", "20.0000 MLNK", "hello", "2026-01-03T10:00:00.000"),
		actionJSON("tx2", "swap.pcash", "bob", "malinkatrees", "2.0000 PCASH", "", "2026-01-02T10:00:00.000"),
		// Outgoing transfer: filtered
		actionJSON("txout", "malinka.token", "malinkatrees", "alice", "1.0000 MLNK", "", "2026-01-02T09:00:00.000"),
		// Unknown contract: filtered
		actionJSON("txodd", "other.token", "carol", "malinkatrees", "5.0000 ODD", "", "2026-01-02T08:00:00.000"),
		actionJSON("tx1", "malinka.token", "carol", "malinkatrees", "0.2000 MLNK", "", "2026-01-01T10:00:00.000"),
	)

	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "malinkatrees", r.URL.Query().Get("account"))
		assert.Equal(t, "transfer", r.URL.Query().Get("act_name"))
		fmt.Fprint(w, body)
	})

	transfers, err := fetcher.FetchRecent(context.Background())
	require.NoError(t, err)
	require.Len(t, transfers, 3)

	// Newest first, as the source contract promises
	assert.Equal(t, "tx3", transfers[0].TxID)
	assert.Equal(t, "tx2", transfers[1].TxID)
	assert.Equal(t, "tx1", transfers[2].TxID)
	assert.Equal(t, "swap.pcash", transfers[1].Contract)
}

func TestHyperionFetcher_OverfetchesAndCaps(t *testing.T) {
	var requestedLimit int
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		requestedLimit, _ = strconv.Atoi(r.URL.Query().Get("limit"))

		var body string
		for i := 0; i < 30; i++ {
			if body != "" {
				body += ","
			}
			body += actionJSON(
				fmt.Sprintf("tx%02d", i), "malinka.token", "alice", "malinkatrees",
				"0.2000 MLNK", "", fmt.Sprintf("2026-01-01T10:00:%02d.000", 59-i),
			)
		}
		fmt.Fprintf(w, `{"actions": [%s]}`, body)
	})

	transfers, err := fetcher.FetchRecent(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 20, requestedLimit, "should request limit*2 to survive filtering")
	assert.Len(t, transfers, 10, "result capped at configured limit")
}

func TestHyperionFetcher_DedupsWithinPage(t *testing.T) {
	// The same trx_id appears twice in one page (receiver notification)
	body := fmt.Sprintf(`{"actions": [%s, %s]}`,
		actionJSON("txdup", "malinka.token", "alice", "malinkatrees", "2.0000 MLNK", "", "2026-01-01T10:00:00.000"),
		actionJSON("txdup", "malinka.token", "alice", "malinkatrees", "2.0000 MLNK", "", "2026-01-01T10:00:00.000"),
	)

	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	})

	transfers, err := fetcher.FetchRecent(context.Background())
	require.NoError(t, err)
	assert.Len(t, transfers, 1)
}

func TestHyperionFetcher_PropagatesErrors(t *testing.T) {
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := fetcher.FetchRecent(context.Background())
	assert.Error(t, err)
}

func TestNewHyperionFetcher_Validation(t *testing.T) {
	client := hyperion.NewClient("http://localhost")

	_, err := NewHyperionFetcher(HyperionFetcherOptions{Account: "a", Contracts: []string{"c"}})
	assert.Error(t, err, "missing client")

	_, err = NewHyperionFetcher(HyperionFetcherOptions{Client: client, Contracts: []string{"c"}})
	assert.Error(t, err, "missing account")

	_, err = NewHyperionFetcher(HyperionFetcherOptions{Client: client, Account: "a"})
	assert.Error(t, err, "missing contracts")
}
