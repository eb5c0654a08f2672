package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhenek73/vaultatrees/internal/domain"
	"github.com/zhenek73/vaultatrees/internal/storage/memory"
)

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Count   *int            `json:"count"`
	Error   string          `json:"error"`
}

func newTestServer(t *testing.T) (*Server, *memory.DecorationStore) {
	t.Helper()
	store := memory.NewDecorationStore()
	srv, err := NewServer(ServerOptions{Store: store})
	require.NoError(t, err)
	return srv, store
}

func seedDecoration(t *testing.T, store *memory.DecorationStore, typ domain.DecorationType, from, amount, txID string) *domain.Decoration {
	t.Helper()
	d := &domain.Decoration{
		Type:        typ,
		FromAccount: from,
		Amount:      amount,
		TxID:        txID,
	}
	require.NoError(t, store.Insert(context.Background(), d))
	return d
}

func doGet(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestDecorations_List(t *testing.T) {
	srv, store := newTestServer(t)
	seedDecoration(t, store, domain.TypeLight, "alice", "0.2", "tx1")
	seedDecoration(t, store, domain.TypeBall, "bob", "2", "tx2")

	rec, env := doGet(t, srv.Handler(), "/api/decorations")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	require.NotNil(t, env.Count)
	assert.Equal(t, 2, *env.Count)

	var decorations []decorationResponse
	require.NoError(t, json.Unmarshal(env.Data, &decorations))
	require.Len(t, decorations, 2)
	// Newest first
	assert.Equal(t, "tx2", decorations[0].TxID)
	assert.Equal(t, "tx1", decorations[1].TxID)
}

func TestDecorations_LimitParam(t *testing.T) {
	srv, store := newTestServer(t)
	for i := 0; i < 5; i++ {
		seedDecoration(t, store, domain.TypeLight, "alice", "0.2", fmt.Sprintf("tx%d", i))
	}

	_, env := doGet(t, srv.Handler(), "/api/decorations?limit=3")
	var decorations []decorationResponse
	require.NoError(t, json.Unmarshal(env.Data, &decorations))
	assert.Len(t, decorations, 3)

	// Garbage limit falls back to the default
	_, env = doGet(t, srv.Handler(), "/api/decorations?limit=bogus")
	require.NoError(t, json.Unmarshal(env.Data, &decorations))
	assert.Len(t, decorations, 5)
}

func TestDecorations_ReadWindowExcludesOldRows(t *testing.T) {
	store := memory.NewDecorationStore()
	srv, err := NewServer(ServerOptions{Store: store, ReadWindow: time.Hour})
	require.NoError(t, err)

	seedDecoration(t, store, domain.TypeLight, "alice", "0.2", "txnew")
	require.NoError(t, store.Insert(context.Background(), &domain.Decoration{
		Type:        domain.TypeLight,
		FromAccount: "bob",
		Amount:      "0.2",
		TxID:        "txold",
		CreatedAt:   time.Now().UTC().Add(-2 * time.Hour),
	}))

	_, env := doGet(t, srv.Handler(), "/api/decorations")
	var decorations []decorationResponse
	require.NoError(t, json.Unmarshal(env.Data, &decorations))
	require.Len(t, decorations, 1)
	assert.Equal(t, "txnew", decorations[0].TxID)
}

func TestDecorations_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/decorations", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)
}

func TestDonors_Aggregates(t *testing.T) {
	srv, store := newTestServer(t)
	seedDecoration(t, store, domain.TypeLight, "alice", "0.2", "tx1")
	seedDecoration(t, store, domain.TypeBall, "alice", "2", "tx2")
	seedDecoration(t, store, domain.TypeStar, "bob", "50", "tx3")

	_, env := doGet(t, srv.Handler(), "/api/donors")
	assert.True(t, env.Success)

	var donors []donorResponse
	require.NoError(t, json.Unmarshal(env.Data, &donors))
	require.Len(t, donors, 2)
	assert.Equal(t, "bob", donors[0].FromAccount)
	assert.Equal(t, "alice", donors[1].FromAccount)
	assert.Equal(t, "2.2", donors[1].TotalAmount)
	assert.Equal(t, 2, donors[1].Count)
}

func TestAuction_LeadingBid(t *testing.T) {
	srv, store := newTestServer(t)
	seedDecoration(t, store, domain.TypeStar, "alice", "10", "tx1")
	seedDecoration(t, store, domain.TypeStar, "bob", "75", "tx2")
	seedDecoration(t, store, domain.TypeBall, "carol", "2", "tx3")

	_, env := doGet(t, srv.Handler(), "/api/auction")
	assert.True(t, env.Success)

	var auction struct {
		LeadingBid *decorationResponse `json:"leading_bid"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &auction))
	require.NotNil(t, auction.LeadingBid)
	assert.Equal(t, "bob", auction.LeadingBid.FromAccount)
	assert.Equal(t, "75", auction.LeadingBid.Amount)
}

func TestStats_DailyTotals(t *testing.T) {
	store := memory.NewDecorationStore()
	events := memory.NewDonationEventStore()
	srv, err := NewServer(ServerOptions{Store: store, Events: events})
	require.NoError(t, err)

	today := time.Now().UTC().Add(-time.Hour)
	yesterday := today.Add(-24 * time.Hour)

	seedEvent := func(txID string, amount string, created time.Time) {
		require.NoError(t, events.Insert(context.Background(), &domain.DonationEvent{
			TxID:        txID,
			Type:        domain.TypeLight,
			FromAccount: "alice",
			Amount:      amount,
			CreatedAt:   created,
		}))
	}
	seedEvent("tx1", "0.2", yesterday)
	seedEvent("tx2", "2", yesterday)
	seedEvent("tx3", "50", today)

	rec, env := doGet(t, srv.Handler(), "/api/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	var totals []dailyTotalResponse
	require.NoError(t, json.Unmarshal(env.Data, &totals))
	require.Len(t, totals, 2)
	assert.Equal(t, yesterday.Format("2006-01-02"), totals[0].Day)
	assert.Equal(t, uint64(2), totals[0].Count)
	assert.Equal(t, "2.2", totals[0].Amount)
	assert.Equal(t, uint64(1), totals[1].Count)
	assert.Equal(t, "50", totals[1].Amount)
}

func TestStats_NotEnabled(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, env := doGet(t, srv.Handler(), "/api/stats")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)
}

func TestAuction_NoBids(t *testing.T) {
	srv, store := newTestServer(t)
	seedDecoration(t, store, domain.TypeLight, "alice", "0.2", "tx1")

	rec, env := doGet(t, srv.Handler(), "/api/auction")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	var auction struct {
		LeadingBid *decorationResponse `json:"leading_bid"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &auction))
	assert.Nil(t, auction.LeadingBid)
}
