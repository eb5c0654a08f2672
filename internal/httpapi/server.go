// Package httpapi serves the read-side JSON API over stored
// decorations. All responses use the {success, data, count} envelope.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/zhenek73/vaultatrees/internal/domain"
	"github.com/zhenek73/vaultatrees/internal/stats"
	"github.com/zhenek73/vaultatrees/internal/storage"
)

// Read-side defaults.
const (
	// DefaultReadWindow bounds how far back list queries reach.
	DefaultReadWindow = 30 * 24 * time.Hour
	// DefaultListLimit caps one list response.
	DefaultListLimit = 1000
	// MaxListLimit is the hard ceiling regardless of the query string.
	MaxListLimit = 5000
)

// Server handles the HTTP API.
type Server struct {
	store      storage.DecorationStore
	events     storage.DonationEventStore
	readWindow time.Duration
	logger     *log.Logger
}

// ServerOptions contains configuration for creating a Server.
type ServerOptions struct {
	Store storage.DecorationStore
	// Events is optional: when set, /api/stats serves daily donation
	// totals from the analytics sink.
	Events     storage.DonationEventStore
	ReadWindow time.Duration
	Logger     *log.Logger
}

// NewServer creates an API server over the given store.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("decoration store is required")
	}

	readWindow := opts.ReadWindow
	if readWindow <= 0 {
		readWindow = DefaultReadWindow
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Server{
		store:      opts.Store,
		events:     opts.Events,
		readWindow: readWindow,
		logger:     logger,
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/decorations", s.handleDecorations)
	mux.HandleFunc("/api/donors", s.handleDonors)
	mux.HandleFunc("/api/auction", s.handleAuction)
	mux.HandleFunc("/api/stats", s.handleStats)

	return s.logRequests(mux)
}

// envelope is the uniform response wrapper.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// decorationResponse is the wire shape of one decoration.
type decorationResponse struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	FromAccount string    `json:"from_account"`
	DisplayName *string   `json:"display_name,omitempty"`
	MessageText *string   `json:"message_text,omitempty"`
	Amount      string    `json:"amount"`
	TxID        string    `json:"tx_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func toDecorationResponse(d *domain.Decoration) decorationResponse {
	return decorationResponse{
		ID:          d.ID,
		Type:        string(d.Type),
		FromAccount: d.FromAccount,
		DisplayName: d.DisplayName,
		MessageText: d.MessageText,
		Amount:      d.Amount,
		TxID:        d.TxID,
		CreatedAt:   d.CreatedAt,
	}
}

// donorResponse is the wire shape of one donor aggregate.
type donorResponse struct {
	FromAccount    string `json:"from_account"`
	TotalAmount    string `json:"total_amount"`
	Count          int    `json:"count"`
	LightsCount    int    `json:"lights_count"`
	BallsCount     int    `json:"balls_count"`
	EnvelopesCount int    `json:"envelopes_count"`
	StarsCount     int    `json:"stars_count"`
}

// auctionResponse describes the current star auction state.
type auctionResponse struct {
	LeadingBid *decorationResponse `json:"leading_bid"`
}

// dailyTotalResponse is the wire shape of one day's donation volume.
type dailyTotalResponse struct {
	Day    string `json:"day"`
	Count  uint64 `json:"count"`
	Amount string `json:"amount"`
}

// handleDecorations serves GET /api/decorations?limit=N.
func (s *Server) handleDecorations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := parseLimit(r, DefaultListLimit)
	decorations, err := s.listRecent(r.Context(), limit)
	if err != nil {
		s.logger.Printf("Error listing decorations: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load decorations")
		return
	}

	out := make([]decorationResponse, 0, len(decorations))
	for _, d := range decorations {
		out = append(out, toDecorationResponse(d))
	}
	s.writeData(w, out, len(out))
}

// handleDonors serves GET /api/donors?limit=N. Aggregation happens in
// memory over the read window, matching how decorations are listed.
func (s *Server) handleDonors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := parseLimit(r, DefaultListLimit)
	decorations, err := s.listRecent(r.Context(), MaxListLimit)
	if err != nil {
		s.logger.Printf("Error listing decorations for donors: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load donors")
		return
	}

	donors := stats.ComputeDonors(decorations, limit)
	out := make([]donorResponse, 0, len(donors))
	for _, d := range donors {
		out = append(out, donorResponse{
			FromAccount:    d.FromAccount,
			TotalAmount:    d.TotalAmount,
			Count:          d.Count,
			LightsCount:    d.LightsCount,
			BallsCount:     d.BallsCount,
			EnvelopesCount: d.EnvelopesCount,
			StarsCount:     d.StarsCount,
		})
	}
	s.writeData(w, out, len(out))
}

// handleAuction serves GET /api/auction. The leading bid is computed
// on read from stored star rows; no auction state is materialized.
func (s *Server) handleAuction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	leading, err := s.store.LeadingStarBid(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeData(w, auctionResponse{LeadingBid: nil}, 0)
			return
		}
		s.logger.Printf("Error loading leading bid: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load auction state")
		return
	}

	resp := toDecorationResponse(leading)
	s.writeData(w, auctionResponse{LeadingBid: &resp}, 1)
}

// handleStats serves GET /api/stats: daily donation totals over the
// read window, backed by the analytics sink.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.events == nil {
		s.writeError(w, http.StatusNotFound, "analytics not enabled")
		return
	}

	now := time.Now().UTC()
	totals, err := s.events.DailyTotals(r.Context(), now.Add(-s.readWindow), now)
	if err != nil {
		s.logger.Printf("Error loading daily totals: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	out := make([]dailyTotalResponse, 0, len(totals))
	for _, t := range totals {
		out = append(out, dailyTotalResponse{
			Day:    t.Day.Format("2006-01-02"),
			Count:  t.Count,
			Amount: t.Amount.String(),
		})
	}
	s.writeData(w, out, len(out))
}

func (s *Server) listRecent(ctx context.Context, limit int) ([]*domain.Decoration, error) {
	since := time.Now().UTC().Add(-s.readWindow)
	return s.store.ListSince(ctx, since, limit)
}

func (s *Server) writeData(w http.ResponseWriter, data interface{}, count int) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data, Count: &count}); err != nil {
		s.logger.Printf("Error encoding response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: false, Error: msg}); err != nil {
		s.logger.Printf("Error encoding error response: %v", err)
	}
}

func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > MaxListLimit {
		return MaxListLimit
	}
	return n
}

// logRequests logs one line per request with method, path and timing.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}
