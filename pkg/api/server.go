// Package api exposes the feed over HTTP: a WebSocket endpoint for the
// streaming protocol plus a small REST surface for on-demand snapshots.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/marketfeed/pkg/book"
	"github.com/uhyunpark/marketfeed/pkg/hub"
	"github.com/uhyunpark/marketfeed/pkg/protocol"
)

type Server struct {
	hub    *hub.Hub
	codec  *protocol.Codec
	router *mux.Router
	log    *zap.SugaredLogger

	defaultDepth int
}

func NewServer(h *hub.Hub, defaultDepth int, log *zap.SugaredLogger) *Server {
	s := &Server{
		hub:          h,
		codec:        protocol.NewCodec(h.Symbols(), defaultDepth),
		router:       mux.NewRouter(),
		log:          log,
		defaultDepth: defaultDepth,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/symbols", s.handleGetSymbols).Methods("GET")
	api.HandleFunc("/markets/{symbol}/book", s.handleGetBook).Methods("GET")
	api.HandleFunc("/markets/{symbol}/spread", s.handleGetSpread).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the routing stack with CORS applied; exposed for tests.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Infow("api_listening", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleGetSymbols(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.hub.Symbols())
}

// handleGetBook returns a one-shot snapshot in either view, independent of
// any streaming subscription.
func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	store, ok := s.hub.Book(mux.Vars(r)["symbol"])
	if !ok {
		respondError(w, http.StatusNotFound, "unknown symbol")
		return
	}

	kind := book.ViewKind(r.URL.Query().Get("view"))
	if kind == "" {
		kind = book.PriceLevel
	}
	if !kind.Valid() {
		respondError(w, http.StatusUnprocessableEntity, "invalid view")
		return
	}

	depth := s.defaultDepth
	if raw := r.URL.Query().Get("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d <= 0 {
			respondError(w, http.StatusUnprocessableEntity, "depth must be a positive integer")
			return
		}
		depth = d
	}

	respondJSON(w, protocol.NewMarketData("", store.Snapshot(kind, depth)))
}

func (s *Server) handleGetSpread(w http.ResponseWriter, r *http.Request) {
	store, ok := s.hub.Book(mux.Vars(r)["symbol"])
	if !ok {
		respondError(w, http.StatusNotFound, "unknown symbol")
		return
	}

	spread, mid, bps, ok := store.Spread()
	if !ok {
		respondError(w, http.StatusConflict, "book is one-sided or empty")
		return
	}

	respondJSON(w, map[string]any{
		"symbol":     store.Symbol(),
		"spread":     spread,
		"mid_price":  mid,
		"spread_bps": bps,
		"sequence":   store.Sequence(),
	})
}

// ==============================
// Helpers
// ==============================

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
