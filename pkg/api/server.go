// Package api serves a read-only dashboard over a running simulation:
// market depth, candles, trade history, agent balances and a WebSocket
// tick stream. Orders cannot be placed through it; only agents trade.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/stablesim/stablesim/pkg/econ/book"
	"github.com/stablesim/stablesim/pkg/econ/ledger"
	"github.com/stablesim/stablesim/pkg/sim"
	"github.com/stablesim/stablesim/pkg/storage"
)

// Server exposes the model over REST and WebSocket.
type Server struct {
	model   *sim.Model
	archive *storage.Archive // optional
	router  *mux.Router
	hub     *Hub

	// The model is single-threaded; the runner holds the write lock while
	// stepping and handlers read under the read lock.
	mu sync.RWMutex
}

// NewServer creates a server over a model. The archive may be nil, in which
// case trade history is served from the in-memory logs.
func NewServer(model *sim.Model, archive *storage.Archive) *Server {
	s := &Server{
		model:   model,
		archive: archive,
		router:  mux.NewRouter(),
		hub:     NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/markets", s.handleGetMarkets).Methods("GET")
	api.HandleFunc("/markets/{pair}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/markets/{pair}/candles", s.handleGetCandles).Methods("GET")
	api.HandleFunc("/markets/{pair}/trades", s.handleGetTrades).Methods("GET")

	api.HandleFunc("/accounts", s.handleGetAccounts).Methods("GET")
	api.HandleFunc("/accounts/{id}", s.handleGetAccount).Methods("GET")

	api.HandleFunc("/status", s.handleGetStatus).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start serves until the listener fails. Blocking.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// StepLocked runs fn (typically one model step) while holding the write
// lock, then broadcasts the new tick to subscribers.
func (s *Server) StepLocked(fn func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()
	s.BroadcastTick()
}

func (s *Server) marketSummary(b *book.OrderBook) MarketSummary {
	return MarketSummary{
		Pair:          b.Name(),
		Price:         b.Price(),
		HighestBid:    b.HighestBidPrice(),
		LowestAsk:     b.LowestAskPrice(),
		Spread:        b.Spread(),
		BidCount:      b.BidCount(),
		AskCount:      b.AskCount(),
		TradesSettled: len(b.History()),
	}
}

func (s *Server) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	books := s.model.Markets().Books()
	out := make([]MarketSummary, 0, len(books))
	for _, b := range books {
		out = append(out, s.marketSummary(b))
	}
	respondJSON(w, out)
}

func (s *Server) bookByPair(r *http.Request) *book.OrderBook {
	return s.model.Markets().Book(mux.Vars(r)["pair"])
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := s.bookByPair(r)
	if b == nil {
		respondError(w, http.StatusNotFound, "unknown pair", "")
		return
	}
	respondJSON(w, DepthSnapshot{
		Pair: b.Name(),
		Bids: b.BidLevels(),
		Asks: b.AskLevels(),
		Tick: s.model.Tick(),
	})
}

func (s *Server) handleGetCandles(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := s.bookByPair(r)
	if b == nil {
		respondError(w, http.StatusNotFound, "unknown pair", "")
		return
	}
	candles := b.Series().Candles()
	if n := limitParam(r, 200); len(candles) > n {
		candles = candles[len(candles)-n:]
	}
	respondJSON(w, candles)
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	limit := limitParam(r, 100)
	pair := mux.Vars(r)["pair"]

	if s.archive != nil {
		trades, err := s.archive.RecentTrades(pair, limit)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "archive read failed", err.Error())
			return
		}
		respondJSON(w, trades)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b := s.bookByPair(r)
	if b == nil {
		respondError(w, http.StatusNotFound, "unknown pair", "")
		return
	}
	history := b.History()
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	respondJSON(w, history)
}

func (s *Server) accountInfo(a *ledger.Account) AccountInfo {
	led := s.model.Ledger()
	return AccountInfo{
		ID:              a.ID(),
		Name:            a.Name(),
		Coin:            a.Balance(ledger.Coin),
		Stable:          a.Balance(ledger.Stable),
		Fiat:            a.Balance(ledger.Fiat),
		Escrowed:        a.Escrowed(),
		Issued:          a.Issued(),
		AvailableCoin:   led.Available(a.ID(), ledger.Coin),
		AvailableStable: led.Available(a.ID(), ledger.Stable),
		AvailableFiat:   led.Available(a.ID(), ledger.Fiat),
	}
}

func (s *Server) handleGetAccounts(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := s.model.Ledger().Accounts()
	out := make([]AccountInfo, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, s.accountInfo(a))
	}
	respondJSON(w, out)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id < 0 || id >= len(s.model.Ledger().Accounts()) {
		respondError(w, http.StatusNotFound, "unknown account", "")
		return
	}
	respondJSON(w, s.accountInfo(s.model.Ledger().Accounts()[id]))
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	led := s.model.Ledger()
	respondJSON(w, StatusInfo{
		Tick:            s.model.Tick(),
		Agents:          len(s.model.Agents()),
		CoinSupply:      led.CoinSupply(),
		StableSupply:    led.StableSupply(),
		EscrowedCoin:    led.EscrowedTotal(),
		CoinFiatPrice:   s.model.Markets().CoinPriceInFiat(),
		StableFiatPrice: s.model.Markets().StablePriceInFiat(),
		CoinStablePrice: s.model.Markets().CoinPriceInStable(),
		Gini:            s.model.Gini(),
		TotalWealth:     s.model.TotalWealth(),
		FeesDistributed: s.model.FeesDistributed(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// BroadcastTick pushes per-market summaries to tick subscribers.
func (s *Server) BroadcastTick() {
	s.mu.RLock()
	books := s.model.Markets().Books()
	update := TickUpdate{
		Type:    "tick",
		Tick:    s.model.Tick(),
		Markets: make([]MarketSummary, 0, len(books)),
	}
	for _, b := range books {
		update.Markets = append(update.Markets, s.marketSummary(b))
	}
	s.mu.RUnlock()

	s.hub.BroadcastToChannel("ticks", update)
}

func limitParam(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: error, Message: message})
}
