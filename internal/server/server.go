// Package server exposes the cached microstructure signals and collector
// statistics over HTTP for monitoring.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signals/internal/bridge"
	"github.com/rxtech-lab/argo-signals/internal/collector"
	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/types"
)

// signalDTO is the JSON shape of one signal value.
type signalDTO struct {
	Direction  string             `json:"direction"`
	Strength   float64            `json:"strength"`
	Confidence float64            `json:"confidence"`
	Metadata   map[string]float64 `json:"metadata,omitempty"`
}

func toDTO(value types.SignalValue) signalDTO {
	return signalDTO{
		Direction:  value.Direction.String(),
		Strength:   value.Strength,
		Confidence: value.Confidence,
		Metadata:   value.Metadata,
	}
}

// signalsResponse is the payload of the signals endpoint.
type signalsResponse struct {
	OrderBookImbalance signalDTO `json:"orderbook_imbalance"`
	FundingRate        signalDTO `json:"funding_rate"`
	LiquidationCascade signalDTO `json:"liquidation_cascade"`
	News               signalDTO `json:"news"`
	Composite          signalDTO `json:"composite"`
	Consensus          string    `json:"consensus"`
	HighStress         bool      `json:"high_stress"`
	LastUpdated        time.Time `json:"last_updated"`
	AgeSeconds         float64   `json:"age_seconds"`
}

// checkRequest is a proposed trade signal submitted for filter judgment.
type checkRequest struct {
	Symbol    string  `json:"symbol"`
	Direction string  `json:"direction"`
	Strength  float64 `json:"strength"`
	Price     string  `json:"price"`
}

// checkResponse is the filter's judgment on a proposed signal.
type checkResponse struct {
	Disposition string     `json:"disposition"`
	Allowed     bool       `json:"allowed"`
	Reason      string     `json:"reason,omitempty"`
	Signal      *signalOut `json:"signal,omitempty"`
}

// signalOut is the JSON shape of a filtered trade signal.
type signalOut struct {
	Symbol    string  `json:"symbol"`
	Direction string  `json:"direction"`
	Strength  float64 `json:"strength"`
	Price     string  `json:"price"`
}

// Server serves the monitoring API.
type Server struct {
	addr    string
	signals *bridge.SharedMicroSignals
	stats   map[string]*collector.Stats
	filter  *bridge.Filter
	logger  *logger.Logger

	httpServer *http.Server
}

// New creates a server reading from the shared signal cache. The stats map
// keys collectors by name, e.g. "orderbook".
func New(addr string, signals *bridge.SharedMicroSignals, stats map[string]*collector.Stats) *Server {
	return &Server{
		addr:    addr,
		signals: signals,
		stats:   stats,
		filter:  bridge.NewFilter(bridge.DefaultFilterConfig()),
		logger:  logger.NewNopLogger(),
	}
}

// WithLogger sets the server logger.
func (s *Server) WithLogger(log *logger.Logger) *Server {
	if log != nil {
		s.logger = log
	}

	return s
}

// WithFilter sets the decision filter used by the check endpoint.
func (s *Server) WithFilter(filter *bridge.Filter) *Server {
	if filter != nil {
		s.filter = filter
	}

	return s
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/signals", s.handleSignals).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/check", s.handleCheck).Methods(http.MethodPost)

	return router
}

// Start serves HTTP until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("server shutdown failed", zap.Error(err))
		}
	}()

	s.logger.Info("status server listening", zap.String("addr", s.addr))

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}

	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleSignals(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.signals.Snapshot()
	now := time.Now()

	writeJSON(w, signalsResponse{
		OrderBookImbalance: toDTO(snapshot.OrderBookImbalance),
		FundingRate:        toDTO(snapshot.FundingRate),
		LiquidationCascade: toDTO(snapshot.LiquidationCascade),
		News:               toDTO(snapshot.News),
		Composite:          toDTO(snapshot.Composite),
		Consensus:          snapshot.ConsensusDirection().String(),
		HighStress:         snapshot.IsHighStress(),
		LastUpdated:        snapshot.LastUpdated,
		AgeSeconds:         snapshot.Age(now).Seconds(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	response := make(map[string]collector.StatsSnapshot, len(s.stats))
	for name, stats := range s.stats {
		response[name] = stats.Snapshot()
	}

	writeJSON(w, response)
}

func parseSignalDirection(raw string) (types.SignalDirection, bool) {
	switch raw {
	case "long":
		return types.SignalDirectionLong, true
	case "short":
		return types.SignalDirectionShort, true
	case "exit":
		return types.SignalDirectionExit, true
	default:
		return types.SignalDirectionLong, false
	}
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var request checkRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)

		return
	}

	direction, ok := parseSignalDirection(request.Direction)
	if !ok {
		http.Error(w, "direction must be long, short or exit", http.StatusBadRequest)

		return
	}

	price, err := decimal.NewFromString(request.Price)
	if err != nil {
		http.Error(w, "invalid price", http.StatusBadRequest)

		return
	}

	result := s.filter.Apply(types.SignalEvent{
		Symbol:    request.Symbol,
		Direction: direction,
		Strength:  request.Strength,
		Price:     price,
		Timestamp: time.Now(),
	}, s.signals.Snapshot())

	response := checkResponse{
		Disposition: result.Disposition.String(),
		Allowed:     result.IsAllowed(),
		Reason:      result.Reason,
	}

	if result.Signal != nil {
		response.Signal = &signalOut{
			Symbol:    result.Signal.Symbol,
			Direction: result.Signal.Direction.String(),
			Strength:  result.Signal.Strength,
			Price:     result.Signal.Price.String(),
		}
	}

	writeJSON(w, response)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
