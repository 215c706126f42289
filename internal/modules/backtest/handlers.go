package backtest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/stockpilot/stockpilot/internal/domain"
)

// BacktestHandlers contains HTTP handlers for the backtest API
type BacktestHandlers struct {
	engine *Engine
	repo   *Repository
	log    zerolog.Logger
}

// NewBacktestHandlers creates a new backtest handlers instance
func NewBacktestHandlers(engine *Engine, repo *Repository, log zerolog.Logger) *BacktestHandlers {
	return &BacktestHandlers{
		engine: engine,
		repo:   repo,
		log:    log.With().Str("handler", "backtest").Logger(),
	}
}

type runRequest struct {
	Series []domain.PriceSeries `json:"series"`
	Config *Config              `json:"config"`
}

// HandleRunBacktest runs a backtest over the posted price series
// POST /api/backtest
func (h *BacktestHandlers) HandleRunBacktest(w http.ResponseWriter, r *http.Request) {
	// Decode over defaults so omitted config fields keep their standard values
	cfg := DefaultConfig()
	req := runRequest{Config: &cfg}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.engine.Run(r.Context(), req.Series, *req.Config)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("Backtest failed")
		http.Error(w, "Backtest failed", http.StatusInternalServerError)
		return
	}

	if h.repo != nil {
		if id, err := h.repo.Save(*req.Config, result); err != nil {
			h.log.Error().Err(err).Msg("Failed to persist backtest run")
		} else {
			w.Header().Set("X-Backtest-Run-ID", strconv.FormatInt(id, 10))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result) // Ignore encode error - already committed response
}

// HandleListRuns returns recent persisted runs
// GET /api/backtest/runs
func (h *BacktestHandlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil {
			limit = parsed
		}
	}

	records, err := h.repo.List(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backtest runs")
		http.Error(w, "Failed to list backtest runs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(records)
}

// HandleGetRun returns one persisted run with its full result
// GET /api/backtest/runs/{id}
func (h *BacktestHandlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid run id", http.StatusBadRequest)
		return
	}

	record, err := h.repo.Get(id)
	if err != nil {
		h.log.Error().Err(err).Int64("id", id).Msg("Failed to get backtest run")
		http.Error(w, "Failed to get backtest run", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(record)
}
