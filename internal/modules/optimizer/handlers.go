package optimizer

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/stockpilot/stockpilot/internal/domain"
	"github.com/stockpilot/stockpilot/internal/modules/backtest"
)

// OptimizerHandlers contains HTTP handlers for the optimizer API
type OptimizerHandlers struct {
	optimizer *Optimizer
	log       zerolog.Logger
}

// NewOptimizerHandlers creates a new optimizer handlers instance
func NewOptimizerHandlers(optimizer *Optimizer, log zerolog.Logger) *OptimizerHandlers {
	return &OptimizerHandlers{
		optimizer: optimizer,
		log:       log.With().Str("handler", "optimizer").Logger(),
	}
}

type optimizeRequest struct {
	Series []domain.PriceSeries `json:"series"`
	Config *backtest.Config     `json:"config"`
	Grid   *ParamGrid           `json:"grid"`
	Metric Metric               `json:"metric"`
	TopN   int                  `json:"top_n"`
}

type optimizeResponse struct {
	Combinations int           `json:"combinations"`
	Results      []ComboResult `json:"results"`
	Report       string        `json:"report"`
}

// HandleOptimize sweeps a parameter grid over the posted price series
// POST /api/backtest/optimize
func (h *OptimizerHandlers) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	cfg := backtest.DefaultConfig()
	grid := DefaultGrid()
	req := optimizeRequest{Config: &cfg, Grid: &grid, Metric: MetricTotalReturn, TopN: 10}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	results, err := h.optimizer.Optimize(r.Context(), req.Series, *req.Config, *req.Grid, req.Metric)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("Optimization failed")
		http.Error(w, "Optimization failed", http.StatusInternalServerError)
		return
	}

	topN := req.TopN
	if topN <= 0 || topN > len(results) {
		topN = len(results)
	}

	resp := optimizeResponse{
		Combinations: len(results),
		Results:      results[:topN],
		Report:       FormatTopN(results, topN),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp) // Ignore encode error - already committed response
}
