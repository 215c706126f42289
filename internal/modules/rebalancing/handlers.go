package rebalancing

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/stockpilot/stockpilot/internal/config"
	"github.com/stockpilot/stockpilot/internal/domain"
)

// RebalancingHandlers contains HTTP handlers for the rebalancing API
type RebalancingHandlers struct {
	planner  *Planner
	repo     *Repository
	defaults config.PortfolioSettings
	log      zerolog.Logger
}

// NewRebalancingHandlers creates a new rebalancing handlers instance
func NewRebalancingHandlers(planner *Planner, repo *Repository, defaults config.PortfolioSettings, log zerolog.Logger) *RebalancingHandlers {
	return &RebalancingHandlers{
		planner:  planner,
		repo:     repo,
		defaults: defaults,
		log:      log.With().Str("handler", "rebalancing").Logger(),
	}
}

// ApplyDefaults fills unset request fields from the configured portfolio
// settings.
func (h *RebalancingHandlers) ApplyDefaults(req Request) Request {
	if req.Mode == "" {
		req.Mode = h.defaults.RebalanceMode
	}
	if req.ThresholdPct == 0 {
		req.ThresholdPct = h.defaults.ThresholdPct
	}
	if req.MinTradeAmount == 0 {
		req.MinTradeAmount = h.defaults.MinTradeAmount
	}
	if req.MaxSingleOrderPct == 0 {
		req.MaxSingleOrderPct = h.defaults.MaxSingleOrderPct
	}
	if len(req.Targets) == 0 {
		req.Targets = h.defaults.TargetAllocations
	}
	return req
}

// HandleGeneratePlan generates a rebalance plan for the posted portfolio
// POST /api/rebalance/plan
func (h *RebalancingHandlers) HandleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req = h.ApplyDefaults(req)

	plan, err := h.planner.GeneratePlan(req)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("Plan generation failed")
		http.Error(w, "Plan generation failed", http.StatusInternalServerError)
		return
	}

	if h.repo != nil {
		if _, err := h.repo.Save(req, plan); err != nil {
			h.log.Error().Err(err).Msg("Failed to persist rebalance plan")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(plan) // Ignore encode error - already committed response
}

// HandleListPlans returns recent persisted plans
// GET /api/rebalance/plans
func (h *RebalancingHandlers) HandleListPlans(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil {
			limit = parsed
		}
	}

	records, err := h.repo.List(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list rebalance plans")
		http.Error(w, "Failed to list rebalance plans", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(records)
}
