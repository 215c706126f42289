package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stockpilot/stockpilot/internal/modules/rebalancing"
)

// RebalanceJob regenerates a rebalance plan from the most recently submitted
// portfolio snapshot. The refreshed plan is stored as a dry run; nothing is
// executed against a broker.
type RebalanceJob struct {
	planner *rebalancing.Planner
	repo    *rebalancing.Repository
	log     zerolog.Logger
}

// NewRebalanceJob creates the scheduled rebalance job.
func NewRebalanceJob(planner *rebalancing.Planner, repo *rebalancing.Repository, log zerolog.Logger) *RebalanceJob {
	return &RebalanceJob{
		planner: planner,
		repo:    repo,
		log:     log.With().Str("job", "rebalance").Logger(),
	}
}

// Name returns the job identifier for scheduler logs.
func (j *RebalanceJob) Name() string {
	return "rebalance"
}

// Run loads the latest persisted request, regenerates its plan and stores
// the result.
func (j *RebalanceJob) Run() error {
	req, err := j.repo.LatestRequest()
	if err != nil {
		return fmt.Errorf("failed to load latest rebalance request: %w", err)
	}
	if req == nil {
		j.log.Debug().Msg("No rebalance request on record, skipping")
		return nil
	}

	plan, err := j.planner.GeneratePlan(*req)
	if err != nil {
		return fmt.Errorf("failed to regenerate rebalance plan: %w", err)
	}

	if _, err := j.repo.Save(*req, plan); err != nil {
		return fmt.Errorf("failed to store rebalance plan: %w", err)
	}

	j.log.Info().
		Int("sells", plan.Summary.SellCount).
		Int("buys", plan.Summary.BuyCount).
		Msg("Refreshed rebalance plan")

	return nil
}
