package scheduler

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpilot/stockpilot/internal/database"
	"github.com/stockpilot/stockpilot/internal/modules/rebalancing"
)

func TestRebalanceJobNoRequestOnRecord(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	repo := rebalancing.NewRepository(db, zerolog.Nop())
	job := NewRebalanceJob(rebalancing.NewPlanner(zerolog.Nop()), repo, zerolog.Nop())

	// An empty table is not an error, just nothing to do.
	assert.NoError(t, job.Run())

	records, err := repo.List(10)
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestRebalanceJobRegeneratesLatestPlan(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	planner := rebalancing.NewPlanner(zerolog.Nop())
	repo := rebalancing.NewRepository(db, zerolog.Nop())

	req := rebalancing.Request{
		Holdings: map[string]rebalancing.Holding{
			"A": {Quantity: 400, Price: 10_000},
			"B": {Quantity: 0, Price: 5_000},
		},
		Cash:              1_000_000,
		Targets:           map[string]float64{"A": 50, "B": 30},
		Mode:              "threshold",
		ThresholdPct:      5,
		MinTradeAmount:    10_000,
		MaxSingleOrderPct: 50,
	}
	plan, err := planner.GeneratePlan(req)
	require.NoError(t, err)
	_, err = repo.Save(req, plan)
	require.NoError(t, err)

	job := NewRebalanceJob(planner, repo, zerolog.Nop())
	assert.NoError(t, job.Run())

	records, err := repo.List(10)
	assert.NoError(t, err)
	require.Len(t, records, 2)
	// The refreshed plan was built from the same stored request.
	assert.Equal(t, req.Cash, records[0].Request.Cash)
	assert.Equal(t, "rebalance", job.Name())
}
