package rebalancing

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/stockpilot/stockpilot/internal/domain"
)

func baseRequest() Request {
	return Request{
		Holdings: map[string]Holding{
			"A": {Quantity: 400, Price: 10_000}, // 4,000,000 = 40%
			"B": {Quantity: 100, Price: 20_000}, // 2,000,000 = 20%
			"C": {Quantity: 0, Price: 5_000},    // reference price only
		},
		Cash:              4_000_000,
		Targets:           map[string]float64{"A": 20, "B": 30, "C": 30},
		Mode:              "threshold",
		ThresholdPct:      5,
		MinTradeAmount:    100_000,
		MaxSingleOrderPct: 50,
	}
}

func TestCalculateCurrentAllocations(t *testing.T) {
	planner := NewPlanner(zerolog.Nop())

	current, total := planner.CalculateCurrentAllocations(baseRequest())

	assert.Equal(t, 10_000_000.0, total)
	assert.InDelta(t, 40.0, current["A"], 1e-9)
	assert.InDelta(t, 20.0, current["B"], 1e-9)
	// Zero-quantity reference holdings carry no weight.
	assert.NotContains(t, current, "C")
}

func TestGeneratePlanSellsBeforeBuys(t *testing.T) {
	planner := NewPlanner(zerolog.Nop())

	plan, err := planner.GeneratePlan(baseRequest())

	assert.NoError(t, err)
	assert.Len(t, plan.SellOrders, 1)
	assert.Len(t, plan.BuyOrders, 2)
	assert.Empty(t, plan.Skipped)

	sell := plan.SellOrders[0]
	assert.Equal(t, "A", sell.Symbol)
	assert.Equal(t, 200.0, sell.Quantity) // 20% of 10M at 10,000
	assert.Equal(t, 2_000_000.0, sell.Value)

	// Sorted symbol order within the buy pass.
	assert.Equal(t, "B", plan.BuyOrders[0].Symbol)
	assert.Equal(t, 50.0, plan.BuyOrders[0].Quantity)
	assert.Equal(t, "C", plan.BuyOrders[1].Symbol)
	assert.Equal(t, 600.0, plan.BuyOrders[1].Quantity)

	assert.Equal(t, 2_000_000.0, plan.Summary.CashAfter)
	assert.Equal(t, 1, plan.Summary.SellCount)
	assert.Equal(t, 2, plan.Summary.BuyCount)
	assert.Equal(t, 4_000_000.0, plan.Summary.TotalBuyValue)
	assert.Equal(t, 2_000_000.0, plan.Summary.TotalSellValue)
}

func TestGeneratePlanReportsAllocationsAndReasons(t *testing.T) {
	planner := NewPlanner(zerolog.Nop())

	plan, err := planner.GeneratePlan(baseRequest())

	assert.NoError(t, err)

	// Allocation maps cover every weighted symbol, not just traded ones.
	assert.InDelta(t, 40.0, plan.CurrentAllocations["A"], 1e-9)
	assert.InDelta(t, 20.0, plan.CurrentAllocations["B"], 1e-9)
	assert.Equal(t, map[string]float64{"A": 20, "B": 30, "C": 30}, plan.TargetAllocations)

	sell := plan.SellOrders[0]
	assert.Equal(t, 2_000_000.0, sell.TargetValue) // 20% of 10M
	assert.Contains(t, sell.Reason, "above target")

	for _, o := range plan.BuyOrders {
		assert.Equal(t, 3_000_000.0, o.TargetValue) // 30% of 10M
		assert.Contains(t, o.Reason, "below target")
	}
}

func TestGeneratePlanZeroDeviationRecordedInThresholdMode(t *testing.T) {
	planner := NewPlanner(zerolog.Nop())

	req := baseRequest()
	// A sits exactly on target.
	req.Targets = map[string]float64{"A": 40, "B": 30, "C": 30}

	plan, err := planner.GeneratePlan(req)

	assert.NoError(t, err)
	assert.Empty(t, plan.SellOrders)

	reasons := map[string]SkipReason{}
	for _, s := range plan.Skipped {
		reasons[s.Symbol] = s.Reason
	}
	assert.Equal(t, SkipThreshold, reasons["A"])

	// The untouched symbol keeps its weights in the output maps.
	assert.InDelta(t, 40.0, plan.CurrentAllocations["A"], 1e-9)
	assert.Equal(t, 40.0, plan.TargetAllocations["A"])
}

func TestGeneratePlanThresholdSkip(t *testing.T) {
	planner := NewPlanner(zerolog.Nop())

	req := baseRequest()
	// A and B drift only 2% from target, within the 5% band.
	req.Targets = map[string]float64{"A": 42, "B": 18, "C": 0}

	plan, err := planner.GeneratePlan(req)

	assert.NoError(t, err)
	assert.Empty(t, plan.SellOrders)
	assert.Empty(t, plan.BuyOrders)

	reasons := map[string]SkipReason{}
	for _, s := range plan.Skipped {
		reasons[s.Symbol] = s.Reason
	}
	assert.Equal(t, SkipThreshold, reasons["A"])
	assert.Equal(t, SkipThreshold, reasons["B"])
}

func TestGeneratePlanProportionalTradesSmallDiffs(t *testing.T) {
	planner := NewPlanner(zerolog.Nop())

	req := baseRequest()
	req.Mode = "proportional"
	req.MinTradeAmount = 0
	// 2% drift still trades without a threshold band.
	req.Targets = map[string]float64{"A": 38, "B": 20, "C": 0}

	plan, err := planner.GeneratePlan(req)

	assert.NoError(t, err)
	assert.Len(t, plan.SellOrders, 1)
	assert.Equal(t, "A", plan.SellOrders[0].Symbol)
	assert.Equal(t, 20.0, plan.SellOrders[0].Quantity) // 200,000 / 10,000
}

func TestGeneratePlanMinTradeAmountSkipRecorded(t *testing.T) {
	planner := NewPlanner(zerolog.Nop())

	req := baseRequest()
	req.ThresholdPct = 1
	req.MinTradeAmount = 500_000
	// B drifts +2% = 200,000, above threshold but under the minimum amount.
	req.Targets = map[string]float64{"A": 40, "B": 22, "C": 0}

	plan, err := planner.GeneratePlan(req)

	assert.NoError(t, err)
	assert.Empty(t, plan.BuyOrders)

	found := false
	for _, s := range plan.Skipped {
		if s.Symbol == "B" {
			found = true
			assert.Equal(t, SkipMinAmount, s.Reason)
			assert.InDelta(t, 2.0, s.DiffPct, 1e-9)
		}
	}
	assert.True(t, found)
}

func TestGeneratePlanMissingPriceSkipRecorded(t *testing.T) {
	planner := NewPlanner(zerolog.Nop())

	req := baseRequest()
	// D has a target but no holding and no reference price.
	req.Targets = map[string]float64{"A": 40, "B": 20, "D": 40}

	plan, err := planner.GeneratePlan(req)

	assert.NoError(t, err)

	found := false
	for _, s := range plan.Skipped {
		if s.Symbol == "D" {
			found = true
			assert.Equal(t, SkipMissingPrice, s.Reason)
		}
	}
	assert.True(t, found)
	assert.Empty(t, plan.BuyOrders)
}

func TestGeneratePlanMaxSingleOrderClamp(t *testing.T) {
	planner := NewPlanner(zerolog.Nop())

	req := baseRequest()
	req.MaxSingleOrderPct = 10 // 1,000,000 cap per order

	plan, err := planner.GeneratePlan(req)

	assert.NoError(t, err)
	for _, o := range append(plan.SellOrders, plan.BuyOrders...) {
		assert.LessOrEqual(t, o.Value, 1_000_000.0)
	}

	// C wanted 3,000,000 but is capped at 200 shares.
	for _, o := range plan.BuyOrders {
		if o.Symbol == "C" {
			assert.Equal(t, 200.0, o.Quantity)
		}
	}
}

func TestGeneratePlanBuysNeverExceedCash(t *testing.T) {
	planner := NewPlanner(zerolog.Nop())

	// All equity in A, no cash; rotating fully into B must be funded
	// entirely by the A sale.
	req := Request{
		Holdings: map[string]Holding{
			"A": {Quantity: 100, Price: 10_000},
			"B": {Quantity: 0, Price: 1_000},
		},
		Cash:              0,
		Targets:           map[string]float64{"A": 0, "B": 100},
		Mode:              "threshold",
		ThresholdPct:      0,
		MinTradeAmount:    0,
		MaxSingleOrderPct: 100,
	}

	plan, err := planner.GeneratePlan(req)

	assert.NoError(t, err)
	assert.Len(t, plan.SellOrders, 1)
	assert.Len(t, plan.BuyOrders, 1)
	assert.Equal(t, 1000.0, plan.BuyOrders[0].Quantity)
	assert.GreaterOrEqual(t, plan.Summary.CashAfter, 0.0)
}

func TestGeneratePlanTrimsSingleOverweightHolding(t *testing.T) {
	planner := NewPlanner(zerolog.Nop())

	// A sits at 70% of a 2,000,000 portfolio against a 50% target: one sell
	// of the 400,000 excess and nothing to buy.
	req := Request{
		Holdings: map[string]Holding{
			"A": {Quantity: 140, Price: 10_000},
		},
		Cash:              600_000,
		Targets:           map[string]float64{"A": 50},
		Mode:              "threshold",
		ThresholdPct:      5,
		MinTradeAmount:    100_000,
		MaxSingleOrderPct: 50,
	}

	plan, err := planner.GeneratePlan(req)

	assert.NoError(t, err)
	assert.Len(t, plan.SellOrders, 1)
	assert.Empty(t, plan.BuyOrders)
	assert.Equal(t, 40.0, plan.SellOrders[0].Quantity)
	assert.Equal(t, 400_000.0, plan.SellOrders[0].Value)
	assert.Equal(t, 1_000_000.0, plan.Summary.CashAfter)
}

func TestGeneratePlanZeroQuantitySkip(t *testing.T) {
	planner := NewPlanner(zerolog.Nop())

	// B's 10% slice is 10,000 but one share costs 50,000.
	req := Request{
		Holdings: map[string]Holding{
			"A": {Quantity: 10, Price: 5_000},
			"B": {Quantity: 0, Price: 50_000},
		},
		Cash:              50_000,
		Targets:           map[string]float64{"A": 50, "B": 10},
		Mode:              "proportional",
		MinTradeAmount:    0,
		MaxSingleOrderPct: 100,
	}

	plan, err := planner.GeneratePlan(req)

	assert.NoError(t, err)

	found := false
	for _, s := range plan.Skipped {
		if s.Symbol == "B" {
			found = true
			assert.Equal(t, SkipZeroQuantity, s.Reason)
		}
	}
	assert.True(t, found)
}

func TestGeneratePlanValidation(t *testing.T) {
	planner := NewPlanner(zerolog.Nop())
	var verr *domain.ValidationError

	req := baseRequest()
	req.Cash = -1
	_, err := planner.GeneratePlan(req)
	assert.ErrorAs(t, err, &verr)

	req = baseRequest()
	req.Mode = "aggressive"
	_, err = planner.GeneratePlan(req)
	assert.ErrorAs(t, err, &verr)

	req = baseRequest()
	req.Targets = map[string]float64{"": 50}
	_, err = planner.GeneratePlan(req)
	assert.ErrorAs(t, err, &verr)

	req = baseRequest()
	req.Holdings[""] = Holding{Quantity: 10, Price: 1000}
	_, err = planner.GeneratePlan(req)
	assert.ErrorAs(t, err, &verr)

	// Empty portfolio has no equity to allocate.
	_, err = planner.GeneratePlan(Request{
		Mode:    "threshold",
		Targets: map[string]float64{"A": 100},
	})
	assert.ErrorAs(t, err, &verr)
}
