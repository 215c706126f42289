// Package rebalancing turns target portfolio weights into an executable
// order plan.
package rebalancing

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/stockpilot/stockpilot/internal/domain"
)

// Planner generates rebalance plans. It is stateless; all inputs arrive in
// the request.
type Planner struct {
	log zerolog.Logger
}

// NewPlanner creates a rebalance planner.
func NewPlanner(log zerolog.Logger) *Planner {
	return &Planner{
		log: log.With().Str("service", "rebalancing").Logger(),
	}
}

// CalculateCurrentAllocations returns each holding's weight in percent of
// total equity. Holdings with a non-positive quantity or price are skipped.
//
// Total equity is derived as cash plus the value of the holdings rather than
// accepted from the caller, so the weights always sum consistently with the
// request even when a broker-reported account total would differ.
func (p *Planner) CalculateCurrentAllocations(req Request) (map[string]float64, float64) {
	totalEquity := req.Cash
	for symbol, h := range req.Holdings {
		if h.Quantity <= 0 || h.Price <= 0 {
			if h.Quantity != 0 {
				p.log.Warn().Str("symbol", symbol).
					Float64("quantity", h.Quantity).
					Float64("price", h.Price).
					Msg("Ignoring holding with non-positive quantity or price")
			}
			continue
		}
		totalEquity += h.Quantity * h.Price
	}

	current := make(map[string]float64)
	if totalEquity <= 0 {
		return current, totalEquity
	}
	for symbol, h := range req.Holdings {
		if h.Quantity <= 0 || h.Price <= 0 {
			continue
		}
		current[symbol] = h.Quantity * h.Price / totalEquity * 100
	}

	return current, totalEquity
}

// GeneratePlan produces sell and buy orders that move the portfolio toward
// its target weights. Sells are planned first; buys spend starting cash plus
// expected sell proceeds and never exceed the available amount.
func (p *Planner) GeneratePlan(req Request) (*Plan, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	current, totalEquity := p.CalculateCurrentAllocations(req)
	if totalEquity <= 0 {
		return nil, domain.NewValidationError("total_equity", totalEquity, "must be positive")
	}

	// Held symbols missing from the targets are treated as 0% targets.
	diffs := make(map[string]float64)
	for symbol, target := range req.Targets {
		diffs[symbol] = target - current[symbol]
	}
	for symbol := range current {
		if _, ok := req.Targets[symbol]; !ok {
			diffs[symbol] = -current[symbol]
		}
	}

	symbols := make([]string, 0, len(diffs))
	for s := range diffs {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	currentAllocations := make(map[string]float64, len(current))
	for symbol, pct := range current {
		currentAllocations[symbol] = round2(pct)
	}
	targetAllocations := make(map[string]float64, len(req.Targets))
	for symbol, pct := range req.Targets {
		targetAllocations[symbol] = pct
	}

	plan := &Plan{
		SellOrders:         []Order{},
		BuyOrders:          []Order{},
		Skipped:            []SkippedStock{},
		CurrentAllocations: currentAllocations,
		TargetAllocations:  targetAllocations,
	}

	// Threshold mode settles the skip list up front, so a symbol whose
	// deviation is within the band is reported exactly once even when it
	// sits dead on target.
	withinThreshold := make(map[string]bool)
	if req.Mode == "threshold" {
		for _, symbol := range symbols {
			if math.Abs(diffs[symbol]) < req.ThresholdPct {
				withinThreshold[symbol] = true
				plan.Skipped = append(plan.Skipped, SkippedStock{
					Symbol:  symbol,
					Reason:  SkipThreshold,
					DiffPct: round2(diffs[symbol]),
				})
			}
		}
	}

	maxOrderValue := req.MaxSingleOrderPct / 100 * totalEquity

	// Sell pass.
	proceeds := 0.0
	for _, symbol := range symbols {
		diff := diffs[symbol]
		if diff >= 0 || withinThreshold[symbol] {
			continue
		}

		holding := req.Holdings[symbol]
		if holding.Price <= 0 {
			p.log.Warn().Str("symbol", symbol).Msg("No usable price for sell, skipping")
			plan.Skipped = append(plan.Skipped, SkippedStock{Symbol: symbol, Reason: SkipMissingPrice, DiffPct: round2(diff)})
			continue
		}

		tradeValue := -diff / 100 * totalEquity
		if tradeValue < req.MinTradeAmount {
			plan.Skipped = append(plan.Skipped, SkippedStock{Symbol: symbol, Reason: SkipMinAmount, DiffPct: round2(diff)})
			continue
		}
		if tradeValue > maxOrderValue {
			tradeValue = maxOrderValue
		}

		qty := math.Floor(tradeValue / holding.Price)
		if qty > holding.Quantity {
			qty = holding.Quantity
		}
		if qty <= 0 {
			plan.Skipped = append(plan.Skipped, SkippedStock{Symbol: symbol, Reason: SkipZeroQuantity, DiffPct: round2(diff)})
			continue
		}

		value := qty * holding.Price
		proceeds += value
		plan.SellOrders = append(plan.SellOrders, Order{
			Symbol:        symbol,
			Side:          SideSell,
			Quantity:      qty,
			Price:         holding.Price,
			Value:         round2(value),
			TargetValue:   round2(req.Targets[symbol] / 100 * totalEquity),
			CurrentWeight: round2(current[symbol]),
			TargetWeight:  req.Targets[symbol],
			Reason:        fmt.Sprintf("current weight %.2f%% above target %.2f%%", current[symbol], req.Targets[symbol]),
		})
	}

	// Buy pass funded by starting cash plus sell proceeds.
	availableCash := req.Cash + proceeds
	for _, symbol := range symbols {
		diff := diffs[symbol]
		if diff <= 0 || withinThreshold[symbol] {
			continue
		}

		holding, held := req.Holdings[symbol]
		if !held || holding.Price <= 0 {
			p.log.Warn().Str("symbol", symbol).Msg("No reference price for new symbol, skipping")
			plan.Skipped = append(plan.Skipped, SkippedStock{Symbol: symbol, Reason: SkipMissingPrice, DiffPct: round2(diff)})
			continue
		}

		tradeValue := diff / 100 * totalEquity
		// Min amount applies to the intended trade, before any clamping.
		if tradeValue < req.MinTradeAmount {
			plan.Skipped = append(plan.Skipped, SkippedStock{Symbol: symbol, Reason: SkipMinAmount, DiffPct: round2(diff)})
			continue
		}
		if tradeValue > maxOrderValue {
			tradeValue = maxOrderValue
		}
		if tradeValue > availableCash {
			tradeValue = availableCash
		}

		qty := math.Floor(tradeValue / holding.Price)
		if qty <= 0 {
			plan.Skipped = append(plan.Skipped, SkippedStock{Symbol: symbol, Reason: SkipZeroQuantity, DiffPct: round2(diff)})
			continue
		}

		value := qty * holding.Price
		availableCash -= value
		plan.BuyOrders = append(plan.BuyOrders, Order{
			Symbol:        symbol,
			Side:          SideBuy,
			Quantity:      qty,
			Price:         holding.Price,
			Value:         round2(value),
			TargetValue:   round2(req.Targets[symbol] / 100 * totalEquity),
			CurrentWeight: round2(current[symbol]),
			TargetWeight:  req.Targets[symbol],
			Reason:        fmt.Sprintf("current weight %.2f%% below target %.2f%%", current[symbol], req.Targets[symbol]),
		})
	}

	totalBuy, totalSell := 0.0, 0.0
	for _, o := range plan.BuyOrders {
		totalBuy += o.Value
	}
	for _, o := range plan.SellOrders {
		totalSell += o.Value
	}

	plan.Summary = Summary{
		TotalEquity:    round2(totalEquity),
		CashBefore:     req.Cash,
		CashAfter:      round2(availableCash),
		BuyCount:       len(plan.BuyOrders),
		SellCount:      len(plan.SellOrders),
		TotalBuyValue:  round2(totalBuy),
		TotalSellValue: round2(totalSell),
	}

	p.log.Info().
		Int("sells", plan.Summary.SellCount).
		Int("buys", plan.Summary.BuyCount).
		Int("skipped", len(plan.Skipped)).
		Msg("Generated rebalance plan")

	return plan, nil
}

func validateRequest(req Request) error {
	if req.Cash < 0 {
		return domain.NewValidationError("cash", req.Cash, "must not be negative")
	}
	switch req.Mode {
	case "threshold", "proportional":
	default:
		return domain.NewValidationError("mode", req.Mode, "must be threshold or proportional")
	}
	for symbol := range req.Holdings {
		if symbol == "" {
			return domain.NewValidationError("holdings", nil, "stock code must not be empty")
		}
	}
	for symbol, weight := range req.Targets {
		if symbol == "" {
			return domain.NewValidationError("targets", nil, "stock code must not be empty")
		}
		if weight < 0 {
			return domain.NewValidationError("targets", symbol, "target weight must not be negative")
		}
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
