// Package optimizer sweeps backtest parameter grids and ranks the
// combinations by a chosen metric.
package optimizer

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/stockpilot/stockpilot/internal/domain"
	"github.com/stockpilot/stockpilot/internal/modules/backtest"
)

// Metric selects how combinations are ranked.
type Metric string

const (
	MetricTotalReturn    Metric = "total_return"
	MetricSharpe         Metric = "sharpe"
	MetricWinRate        Metric = "win_rate"
	MetricReturnMDDRatio Metric = "return_mdd_ratio"
)

// ParamGrid lists the candidate values per dimension. Every list must be
// non-empty; a single-element list pins that dimension.
type ParamGrid struct {
	BuyThresholds     []float64 `json:"buy_thresholds"`
	SellThresholds    []float64 `json:"sell_thresholds"`
	StopLosses        []float64 `json:"stop_losses"`
	TakeProfits       []float64 `json:"take_profits"`
	MinTradeIntervals []int     `json:"min_trade_intervals"`
	TrailingStops     []float64 `json:"trailing_stops"` // <= 0 disables the trailing stop
	MaxPositionPcts   []float64 `json:"max_position_pcts"`
}

// DefaultGrid returns a modest sweep around the standard parameters.
func DefaultGrid() ParamGrid {
	return ParamGrid{
		BuyThresholds:     []float64{30, 35, 40},
		SellThresholds:    []float64{-25, -20, -15},
		StopLosses:        []float64{-0.05, -0.07, -0.10},
		TakeProfits:       []float64{0.10, 0.15, 0.20},
		MinTradeIntervals: []int{3, 5, 10},
		TrailingStops:     []float64{0, 0.10},
		MaxPositionPcts:   []float64{0.2},
	}
}

// TotalCombinations returns the size of the Cartesian product.
func (g ParamGrid) TotalCombinations() int {
	return len(g.BuyThresholds) * len(g.SellThresholds) * len(g.StopLosses) *
		len(g.TakeProfits) * len(g.MinTradeIntervals) * len(g.TrailingStops) *
		len(g.MaxPositionPcts)
}

func (g ParamGrid) validate() error {
	dims := []struct {
		name string
		size int
	}{
		{"buy_thresholds", len(g.BuyThresholds)},
		{"sell_thresholds", len(g.SellThresholds)},
		{"stop_losses", len(g.StopLosses)},
		{"take_profits", len(g.TakeProfits)},
		{"min_trade_intervals", len(g.MinTradeIntervals)},
		{"trailing_stops", len(g.TrailingStops)},
		{"max_position_pcts", len(g.MaxPositionPcts)},
	}
	for _, d := range dims {
		if d.size == 0 {
			return domain.NewValidationError(d.name, nil, "parameter list must not be empty")
		}
	}
	return nil
}

// ComboResult is the outcome of one parameter combination.
type ComboResult struct {
	Config         backtest.Config `json:"config"`
	TotalReturnPct float64         `json:"total_return_pct"`
	MaxDrawdownPct float64         `json:"max_drawdown_pct"`
	SharpeRatio    float64         `json:"sharpe_ratio"`
	WinRatePct     float64         `json:"win_rate_pct"`
	TotalTrades    int             `json:"total_trades"`
	Score          float64         `json:"score"` // value of the ranking metric
}

// Optimizer runs grid sweeps against a backtest engine.
type Optimizer struct {
	engine *backtest.Engine
	log    zerolog.Logger
}

// New creates an optimizer.
func New(engine *backtest.Engine, log zerolog.Logger) *Optimizer {
	return &Optimizer{
		engine: engine,
		log:    log.With().Str("service", "optimizer").Logger(),
	}
}

// Optimize backtests every combination in the grid over the series, starting
// from base for all non-swept parameters, and returns results sorted by the
// metric, best first.
func (o *Optimizer) Optimize(ctx context.Context, series []domain.PriceSeries, base backtest.Config, grid ParamGrid, metric Metric) ([]ComboResult, error) {
	if err := grid.validate(); err != nil {
		return nil, err
	}

	total := grid.TotalCombinations()
	o.log.Info().Int("combinations", total).Str("metric", string(metric)).Msg("Starting grid sweep")

	results := make([]ComboResult, 0, total)
	done := 0

	for _, buy := range grid.BuyThresholds {
		for _, sell := range grid.SellThresholds {
			for _, stopLoss := range grid.StopLosses {
				for _, takeProfit := range grid.TakeProfits {
					for _, interval := range grid.MinTradeIntervals {
						for _, trailing := range grid.TrailingStops {
							for _, maxPos := range grid.MaxPositionPcts {
								if err := ctx.Err(); err != nil {
									return nil, err
								}

								cfg := base
								cfg.BuyThreshold = buy
								cfg.SellThreshold = sell
								cfg.StopLoss = stopLoss
								cfg.TakeProfit = takeProfit
								cfg.MinTradeIntervalDays = interval
								cfg.UseTrailingStop = trailing > 0
								cfg.TrailingStop = trailing
								cfg.MaxPositionPct = maxPos

								res, err := o.engine.Run(ctx, series, cfg)
								if err != nil {
									return nil, err
								}

								results = append(results, ComboResult{
									Config:         cfg,
									TotalReturnPct: res.TotalReturnPct,
									MaxDrawdownPct: res.MaxDrawdownPct,
									SharpeRatio:    res.SharpeRatio,
									WinRatePct:     res.WinRatePct,
									TotalTrades:    res.TotalTrades,
									Score:          metricValue(metric, res),
								})

								done++
								if done%100 == 0 {
									o.log.Info().Int("done", done).Int("total", total).Msg("Grid sweep progress")
								}
							}
						}
					}
				}
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	o.log.Info().Int("combinations", total).Float64("best_score", results[0].Score).Msg("Grid sweep complete")
	return results, nil
}

func metricValue(metric Metric, res *backtest.Result) float64 {
	switch metric {
	case MetricSharpe:
		return res.SharpeRatio
	case MetricWinRate:
		return res.WinRatePct
	case MetricReturnMDDRatio:
		if res.MaxDrawdownPct > 0 {
			return res.TotalReturnPct / res.MaxDrawdownPct
		}
		return res.TotalReturnPct
	default:
		return res.TotalReturnPct
	}
}
