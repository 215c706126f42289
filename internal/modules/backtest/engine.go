// Package backtest simulates the composite-score strategy over historical
// daily prices and reports per-symbol and portfolio performance.
package backtest

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/stockpilot/stockpilot/internal/domain"
	"github.com/stockpilot/stockpilot/internal/modules/scoring"
	"github.com/stockpilot/stockpilot/pkg/formulas"
)

// ExitReason explains why a position was closed.
type ExitReason string

const (
	ExitTakeProfit   ExitReason = "take_profit"
	ExitStopLoss     ExitReason = "stop_loss"
	ExitTrailingStop ExitReason = "trailing_stop"
	ExitSignal       ExitReason = "signal"
	ExitEndOfPeriod  ExitReason = "end_of_period"
)

// TradeSide is the direction of a fill.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// Trade is one executed fill. PnLPct is set on sells only, as the realized
// percentage return against the entry price of the position just closed.
type Trade struct {
	Symbol   string     `json:"symbol"`
	Date     string     `json:"date"`
	Side     TradeSide  `json:"side"`
	Quantity float64    `json:"quantity"`
	Price    float64    `json:"price"`
	PnLPct   *float64   `json:"pnl_pct,omitempty"`
	Reason   ExitReason `json:"reason,omitempty"`
}

// EquityPoint is one dated sample of account value.
type EquityPoint struct {
	Date   string  `json:"date"`
	Equity float64 `json:"equity"`
}

// SymbolResult summarizes one symbol's simulation.
type SymbolResult struct {
	Symbol            string        `json:"symbol"`
	AllocatedCapital  float64       `json:"allocated_capital"`
	FinalEquity       float64       `json:"final_equity"`
	TotalReturnPct    float64       `json:"total_return_pct"`
	TradeCount        int           `json:"trade_count"`
	WinRatePct        float64       `json:"win_rate_pct"`
	AvgTradeReturnPct float64       `json:"avg_trade_return_pct"`
	Trades            []Trade       `json:"trades"`
	EquityCurve       []EquityPoint `json:"equity_curve"`
}

// Result is the aggregated outcome of a run.
type Result struct {
	StartDate         string         `json:"start_date"`
	EndDate           string         `json:"end_date"`
	InitialCapital    float64        `json:"initial_capital"`
	FinalEquity       float64        `json:"final_equity"`
	TotalReturnPct    float64        `json:"total_return_pct"`
	MaxDrawdownPct    float64        `json:"max_drawdown_pct"`
	SharpeRatio       float64        `json:"sharpe_ratio"`
	TotalTrades       int            `json:"total_trades"`
	WinRatePct        float64        `json:"win_rate_pct"`
	AvgTradeReturnPct float64        `json:"avg_trade_return_pct"`
	Symbols           []SymbolResult `json:"symbols"`
	EquityCurve       []EquityPoint  `json:"equity_curve"`
}

// SentimentSource answers point-in-time normalized sentiment in [-100, 100].
type SentimentSource interface {
	Normalized(date string) float64
}

// QualitySource answers a per-symbol quality contribution (0 or a bonus).
type QualitySource interface {
	QualityScore(ctx context.Context, symbol string, price float64) float64
}

// Engine runs backtests. Sentiment and quality sources are optional; when
// absent the corresponding score terms fall back to the config defaults.
type Engine struct {
	sentiment SentimentSource
	quality   QualitySource
	log       zerolog.Logger
}

// NewEngine creates a backtest engine.
func NewEngine(sentiment SentimentSource, quality QualitySource, log zerolog.Logger) *Engine {
	return &Engine{
		sentiment: sentiment,
		quality:   quality,
		log:       log.With().Str("service", "backtest").Logger(),
	}
}

// Run simulates the strategy over every series, splitting the initial
// capital equally across symbols, and aggregates the results.
func (e *Engine) Run(ctx context.Context, series []domain.PriceSeries, cfg Config) (*Result, error) {
	if err := validate(series, cfg); err != nil {
		return nil, err
	}

	allocated := cfg.InitialCapital / float64(len(series))

	symbols := make([]SymbolResult, 0, len(series))
	allTrades := make([]Trade, 0)
	combined := make(map[string]float64)

	for _, s := range series {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := e.runSymbol(ctx, s, cfg, allocated)
		if err != nil {
			return nil, err
		}

		symbols = append(symbols, res)
		allTrades = append(allTrades, res.Trades...)
		for _, pt := range res.EquityCurve {
			combined[pt.Date] += pt.Equity
		}
	}

	curve := make([]EquityPoint, 0, len(combined))
	for date, equity := range combined {
		curve = append(curve, EquityPoint{Date: date, Equity: equity})
	}
	sort.Slice(curve, func(i, j int) bool { return curve[i].Date < curve[j].Date })

	finalEquity := 0.0
	for _, sr := range symbols {
		finalEquity += sr.FinalEquity
	}

	values := make([]float64, len(curve))
	for i, pt := range curve {
		values[i] = pt.Equity
	}

	sharpe := 0.0
	if s := formulas.CalculateSharpeRatio(formulas.CalculateReturns(values), cfg.RiskFreeRate, 252); s != nil {
		sharpe = *s
	}

	winRate, avgReturn := tradeStats(allTrades)

	result := &Result{
		StartDate:         firstDate(curve),
		EndDate:           lastDate(curve),
		InitialCapital:    cfg.InitialCapital,
		FinalEquity:       round2(finalEquity),
		TotalReturnPct:    round2((finalEquity - cfg.InitialCapital) / cfg.InitialCapital * 100),
		MaxDrawdownPct:    round2(formulas.MaxDrawdownFromPeak(cfg.InitialCapital, values)),
		SharpeRatio:       round2(sharpe),
		TotalTrades:       len(allTrades),
		WinRatePct:        winRate,
		AvgTradeReturnPct: avgReturn,
		Symbols:           symbols,
		EquityCurve:       curve,
	}

	e.log.Info().
		Int("symbols", len(symbols)).
		Int("trades", result.TotalTrades).
		Float64("total_return_pct", result.TotalReturnPct).
		Float64("max_drawdown_pct", result.MaxDrawdownPct).
		Msg("Backtest complete")

	return result, nil
}

func validate(series []domain.PriceSeries, cfg Config) error {
	if len(series) == 0 {
		return domain.NewValidationError("series", nil, "at least one symbol is required")
	}
	if cfg.InitialCapital <= 0 {
		return domain.NewValidationError("initial_capital", cfg.InitialCapital, "must be positive")
	}
	if cfg.MaxPositionPct <= 0 || cfg.MaxPositionPct > 1 {
		return domain.NewValidationError("max_position_pct", cfg.MaxPositionPct, "must be in (0, 1]")
	}

	return nil
}

func (e *Engine) runSymbol(ctx context.Context, series domain.PriceSeries, cfg Config, allocated float64) (SymbolResult, error) {
	closes := series.Closes()
	dates := series.Dates()
	startIdx := cfg.warmupBars()

	// Too little history yields a zero-trade result with capital unchanged
	// rather than an error.
	if len(closes) <= startIdx {
		e.log.Warn().
			Str("symbol", series.Symbol).
			Int("bars", len(closes)).
			Int("required", startIdx+1).
			Msg("Not enough history for indicator warm-up, skipping")
		return SymbolResult{
			Symbol:           series.Symbol,
			AllocatedCapital: allocated,
			FinalEquity:      round2(allocated),
			Trades:           []Trade{},
			EquityCurve:      []EquityPoint{},
		}, nil
	}

	rsi := formulas.RSI(closes, cfg.RSIPeriod)
	bands := formulas.Bollinger(closes, cfg.BBPeriod, cfg.BBNumStd)

	quality := 0.0
	if cfg.UsePER && e.quality != nil {
		quality = e.quality.QualityScore(ctx, series.Symbol, closes[startIdx])
	}

	capital := allocated
	qty := 0.0
	entryPrice := 0.0
	entryDate := ""
	highestClose := 0.0
	lastExitIdx := math.MinInt32

	trades := make([]Trade, 0)
	curve := make([]EquityPoint, 0, len(closes)-startIdx)

	for i := startIdx; i < len(closes); i++ {
		price := closes[i]

		// Equity is sampled before any trade decision for the bar.
		equity := capital + qty*price
		curve = append(curve, EquityPoint{Date: dates[i], Equity: equity})

		currentRSI := 50.0
		if i < len(rsi) {
			currentRSI = rsi[i]
		}
		upper, lower := price, price
		if i < len(bands.Upper) {
			upper, lower = bands.Upper[i], bands.Lower[i]
		}

		sentimentTerm := cfg.SentimentBias
		if cfg.UseSentiment && e.sentiment != nil {
			sentimentTerm = scoring.SentimentTerm(e.sentiment.Normalized(dates[i]))
		}

		score := scoring.Composite(scoring.Inputs{
			RSI:       currentRSI,
			PercentB:  formulas.PercentB(price, upper, lower),
			Sentiment: sentimentTerm,
			Quality:   quality,
		})
		signal := scoring.ScoreToSignal(score)

		if qty > 0 {
			if price > highestClose {
				highestClose = price
			}
			ret := (price - entryPrice) / entryPrice

			var reason ExitReason
			switch {
			case ret >= cfg.TakeProfit:
				reason = ExitTakeProfit
			case ret <= cfg.StopLoss:
				reason = ExitStopLoss
			case cfg.UseTrailingStop && highestClose > 0 && (price-highestClose)/highestClose <= -cfg.TrailingStop:
				reason = ExitTrailingStop
			case signal.IsSell():
				reason = ExitSignal
			}

			if reason != "" {
				capital += qty * price
				trades = append(trades, sellFill(series.Symbol, dates[i], qty, price, ret, reason))
				qty = 0
				lastExitIdx = i
			}
			continue
		}

		if signal.IsBuy() && i-lastExitIdx >= cfg.MinTradeIntervalDays {
			buyQty := math.Floor(equity * cfg.MaxPositionPct / price)
			if buyQty >= 1 {
				capital -= buyQty * price
				qty = buyQty
				entryPrice = price
				entryDate = dates[i]
				highestClose = price
				trades = append(trades, Trade{
					Symbol:   series.Symbol,
					Date:     entryDate,
					Side:     SideBuy,
					Quantity: buyQty,
					Price:    price,
				})
			}
		}
	}

	// A position still open at the last bar settles at that bar's price.
	if qty > 0 {
		last := len(closes) - 1
		price := closes[last]
		capital += qty * price
		ret := (price - entryPrice) / entryPrice
		trades = append(trades, sellFill(series.Symbol, dates[last], qty, price, ret, ExitEndOfPeriod))
		qty = 0
	}

	winRate, avgReturn := tradeStats(trades)

	return SymbolResult{
		Symbol:            series.Symbol,
		AllocatedCapital:  allocated,
		FinalEquity:       round2(capital),
		TotalReturnPct:    round2((capital - allocated) / allocated * 100),
		TradeCount:        len(trades),
		WinRatePct:        winRate,
		AvgTradeReturnPct: avgReturn,
		Trades:            trades,
		EquityCurve:       curve,
	}, nil
}

func sellFill(symbol, date string, qty, price, ret float64, reason ExitReason) Trade {
	pnl := round2(ret * 100)
	return Trade{
		Symbol:   symbol,
		Date:     date,
		Side:     SideSell,
		Quantity: qty,
		Price:    price,
		PnLPct:   &pnl,
		Reason:   reason,
	}
}

// tradeStats returns the win rate and mean realized return across fills
// that carry a PnL (closes only), both in percent and rounded to 2
// decimals. Zero closes yields zeros.
func tradeStats(trades []Trade) (winRate, avgReturn float64) {
	wins, closes := 0, 0
	sum := 0.0
	for _, t := range trades {
		if t.PnLPct == nil {
			continue
		}
		closes++
		if *t.PnLPct > 0 {
			wins++
		}
		sum += *t.PnLPct
	}
	if closes == 0 {
		return 0, 0
	}

	winRate = round2(float64(wins) / float64(closes) * 100)
	avgReturn = round2(sum / float64(closes))
	return winRate, avgReturn
}

func firstDate(curve []EquityPoint) string {
	if len(curve) == 0 {
		return ""
	}
	return curve[0].Date
}

func lastDate(curve []EquityPoint) string {
	if len(curve) == 0 {
		return ""
	}
	return curve[len(curve)-1].Date
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
