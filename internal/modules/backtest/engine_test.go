package backtest

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/stockpilot/stockpilot/internal/domain"
)

// testConfig shortens indicator warm-up so scenarios stay small. A fixed
// sentiment bias of +10 lets technical dips push the score past the buy
// threshold, which pure technicals alone cannot reach.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialCapital = 1_000_000
	cfg.RSIPeriod = 2
	cfg.BBPeriod = 3
	cfg.SentimentBias = 10
	return cfg
}

func seriesOf(symbol string, closes ...float64) domain.PriceSeries {
	bars := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = domain.PriceBar{Date: fmt.Sprintf("2024-01-%02d", i+1), Close: c}
	}
	return domain.PriceSeries{Symbol: symbol, Bars: bars}
}

func TestRunFlatMarketNoTrades(t *testing.T) {
	engine := NewEngine(nil, nil, zerolog.Nop())
	cfg := testConfig()

	res, err := engine.Run(context.Background(),
		[]domain.PriceSeries{seriesOf("FLAT", 100, 100, 100, 100, 100, 100, 100, 100)}, cfg)

	assert.NoError(t, err)
	assert.Equal(t, 0, res.TotalTrades)
	assert.InDelta(t, cfg.InitialCapital, res.FinalEquity, 1e-6)
	assert.Equal(t, 0.0, res.TotalReturnPct)
	assert.Equal(t, 0.0, res.MaxDrawdownPct)
}

func TestRunDipAndRecoveryTakesProfit(t *testing.T) {
	engine := NewEngine(nil, nil, zerolog.Nop())
	cfg := testConfig()

	// Dip to 90 triggers a buy, the climb to 104 crosses the 15% take-profit.
	series := seriesOf("DIP", 100, 100, 100, 100, 90, 88, 96, 104, 110)

	res, err := engine.Run(context.Background(), []domain.PriceSeries{series}, cfg)

	assert.NoError(t, err)
	assert.Equal(t, 2, res.TotalTrades) // one buy fill, one sell fill

	buy := res.Symbols[0].Trades[0]
	assert.Equal(t, SideBuy, buy.Side)
	assert.Equal(t, "2024-01-05", buy.Date)
	assert.Equal(t, 90.0, buy.Price)
	// floor(1,000,000 * 0.2 / 90)
	assert.Equal(t, 2222.0, buy.Quantity)
	assert.Nil(t, buy.PnLPct)

	sell := res.Symbols[0].Trades[1]
	assert.Equal(t, SideSell, sell.Side)
	assert.Equal(t, ExitTakeProfit, sell.Reason)
	assert.Equal(t, "2024-01-08", sell.Date)
	assert.Equal(t, 104.0, sell.Price)
	assert.InDelta(t, 15.56, *sell.PnLPct, 1e-9)

	// Cash conservation: final equity is exactly initial plus trade PnL.
	assert.InDelta(t, 1_000_000+2222*(104.0-90.0), res.FinalEquity, 1e-6)
	assert.Equal(t, 100.0, res.WinRatePct)
}

func TestRunCrashHitsStopLoss(t *testing.T) {
	engine := NewEngine(nil, nil, zerolog.Nop())
	cfg := testConfig()

	// Buy at 90, next bar 80 is -11.1%, past the -7% stop.
	series := seriesOf("CRASH", 100, 100, 100, 100, 90, 80, 95, 110, 112)

	res, err := engine.Run(context.Background(), []domain.PriceSeries{series}, cfg)

	assert.NoError(t, err)
	assert.Equal(t, 2, res.TotalTrades)

	sell := res.Symbols[0].Trades[1]
	assert.Equal(t, ExitStopLoss, sell.Reason)
	assert.InDelta(t, -11.11, *sell.PnLPct, 1e-9)

	// 2222 shares lose 10 each.
	assert.InDelta(t, 1_000_000-2222*10.0, res.FinalEquity, 1e-6)
	assert.Equal(t, 0.0, res.WinRatePct)
	assert.Greater(t, res.MaxDrawdownPct, 0.0)
}

func TestRunOpenPositionForcedClosed(t *testing.T) {
	engine := NewEngine(nil, nil, zerolog.Nop())
	cfg := testConfig()

	// Recovery stops short of the take-profit so the position survives to
	// the last bar.
	series := seriesOf("OPEN", 100, 100, 100, 100, 90, 88, 96, 100)

	res, err := engine.Run(context.Background(), []domain.PriceSeries{series}, cfg)

	assert.NoError(t, err)
	assert.Equal(t, 2, res.TotalTrades)

	sell := res.Symbols[0].Trades[1]
	assert.Equal(t, ExitEndOfPeriod, sell.Reason)
	assert.Equal(t, "2024-01-08", sell.Date)
	assert.InDelta(t, 11.11, *sell.PnLPct, 1e-9)
}

type stubSentiment struct{ normalized float64 }

func (s stubSentiment) Normalized(string) float64 { return s.normalized }

func TestRunSentimentSourceDrivesEntries(t *testing.T) {
	// Extreme fear (-80 normalized) contributes +24, replacing the fixed
	// bias as the term that pushes dips over the buy threshold.
	engine := NewEngine(stubSentiment{normalized: -80}, nil, zerolog.Nop())
	cfg := testConfig()
	cfg.SentimentBias = 0
	cfg.UseSentiment = true

	series := seriesOf("FEAR", 100, 100, 100, 100, 90, 80, 95, 110, 112)

	res, err := engine.Run(context.Background(), []domain.PriceSeries{series}, cfg)

	assert.NoError(t, err)
	assert.Equal(t, 2, res.TotalTrades)
	assert.Equal(t, ExitStopLoss, res.Symbols[0].Trades[1].Reason)
}

type stubQuality struct{ score float64 }

func (s stubQuality) QualityScore(context.Context, string, float64) float64 { return s.score }

func TestRunQualityBonusDrivesEntries(t *testing.T) {
	engine := NewEngine(nil, stubQuality{score: 25}, zerolog.Nop())
	cfg := testConfig()
	cfg.SentimentBias = 0
	cfg.UsePER = true

	series := seriesOf("VALUE", 100, 100, 100, 100, 90, 80, 95, 110, 112)

	res, err := engine.Run(context.Background(), []domain.PriceSeries{series}, cfg)

	assert.NoError(t, err)
	assert.Equal(t, 2, res.TotalTrades)
}

func TestRunAggregatesAcrossSymbols(t *testing.T) {
	engine := NewEngine(nil, nil, zerolog.Nop())
	cfg := testConfig()
	cfg.InitialCapital = 2_000_000

	flat := seriesOf("FLAT", 100, 100, 100, 100, 100, 100, 100, 100, 100)
	dip := seriesOf("DIP", 100, 100, 100, 100, 90, 88, 96, 104, 110)

	res, err := engine.Run(context.Background(), []domain.PriceSeries{flat, dip}, cfg)

	assert.NoError(t, err)
	assert.Len(t, res.Symbols, 2)
	// Equal split: each symbol starts from 1,000,000.
	assert.Equal(t, 1_000_000.0, res.Symbols[0].AllocatedCapital)
	assert.Equal(t, 2, res.TotalTrades)
	assert.InDelta(t, 2_000_000+2222*14.0, res.FinalEquity, 1e-6)

	// Combined curve sums both symbols on shared dates.
	assert.Equal(t, "2024-01-04", res.StartDate)
	assert.Equal(t, "2024-01-09", res.EndDate)
	assert.InDelta(t, 2_000_000.0, res.EquityCurve[0].Equity, 1e-6)
}

func TestRunValidation(t *testing.T) {
	engine := NewEngine(nil, nil, zerolog.Nop())

	var verr *domain.ValidationError

	_, err := engine.Run(context.Background(), nil, testConfig())
	assert.ErrorAs(t, err, &verr)

	cfg := testConfig()
	cfg.InitialCapital = 0
	_, err = engine.Run(context.Background(), []domain.PriceSeries{seriesOf("A", 1, 2, 3, 4, 5)}, cfg)
	assert.ErrorAs(t, err, &verr)
}

func TestRunShortSeriesDegrades(t *testing.T) {
	engine := NewEngine(nil, nil, zerolog.Nop())
	cfg := testConfig()
	cfg.InitialCapital = 2_000_000

	// One symbol lacks warm-up history; the portfolio still succeeds with
	// that symbol's capital untouched.
	short := seriesOf("SHORT", 100, 101)
	dip := seriesOf("DIP", 100, 100, 100, 100, 90, 88, 96, 104, 110)

	res, err := engine.Run(context.Background(), []domain.PriceSeries{short, dip}, cfg)

	assert.NoError(t, err)
	assert.Len(t, res.Symbols, 2)
	assert.Equal(t, 0, res.Symbols[0].TradeCount)
	assert.Equal(t, 1_000_000.0, res.Symbols[0].FinalEquity)
	assert.Equal(t, 0.0, res.Symbols[0].TotalReturnPct)
	assert.Empty(t, res.Symbols[0].EquityCurve)
	assert.Equal(t, 2, res.TotalTrades)
}

// vShape is 60 daily bars: a plateau, a sharp capitulation to 60, and a
// steady recovery past the old high.
func vShape(symbol string) domain.PriceSeries {
	closes := make([]float64, 0, 60)
	for i := 0; i < 24; i++ {
		closes = append(closes, 100)
	}
	closes = append(closes, 92, 84, 76, 68, 60)
	for i := 1; i <= 31; i++ {
		closes = append(closes, 60+float64(i)*5)
	}

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = domain.PriceBar{Date: start.AddDate(0, 0, i).Format("2006-01-02"), Close: c}
	}
	return domain.PriceSeries{Symbol: symbol, Bars: bars}
}

func TestRunVShapeDefaultConfig(t *testing.T) {
	engine := NewEngine(nil, nil, zerolog.Nop())

	// Full default parameters (RSI 14, Bollinger 20/2, no sentiment bias):
	// the capitulation drives RSI to the floor and price under the lower
	// band, which is enough for an entry on technicals alone.
	cfg := DefaultConfig()
	cfg.InitialCapital = 1_000_000

	res, err := engine.Run(context.Background(), []domain.PriceSeries{vShape("VEE")}, cfg)

	assert.NoError(t, err)

	buys, sells := 0, 0
	for _, trade := range res.Symbols[0].Trades {
		switch trade.Side {
		case SideBuy:
			buys++
		case SideSell:
			sells++
		}
	}
	assert.GreaterOrEqual(t, buys, 1)
	assert.Equal(t, buys, sells) // every position resolves to cash

	assert.False(t, math.IsNaN(res.TotalReturnPct))
	assert.False(t, math.IsInf(res.TotalReturnPct, 0))
}

func TestRunVShapeTwoSymbolPortfolio(t *testing.T) {
	engine := NewEngine(nil, nil, zerolog.Nop())

	cfg := DefaultConfig()
	cfg.InitialCapital = 2_000_000

	res, err := engine.Run(context.Background(),
		[]domain.PriceSeries{vShape("AAA"), vShape("BBB")}, cfg)

	assert.NoError(t, err)
	assert.Len(t, res.Symbols, 2)
	for _, sr := range res.Symbols {
		assert.Equal(t, 1_000_000.0, sr.AllocatedCapital)
	}

	// Identical series, identical outcomes.
	assert.Equal(t, res.Symbols[0].FinalEquity, res.Symbols[1].FinalEquity)
}

func TestMonthlyReturns(t *testing.T) {
	curve := []EquityPoint{
		{Date: "2024-01-30", Equity: 100},
		{Date: "2024-01-31", Equity: 110},
		{Date: "2024-02-01", Equity: 121},
	}

	monthly := MonthlyReturns(curve)

	assert.InDelta(t, 10.0, monthly["2024-01"], 1e-9)
	assert.InDelta(t, 10.0, monthly["2024-02"], 1e-9)
}
