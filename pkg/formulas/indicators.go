package formulas

import (
	"github.com/markcheno/go-talib"
)

// SMA calculates a simple moving average series.
//
// The result has the same length as prices; the first window-1 entries are
// zero, marking indices where the average is not yet computable. Returns an
// empty slice when there are fewer prices than the window.
//
// Args:
//
//	prices: Closing prices, oldest first
//	window: Averaging period
func SMA(prices []float64, window int) []float64 {
	if window < 1 || len(prices) < window {
		return []float64{}
	}
	return talib.Sma(prices, window)
}

// EMA calculates an exponential moving average series.
//
// Same length and zero-padding convention as SMA. The first valid value (at
// index window-1) is the simple average of the first window prices; each
// subsequent value is prev + (price - prev) * 2/(window+1).
func EMA(prices []float64, window int) []float64 {
	if window < 1 || len(prices) < window {
		return []float64{}
	}
	return talib.Ema(prices, window)
}

// RSI calculates the Relative Strength Index series using Wilder smoothing.
//
// RSI = 100 - 100/(1+RS), RS = average gain / average loss. The first period
// averages are simple means; later ones use Wilder's exponential update.
//
// The result has the same length as prices with the first period entries
// zero. The function does NOT substitute a neutral value for the warm-up
// region: callers that index into the series before the first valid entry
// are expected to fall back to 50 themselves. Returns an empty slice when
// there are fewer than period+1 prices.
func RSI(prices []float64, period int) []float64 {
	if period < 1 || len(prices) < period+1 {
		return []float64{}
	}

	result := make([]float64, period, len(prices))

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	result = append(result, rsiValue(avgGain, avgLoss))

	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else if change < 0 {
			loss = -change
		}

		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)

		result = append(result, rsiValue(avgGain, avgLoss))
	}

	return result
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// BollingerBands holds the three parallel band series.
type BollingerBands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger calculates Bollinger Bands (trailing SMA middle, numStd trailing
// standard deviations for the envelope).
//
// All three series have the same length as prices. Indices before the first
// valid window carry the raw price in every band, so the band width there is
// zero and a downstream percent-B computation degrades to the 0.5 midpoint.
// Returns empty series when there are fewer prices than the period.
func Bollinger(prices []float64, period int, numStd float64) BollingerBands {
	if period < 1 || len(prices) < period {
		return BollingerBands{Upper: []float64{}, Middle: []float64{}, Lower: []float64{}}
	}

	upper, middle, lower := talib.BBands(prices, period, numStd, numStd, talib.SMA)

	// Warm-up entries collapse to the raw price instead of zero.
	for i := 0; i < period-1 && i < len(prices); i++ {
		upper[i] = prices[i]
		middle[i] = prices[i]
		lower[i] = prices[i]
	}

	return BollingerBands{Upper: upper, Middle: middle, Lower: lower}
}

// PercentB calculates the normalized position of price within a band:
// 0 at the lower band, 1 at the upper band. Falls back to the 0.5 midpoint
// when the band has no width.
func PercentB(price, upper, lower float64) float64 {
	width := upper - lower
	if width <= 0 {
		return 0.5
	}
	return (price - lower) / width
}
