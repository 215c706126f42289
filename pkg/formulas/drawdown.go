package formulas

// MaxDrawdownFromPeak calculates the maximum percentage decline of a value
// series from its running peak, with the peak seeded at initial (so a series
// that starts below its allocated capital already counts as a drawdown).
//
// Returns a positive percentage: 25.0 means a 25% decline from peak.
func MaxDrawdownFromPeak(initial float64, values []float64) float64 {
	maxDD := 0.0
	peak := initial

	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

// CalculateMaxDrawdown calculates the maximum drawdown of a price series with
// the peak seeded at the first value. Returns nil for series shorter than 2.
func CalculateMaxDrawdown(prices []float64) *float64 {
	if len(prices) < 2 {
		return nil
	}

	dd := MaxDrawdownFromPeak(prices[0], prices)
	return &dd
}
