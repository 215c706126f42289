// Package scoring combines technical, sentiment and quality inputs into a
// single composite score and maps it to a trade signal.
package scoring

// SignalType classifies a composite score
type SignalType string

const (
	SignalStrongBuy  SignalType = "strong_buy"
	SignalBuy        SignalType = "buy"
	SignalHold       SignalType = "hold"
	SignalSell       SignalType = "sell"
	SignalStrongSell SignalType = "strong_sell"
)

// Inputs carries the per-bar values feeding the composite score.
type Inputs struct {
	RSI       float64 // 0..100, 50 = neutral
	PercentB  float64 // 0 = lower band, 1 = upper band
	Sentiment float64 // contribution in score points, already scaled
	Quality   float64 // 0 or the quality bonus
}

// Composite blends the inputs into a score in [-100, 100]. Positive values
// favor buying, negative favor selling.
//
// Mean-reversion terms: an oversold RSI and a price near the lower Bollinger
// band both push the score up.
func Composite(in Inputs) float64 {
	rsiScore := clamp((50.0-in.RSI)*0.8, -20, 20)
	bollingerScore := clamp((0.5-in.PercentB)*30.0, -15, 15)

	total := rsiScore + bollingerScore + in.Sentiment + in.Quality
	return clamp(total, -100, 100)
}

// SentimentTerm converts a normalized market sentiment reading in
// [-100, 100] (positive = greed, negative = fear) into a contrarian score
// contribution: greed pushes the score down, fear pushes it up.
func SentimentTerm(normalized float64) float64 {
	return -normalized / 100.0 * 30.0
}

// ScoreToSignal maps a composite score to a trade signal. The buy boundary
// is inclusive so that a maximal pure-technical reading (both clamped terms,
// totalling exactly 35) still triggers an entry.
func ScoreToSignal(score float64) SignalType {
	switch {
	case score >= 70:
		return SignalStrongBuy
	case score >= 35:
		return SignalBuy
	case score <= -60:
		return SignalStrongSell
	case score <= -20:
		return SignalSell
	default:
		return SignalHold
	}
}

// IsBuy reports whether the signal calls for opening a position.
func (s SignalType) IsBuy() bool {
	return s == SignalBuy || s == SignalStrongBuy
}

// IsSell reports whether the signal calls for closing a position.
func (s SignalType) IsSell() bool {
	return s == SignalSell || s == SignalStrongSell
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
