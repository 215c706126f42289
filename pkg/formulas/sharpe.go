package formulas

import (
	"math"
)

// CalculateSharpeRatio calculates the annualized Sharpe ratio from periodic
// returns.
//
//	Sharpe = (mean return - periodic risk-free rate) / stddev of returns
//	Annualized: Sharpe * sqrt(periodsPerYear)
//
// Args:
//
//	returns: Periodic returns (daily, monthly, ...)
//	riskFreeRate: Annual risk-free rate as a decimal (0.02 = 2%)
//	periodsPerYear: 252 for daily data, 12 for monthly
//
// Returns nil when there are fewer than 2 returns or zero variance.
func CalculateSharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear int) *float64 {
	if len(returns) < 2 {
		return nil
	}

	meanReturn := Mean(returns)
	stdDev := StdDev(returns)
	if stdDev == 0 {
		return nil
	}

	periodicRiskFree := riskFreeRate / float64(periodsPerYear)
	sharpe := (meanReturn - periodicRiskFree) / stdDev
	annualized := sharpe * math.Sqrt(float64(periodsPerYear))

	return &annualized
}
