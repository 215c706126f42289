package backtest

import (
	"fmt"
	"sort"
	"strings"
)

// FormatReport renders a plain-text summary of a run, suitable for logs or
// a CLI.
func FormatReport(res *Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Backtest %s .. %s\n", res.StartDate, res.EndDate)
	fmt.Fprintf(&b, "Initial capital: %.0f\n", res.InitialCapital)
	fmt.Fprintf(&b, "Final equity:    %.2f (%.2f%%)\n", res.FinalEquity, res.TotalReturnPct)
	fmt.Fprintf(&b, "Max drawdown:    %.2f%%\n", res.MaxDrawdownPct)
	fmt.Fprintf(&b, "Sharpe ratio:    %.2f\n", res.SharpeRatio)
	fmt.Fprintf(&b, "Trades: %d, win rate %.2f%%, avg return %.2f%%\n",
		res.TotalTrades, res.WinRatePct, res.AvgTradeReturnPct)

	b.WriteString("\nPer symbol:\n")
	for _, s := range res.Symbols {
		fmt.Fprintf(&b, "  %-10s return %8.2f%%  trades %3d  win rate %6.2f%%\n",
			s.Symbol, s.TotalReturnPct, s.TradeCount, s.WinRatePct)
	}

	monthly := MonthlyReturns(res.EquityCurve)
	if len(monthly) > 0 {
		b.WriteString("\nMonthly returns:\n")
		months := make([]string, 0, len(monthly))
		for m := range monthly {
			months = append(months, m)
		}
		sort.Strings(months)
		for _, m := range months {
			fmt.Fprintf(&b, "  %s  %7.2f%%\n", m, monthly[m])
		}
	}

	return b.String()
}

// MonthlyReturns computes month-over-month percentage changes of month-end
// equity, keyed by "YYYY-MM". The first month is measured against its own
// first sample.
func MonthlyReturns(curve []EquityPoint) map[string]float64 {
	if len(curve) == 0 {
		return map[string]float64{}
	}

	// Last equity sample per month, in curve order.
	monthEnd := make(map[string]float64)
	months := make([]string, 0)
	for _, pt := range curve {
		if len(pt.Date) < 7 {
			continue
		}
		month := pt.Date[:7]
		if _, seen := monthEnd[month]; !seen {
			months = append(months, month)
		}
		monthEnd[month] = pt.Equity
	}

	returns := make(map[string]float64, len(months))
	prev := curve[0].Equity
	for _, m := range months {
		end := monthEnd[m]
		if prev > 0 {
			returns[m] = round2((end - prev) / prev * 100)
		}
		prev = end
	}

	return returns
}
