package optimizer

import (
	"fmt"
	"strings"
)

// FormatTopN renders the best n combinations as a plain-text table.
func FormatTopN(results []ComboResult, n int) string {
	if n > len(results) {
		n = len(results)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-4s %-8s %-8s %-8s %-8s %-6s %-10s %-8s %-8s\n",
		"#", "stop", "profit", "trail", "interval", "maxpos", "return%", "mdd%", "score")

	for i := 0; i < n; i++ {
		r := results[i]
		trailing := "-"
		if r.Config.UseTrailingStop {
			trailing = fmt.Sprintf("%.2f", r.Config.TrailingStop)
		}
		fmt.Fprintf(&b, "%-4d %-8.2f %-8.2f %-8s %-8d %-6.2f %-10.2f %-8.2f %-8.2f\n",
			i+1, r.Config.StopLoss, r.Config.TakeProfit, trailing,
			r.Config.MinTradeIntervalDays, r.Config.MaxPositionPct,
			r.TotalReturnPct, r.MaxDrawdownPct, r.Score)
	}

	return b.String()
}
