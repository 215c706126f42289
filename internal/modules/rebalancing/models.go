package rebalancing

// Holding is a current position used as planner input. New symbols that are
// not yet held can be passed with a zero quantity and a reference price.
type Holding struct {
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// Request is a rebalance planning request. Zero-valued settings fall back to
// the server's portfolio defaults.
type Request struct {
	Holdings map[string]Holding `json:"holdings"`
	Cash     float64            `json:"cash"`
	Targets  map[string]float64 `json:"targets"` // symbol -> target weight in percent

	Mode              string  `json:"mode"` // "threshold" or "proportional"
	ThresholdPct      float64 `json:"threshold_pct"`
	MinTradeAmount    float64 `json:"min_trade_amount"`
	MaxSingleOrderPct float64 `json:"max_single_order_pct"`
}

// OrderSide is the direction of a planned order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// Order is one planned trade. TargetValue is the monetary value the position
// should hold after rebalancing; Value is what this order actually moves.
type Order struct {
	Symbol        string    `json:"symbol"`
	Side          OrderSide `json:"side"`
	Quantity      float64   `json:"quantity"`
	Price         float64   `json:"price"`
	Value         float64   `json:"value"`
	TargetValue   float64   `json:"target_value"`
	CurrentWeight float64   `json:"current_weight_pct"`
	TargetWeight  float64   `json:"target_weight_pct"`
	Reason        string    `json:"reason"`
}

// SkipReason explains why a symbol produced no order.
type SkipReason string

const (
	SkipThreshold    SkipReason = "within_threshold"
	SkipMinAmount    SkipReason = "below_min_trade_amount"
	SkipMissingPrice SkipReason = "missing_price"
	SkipZeroQuantity SkipReason = "zero_quantity"
)

// SkippedStock records a symbol the planner deliberately left alone.
type SkippedStock struct {
	Symbol  string     `json:"symbol"`
	Reason  SkipReason `json:"reason"`
	DiffPct float64    `json:"diff_pct"`
}

// Summary totals a plan.
type Summary struct {
	TotalEquity    float64 `json:"total_equity"`
	CashBefore     float64 `json:"cash_before"`
	CashAfter      float64 `json:"cash_after"`
	BuyCount       int     `json:"buy_count"`
	SellCount      int     `json:"sell_count"`
	TotalBuyValue  float64 `json:"total_buy_value"`
	TotalSellValue float64 `json:"total_sell_value"`
}

// Plan is the planner output. Sell orders are listed (and meant to be
// executed) before buys so their proceeds fund the purchases. The allocation
// maps cover every weighted symbol, including ones no order touches.
type Plan struct {
	SellOrders         []Order            `json:"sell_orders"`
	BuyOrders          []Order            `json:"buy_orders"`
	Skipped            []SkippedStock     `json:"skipped_stocks"`
	CurrentAllocations map[string]float64 `json:"current_allocations"`
	TargetAllocations  map[string]float64 `json:"target_allocations"`
	Summary            Summary            `json:"summary"`
}
