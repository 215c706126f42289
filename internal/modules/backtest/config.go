package backtest

// Config controls a backtest run. Zero values are not meaningful for most
// fields; start from DefaultConfig and override.
type Config struct {
	InitialCapital float64 `json:"initial_capital"`
	TakeProfit     float64 `json:"take_profit"` // exit when return >= this, e.g. 0.15
	StopLoss       float64 `json:"stop_loss"`   // exit when return <= this, e.g. -0.07
	MaxPositionPct float64 `json:"max_position_pct"`

	// BuyThreshold and SellThreshold are enumerated by the optimizer but do
	// not gate entries yet; the signal mapping in the scoring package does.
	BuyThreshold  float64 `json:"buy_threshold"`
	SellThreshold float64 `json:"sell_threshold"`

	UseTrailingStop bool    `json:"use_trailing_stop"`
	TrailingStop    float64 `json:"trailing_stop"` // drop from highest close, e.g. 0.10

	MinTradeIntervalDays int `json:"min_trade_interval_days"`

	UseSentiment  bool    `json:"use_sentiment"`
	SentimentBias float64 `json:"sentiment_bias"` // fixed term when UseSentiment is false
	UsePER        bool    `json:"use_per"`

	RSIPeriod    int     `json:"rsi_period"`
	BBPeriod     int     `json:"bb_period"`
	BBNumStd     float64 `json:"bb_num_std"`
	RiskFreeRate float64 `json:"risk_free_rate"`
}

// DefaultConfig returns the standard backtest parameters.
func DefaultConfig() Config {
	return Config{
		InitialCapital:       10_000_000,
		TakeProfit:           0.15,
		StopLoss:             -0.07,
		MaxPositionPct:       0.2,
		BuyThreshold:         35,
		SellThreshold:        -20,
		UseTrailingStop:      false,
		TrailingStop:         0.10,
		MinTradeIntervalDays: 5,
		UseSentiment:         false,
		SentimentBias:        0,
		UsePER:               false,
		RSIPeriod:            14,
		BBPeriod:             20,
		BBNumStd:             2.0,
		RiskFreeRate:         0.02,
	}
}

// warmupBars is the first index with both indicators valid.
func (c Config) warmupBars() int {
	rsiReady := c.RSIPeriod + 1
	if c.BBPeriod > rsiReady {
		return c.BBPeriod
	}
	return rsiReady
}
