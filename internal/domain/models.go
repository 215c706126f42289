package domain

// PriceBar is a single daily observation for a symbol. Date is an ISO
// "YYYY-MM-DD" string so that lexicographic order matches chronological
// order.
type PriceBar struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// PriceSeries is the daily price history for one symbol, oldest first.
type PriceSeries struct {
	Symbol string     `json:"symbol"`
	Bars   []PriceBar `json:"bars"`
}

// Closes returns the closing prices in bar order.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, bar := range s.Bars {
		closes[i] = bar.Close
	}
	return closes
}

// Dates returns the bar dates in order.
func (s PriceSeries) Dates() []string {
	dates := make([]string, len(s.Bars))
	for i, bar := range s.Bars {
		dates[i] = bar.Date
	}
	return dates
}

// Position holds a currently-held quantity of a symbol and the price used to
// value it.
type Position struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// MarketValue returns quantity times price.
func (p Position) MarketValue() float64 {
	return p.Quantity * p.Price
}
