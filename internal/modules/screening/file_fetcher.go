package screening

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// fundamentalsFile is the on-disk format for a fundamentals snapshot:
//
//	{
//	  "sector_avg_per": {"tech": 15.2},
//	  "stocks": {
//	    "005930": {"trailing_eps": 5320, "sector": "tech"},
//	    "035720": {"per": 18.4, "sector": "tech"}
//	  }
//	}
type fundamentalsFile struct {
	SectorAvgPER map[string]float64   `json:"sector_avg_per"`
	Stocks       map[string]fileStock `json:"stocks"`
}

type fileStock struct {
	TrailingEPS *float64 `json:"trailing_eps"`
	PER         *float64 `json:"per"`
	Sector      string   `json:"sector"`
}

// FileFetcher serves fundamentals from a JSON snapshot on disk.
type FileFetcher struct {
	stocks       map[string]fileStock
	sectorAvgPER map[string]float64
}

// NewFileFetcher loads the snapshot at path.
func NewFileFetcher(path string) (*FileFetcher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fundamentals file: %w", err)
	}

	var file fundamentalsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse fundamentals file: %w", err)
	}

	return &FileFetcher{
		stocks:       file.Stocks,
		sectorAvgPER: file.SectorAvgPER,
	}, nil
}

// Info returns the snapshot entry for symbol. Unknown symbols yield an empty
// StockInfo, which the calculator scores as 0.
func (f *FileFetcher) Info(_ context.Context, symbol string) (StockInfo, error) {
	stock, ok := f.stocks[symbol]
	if !ok {
		return StockInfo{}, nil
	}
	return StockInfo{
		TrailingEPS: stock.TrailingEPS,
		PER:         stock.PER,
		Sector:      stock.Sector,
	}, nil
}

// SectorAvgPER returns the snapshot's sector averages for the calculator.
func (f *FileFetcher) SectorAvgPER() map[string]float64 {
	return f.sectorAvgPER
}
