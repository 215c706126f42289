// Package screening scores fundamental quality from price/earnings ratios.
package screening

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// QualityBonus is added to the composite score for undervalued stocks.
const QualityBonus = 25.0

// DefaultSectorPER is the comparison baseline for sectors without a known
// average.
const DefaultSectorPER = 12.0

// StockInfo carries the fundamentals needed for a PER check. Nil pointers
// mean the value is unavailable from the data source.
type StockInfo struct {
	TrailingEPS *float64
	PER         *float64
	Sector      string
}

// InfoFetcher resolves fundamentals for a symbol.
type InfoFetcher interface {
	Info(ctx context.Context, symbol string) (StockInfo, error)
}

// Calculator decides a quality score per symbol: QualityBonus when the
// stock trades below its sector average PER, 0 otherwise (including when
// fundamentals cannot be resolved). Scores are cached for the lifetime of
// the calculator since fundamentals move far slower than prices.
type Calculator struct {
	fetcher      InfoFetcher
	sectorAvgPER map[string]float64
	log          zerolog.Logger

	mu    sync.Mutex
	cache map[string]float64
}

// NewCalculator creates a quality calculator. sectorAvgPER may be nil, in
// which case every sector falls back to DefaultSectorPER.
func NewCalculator(fetcher InfoFetcher, sectorAvgPER map[string]float64, log zerolog.Logger) *Calculator {
	return &Calculator{
		fetcher:      fetcher,
		sectorAvgPER: sectorAvgPER,
		cache:        make(map[string]float64),
		log:          log.With().Str("service", "screening").Logger(),
	}
}

// QualityScore returns the quality contribution for symbol at the given
// reference price.
func (c *Calculator) QualityScore(ctx context.Context, symbol string, price float64) float64 {
	c.mu.Lock()
	if score, ok := c.cache[symbol]; ok {
		c.mu.Unlock()
		return score
	}
	c.mu.Unlock()

	score := c.compute(ctx, symbol, price)

	c.mu.Lock()
	c.cache[symbol] = score
	c.mu.Unlock()

	return score
}

func (c *Calculator) compute(ctx context.Context, symbol string, price float64) float64 {
	if c.fetcher == nil {
		return 0.0
	}

	info, err := c.fetcher.Info(ctx, symbol)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to fetch fundamentals, quality defaults to 0")
		return 0.0
	}

	per := resolvePER(info, price)
	if per == nil {
		c.log.Debug().Str("symbol", symbol).Msg("No usable PER, quality defaults to 0")
		return 0.0
	}

	sectorAvg := DefaultSectorPER
	if avg, ok := c.sectorAvgPER[info.Sector]; ok {
		sectorAvg = avg
	}

	if *per < sectorAvg {
		c.log.Debug().
			Str("symbol", symbol).
			Float64("per", *per).
			Float64("sector_avg", sectorAvg).
			Msg("Undervalued by PER")
		return QualityBonus
	}
	return 0.0
}

// resolvePER prefers a PER derived from trailing EPS, falling back to the
// reported PER. Returns nil when neither produces a positive ratio.
func resolvePER(info StockInfo, price float64) *float64 {
	if info.TrailingEPS != nil && *info.TrailingEPS > 0 && price > 0 {
		per := price / *info.TrailingEPS
		return &per
	}
	if info.PER != nil && *info.PER > 0 {
		return info.PER
	}
	return nil
}

// CachedSymbols returns the symbols with a computed score, sorted.
func (c *Calculator) CachedSymbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	symbols := make([]string, 0, len(c.cache))
	for s := range c.cache {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
