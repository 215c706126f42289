// Package sentiment loads the Fear & Greed index and answers point-in-time
// lookups for the scoring and backtest modules.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Reading is one daily index observation. Value is the raw 0-100 index
// (0 = extreme fear, 100 = extreme greed).
type Reading struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Fetcher retrieves historical index readings. limit <= 0 means all
// available history.
type Fetcher interface {
	Fetch(ctx context.Context, limit int) ([]Reading, error)
}

// Normalize maps a raw 0-100 reading to [-100, 100] centered on neutral 50.
func Normalize(raw float64) float64 {
	return (raw - 50.0) * 2.0
}

// Index answers date lookups against a loaded history.
type Index struct {
	byDate map[string]float64
	dates  []string // sorted ascending, ISO dates
	log    zerolog.Logger
}

// NewIndex builds an Index from readings. Duplicate dates keep the last
// value seen.
func NewIndex(readings []Reading, log zerolog.Logger) *Index {
	byDate := make(map[string]float64, len(readings))
	for _, r := range readings {
		byDate[r.Date] = r.Value
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	return &Index{
		byDate: byDate,
		dates:  dates,
		log:    log.With().Str("service", "sentiment").Logger(),
	}
}

// Load fetches history through the fetcher and builds an Index.
func Load(ctx context.Context, fetcher Fetcher, limit int, log zerolog.Logger) (*Index, error) {
	readings, err := fetcher.Fetch(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fear/greed history: %w", err)
	}

	idx := NewIndex(readings, log)
	idx.log.Info().Int("readings", len(readings)).Msg("Loaded fear/greed history")
	return idx, nil
}

// Raw returns the reading for date, falling back to the nearest earlier
// date. The second return is false when no reading at or before date exists.
func (idx *Index) Raw(date string) (float64, bool) {
	if v, ok := idx.byDate[date]; ok {
		return v, true
	}

	// Nearest earlier date. ISO date strings sort chronologically.
	i := sort.SearchStrings(idx.dates, date)
	if i == 0 {
		return 0, false
	}
	return idx.byDate[idx.dates[i-1]], true
}

// Normalized returns the normalized reading for date, or 0 (neutral) when
// no history covers it.
func (idx *Index) Normalized(date string) float64 {
	raw, ok := idx.Raw(date)
	if !ok {
		return 0.0
	}
	return Normalize(raw)
}

// Len returns the number of distinct dates loaded.
func (idx *Index) Len() int {
	return len(idx.dates)
}

// HTTPFetcher pulls readings from an alternative.me compatible endpoint.
type HTTPFetcher struct {
	url    string
	client *http.Client
}

// NewHTTPFetcher creates a fetcher against the given base URL.
func NewHTTPFetcher(url string) *HTTPFetcher {
	return &HTTPFetcher{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// fngResponse mirrors the alternative.me payload. Values arrive as strings.
type fngResponse struct {
	Data []struct {
		Value     string `json:"value"`
		Timestamp string `json:"timestamp"`
	} `json:"data"`
}

// Fetch retrieves up to limit daily readings, newest first from the API,
// returned in no guaranteed order.
func (f *HTTPFetcher) Fetch(ctx context.Context, limit int) ([]Reading, error) {
	url := fmt.Sprintf("%s?limit=%d&format=json", f.url, max(limit, 0))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fear/greed index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fear/greed endpoint returned status %d", resp.StatusCode)
	}

	var payload fngResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode fear/greed response: %w", err)
	}

	readings := make([]Reading, 0, len(payload.Data))
	for _, entry := range payload.Data {
		value, err := strconv.ParseFloat(entry.Value, 64)
		if err != nil {
			continue
		}
		ts, err := strconv.ParseInt(entry.Timestamp, 10, 64)
		if err != nil {
			continue
		}
		readings = append(readings, Reading{
			Date:  time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Value: value,
		})
	}

	return readings, nil
}
