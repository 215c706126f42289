package screening

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFundamentals(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fundamentals.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFileFetcher(t *testing.T) {
	path := writeFundamentals(t, `{
		"sector_avg_per": {"tech": 15},
		"stocks": {
			"005930": {"trailing_eps": 200, "sector": "tech"},
			"035720": {"per": 18.4, "sector": "tech"}
		}
	}`)

	fetcher, err := NewFileFetcher(path)
	require.NoError(t, err)

	info, err := fetcher.Info(context.Background(), "005930")
	assert.NoError(t, err)
	require.NotNil(t, info.TrailingEPS)
	assert.Equal(t, 200.0, *info.TrailingEPS)
	assert.Equal(t, "tech", info.Sector)

	info, err = fetcher.Info(context.Background(), "UNKNOWN")
	assert.NoError(t, err)
	assert.Nil(t, info.TrailingEPS)
	assert.Nil(t, info.PER)

	assert.Equal(t, 15.0, fetcher.SectorAvgPER()["tech"])
}

func TestFileFetcherWithCalculator(t *testing.T) {
	path := writeFundamentals(t, `{
		"sector_avg_per": {"tech": 15},
		"stocks": {"005930": {"trailing_eps": 200, "sector": "tech"}}
	}`)

	fetcher, err := NewFileFetcher(path)
	require.NoError(t, err)

	calc := NewCalculator(fetcher, fetcher.SectorAvgPER(), zerolog.Nop())

	// PER 5 against sector average 15.
	assert.Equal(t, QualityBonus, calc.QualityScore(context.Background(), "005930", 1000))
	assert.Equal(t, 0.0, calc.QualityScore(context.Background(), "UNKNOWN", 1000))
}

func TestFileFetcherBadFile(t *testing.T) {
	_, err := NewFileFetcher(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := writeFundamentals(t, "not json")
	_, err = NewFileFetcher(path)
	assert.Error(t, err)
}
