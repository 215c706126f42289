package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DatabasePath     string
	LogLevel         string
	Port             int
	DevMode          bool
	FearGreedURL     string
	FundamentalsPath string
	RiskFreeRate     float64
	RebalanceEnabled bool
	RebalanceCron    string

	Portfolio PortfolioSettings
}

// PortfolioSettings holds the rebalancing defaults used when a request does
// not override them.
type PortfolioSettings struct {
	TargetAllocations map[string]float64 // symbol -> target weight in percent
	RebalanceMode     string             // "threshold" or "proportional"
	ThresholdPct      float64
	MinTradeAmount    float64
	MaxSingleOrderPct float64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnvAsInt("PORT", 8001),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		DatabasePath:     getEnv("DATABASE_PATH", "./data/stockpilot.db"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		FearGreedURL:     getEnv("FEAR_GREED_URL", "https://api.alternative.me/fng/"),
		FundamentalsPath: getEnv("FUNDAMENTALS_PATH", ""),
		RiskFreeRate:     getEnvAsFloat("RISK_FREE_RATE", 0.02),
		RebalanceEnabled: getEnvAsBool("REBALANCE_JOB_ENABLED", false),
		RebalanceCron:    getEnv("REBALANCE_JOB_SCHEDULE", "0 0 18 * * MON-FRI"),
		Portfolio: PortfolioSettings{
			TargetAllocations: getEnvAsAllocations("PORTFOLIO_TARGETS"),
			RebalanceMode:     getEnv("PORTFOLIO_REBALANCE_MODE", "threshold"),
			ThresholdPct:      getEnvAsFloat("PORTFOLIO_THRESHOLD_PCT", 5.0),
			MinTradeAmount:    getEnvAsFloat("PORTFOLIO_MIN_TRADE_AMOUNT", 100000),
			MaxSingleOrderPct: getEnvAsFloat("PORTFOLIO_MAX_SINGLE_ORDER_PCT", 10.0),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}

	switch c.Portfolio.RebalanceMode {
	case "threshold", "proportional":
	default:
		return fmt.Errorf("PORTFOLIO_REBALANCE_MODE must be threshold or proportional, got %q", c.Portfolio.RebalanceMode)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvAsAllocations parses "SYMBOL:WEIGHT,SYMBOL:WEIGHT" pairs, e.g.
// "005930:40,035720:30,000660:30". Malformed entries are skipped.
func getEnvAsAllocations(key string) map[string]float64 {
	allocations := make(map[string]float64)
	value := os.Getenv(key)
	if value == "" {
		return allocations
	}

	for _, pair := range strings.Split(value, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			continue
		}
		weight, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			continue
		}
		allocations[parts[0]] = weight
	}

	return allocations
}
