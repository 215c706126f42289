package backtest

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stockpilot/stockpilot/internal/database"
)

// RunRecord is a persisted backtest run.
type RunRecord struct {
	ID             int64    `json:"id"`
	CreatedAt      string   `json:"created_at"`
	Symbols        []string `json:"symbols"`
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	Config         Config   `json:"config"`
	Result         *Result  `json:"result,omitempty"`
	TotalReturnPct float64  `json:"total_return_pct"`
	MaxDrawdownPct float64  `json:"max_drawdown_pct"`
	WinRatePct     float64  `json:"win_rate_pct"`
}

// Repository stores backtest runs in SQLite.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a backtest run repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "backtest_runs").Logger(),
	}
}

// Save persists a completed run and returns its id.
func (r *Repository) Save(cfg Config, res *Result) (int64, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config: %w", err)
	}
	resJSON, err := json.Marshal(res)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal result: %w", err)
	}

	symbols := make([]string, len(res.Symbols))
	for i, s := range res.Symbols {
		symbols[i] = s.Symbol
	}

	result, err := r.db.Exec(`
		INSERT INTO backtest_runs
			(symbols, start_date, end_date, config_json, result_json,
			 total_return_pct, max_drawdown_pct, win_rate_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.Join(symbols, ","), res.StartDate, res.EndDate,
		string(cfgJSON), string(resJSON),
		res.TotalReturnPct, res.MaxDrawdownPct, res.WinRatePct,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert backtest run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id: %w", err)
	}

	r.log.Debug().Int64("id", id).Msg("Saved backtest run")
	return id, nil
}

// List returns recent runs, newest first, without the full result payload.
func (r *Repository) List(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(`
		SELECT id, created_at, symbols, start_date, end_date, config_json,
		       total_return_pct, max_drawdown_pct, win_rate_pct
		FROM backtest_runs
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest runs: %w", err)
	}
	defer rows.Close()

	records := make([]RunRecord, 0, limit)
	for rows.Next() {
		var rec RunRecord
		var symbols, cfgJSON string
		if err := rows.Scan(&rec.ID, &rec.CreatedAt, &symbols, &rec.StartDate, &rec.EndDate,
			&cfgJSON, &rec.TotalReturnPct, &rec.MaxDrawdownPct, &rec.WinRatePct); err != nil {
			return nil, fmt.Errorf("failed to scan backtest run: %w", err)
		}
		if symbols != "" {
			rec.Symbols = strings.Split(symbols, ",")
		}
		if err := json.Unmarshal([]byte(cfgJSON), &rec.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config for run %d: %w", rec.ID, err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Get returns one run including its full result, or nil when not found.
func (r *Repository) Get(id int64) (*RunRecord, error) {
	row := r.db.QueryRow(`
		SELECT id, created_at, symbols, start_date, end_date, config_json, result_json,
		       total_return_pct, max_drawdown_pct, win_rate_pct
		FROM backtest_runs
		WHERE id = ?`, id)

	var rec RunRecord
	var symbols, cfgJSON, resJSON string
	err := row.Scan(&rec.ID, &rec.CreatedAt, &symbols, &rec.StartDate, &rec.EndDate,
		&cfgJSON, &resJSON, &rec.TotalReturnPct, &rec.MaxDrawdownPct, &rec.WinRatePct)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest run %d: %w", id, err)
	}

	if symbols != "" {
		rec.Symbols = strings.Split(symbols, ",")
	}
	if err := json.Unmarshal([]byte(cfgJSON), &rec.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config for run %d: %w", id, err)
	}
	rec.Result = &Result{}
	if err := json.Unmarshal([]byte(resJSON), rec.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result for run %d: %w", id, err)
	}

	return &rec, nil
}
