package rebalancing

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stockpilot/stockpilot/internal/database"
)

// PlanRecord is a persisted plan with the request that produced it.
type PlanRecord struct {
	ID        int64    `json:"id"`
	CreatedAt string   `json:"created_at"`
	Request   *Request `json:"request"`
	Plan      *Plan    `json:"plan"`
}

// Repository stores rebalance plans in SQLite. The request is stored
// alongside the plan so scheduled jobs can regenerate a fresh plan from the
// most recent inputs.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a rebalance plan repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "rebalance_plans").Logger(),
	}
}

// Save persists a plan and its request, returning the record id.
func (r *Repository) Save(req Request, plan *Plan) (int64, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal plan: %w", err)
	}

	result, err := r.db.Exec(`
		INSERT INTO rebalance_plans (request_json, plan_json, buy_count, sell_count)
		VALUES (?, ?, ?, ?)`,
		string(reqJSON), string(planJSON),
		plan.Summary.BuyCount, plan.Summary.SellCount,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert rebalance plan: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id: %w", err)
	}

	r.log.Debug().Int64("id", id).Msg("Saved rebalance plan")
	return id, nil
}

// LatestRequest returns the request behind the most recent plan, or nil
// when no plan has been stored yet.
func (r *Repository) LatestRequest() (*Request, error) {
	row := r.db.QueryRow(`
		SELECT request_json FROM rebalance_plans
		ORDER BY id DESC
		LIMIT 1`)

	var reqJSON string
	err := row.Scan(&reqJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest rebalance request: %w", err)
	}

	var req Request
	if err := json.Unmarshal([]byte(reqJSON), &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rebalance request: %w", err)
	}
	return &req, nil
}

// List returns recent plans, newest first.
func (r *Repository) List(limit int) ([]PlanRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(`
		SELECT id, created_at, request_json, plan_json
		FROM rebalance_plans
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rebalance plans: %w", err)
	}
	defer rows.Close()

	records := make([]PlanRecord, 0, limit)
	for rows.Next() {
		var rec PlanRecord
		var reqJSON, planJSON string
		if err := rows.Scan(&rec.ID, &rec.CreatedAt, &reqJSON, &planJSON); err != nil {
			return nil, fmt.Errorf("failed to scan rebalance plan: %w", err)
		}
		rec.Request = &Request{}
		if err := json.Unmarshal([]byte(reqJSON), rec.Request); err != nil {
			return nil, fmt.Errorf("failed to unmarshal request for plan %d: %w", rec.ID, err)
		}
		rec.Plan = &Plan{}
		if err := json.Unmarshal([]byte(planJSON), rec.Plan); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan %d: %w", rec.ID, err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
