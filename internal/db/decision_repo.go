package db

import (
	"context"
	"encoding/json"

	"courtwind/internal/types"
)

// Bounds for ListRecent.
const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 200
)

// decisionLogDDL creates the decision log table and its lookup index.
const decisionLogDDL = `
CREATE TABLE IF NOT EXISTS decision_log (
	id                TEXT PRIMARY KEY,
	location_id       TEXT NOT NULL,
	issued_at         TIMESTAMPTZ NOT NULL,
	can_play          BOOLEAN NOT NULL,
	violated_horizons INTEGER[] NOT NULL DEFAULT '{}',
	reason            TEXT NOT NULL,
	median_max_m_s    DOUBLE PRECISION NOT NULL,
	tail_max_m_s      DOUBLE PRECISION NOT NULL,
	forecasts         JSONB NOT NULL,
	model             TEXT NOT NULL,
	fallback_reason   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_decision_log_location_issued
	ON decision_log (location_id, issued_at DESC);`

// DecisionLogRepository persists every issued decision.
type DecisionLogRepository struct {
	db DBTX
}

// NewDecisionLogRepository creates a DecisionLogRepository.
func NewDecisionLogRepository(db DBTX) *DecisionLogRepository {
	return &DecisionLogRepository{db: db}
}

// EnsureSchema creates the decision_log table if it does not exist.
func (r *DecisionLogRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, decisionLogDDL); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create decision_log schema", err)
	}
	return nil
}

// Record inserts rec. Re-recording the same ID is a no-op.
func (r *DecisionLogRepository) Record(ctx context.Context, rec *types.DecisionRecord) error {
	forecasts, err := json.Marshal(rec.Forecasts)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal forecasts", err)
	}
	violated := make([]int32, len(rec.ViolatedHorizons))
	for i, h := range rec.ViolatedHorizons {
		violated[i] = int32(h)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO decision_log (
			id, location_id, issued_at, can_play, violated_horizons, reason,
			median_max_m_s, tail_max_m_s, forecasts, model, fallback_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.LocationID, rec.IssuedAt, rec.CanPlay, violated, rec.Reason,
		rec.MedianMax, rec.TailMax, forecasts, rec.ModelName, rec.FallbackReason,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record decision", err)
	}
	return nil
}

// ListRecent returns the newest decisions for a location, newest first.
// limit is clamped to [1, MaxRecentLimit]; zero selects DefaultRecentLimit.
func (r *DecisionLogRepository) ListRecent(ctx context.Context, locationID string, limit int) ([]types.DecisionRecord, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecentLimit
	case limit > MaxRecentLimit:
		limit = MaxRecentLimit
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, location_id, issued_at, can_play, violated_horizons, reason,
		        median_max_m_s, tail_max_m_s, forecasts, model, fallback_reason
		 FROM decision_log
		 WHERE location_id = $1
		 ORDER BY issued_at DESC
		 LIMIT $2`,
		locationID, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list decisions", err)
	}
	defer rows.Close()

	out := []types.DecisionRecord{}
	for rows.Next() {
		var (
			rec       types.DecisionRecord
			violated  []int32
			forecasts []byte
		)
		if err := rows.Scan(
			&rec.ID, &rec.LocationID, &rec.IssuedAt, &rec.CanPlay, &violated, &rec.Reason,
			&rec.MedianMax, &rec.TailMax, &forecasts, &rec.ModelName, &rec.FallbackReason,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan decision row", err)
		}
		rec.ViolatedHorizons = make([]types.Horizon, len(violated))
		for i, h := range violated {
			rec.ViolatedHorizons[i] = types.Horizon(h)
		}
		if err := json.Unmarshal(forecasts, &rec.Forecasts); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to decode stored forecasts", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating decision rows", err)
	}
	return out, nil
}
