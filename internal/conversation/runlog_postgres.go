package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PGRunLog persists agent run records to PostgreSQL for bootstrap
// deployments without DynamoDB.
type PGRunLog struct {
	db *sql.DB
}

var _ RunRecorder = (*PGRunLog)(nil)

// NewPGRunLog builds a Postgres-backed run log.
func NewPGRunLog(db *sql.DB) *PGRunLog {
	if db == nil {
		panic("conversation: sql db cannot be nil")
	}
	return &PGRunLog{db: db}
}

// Record implements RunRecorder.
func (l *PGRunLog) Record(ctx context.Context, rec RunRecord) error {
	if rec.LeadID == "" {
		return errors.New("conversation: run record requires a lead id")
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO agent_runs (
			lead_id, model, outcome, tool_name, error,
			input_tokens, output_tokens, total_tokens,
			started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.LeadID, rec.Model, rec.Outcome, rec.ToolName, rec.Error,
		rec.Usage.InputTokens, rec.Usage.OutputTokens, rec.Usage.TotalTokens,
		rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("conversation: insert run record: %w", err)
	}
	return nil
}

// RunsForLead returns the persisted run records for a lead, newest first.
func (l *PGRunLog) RunsForLead(ctx context.Context, leadID string, limit int) ([]RunRecord, error) {
	if leadID == "" {
		return nil, errors.New("conversation: lead id required")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT lead_id, model, outcome, tool_name, error,
		       input_tokens, output_tokens, total_tokens,
		       started_at, finished_at
		FROM agent_runs
		WHERE lead_id = $1
		ORDER BY started_at DESC
		LIMIT $2`,
		leadID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("conversation: query run records: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(
			&rec.LeadID, &rec.Model, &rec.Outcome, &rec.ToolName, &rec.Error,
			&rec.Usage.InputTokens, &rec.Usage.OutputTokens, &rec.Usage.TotalTokens,
			&rec.StartedAt, &rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("conversation: scan run record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: iterate run records: %w", err)
	}
	return records, nil
}
