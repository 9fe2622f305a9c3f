package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRunLog_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	started := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	finished := started.Add(2 * time.Second)

	mock.ExpectExec("INSERT INTO agent_runs").
		WithArgs("lead-1", "gemini-2.5-flash", OutcomeToolReplied, "simular_consignado_c6", "",
			int32(120), int32(60), int32(180), started, finished).
		WillReturnResult(sqlmock.NewResult(1, 1))

	runlog := NewPGRunLog(db)
	err = runlog.Record(context.Background(), RunRecord{
		LeadID:     "lead-1",
		Model:      "gemini-2.5-flash",
		Outcome:    OutcomeToolReplied,
		ToolName:   "simular_consignado_c6",
		Usage:      TokenUsage{InputTokens: 120, OutputTokens: 60, TotalTokens: 180},
		StartedAt:  started,
		FinishedAt: finished,
	})
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPGRunLog_RecordRequiresLead(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	runlog := NewPGRunLog(db)
	if err := runlog.Record(context.Background(), RunRecord{}); err == nil {
		t.Fatal("expected error for missing lead id")
	}
}

func TestPGRunLog_RunsForLead(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	started := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"lead_id", "model", "outcome", "tool_name", "error",
		"input_tokens", "output_tokens", "total_tokens", "started_at", "finished_at",
	}).AddRow("lead-1", "gemini-2.5-flash", OutcomeReplied, "", "", 100, 40, 140, started, started.Add(time.Second))

	mock.ExpectQuery("SELECT lead_id, model, outcome").
		WithArgs("lead-1", 20).
		WillReturnRows(rows)

	runlog := NewPGRunLog(db)
	records, err := runlog.RunsForLead(context.Background(), "lead-1", 0)
	if err != nil {
		t.Fatalf("RunsForLead returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Outcome != OutcomeReplied || records[0].Usage.TotalTokens != 140 {
		t.Errorf("unexpected record: %+v", records[0])
	}
}
