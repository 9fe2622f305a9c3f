package archive

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/consigdesk/consig-ai-platform/internal/leads"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

func TestExportLead_ScrubsAndUploads(t *testing.T) {
	client := newFakeS3()
	store := NewStore(client, "consig-archive", logging.Default())
	exporter := NewExporter(store, logging.Default())

	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	lead := &leads.Lead{
		ID:         "lead-7",
		Phone:      "5511999998888",
		Status:     leads.StatusClosed,
		AuthStatus: leads.AuthAuthorized,
		Messages: []leads.Message{
			{Role: leads.RoleLead, Content: "meu cpf é 123.456.789-00", CreatedAt: base},
			{Role: leads.RoleAIAgent, Content: "simulação pronta", CreatedAt: base.Add(2 * time.Minute)},
		},
	}

	exporter.ExportLead(context.Background(), lead)

	var record ConversationRecord
	for k, v := range client.objects {
		if strings.HasSuffix(k, "lead-7.json") {
			if err := json.Unmarshal(v, &record); err != nil {
				t.Fatalf("unmarshal record: %v", err)
			}
		}
	}
	if record.LeadID != "lead-7" {
		t.Fatal("record not uploaded")
	}
	if record.Outcome != "signed" {
		t.Errorf("expected signed outcome, got %q", record.Outcome)
	}
	if record.DurationSeconds != 120 {
		t.Errorf("expected 120s duration, got %d", record.DurationSeconds)
	}
	if strings.Contains(record.Messages[0].Content, "123.456.789-00") {
		t.Errorf("CPF leaked into archive: %q", record.Messages[0].Content)
	}
	if record.PhoneHash == "" || strings.Contains(record.PhoneHash, "5511") {
		t.Errorf("phone must be hashed, got %q", record.PhoneHash)
	}
}

func TestExportLead_OutcomeAbandoned(t *testing.T) {
	lead := &leads.Lead{
		ID:       "lead-8",
		Status:   leads.StatusClosed,
		Messages: []leads.Message{{Role: leads.RoleLead, Content: "oi"}},
	}
	if got := outcomeFor(lead); got != "abandoned" {
		t.Errorf("expected abandoned, got %q", got)
	}
}

func TestNewExporter_NilWhenDisabled(t *testing.T) {
	if NewExporter(NewStore(nil, "", nil), nil) != nil {
		t.Fatal("exporter must be nil when archival is disabled")
	}
	// Nil exporter is callable.
	var e *Exporter
	e.ExportLead(context.Background(), &leads.Lead{ID: "x"})
}
