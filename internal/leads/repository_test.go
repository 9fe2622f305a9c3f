package leads

import (
	"context"
	"testing"
)

func TestInMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewInMemoryRepository()

	lead, err := repo.Create(context.Background(), &CreateLeadRequest{
		Name:  "Carlos Almeida",
		CPF:   "123.456.789-00",
		Phone: "+55 11 99999-8888",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if lead.Status != StatusNew {
		t.Errorf("expected status new, got %s", lead.Status)
	}
	if lead.AuthStatus != AuthPending {
		t.Errorf("expected auth pending, got %s", lead.AuthStatus)
	}
	if !lead.AutoPilot {
		t.Error("expected auto pilot enabled for new leads")
	}
	if lead.Phone != "5511999998888" {
		t.Errorf("expected normalized phone, got %s", lead.Phone)
	}

	got, err := repo.Get(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Name != "Carlos Almeida" {
		t.Errorf("unexpected name: %s", got.Name)
	}

	byPhone, err := repo.GetByPhone(context.Background(), "5511999998888")
	if err != nil {
		t.Fatalf("GetByPhone returned error: %v", err)
	}
	if byPhone.ID != lead.ID {
		t.Errorf("GetByPhone returned wrong lead")
	}
}

func TestInMemoryRepository_CreateValidation(t *testing.T) {
	repo := NewInMemoryRepository()

	if _, err := repo.Create(context.Background(), &CreateLeadRequest{Phone: "123"}); err != ErrInvalidName {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
	if _, err := repo.Create(context.Background(), &CreateLeadRequest{Name: "Maria"}); err != ErrMissingPhone {
		t.Errorf("expected ErrMissingPhone, got %v", err)
	}
}

func TestInMemoryRepository_AppendMessage(t *testing.T) {
	repo := NewInMemoryRepository()
	lead, _ := repo.Create(context.Background(), &CreateLeadRequest{Name: "Maria", Phone: "5521988887777"})

	msg, err := repo.AppendMessage(context.Background(), lead.ID, Message{
		Role:    RoleLead,
		Content: "Bom dia",
	})
	if err != nil {
		t.Fatalf("AppendMessage returned error: %v", err)
	}
	if msg.ID == "" {
		t.Error("expected generated message ID")
	}
	if msg.Kind != KindChat {
		t.Errorf("expected default kind chat, got %s", msg.Kind)
	}

	got, _ := repo.Get(context.Background(), lead.ID)
	if len(got.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got.Messages))
	}
	if last := got.LastMessage(); last == nil || last.Content != "Bom dia" {
		t.Errorf("unexpected last message: %+v", last)
	}
}

func TestInMemoryRepository_SnapshotIsolation(t *testing.T) {
	repo := NewInMemoryRepository()
	lead, _ := repo.Create(context.Background(), &CreateLeadRequest{Name: "Maria", Phone: "5521988887777"})
	repo.AppendMessage(context.Background(), lead.ID, Message{Role: RoleLead, Content: "oi"})

	snapshot, _ := repo.Get(context.Background(), lead.ID)
	repo.AppendMessage(context.Background(), lead.ID, Message{Role: RoleLead, Content: "segunda"})

	if len(snapshot.Messages) != 1 {
		t.Errorf("snapshot mutated by later append: %d messages", len(snapshot.Messages))
	}
}

func TestInMemoryRepository_UpdateStatusTerminal(t *testing.T) {
	repo := NewInMemoryRepository()
	lead, _ := repo.Create(context.Background(), &CreateLeadRequest{Name: "Roberto", Phone: "5531977776666"})

	if err := repo.UpdateStatus(context.Background(), lead.ID, StatusClosed, false); err != nil {
		t.Fatalf("close returned error: %v", err)
	}
	if err := repo.UpdateStatus(context.Background(), lead.ID, StatusAITalking, true); err != ErrLeadClosed {
		t.Fatalf("expected ErrLeadClosed, got %v", err)
	}

	got, _ := repo.Get(context.Background(), lead.ID)
	if got.Status != StatusClosed {
		t.Errorf("closed lead changed status to %s", got.Status)
	}
}

func TestInMemoryRepository_UpdateAuthStatus(t *testing.T) {
	repo := NewInMemoryRepository()
	lead, _ := repo.Create(context.Background(), &CreateLeadRequest{Name: "Roberto", Phone: "5531977776666"})

	if err := repo.UpdateAuthStatus(context.Background(), lead.ID, AuthLinkGenerated, "https://bank.example/f/123"); err != nil {
		t.Fatalf("UpdateAuthStatus returned error: %v", err)
	}

	got, _ := repo.Get(context.Background(), lead.ID)
	if got.AuthStatus != AuthLinkGenerated {
		t.Errorf("expected link_generated, got %s", got.AuthStatus)
	}
	if got.AuthLink != "https://bank.example/f/123" {
		t.Errorf("unexpected link: %s", got.AuthLink)
	}
}
