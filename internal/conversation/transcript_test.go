package conversation

import (
	"testing"

	"github.com/consigdesk/consig-ai-platform/internal/leads"
)

func TestBuildTranscript_RoleMapping(t *testing.T) {
	turns := BuildTranscript([]leads.Message{
		{Role: leads.RoleLead, Content: "Bom dia", Kind: leads.KindChat},
		{Role: leads.RoleAIAgent, Content: "Olá! Como posso ajudar?", Kind: leads.KindChat},
		{Role: leads.RoleHumanAgent, Content: "Aqui é o Pedro.", Kind: leads.KindChat},
		{Role: leads.RoleLead, Content: "Quero simular um empréstimo", Kind: leads.KindChat},
	})

	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	wantRoles := []string{ChatRoleUser, ChatRoleAssistant, ChatRoleAssistant, ChatRoleUser}
	for i, want := range wantRoles {
		if turns[i].Role != want {
			t.Errorf("turn %d: expected role %s, got %s", i, want, turns[i].Role)
		}
	}
}

func TestBuildTranscript_ExcludesInternal(t *testing.T) {
	turns := BuildTranscript([]leads.Message{
		{Role: leads.RoleLead, Content: "Oi", Kind: leads.KindChat},
		{Role: leads.RoleAIAgent, Content: "Falha ao consultar o modelo", Internal: true, Kind: leads.KindErrorNote},
		{Role: leads.RoleAIAgent, Content: "Transferido para operador", Internal: true, Kind: leads.KindHandoffNote},
	})

	if len(turns) != 1 {
		t.Fatalf("expected only the chat message, got %d turns", len(turns))
	}
	if turns[0].Content != "Oi" {
		t.Errorf("unexpected content: %s", turns[0].Content)
	}
}

func TestBuildTranscript_CutsAtContextReset(t *testing.T) {
	turns := BuildTranscript([]leads.Message{
		{Role: leads.RoleLead, Content: "conversa antiga", Kind: leads.KindChat},
		{Role: leads.RoleAIAgent, Content: "resposta antiga", Kind: leads.KindChat},
		{Role: leads.RoleAIAgent, Content: "Contexto reiniciado", Internal: true, Kind: leads.KindContextReset},
		{Role: leads.RoleLead, Content: "recomeçando", Kind: leads.KindChat},
	})

	if len(turns) != 1 {
		t.Fatalf("expected 1 turn after reset, got %d", len(turns))
	}
	if turns[0].Content != "recomeçando" {
		t.Errorf("unexpected content: %s", turns[0].Content)
	}
}

func TestBuildTranscript_SkipsAttachments(t *testing.T) {
	turns := BuildTranscript([]leads.Message{
		{Role: leads.RoleLead, Content: "Áudio enviado", Attachment: &leads.Attachment{Kind: leads.AttachmentAudio}, Kind: leads.KindChat},
		{Role: leads.RoleLead, Content: "texto real", Kind: leads.KindChat},
	})

	if len(turns) != 1 {
		t.Fatalf("expected attachment message skipped, got %d turns", len(turns))
	}
	if turns[0].Content != "texto real" {
		t.Errorf("unexpected content: %s", turns[0].Content)
	}
}
