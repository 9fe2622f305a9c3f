package tools

import (
	"context"

	"github.com/consigdesk/consig-ai-platform/internal/conversation"
	"github.com/consigdesk/consig-ai-platform/internal/leads"
)

// transferToHuman always succeeds: whatever goes wrong while recording
// the note or notifying operators, the caller still gets a success
// result so the handoff itself is never blocked.
func (r *Registry) transferToHuman(ctx context.Context, leadID string, call conversation.ToolCall) conversation.ToolResult {
	reason := stringArg(call.Args, "motivo")
	if reason == "" {
		reason = "Transferência solicitada pelo agente"
	}
	summary := stringArg(call.Args, "resumo_caso")

	note := "Transferido para atendimento humano. Motivo: " + reason
	if summary != "" {
		note += "\nResumo: " + summary
	}
	if _, err := r.store.AppendMessage(ctx, leadID, leads.Message{
		Role:     leads.RoleAIAgent,
		Content:  note,
		Internal: true,
		Kind:     leads.KindTransferNote,
	}); err != nil {
		r.logger.Error("failed to append transfer note", "error", err, "lead_id", leadID)
	}

	if r.notifier != nil {
		if lead, err := r.store.GetLead(ctx, leadID); err == nil {
			if err := r.notifier.NotifyHandoff(ctx, lead, reason); err != nil {
				r.logger.Warn("operator notification failed", "error", err, "lead_id", leadID)
			}
		}
	}

	return conversation.ToolResult{
		Name: call.Name,
		Payload: map[string]any{
			"transferred": true,
			"motivo":      reason,
		},
	}
}
