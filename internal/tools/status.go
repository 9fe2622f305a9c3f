package tools

import (
	"context"

	"github.com/consigdesk/consig-ai-platform/internal/conversation"
)

func (r *Registry) proposalStatus(ctx context.Context, call conversation.ToolCall) conversation.ToolResult {
	proposalNumber, err := requireString(call.Args, "proposalNumber")
	if err != nil {
		return failure(call.Name, "invalid_args", err.Error())
	}

	status, err := r.bank.GetProposalStatus(ctx, proposalNumber)
	if err != nil {
		return failure(call.Name, "upstream", err.Error())
	}

	payload := map[string]any{
		"proposal_number": status.ProposalNumber,
		"status":          status.Status,
	}
	if status.Description != "" {
		payload["description"] = status.Description
	}
	if status.UpdatedAt != "" {
		payload["updated_at"] = status.UpdatedAt
	}

	return conversation.ToolResult{Name: call.Name, Payload: payload}
}
