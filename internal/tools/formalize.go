package tools

import (
	"context"

	"github.com/consigdesk/consig-ai-platform/internal/conversation"
	"github.com/consigdesk/consig-ai-platform/internal/leads"
)

func (r *Registry) formalizationLink(ctx context.Context, leadID string, call conversation.ToolCall) conversation.ToolResult {
	proposalNumber, err := requireString(call.Args, "proposalNumber")
	if err != nil {
		return failure(call.Name, "invalid_args", err.Error())
	}

	link, err := r.bank.FormalizationURL(ctx, proposalNumber)
	if err != nil {
		// No state change on failure: auth status only advances once a
		// real link exists.
		return failure(call.Name, "upstream", err.Error())
	}

	if err := r.store.SetAuthStatus(ctx, leadID, leads.AuthLinkGenerated, link); err != nil {
		r.logger.Error("failed to record formalization link", "error", err, "lead_id", leadID)
		return failure(call.Name, "internal", "link generated but could not be recorded: "+err.Error())
	}

	return conversation.ToolResult{
		Name: call.Name,
		Payload: map[string]any{
			"proposal_number":   proposalNumber,
			"formalization_url": link,
		},
	}
}
