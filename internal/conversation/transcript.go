package conversation

import "github.com/consigdesk/consig-ai-platform/internal/leads"

// BuildTranscript projects a lead's stored message history into the
// model-facing chat transcript.
//
// Internal messages (handoff notes, error notes, transfer notes) never
// reach the model. A context-reset marker cuts the history: only
// messages after the most recent marker are included. Attachment-only
// messages are dropped as well since their content is a UI placeholder,
// not text the lead wrote.
func BuildTranscript(messages []leads.Message) []ChatTurn {
	start := 0
	for i, msg := range messages {
		if msg.Kind == leads.KindContextReset {
			start = i + 1
		}
	}

	turns := make([]ChatTurn, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		if msg.Internal || msg.Attachment != nil || msg.Content == "" {
			continue
		}
		turns = append(turns, ChatTurn{
			Role:    chatRole(msg.Role),
			Content: msg.Content,
		})
	}
	return turns
}

func chatRole(role leads.Role) string {
	if role == leads.RoleLead {
		return ChatRoleUser
	}
	return ChatRoleAssistant
}
