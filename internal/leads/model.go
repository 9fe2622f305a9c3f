package leads

import (
	"strings"
	"time"
)

// Status tracks who currently owns a lead's conversation.
type Status string

const (
	StatusNew               Status = "new"
	StatusAITalking         Status = "ai_talking"
	StatusHumanIntervention Status = "human_intervention"
	StatusWaitingSignature  Status = "waiting_signature"
	StatusClosed            Status = "closed"
)

// AuthStatus tracks the external loan-authorization side channel. It is
// independent of Status: a lead can be in human hands while the bank link
// is still pending.
type AuthStatus string

const (
	AuthPending       AuthStatus = "pending"
	AuthLinkGenerated AuthStatus = "link_generated"
	AuthAuthorized    AuthStatus = "authorized"
	AuthDeclined      AuthStatus = "declined"
)

// Role identifies who produced a message.
type Role string

const (
	RoleLead       Role = "lead"
	RoleHumanAgent Role = "human_agent"
	RoleAIAgent    Role = "ai_agent"
)

// MessageKind distinguishes chat content from operator-only system notices.
type MessageKind string

const (
	KindChat         MessageKind = "chat"
	KindHandoffNote  MessageKind = "handoff"
	KindContextReset MessageKind = "context_reset"
	KindErrorNote    MessageKind = "error"
	KindTransferNote MessageKind = "transfer"
)

// AttachmentKind is the media type carried by a message attachment.
type AttachmentKind string

const (
	AttachmentAudio AttachmentKind = "audio"
	AttachmentFile  AttachmentKind = "file"
)

// Attachment references an audio recording or document sent in place of text.
type Attachment struct {
	Kind     AttachmentKind `json:"kind"`
	URL      string         `json:"url,omitempty"`
	FileName string         `json:"file_name,omitempty"`
	MimeType string         `json:"mime_type,omitempty"`
}

// Message is one entry in a lead's conversation. Content and Attachment are
// mutually exclusive for transcript purposes; Internal messages are visible
// to operators only and never reach the language model or the lead.
type Message struct {
	ID         string      `json:"id"`
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Internal   bool        `json:"internal,omitempty"`
	Kind       MessageKind `json:"kind"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Lead is a prospect's conversation thread plus contact metadata.
type Lead struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	CPF           string     `json:"cpf"`
	Phone         string     `json:"phone"`
	BirthDate     string     `json:"birth_date"`
	AvatarURL     string     `json:"avatar_url,omitempty"`
	Status        Status     `json:"status"`
	AuthStatus    AuthStatus `json:"auth_status"`
	AuthLink      string     `json:"auth_link,omitempty"`
	ProposalReady bool       `json:"proposal_ready"`
	AutoPilot     bool       `json:"auto_pilot"`
	Messages      []Message  `json:"messages,omitempty"`
	LastActiveAt  time.Time  `json:"last_active_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// LastMessage returns the most recent message, or nil when the thread is empty.
func (l *Lead) LastMessage() *Message {
	if l == nil || len(l.Messages) == 0 {
		return nil
	}
	return &l.Messages[len(l.Messages)-1]
}

// CreateLeadRequest is the payload for registering a new lead.
type CreateLeadRequest struct {
	Name      string `json:"name"`
	CPF       string `json:"cpf"`
	Phone     string `json:"phone"`
	BirthDate string `json:"birth_date"`
	AvatarURL string `json:"avatar_url"`
}

// Validate checks required fields.
func (r *CreateLeadRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(r.Phone) == "" {
		return ErrMissingPhone
	}
	return nil
}

// NormalizePhone strips everything but digits so WhatsApp numbers compare
// consistently regardless of formatting.
func NormalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return digits.String()
}
