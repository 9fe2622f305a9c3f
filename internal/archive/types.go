// Package archive exports closed conversations to S3 for retention and
// later analysis.
package archive

import "time"

// ConversationRecord is the top-level structure written to S3 when a
// lead is closed.
type ConversationRecord struct {
	Version         string    `json:"version"` // "1.0"
	LeadID          string    `json:"lead_id"`
	PhoneHash       string    `json:"phone_hash"` // sha256 of phone
	ArchivedAt      time.Time `json:"archived_at"`
	DurationSeconds int       `json:"duration_seconds"`
	MessageCount    int       `json:"message_count"`
	Status          string    `json:"status"`      // lead status at close
	AuthStatus      string    `json:"auth_status"` // formalization progress at close
	Outcome         string    `json:"outcome"`     // signed|abandoned|closed
	Messages        []Message `json:"messages"`
}

// Message is a single conversation turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Kind      string    `json:"kind,omitempty"`
	Internal  bool      `json:"internal,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	LeadID       string `json:"lead_id"`
	S3Key        string `json:"s3_key"`
	Status       string `json:"status"`
	Outcome      string `json:"outcome"`
	ArchivedAt   string `json:"archived_at"`
	MessageCount int    `json:"message_count"`
}
