package archive

import (
	"context"
	"time"

	"github.com/consigdesk/consig-ai-platform/internal/leads"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

// Exporter snapshots a lead's conversation into S3 when the lead is
// closed. Errors are logged but never block the caller: closing a lead
// must not depend on the archive bucket being reachable.
type Exporter struct {
	store  *Store
	logger *logging.Logger
}

// NewExporter creates an Exporter. Returns nil if store is not enabled,
// which callers treat as archival disabled.
func NewExporter(store *Store, logger *logging.Logger) *Exporter {
	if store == nil || !store.Enabled() {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Exporter{store: store, logger: logger}
}

// ExportLead archives the lead's full transcript, internal notes
// included. PII in message bodies is scrubbed before upload.
func (e *Exporter) ExportLead(ctx context.Context, lead *leads.Lead) {
	if e == nil || lead == nil {
		return
	}

	msgs := make([]Message, 0, len(lead.Messages))
	for _, m := range lead.Messages {
		msgs = append(msgs, Message{
			Role:      string(m.Role),
			Content:   m.Content,
			Kind:      string(m.Kind),
			Internal:  m.Internal,
			Timestamp: m.CreatedAt,
		})
	}
	ScrubMessages(msgs)

	var durationSec int
	if len(msgs) >= 2 {
		durationSec = int(msgs[len(msgs)-1].Timestamp.Sub(msgs[0].Timestamp).Seconds())
	}

	record := &ConversationRecord{
		Version:         "1.0",
		LeadID:          lead.ID,
		PhoneHash:       HashPhone(lead.Phone),
		ArchivedAt:      time.Now().UTC(),
		DurationSeconds: durationSec,
		MessageCount:    len(msgs),
		Status:          string(lead.Status),
		AuthStatus:      string(lead.AuthStatus),
		Outcome:         outcomeFor(lead),
		Messages:        msgs,
	}

	if err := e.store.ArchiveConversation(ctx, record); err != nil {
		e.logger.Error("archive export failed", "error", err, "lead_id", lead.ID)
		return
	}
	e.logger.Info("archive export completed", "lead_id", lead.ID, "outcome", record.Outcome)
}

func outcomeFor(lead *leads.Lead) string {
	switch {
	case lead.AuthStatus == leads.AuthAuthorized:
		return "signed"
	case len(lead.Messages) <= 1:
		return "abandoned"
	default:
		return "closed"
	}
}
