package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/consigdesk/consig-ai-platform/internal/conversation"
	"github.com/consigdesk/consig-ai-platform/internal/leads"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

// inboxStore is the slice of the conversation store the inbox needs.
type inboxStore interface {
	GetLead(ctx context.Context, leadID string) (*leads.Lead, error)
	ListLeads(ctx context.Context) ([]*leads.Lead, error)
	AppendMessage(ctx context.Context, leadID string, msg leads.Message) (*leads.Message, error)
	SetStatus(ctx context.Context, leadID string, status leads.Status) error
	SetAutoPilot(ctx context.Context, leadID string, enabled bool) error
	SetAuthStatus(ctx context.Context, leadID string, status leads.AuthStatus, link string) error
	Close(ctx context.Context, leadID string) error
	ResetContext(ctx context.Context, leadID string) (*leads.Message, error)
}

type outboundSender interface {
	SendText(ctx context.Context, phone, text string) error
	SendAudio(ctx context.Context, phone, base64Audio string) error
}

type handoffNotifier interface {
	NotifyHandoff(ctx context.Context, lead *leads.Lead, reason string) error
}

type leadArchiver interface {
	ExportLead(ctx context.Context, lead *leads.Lead)
}

type transcriptClearer interface {
	Clear(ctx context.Context, leadID string) error
}

type runLogReader interface {
	RunsForLead(ctx context.Context, leadID string, limit int) ([]conversation.RunRecord, error)
}

// AdminInboxHandler serves the operator inbox: conversation listing,
// manual replies and the auto-pilot switch.
type AdminInboxHandler struct {
	store      inboxStore
	outbound   outboundSender
	notifier   handoffNotifier
	archiver   leadArchiver
	transcript transcriptClearer
	runlog     runLogReader
	logger     *logging.Logger
}

// AdminInboxConfig wires the inbox handler. Outbound is required;
// notifier, archiver, transcript and runlog are optional.
type AdminInboxConfig struct {
	Store      inboxStore
	Outbound   outboundSender
	Notifier   handoffNotifier
	Archiver   leadArchiver
	Transcript transcriptClearer
	RunLog     runLogReader
	Logger     *logging.Logger
}

func NewAdminInboxHandler(cfg AdminInboxConfig) *AdminInboxHandler {
	if cfg.Store == nil {
		panic("handlers: inbox store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &AdminInboxHandler{
		store:      cfg.Store,
		outbound:   cfg.Outbound,
		notifier:   cfg.Notifier,
		archiver:   cfg.Archiver,
		transcript: cfg.Transcript,
		runlog:     cfg.RunLog,
		logger:     cfg.Logger,
	}
}

// InboxEntry is one conversation in the inbox listing.
type InboxEntry struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Phone         string     `json:"phone"`
	Status        string     `json:"status"`
	AutoPilot     bool       `json:"autoPilot"`
	AuthStatus    string     `json:"authStatus"`
	ProposalReady bool       `json:"proposalReady"`
	LastMessage   string     `json:"lastMessage,omitempty"`
	LastRole      string     `json:"lastRole,omitempty"`
	LastActiveAt  *time.Time `json:"lastActiveAt,omitempty"`
	MessageCount  int        `json:"messageCount"`
}

// ListInbox returns every conversation, newest activity first.
// GET /admin/inbox
func (h *AdminInboxHandler) ListInbox(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.ListLeads(r.Context())
	if err != nil {
		h.logger.Error("inbox list failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	statusFilter := r.URL.Query().Get("status")
	entries := make([]InboxEntry, 0, len(all))
	for _, lead := range all {
		if statusFilter != "" && string(lead.Status) != statusFilter {
			continue
		}
		entry := InboxEntry{
			ID:            lead.ID,
			Name:          lead.Name,
			Phone:         lead.Phone,
			Status:        string(lead.Status),
			AutoPilot:     lead.AutoPilot,
			AuthStatus:    string(lead.AuthStatus),
			ProposalReady: lead.ProposalReady,
			MessageCount:  len(lead.Messages),
		}
		if !lead.LastActiveAt.IsZero() {
			t := lead.LastActiveAt
			entry.LastActiveAt = &t
		}
		if last := lastVisible(lead); last != nil {
			entry.LastMessage = last.Content
			entry.LastRole = string(last.Role)
		}
		entries = append(entries, entry)
	}

	writeJSON(w, map[string]any{"conversations": entries, "total": len(entries)})
}

// GetConversation returns a lead with its full transcript, internal
// notes included.
// GET /admin/inbox/{leadID}
func (h *AdminInboxHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.leadOr404(w, r)
	if !ok {
		return
	}
	writeJSON(w, lead)
}

// SendMessageRequest is an operator's manual reply. Audio carries a
// base64-encoded voice note; at least one of Text or Audio is required.
type SendMessageRequest struct {
	Text  string `json:"text"`
	Audio string `json:"audio,omitempty"`
}

// SendMessage appends an operator reply and delivers it over WhatsApp.
// A plain text reply leaves the auto-pilot switch alone; a voice note
// takes the conversation out of auto-pilot first.
// POST /admin/inbox/{leadID}/messages
func (h *AdminInboxHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.leadOr404(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || (req.Text == "" && req.Audio == "") {
		http.Error(w, "text or audio is required", http.StatusBadRequest)
		return
	}

	if req.Audio != "" && lead.AutoPilot {
		if err := h.store.SetStatus(r.Context(), lead.ID, leads.StatusHumanIntervention); err != nil {
			h.logger.Error("failed to take over conversation", "error", err, "lead_id", lead.ID)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	outMsg := leads.Message{
		Role:    leads.RoleHumanAgent,
		Content: req.Text,
		Kind:    leads.KindChat,
	}
	if req.Audio != "" {
		outMsg.Attachment = &leads.Attachment{Kind: leads.AttachmentAudio}
	}
	msg, err := h.store.AppendMessage(r.Context(), lead.ID, outMsg)
	if err != nil {
		if errors.Is(err, leads.ErrLeadClosed) {
			http.Error(w, "lead is closed", http.StatusConflict)
			return
		}
		h.logger.Error("failed to append operator message", "error", err, "lead_id", lead.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Persisted first; delivery is best-effort.
	delivered := false
	if h.outbound != nil {
		var sendErr error
		if req.Audio != "" {
			sendErr = h.outbound.SendAudio(r.Context(), lead.Phone, req.Audio)
		} else {
			sendErr = h.outbound.SendText(r.Context(), lead.Phone, req.Text)
		}
		if sendErr != nil {
			h.logger.Warn("operator message not delivered", "error", sendErr, "lead_id", lead.ID)
		} else {
			delivered = true
		}
	}

	writeJSON(w, map[string]any{"message": msg, "delivered": delivered})
}

// AutoPilotRequest toggles the agent for one conversation.
type AutoPilotRequest struct {
	Enabled bool `json:"enabled"`
}

// SetAutoPilot flips the conversation between the agent and the team.
// POST /admin/inbox/{leadID}/autopilot
func (h *AdminInboxHandler) SetAutoPilot(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	var req AutoPilotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.SetAutoPilot(r.Context(), leadID, req.Enabled); err != nil {
		h.respondStoreError(w, err, leadID, "autopilot toggle failed")
		return
	}

	lead, err := h.store.GetLead(r.Context(), leadID)
	if err != nil {
		h.respondStoreError(w, err, leadID, "lead reload failed")
		return
	}
	writeJSON(w, lead)
}

// TransferRequest moves a conversation to the team with a reason.
type TransferRequest struct {
	Reason string `json:"reason"`
}

// Transfer forces human intervention and alerts operators.
// POST /admin/inbox/{leadID}/transfer
func (h *AdminInboxHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.leadOr404(w, r)
	if !ok {
		return
	}

	var req TransferRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Reason == "" {
		req.Reason = "Transferência manual pelo painel"
	}

	if err := h.store.SetStatus(r.Context(), lead.ID, leads.StatusHumanIntervention); err != nil {
		h.respondStoreError(w, err, lead.ID, "transfer failed")
		return
	}
	if _, err := h.store.AppendMessage(r.Context(), lead.ID, leads.Message{
		Role:     leads.RoleHumanAgent,
		Content:  "Transferido para atendimento humano. Motivo: " + req.Reason,
		Internal: true,
		Kind:     leads.KindTransferNote,
	}); err != nil {
		h.logger.Warn("transfer note not recorded", "error", err, "lead_id", lead.ID)
	}
	if h.notifier != nil {
		if err := h.notifier.NotifyHandoff(r.Context(), lead, req.Reason); err != nil {
			h.logger.Warn("transfer notification failed", "error", err, "lead_id", lead.ID)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloseConversation closes the lead and archives the transcript.
// POST /admin/inbox/{leadID}/close
func (h *AdminInboxHandler) CloseConversation(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	if err := h.store.Close(r.Context(), leadID); err != nil {
		h.respondStoreError(w, err, leadID, "close failed")
		return
	}

	if h.archiver != nil {
		if lead, err := h.store.GetLead(r.Context(), leadID); err == nil {
			h.archiver.ExportLead(r.Context(), lead)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetContext wipes the agent's visible history without deleting
// anything the operators can see.
// POST /admin/inbox/{leadID}/reset
func (h *AdminInboxHandler) ResetContext(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	marker, err := h.store.ResetContext(r.Context(), leadID)
	if err != nil {
		h.respondStoreError(w, err, leadID, "context reset failed")
		return
	}
	if h.transcript != nil {
		if err := h.transcript.Clear(r.Context(), leadID); err != nil {
			h.logger.Warn("transcript cache clear failed", "error", err, "lead_id", leadID)
		}
	}
	writeJSON(w, marker)
}

// AuthStatusRequest overrides the formalization progress. Used by the
// back office when the bank callback is missed.
type AuthStatusRequest struct {
	Status string `json:"status"`
	Link   string `json:"link,omitempty"`
}

// SetAuthStatus overrides a lead's formalization status.
// POST /admin/inbox/{leadID}/auth-status
func (h *AdminInboxHandler) SetAuthStatus(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	var req AuthStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	status := leads.AuthStatus(req.Status)
	switch status {
	case leads.AuthPending, leads.AuthLinkGenerated, leads.AuthAuthorized, leads.AuthDeclined:
	default:
		http.Error(w, "invalid auth status", http.StatusBadRequest)
		return
	}

	if err := h.store.SetAuthStatus(r.Context(), leadID, status, req.Link); err != nil {
		h.respondStoreError(w, err, leadID, "auth status override failed")
		return
	}

	lead, err := h.store.GetLead(r.Context(), leadID)
	if err != nil {
		h.respondStoreError(w, err, leadID, "lead reload failed")
		return
	}
	writeJSON(w, lead)
}

// ListRuns returns recent agent runs for a conversation.
// GET /admin/inbox/{leadID}/runs
func (h *AdminInboxHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runlog == nil {
		writeJSON(w, map[string]any{"runs": []conversation.RunRecord{}})
		return
	}
	leadID := chi.URLParam(r, "leadID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	runs, err := h.runlog.RunsForLead(r.Context(), leadID, limit)
	if err != nil {
		h.logger.Error("run log query failed", "error", err, "lead_id", leadID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []conversation.RunRecord{}
	}
	writeJSON(w, map[string]any{"runs": runs})
}

func (h *AdminInboxHandler) leadOr404(w http.ResponseWriter, r *http.Request) (*leads.Lead, bool) {
	leadID := chi.URLParam(r, "leadID")
	lead, err := h.store.GetLead(r.Context(), leadID)
	if err != nil {
		h.respondStoreError(w, err, leadID, "lead lookup failed")
		return nil, false
	}
	return lead, true
}

func (h *AdminInboxHandler) respondStoreError(w http.ResponseWriter, err error, leadID, logMsg string) {
	switch {
	case errors.Is(err, leads.ErrLeadNotFound):
		http.Error(w, "lead not found", http.StatusNotFound)
	case errors.Is(err, leads.ErrLeadClosed):
		http.Error(w, "lead is closed", http.StatusConflict)
	case errors.Is(err, leads.ErrInvalidTransition):
		http.Error(w, "invalid status transition", http.StatusConflict)
	default:
		h.logger.Error(logMsg, "error", err, "lead_id", leadID)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// lastVisible returns the newest non-internal message.
func lastVisible(lead *leads.Lead) *leads.Message {
	for i := len(lead.Messages) - 1; i >= 0; i-- {
		if !lead.Messages[i].Internal {
			return &lead.Messages[i]
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
