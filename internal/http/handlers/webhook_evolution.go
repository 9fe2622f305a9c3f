// Package handlers hosts the HTTP surface: the Evolution API webhook
// and the operator inbox endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/consigdesk/consig-ai-platform/internal/conversation"
	"github.com/consigdesk/consig-ai-platform/internal/leads"
	observemetrics "github.com/consigdesk/consig-ai-platform/internal/observability/metrics"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

type inboundPublisher interface {
	EnqueueInbound(ctx context.Context, msg conversation.InboundMessage) (string, error)
}

// EvolutionWebhookHandler ingests Evolution API webhook events and
// feeds lead messages into the inbound queue.
type EvolutionWebhookHandler struct {
	publisher    inboundPublisher
	webhookToken string
	metrics      *observemetrics.AgentMetrics
	logger       *logging.Logger
}

// EvolutionWebhookConfig wires the webhook handler.
type EvolutionWebhookConfig struct {
	Publisher    inboundPublisher
	WebhookToken string
	Metrics      *observemetrics.AgentMetrics
	Logger       *logging.Logger
}

func NewEvolutionWebhookHandler(cfg EvolutionWebhookConfig) *EvolutionWebhookHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &EvolutionWebhookHandler{
		publisher:    cfg.Publisher,
		webhookToken: cfg.WebhookToken,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
}

// evolutionEvent mirrors the Evolution API webhook payload for
// messages.upsert events.
type evolutionEvent struct {
	Event    string `json:"event"`
	Instance string `json:"instance"`
	Data     struct {
		Key struct {
			RemoteJid string `json:"remoteJid"`
			FromMe    bool   `json:"fromMe"`
			ID        string `json:"id"`
		} `json:"key"`
		PushName string `json:"pushName"`
		Message  struct {
			Conversation        string `json:"conversation"`
			ExtendedTextMessage *struct {
				Text string `json:"text"`
			} `json:"extendedTextMessage"`
			AudioMessage *struct {
				URL      string `json:"url"`
				Mimetype string `json:"mimetype"`
			} `json:"audioMessage"`
			ImageMessage *struct {
				URL      string `json:"url"`
				Mimetype string `json:"mimetype"`
				Caption  string `json:"caption"`
			} `json:"imageMessage"`
			DocumentMessage *struct {
				URL      string `json:"url"`
				Mimetype string `json:"mimetype"`
				FileName string `json:"fileName"`
			} `json:"documentMessage"`
		} `json:"message"`
		MessageTimestamp int64 `json:"messageTimestamp"`
	} `json:"data"`
}

// HandleMessages processes messages.upsert webhooks.
// POST /webhooks/evolution
func (h *EvolutionWebhookHandler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if h.webhookToken != "" && r.Header.Get("apikey") != h.webhookToken {
		h.logger.Warn("evolution webhook: bad apikey")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var evt evolutionEvent
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		h.observeInbound("decode_error")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if evt.Event != "messages.upsert" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	// Echoes of our own sends and group chatter are not lead traffic.
	if evt.Data.Key.FromMe || strings.HasSuffix(evt.Data.Key.RemoteJid, "@g.us") {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	phone := phoneFromJid(evt.Data.Key.RemoteJid)
	if phone == "" {
		h.observeInbound("missing_phone")
		http.Error(w, "missing sender", http.StatusBadRequest)
		return
	}

	msg := conversation.InboundMessage{
		Phone:             phone,
		SenderName:        evt.Data.PushName,
		ProviderMessageID: evt.Data.Key.ID,
		ReceivedAt:        time.Unix(evt.Data.MessageTimestamp, 0).UTC(),
	}

	switch {
	case evt.Data.Message.Conversation != "":
		msg.Text = evt.Data.Message.Conversation
	case evt.Data.Message.ExtendedTextMessage != nil:
		msg.Text = evt.Data.Message.ExtendedTextMessage.Text
	case evt.Data.Message.AudioMessage != nil:
		msg.Attachment = &leads.Attachment{
			Kind:     leads.AttachmentAudio,
			URL:      evt.Data.Message.AudioMessage.URL,
			MimeType: evt.Data.Message.AudioMessage.Mimetype,
		}
	case evt.Data.Message.ImageMessage != nil:
		msg.Text = evt.Data.Message.ImageMessage.Caption
		msg.Attachment = &leads.Attachment{
			Kind:     leads.AttachmentFile,
			URL:      evt.Data.Message.ImageMessage.URL,
			MimeType: evt.Data.Message.ImageMessage.Mimetype,
		}
	case evt.Data.Message.DocumentMessage != nil:
		msg.Attachment = &leads.Attachment{
			Kind:     leads.AttachmentFile,
			URL:      evt.Data.Message.DocumentMessage.URL,
			FileName: evt.Data.Message.DocumentMessage.FileName,
			MimeType: evt.Data.Message.DocumentMessage.Mimetype,
		}
	default:
		// Reactions, status updates and other unsupported types.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	jobID, err := h.publisher.EnqueueInbound(r.Context(), msg)
	if err != nil {
		h.observeInbound("enqueue_error")
		h.logger.Error("evolution webhook: enqueue failed", "error", err, "phone", phone)
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}
	h.observeInbound("enqueued")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "queued", "job_id": jobID})
}

func (h *EvolutionWebhookHandler) observeInbound(status string) {
	if h.metrics != nil {
		h.metrics.ObserveInbound(status)
	}
}

func phoneFromJid(jid string) string {
	at := strings.Index(jid, "@")
	if at <= 0 {
		return ""
	}
	return leads.NormalizePhone(jid[:at])
}
