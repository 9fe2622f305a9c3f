package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/consigdesk/consig-ai-platform/internal/leads"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// InboundMessage is a message received from the WhatsApp gateway,
// queued for ingestion.
type InboundMessage struct {
	Phone             string            `json:"phone"`
	SenderName        string            `json:"sender_name,omitempty"`
	Text              string            `json:"text,omitempty"`
	Attachment        *leads.Attachment `json:"attachment,omitempty"`
	ProviderMessageID string            `json:"provider_message_id,omitempty"`
	ReceivedAt        time.Time         `json:"received_at"`
}

type inboundPayload struct {
	ID      string         `json:"id"`
	Inbound InboundMessage `json:"inbound"`
}

// Publisher enqueues inbound messages for the ingestion worker.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a publisher over the given queue.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// EnqueueInbound publishes an inbound message and returns its job id.
func (p *Publisher) EnqueueInbound(ctx context.Context, msg InboundMessage) (string, error) {
	payload := inboundPayload{ID: uuid.NewString(), Inbound: msg}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("conversation: failed to encode inbound payload: %w", err)
	}
	if err := p.queue.Send(ctx, string(body)); err != nil {
		return "", err
	}
	p.logger.Debug("inbound message enqueued", "job_id", payload.ID, "phone", msg.Phone)
	return payload.ID, nil
}
