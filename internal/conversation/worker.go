package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/consigdesk/consig-ai-platform/internal/leads"
	"github.com/consigdesk/consig-ai-platform/internal/observability/metrics"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

const (
	defaultWorkerCount  = 2
	defaultWaitSeconds  = 2
	defaultBatchSize    = 5
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10
	deleteTimeoutSecs   = 5
)

// HandoffNotifier alerts human operators that a conversation needs
// their attention.
type HandoffNotifier interface {
	NotifyHandoff(ctx context.Context, lead *leads.Lead, reason string) error
}

// Worker consumes inbound WhatsApp messages from the queue, resolves
// each sender to a lead and appends the message to the conversation.
// Appending goes through the store, so registered observers (the
// auto-reply trigger, the websocket hub, the transcript cache) see
// every inbound message without the worker knowing about them.
type Worker struct {
	store    *Store
	queue    queueClient
	notifier HandoffNotifier
	metrics  *metrics.AgentMetrics
	logger   *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	notifier         HandoffNotifier
	metrics          *metrics.AgentMetrics
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithHandoffNotifier wires operator notifications for media-triggered
// handoffs.
func WithHandoffNotifier(notifier HandoffNotifier) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.notifier = notifier
	}
}

// WithWorkerMetrics wires inbound metrics.
func WithWorkerMetrics(m *metrics.AgentMetrics) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.metrics = m
	}
}

// NewWorker constructs a queue consumer around the conversation store.
func NewWorker(store *Store, queue queueClient, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if store == nil {
		panic("conversation: store cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		store:    store,
		queue:    queue,
		notifier: cfg.notifier,
		metrics:  cfg.metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("ingestion worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("ingestion worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive inbound messages", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	defer w.deleteMessage(msg.ReceiptHandle)

	var payload inboundPayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode inbound payload", "error", err)
		w.metrics.ObserveInbound("decode_error")
		return
	}

	inbound := payload.Inbound
	if strings.TrimSpace(inbound.Phone) == "" {
		w.logger.Warn("dropping inbound message without sender phone", "job_id", payload.ID)
		w.metrics.ObserveInbound("missing_phone")
		return
	}

	lead, err := w.store.GetOrCreateByPhone(ctx, inbound.Phone, inbound.SenderName)
	if err != nil {
		w.logger.Error("failed to resolve inbound sender", "error", err, "phone", inbound.Phone)
		w.metrics.ObserveInbound("resolve_error")
		return
	}

	message := leads.Message{
		Role:       leads.RoleLead,
		Content:    inbound.Text,
		Attachment: inbound.Attachment,
	}
	if inbound.Attachment != nil {
		message.Content = attachmentPlaceholder(inbound.Attachment.Kind)
	}

	if _, err := w.store.AppendMessage(ctx, lead.ID, message); err != nil {
		if errors.Is(err, leads.ErrLeadClosed) {
			w.logger.Warn("dropping inbound message for closed conversation", "lead_id", lead.ID)
			w.metrics.ObserveInbound("rejected_closed")
			return
		}
		w.logger.Error("failed to append inbound message", "error", err, "lead_id", lead.ID)
		w.metrics.ObserveInbound("append_error")
		return
	}
	w.metrics.ObserveInbound("accepted")

	// The agent only understands text. Media pulls a human in.
	if inbound.Attachment != nil && lead.AutoPilot {
		w.handoffForMedia(ctx, lead.ID)
	}
}

func (w *Worker) handoffForMedia(ctx context.Context, leadID string) {
	if err := w.store.SetStatus(ctx, leadID, leads.StatusHumanIntervention); err != nil {
		w.logger.Error("media handoff transition failed", "error", err, "lead_id", leadID)
		return
	}
	if _, err := w.store.AppendMessage(ctx, leadID, leads.Message{
		Role:     leads.RoleAIAgent,
		Content:  "Cliente enviou uma mídia. Atendimento transferido para um operador.",
		Internal: true,
		Kind:     leads.KindHandoffNote,
	}); err != nil {
		w.logger.Error("failed to append media handoff note", "error", err, "lead_id", leadID)
	}
	if w.notifier != nil {
		lead, err := w.store.GetLead(ctx, leadID)
		if err == nil {
			if err := w.notifier.NotifyHandoff(ctx, lead, "media received"); err != nil {
				w.logger.Warn("media handoff notification failed", "error", err, "lead_id", leadID)
			}
		}
	}
}

func (w *Worker) deleteMessage(receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSecs*time.Second)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete inbound message", "error", err)
	}
}

func attachmentPlaceholder(kind leads.AttachmentKind) string {
	if kind == leads.AttachmentAudio {
		return "Áudio enviado"
	}
	return "Arquivo enviado"
}
