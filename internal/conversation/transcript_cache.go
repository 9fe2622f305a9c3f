package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/consigdesk/consig-ai-platform/internal/leads"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

const (
	transcriptKeyPrefix = "inbox_transcript:"
	transcriptTTL       = 7 * 24 * time.Hour
)

// CachedMessage is the Redis-side projection of a conversation message,
// consumed by the inbox UI for fast recent-history reads.
type CachedMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Kind      string    `json:"kind,omitempty"`
	Internal  bool      `json:"internal,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptCache mirrors conversation messages into Redis. It hangs
// off the store as an observer, so it stays in sync with every append
// regardless of which component wrote the message. A nil cache is a
// no-op everywhere.
type TranscriptCache struct {
	redis       *redis.Client
	tracer      trace.Tracer
	logger      *logging.Logger
	maxMessages int64
}

// NewTranscriptCache creates a cache over the given Redis client.
// Returns nil when redisClient is nil so callers can wire it blindly.
func NewTranscriptCache(redisClient *redis.Client, logger *logging.Logger) *TranscriptCache {
	if redisClient == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TranscriptCache{
		redis:       redisClient,
		tracer:      otel.Tracer("consig.internal.conversation.transcript_cache"),
		logger:      logger,
		maxMessages: 250,
	}
}

// MessageAppended implements Observer.
func (c *TranscriptCache) MessageAppended(ctx context.Context, lead *leads.Lead, msg leads.Message) {
	if err := c.Append(ctx, lead.ID, msg); err != nil {
		c.logger.Warn("failed to mirror message to redis", "error", err, "lead_id", lead.ID)
	}
}

// StatusChanged implements Observer. Status lives in the repository;
// the cache only mirrors messages.
func (c *TranscriptCache) StatusChanged(ctx context.Context, lead *leads.Lead) {}

// Append pushes one message onto the lead's cached transcript.
func (c *TranscriptCache) Append(ctx context.Context, leadID string, msg leads.Message) error {
	if c == nil || c.redis == nil {
		return nil
	}
	if leadID == "" {
		return errors.New("conversation: transcript cache leadID required")
	}

	cached := CachedMessage{
		ID:        msg.ID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		Kind:      string(msg.Kind),
		Internal:  msg.Internal,
		Timestamp: msg.CreatedAt,
	}
	if cached.Timestamp.IsZero() {
		cached.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("conversation: marshal cached message: %w", err)
	}

	ctx, span := c.tracer.Start(ctx, "conversation.transcript_cache.append")
	defer span.End()

	key := transcriptKey(leadID)
	pipe := c.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, transcriptTTL)
	if c.maxMessages > 0 {
		pipe.LTrim(ctx, key, -c.maxMessages, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conversation: append cached message: %w", err)
	}
	return nil
}

// Recent returns up to limit cached messages, oldest first.
func (c *TranscriptCache) Recent(ctx context.Context, leadID string, limit int64) ([]CachedMessage, error) {
	if c == nil || c.redis == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = c.maxMessages
	}

	ctx, span := c.tracer.Start(ctx, "conversation.transcript_cache.recent")
	defer span.End()

	raw, err := c.redis.LRange(ctx, transcriptKey(leadID), -limit, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("conversation: read cached transcript: %w", err)
	}

	messages := make([]CachedMessage, 0, len(raw))
	for _, item := range raw {
		var msg CachedMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			c.logger.Warn("skipping malformed cached message", "error", err, "lead_id", leadID)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Clear drops the cached transcript for a lead.
func (c *TranscriptCache) Clear(ctx context.Context, leadID string) error {
	if c == nil || c.redis == nil {
		return nil
	}
	if err := c.redis.Del(ctx, transcriptKey(leadID)).Err(); err != nil {
		return fmt.Errorf("conversation: clear cached transcript: %w", err)
	}
	return nil
}

func transcriptKey(leadID string) string {
	return transcriptKeyPrefix + leadID
}
