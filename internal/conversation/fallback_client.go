package conversation

import (
	"context"
	"errors"

	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

// FallbackLLMClient wraps a primary LLM client with a fallback
// provider. If the primary fails, it retries once with the fallback,
// swapping in the fallback's model id.
type FallbackLLMClient struct {
	primary       LLMClient
	fallback      LLMClient
	fallbackModel string
	logger        *logging.Logger
}

// NewFallbackLLMClient creates a fallback-enabled LLM client. If
// fallback is nil the client only uses the primary provider.
func NewFallbackLLMClient(primary, fallback LLMClient, fallbackModel string, logger *logging.Logger) *FallbackLLMClient {
	if primary == nil {
		panic("conversation: primary llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackLLMClient{
		primary:       primary,
		fallback:      fallback,
		fallbackModel: fallbackModel,
		logger:        logger,
	}
}

// Complete sends a completion request to the primary LLM. Provider
// failures retry on the fallback; a multi-tool-call response does not,
// since that is a contract breach rather than an availability problem.
func (c *FallbackLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, ErrMultipleToolCalls) {
		return LLMResponse{}, err
	}

	c.logger.Warn("primary LLM failed, attempting fallback",
		"error", err.Error(),
		"fallback_available", c.fallback != nil,
	)
	if c.fallback == nil {
		return LLMResponse{}, err
	}

	if c.fallbackModel != "" {
		req.Model = c.fallbackModel
	}
	fallbackResp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback LLM also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return LLMResponse{}, fallbackErr
	}

	c.logger.Info("fallback LLM succeeded after primary failure")
	return fallbackResp, nil
}
