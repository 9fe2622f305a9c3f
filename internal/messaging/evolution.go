// Package messaging delivers outbound WhatsApp messages through an
// Evolution API instance.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/consigdesk/consig-ai-platform/internal/conversation"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

var evolutionTracer = otel.Tracer("consig.internal.messaging.evolution")

// EvolutionConfig locates one Evolution API instance.
type EvolutionConfig struct {
	BaseURL      string
	APIKey       string
	InstanceName string
}

// EvolutionSender posts WhatsApp messages using the Evolution API.
type EvolutionSender struct {
	baseURL      string
	apiKey       string
	instanceName string
	httpClient   *http.Client
	logger       *logging.Logger
}

// NewEvolutionSender builds a sender for an Evolution API instance.
func NewEvolutionSender(cfg EvolutionConfig, logger *logging.Logger) *EvolutionSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &EvolutionSender{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		instanceName: cfg.InstanceName,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

var _ conversation.OutboundChannel = (*EvolutionSender)(nil)

// SendText dispatches a single text message, retrying transient failures.
func (s *EvolutionSender) SendText(ctx context.Context, phone, text string) error {
	if err := s.checkConfig(); err != nil {
		return err
	}
	if phone == "" {
		return errors.New("messaging: phone required")
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("messaging: text required")
	}

	ctx, span := evolutionTracer.Start(ctx, "messaging.evolution.send_text")
	defer span.End()
	span.SetAttributes(attribute.String("consig.to", phone))

	payload := map[string]any{
		"number": phone,
		"options": map[string]any{
			"delay":       1200,
			"presence":    "composing",
			"linkPreview": true,
		},
		"textMessage": map[string]any{
			"text": text,
		},
	}
	return s.post(ctx, "/message/sendText/"+s.instanceName, payload)
}

// SendAudio dispatches a recorded audio message (base64-encoded).
func (s *EvolutionSender) SendAudio(ctx context.Context, phone, base64Audio string) error {
	if err := s.checkConfig(); err != nil {
		return err
	}
	if phone == "" {
		return errors.New("messaging: phone required")
	}
	if base64Audio == "" {
		return errors.New("messaging: audio payload required")
	}

	ctx, span := evolutionTracer.Start(ctx, "messaging.evolution.send_audio")
	defer span.End()
	span.SetAttributes(attribute.String("consig.to", phone))

	payload := map[string]any{
		"number": phone,
		"options": map[string]any{
			"delay":    0,
			"presence": "recording",
			"encoding": true,
		},
		"audioMessage": map[string]any{
			"audio": base64Audio,
		},
	}
	return s.post(ctx, "/message/sendWhatsAppAudio/"+s.instanceName, payload)
}

// SendMedia dispatches an image or document. mediaType is "image" or
// "document"; media is base64-encoded content or a public URL.
func (s *EvolutionSender) SendMedia(ctx context.Context, phone, mediaType, media, caption, fileName string) error {
	if err := s.checkConfig(); err != nil {
		return err
	}
	if phone == "" {
		return errors.New("messaging: phone required")
	}
	if media == "" {
		return errors.New("messaging: media payload required")
	}
	if mediaType == "" {
		mediaType = "document"
	}

	ctx, span := evolutionTracer.Start(ctx, "messaging.evolution.send_media")
	defer span.End()
	span.SetAttributes(
		attribute.String("consig.to", phone),
		attribute.String("consig.media_type", mediaType),
	)

	mediaMessage := map[string]any{
		"mediatype": mediaType,
		"media":     media,
	}
	if caption != "" {
		mediaMessage["caption"] = caption
	}
	if fileName != "" {
		mediaMessage["fileName"] = fileName
	}
	payload := map[string]any{
		"number": phone,
		"options": map[string]any{
			"delay":    1200,
			"presence": "composing",
		},
		"mediaMessage": mediaMessage,
	}
	return s.post(ctx, "/message/sendMedia/"+s.instanceName, payload)
}

// ConnectionState reports the instance's WhatsApp connection status.
func (s *EvolutionSender) ConnectionState(ctx context.Context) (string, error) {
	if err := s.checkConfig(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/instance/connectionState/"+s.instanceName, nil)
	if err != nil {
		return "", fmt.Errorf("messaging: build connection request: %w", err)
	}
	req.Header.Set("apikey", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("messaging: connection state request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("messaging: connection state returned %d", resp.StatusCode)
	}

	var decoded struct {
		Instance struct {
			State string `json:"state"`
		} `json:"instance"`
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("messaging: decode connection state: %w", err)
	}
	if decoded.Instance.State != "" {
		return decoded.Instance.State, nil
	}
	if decoded.State != "" {
		return decoded.State, nil
	}
	return "UNKNOWN", nil
}

func (s *EvolutionSender) checkConfig() error {
	if s.baseURL == "" || s.apiKey == "" || s.instanceName == "" {
		return errors.New("messaging: evolution api not configured")
	}
	return nil
}

func (s *EvolutionSender) post(ctx context.Context, path string, payload map[string]any) error {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("messaging: marshal evolution payload: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("messaging: build evolution request: %w", err)
		}
		req.Header.Set("apikey", s.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("messaging: evolution request failed: %w", err)
		} else {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode < 300 {
				return nil
			}
			lastErr = fmt.Errorf("messaging: evolution returned %d for %s", resp.StatusCode, path)
			// Client errors won't heal on retry.
			if resp.StatusCode < 500 {
				return lastErr
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 250 * time.Millisecond):
		}
	}
	return lastErr
}
