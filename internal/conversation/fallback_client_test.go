package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

func TestFallbackLLMClient_PrimarySucceeds(t *testing.T) {
	primary := &fakeLLM{responses: []LLMResponse{{Text: "olá"}}}
	fallback := &fakeLLM{}
	client := NewFallbackLLMClient(primary, fallback, "bedrock-model", logging.Default())

	resp, err := client.Complete(context.Background(), LLMRequest{Model: "gemini-2.5-flash"})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if resp.Text != "olá" {
		t.Errorf("unexpected text: %s", resp.Text)
	}
	if len(fallback.requests) != 0 {
		t.Error("fallback must not be called when primary succeeds")
	}
}

func TestFallbackLLMClient_FallsBackWithModelSwap(t *testing.T) {
	primary := &fakeLLM{errs: []error{errors.New("quota exceeded")}}
	fallback := &fakeLLM{responses: []LLMResponse{{Text: "resposta de reserva"}}}
	client := NewFallbackLLMClient(primary, fallback, "anthropic.claude-3-haiku", logging.Default())

	resp, err := client.Complete(context.Background(), LLMRequest{Model: "gemini-2.5-flash"})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if resp.Text != "resposta de reserva" {
		t.Errorf("unexpected text: %s", resp.Text)
	}
	if len(fallback.requests) != 1 {
		t.Fatalf("expected one fallback call, got %d", len(fallback.requests))
	}
	if fallback.requests[0].Model != "anthropic.claude-3-haiku" {
		t.Errorf("fallback must swap in its own model, got %s", fallback.requests[0].Model)
	}
}

func TestFallbackLLMClient_NoFallbackConfigured(t *testing.T) {
	primaryErr := errors.New("unavailable")
	primary := &fakeLLM{errs: []error{primaryErr}}
	client := NewFallbackLLMClient(primary, nil, "", logging.Default())

	if _, err := client.Complete(context.Background(), LLMRequest{}); !errors.Is(err, primaryErr) {
		t.Fatalf("expected primary error, got %v", err)
	}
}

func TestFallbackLLMClient_ProtocolViolationNotRetried(t *testing.T) {
	primary := &fakeLLM{errs: []error{ErrMultipleToolCalls}}
	fallback := &fakeLLM{responses: []LLMResponse{{Text: "não deveria chegar aqui"}}}
	client := NewFallbackLLMClient(primary, fallback, "model", logging.Default())

	if _, err := client.Complete(context.Background(), LLMRequest{}); !errors.Is(err, ErrMultipleToolCalls) {
		t.Fatalf("expected ErrMultipleToolCalls, got %v", err)
	}
	if len(fallback.requests) != 0 {
		t.Error("contract breaches must not be retried on the fallback")
	}
}
