package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.GeminiModelID != "gemini-2.5-flash" {
		t.Errorf("unexpected default model: %s", cfg.GeminiModelID)
	}
	if cfg.ModelCallTimeout != 30*time.Second {
		t.Errorf("unexpected model timeout: %s", cfg.ModelCallTimeout)
	}
	if cfg.AgentTemperature != 0.3 {
		t.Errorf("unexpected temperature: %v", cfg.AgentTemperature)
	}
	if !cfg.UseMemoryQueue {
		t.Error("expected memory queue by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("AGENT_TEMPERATURE", "0.7")
	t.Setenv("MODEL_CALL_TIMEOUT", "5s")
	t.Setenv("OPERATOR_EMAILS", "a@b.com, c@d.com,")
	t.Setenv("USE_MEMORY_QUEUE", "false")

	cfg := Load()

	if cfg.Port != "9999" {
		t.Errorf("expected port 9999, got %s", cfg.Port)
	}
	if cfg.AgentTemperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", cfg.AgentTemperature)
	}
	if cfg.ModelCallTimeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.ModelCallTimeout)
	}
	if len(cfg.OperatorEmails) != 2 {
		t.Fatalf("expected 2 operator emails, got %v", cfg.OperatorEmails)
	}
	if cfg.UseMemoryQueue {
		t.Error("expected memory queue disabled")
	}
}

func TestGetEnvAsIntInvalid(t *testing.T) {
	t.Setenv("WORKER_COUNT", "not-a-number")
	cfg := Load()
	if cfg.WorkerCount != 2 {
		t.Errorf("expected fallback worker count 2, got %d", cfg.WorkerCount)
	}
}
