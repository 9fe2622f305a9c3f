package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	PublicBaseURL  string
	LogLevel       string
	UseMemoryQueue bool
	WorkerCount    int
	DatabaseURL    string

	// Gemini (primary LLM)
	GeminiAPIKey  string
	GeminiModelID string

	// Bedrock (fallback LLM)
	BedrockModelID string

	// Agent behavior
	AgentSystemPrompt string
	AgentTemperature  float64
	AgentMaxTokens    int
	ModelCallTimeout  time.Duration
	ToolCallTimeout   time.Duration
	SendTimeout       time.Duration

	// Evolution API (WhatsApp gateway)
	EvolutionBaseURL      string
	EvolutionAPIKey       string
	EvolutionInstanceName string
	EvolutionWebhookToken string

	// C6 proposal API
	C6BaseURL      string
	C6ClientUser   string
	C6Password     string
	C6PromoterCode string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	InboundQueueURL     string
	RunLogTable         string
	ArchiveBucket       string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Notifications
	NotifyProvider    string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	OperatorEmails    []string

	AdminJWTSecret     string
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		PublicBaseURL:  getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID: getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),

		AgentSystemPrompt: getEnv("AGENT_SYSTEM_PROMPT", ""),
		AgentTemperature:  getEnvAsFloat("AGENT_TEMPERATURE", 0.3),
		AgentMaxTokens:    getEnvAsInt("AGENT_MAX_TOKENS", 1024),
		ModelCallTimeout:  getEnvAsDuration("MODEL_CALL_TIMEOUT", 30*time.Second),
		ToolCallTimeout:   getEnvAsDuration("TOOL_CALL_TIMEOUT", 15*time.Second),
		SendTimeout:       getEnvAsDuration("SEND_TIMEOUT", 10*time.Second),

		EvolutionBaseURL:      getEnv("EVOLUTION_BASE_URL", ""),
		EvolutionAPIKey:       getEnv("EVOLUTION_API_KEY", ""),
		EvolutionInstanceName: getEnv("EVOLUTION_INSTANCE_NAME", "default"),
		EvolutionWebhookToken: getEnv("EVOLUTION_WEBHOOK_TOKEN", ""),

		C6BaseURL:      getEnv("C6_BASE_URL", "https://marketplace-proposal-service-api-p.c6bank.info"),
		C6ClientUser:   getEnv("C6_CLIENT_USER", ""),
		C6Password:     getEnv("C6_PASSWORD", ""),
		C6PromoterCode: getEnv("C6_PROMOTER_CODE", "000224"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		InboundQueueURL:     getEnv("INBOUND_QUEUE_URL", ""),
		RunLogTable:         getEnv("RUN_LOG_TABLE", ""),
		ArchiveBucket:       getEnv("ARCHIVE_BUCKET", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		NotifyProvider:    strings.ToLower(strings.TrimSpace(getEnv("NOTIFY_PROVIDER", "auto"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "ConsigDesk"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		OperatorEmails:    getEnvAsList("OPERATOR_EMAILS"),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	value := getEnv(key, "")
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
