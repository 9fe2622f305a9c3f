package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/consigdesk/consig-ai-platform/cmd/mainconfig"
	"github.com/consigdesk/consig-ai-platform/internal/api/router"
	"github.com/consigdesk/consig-ai-platform/internal/archive"
	"github.com/consigdesk/consig-ai-platform/internal/c6"
	appconfig "github.com/consigdesk/consig-ai-platform/internal/config"
	"github.com/consigdesk/consig-ai-platform/internal/conversation"
	"github.com/consigdesk/consig-ai-platform/internal/http/handlers"
	"github.com/consigdesk/consig-ai-platform/internal/inboxstream"
	"github.com/consigdesk/consig-ai-platform/internal/leads"
	"github.com/consigdesk/consig-ai-platform/internal/messaging"
	"github.com/consigdesk/consig-ai-platform/internal/notify"
	"github.com/consigdesk/consig-ai-platform/internal/observability/metrics"
	"github.com/consigdesk/consig-ai-platform/internal/sales"
	"github.com/consigdesk/consig-ai-platform/internal/tools"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting consig-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// Persistence: Postgres when DATABASE_URL is set, in-memory otherwise.
	var leadsRepo leads.Repository
	var pgPool *pgxpool.Pool
	var sqlDB *sql.DB
	if cfg.DatabaseURL != "" {
		pgPool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		leadsRepo = leads.NewPostgresRepository(pgPool)

		sqlDB, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open sql connection", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory lead repository")
		leadsRepo = leads.NewInMemoryRepository()
	}

	store := conversation.NewStore(leadsRepo, logger)

	var transcriptCache *conversation.TranscriptCache
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		transcriptCache = conversation.NewTranscriptCache(redis.NewClient(opts), logger)
		store.AddObserver(transcriptCache)
	}

	hub := inboxstream.NewHub(logger)
	store.AddObserver(hub)

	registry := prometheus.NewRegistry()
	agentMetrics := metrics.NewAgentMetrics(registry)

	// Inbound queue: SQS in production, in-process channel for local runs.
	var publisher *conversation.Publisher
	var worker *conversation.Worker
	notifier := newNotifier(cfg, awsCfg, logger)
	workerOpts := []conversation.WorkerOption{
		conversation.WithWorkerCount(cfg.WorkerCount),
		conversation.WithHandoffNotifier(notifier),
		conversation.WithWorkerMetrics(agentMetrics),
	}
	if cfg.UseMemoryQueue || cfg.InboundQueueURL == "" {
		queue := conversation.NewMemoryQueue(128)
		publisher = conversation.NewPublisher(queue, logger)
		worker = conversation.NewWorker(store, queue, logger, workerOpts...)
	} else {
		queue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.InboundQueueURL)
		publisher = conversation.NewPublisher(queue, logger)
		worker = conversation.NewWorker(store, queue, logger, workerOpts...)
	}

	evolution := messaging.NewEvolutionSender(messaging.EvolutionConfig{
		BaseURL:      cfg.EvolutionBaseURL,
		APIKey:       cfg.EvolutionAPIKey,
		InstanceName: cfg.EvolutionInstanceName,
	}, logger)

	// LLM stack: Gemini primary, Bedrock fallback when configured.
	var llm conversation.LLMClient
	var geminiClient *conversation.GeminiLLMClient
	model := cfg.GeminiModelID
	if cfg.GeminiAPIKey != "" {
		geminiClient, err = conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to create gemini client", "error", err)
			os.Exit(1)
		}
		llm = geminiClient
	}
	if cfg.BedrockModelID != "" {
		bedrock := conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
		if llm != nil {
			llm = conversation.NewFallbackLLMClient(llm, bedrock, cfg.BedrockModelID, logger)
		} else {
			llm = bedrock
			model = cfg.BedrockModelID
		}
	}

	var runRecorder conversation.RunRecorder
	var runReader interface {
		RunsForLead(ctx context.Context, leadID string, limit int) ([]conversation.RunRecord, error)
	}
	if cfg.RunLogTable != "" {
		runlog := conversation.NewDynamoRunLog(dynamodb.NewFromConfig(awsCfg), cfg.RunLogTable, logger)
		runRecorder = runlog
		runReader = runlog
	} else if sqlDB != nil {
		runlog := conversation.NewPGRunLog(sqlDB)
		runRecorder = runlog
		runReader = runlog
	}

	var trigger *conversation.AutoReplyTrigger
	if llm != nil {
		bank := c6.NewClient(c6.Config{
			BaseURL:      cfg.C6BaseURL,
			ClientUser:   cfg.C6ClientUser,
			Password:     cfg.C6Password,
			PromoterCode: cfg.C6PromoterCode,
		}, logger)
		toolRegistry := tools.NewRegistry(bank, store, notifier, logger)

		systemPrompt := cfg.AgentSystemPrompt
		if systemPrompt == "" {
			systemPrompt = conversation.DefaultSystemPrompt
		}
		orchestrator := conversation.NewOrchestrator(store, llm, toolRegistry, evolution, runRecorder, agentMetrics, conversation.OrchestratorConfig{
			Model:            model,
			SystemPrompt:     systemPrompt,
			Temperature:      float32(cfg.AgentTemperature),
			MaxTokens:        int32(cfg.AgentMaxTokens),
			ModelCallTimeout: cfg.ModelCallTimeout,
			ToolCallTimeout:  cfg.ToolCallTimeout,
			SendTimeout:      cfg.SendTimeout,
		}, logger)

		trigger = conversation.NewAutoReplyTrigger(store, orchestrator, agentMetrics, logger)
		store.AddObserver(trigger)
	} else {
		logger.Warn("no LLM configured, auto-reply disabled")
	}

	var exporter *archive.Exporter
	if cfg.ArchiveBucket != "" {
		archiveStore := archive.NewStore(s3.NewFromConfig(awsCfg), cfg.ArchiveBucket, logger)
		exporter = archive.NewExporter(archiveStore, logger)
	}

	worker.Start(ctx)

	inboxCfg := handlers.AdminInboxConfig{
		Store:    store,
		Outbound: evolution,
		Notifier: notifier,
		Logger:   logger,
	}
	if exporter != nil {
		inboxCfg.Archiver = exporter
	}
	if transcriptCache != nil {
		inboxCfg.Transcript = transcriptCache
	}
	if runReader != nil {
		inboxCfg.RunLog = runReader
	}
	inboxHandler := handlers.NewAdminInboxHandler(inboxCfg)

	webhookHandler := handlers.NewEvolutionWebhookHandler(handlers.EvolutionWebhookConfig{
		Publisher:    publisher,
		WebhookToken: cfg.EvolutionWebhookToken,
		Metrics:      agentMetrics,
		Logger:       logger,
	})

	var healthHandler *handlers.HealthHandler
	if cfg.EvolutionBaseURL != "" {
		healthHandler = handlers.NewHealthHandler(evolution, logger)
	} else {
		healthHandler = handlers.NewHealthHandler(nil, logger)
	}

	var salesHandler *handlers.AdminSalesHandler
	if sqlDB != nil {
		salesHandler = handlers.NewAdminSalesHandler(sales.NewRepository(sqlDB), logger)
	}

	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set, operator API disabled")
	}

	r := router.New(&router.Config{
		Logger:             logger,
		Health:             healthHandler,
		EvolutionWebhook:   webhookHandler,
		Inbox:              inboxHandler,
		Sales:              salesHandler,
		LeadsHandler:       leads.NewHandler(leadsRepo, logger),
		InboxStream:        hub,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		WebhookRatePerSec:  10,
		WebhookBurst:       30,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	cancel()
	if trigger != nil {
		if err := trigger.Shutdown(shutdownCtx); err != nil {
			logger.Warn("agent runs did not drain in time", "error", err)
		}
	}
	worker.Wait()

	if geminiClient != nil {
		_ = geminiClient.Close()
	}
	if pgPool != nil {
		pgPool.Close()
	}
	if sqlDB != nil {
		_ = sqlDB.Close()
	}

	logger.Info("server stopped")
}

// newNotifier assembles the operator email channel. SendGrid wins when
// both providers are configured unless NOTIFY_PROVIDER pins one.
func newNotifier(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) *notify.Service {
	var sender notify.EmailSender
	sendgridSender := func() notify.EmailSender {
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); s != nil {
			return s
		}
		return nil
	}
	sesSender := func() notify.EmailSender {
		if cfg.SESFromEmail == "" {
			return nil
		}
		if s := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
		}, logger); s != nil {
			return s
		}
		return nil
	}

	switch cfg.NotifyProvider {
	case "sendgrid":
		sender = sendgridSender()
	case "ses":
		sender = sesSender()
	default:
		sender = sendgridSender()
		if sender == nil {
			sender = sesSender()
		}
	}

	return notify.NewService(sender, notify.Config{
		Enabled:    sender != nil && len(cfg.OperatorEmails) > 0,
		Recipients: cfg.OperatorEmails,
		InboxURL:   cfg.PublicBaseURL,
	}, logger)
}
