// Standalone inbound-queue consumer for SQS + Postgres deployments.
// The API process keeps serving operators while this binary drains the
// queue and runs the agent.
package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/consigdesk/consig-ai-platform/cmd/mainconfig"
	"github.com/consigdesk/consig-ai-platform/internal/c6"
	appconfig "github.com/consigdesk/consig-ai-platform/internal/config"
	"github.com/consigdesk/consig-ai-platform/internal/conversation"
	"github.com/consigdesk/consig-ai-platform/internal/leads"
	"github.com/consigdesk/consig-ai-platform/internal/messaging"
	"github.com/consigdesk/consig-ai-platform/internal/tools"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting conversation worker", "env", cfg.Env)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required for the standalone worker")
		os.Exit(1)
	}
	if cfg.InboundQueueURL == "" {
		logger.Error("INBOUND_QUEUE_URL is required for the standalone worker")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := conversation.NewStore(leads.NewPostgresRepository(pool), logger)

	evolution := messaging.NewEvolutionSender(messaging.EvolutionConfig{
		BaseURL:      cfg.EvolutionBaseURL,
		APIKey:       cfg.EvolutionAPIKey,
		InstanceName: cfg.EvolutionInstanceName,
	}, logger)

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
	if llm == nil {
		logger.Error("no LLM configured: set GEMINI_API_KEY or BEDROCK_MODEL_ID")
		os.Exit(1)
	}

	var runRecorder conversation.RunRecorder
	if cfg.RunLogTable != "" {
		runRecorder = conversation.NewDynamoRunLog(dynamodb.NewFromConfig(awsCfg), cfg.RunLogTable, logger)
	} else {
		sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open sql connection", "error", err)
			os.Exit(1)
		}
		defer func() { _ = sqlDB.Close() }()
		runRecorder = conversation.NewPGRunLog(sqlDB)
	}

	bank := c6.NewClient(c6.Config{
		BaseURL:      cfg.C6BaseURL,
		ClientUser:   cfg.C6ClientUser,
		Password:     cfg.C6Password,
		PromoterCode: cfg.C6PromoterCode,
	}, logger)
	toolRegistry := tools.NewRegistry(bank, store, nil, logger)

	systemPrompt := cfg.AgentSystemPrompt
	if systemPrompt == "" {
		systemPrompt = conversation.DefaultSystemPrompt
	}
	orchestrator := conversation.NewOrchestrator(store, llm, toolRegistry, evolution, runRecorder, nil, conversation.OrchestratorConfig{
		Model:            model,
		SystemPrompt:     systemPrompt,
		Temperature:      float32(cfg.AgentTemperature),
		MaxTokens:        int32(cfg.AgentMaxTokens),
		ModelCallTimeout: cfg.ModelCallTimeout,
		ToolCallTimeout:  cfg.ToolCallTimeout,
		SendTimeout:      cfg.SendTimeout,
	}, logger)

	trigger := conversation.NewAutoReplyTrigger(store, orchestrator, nil, logger)
	store.AddObserver(trigger)

	queue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.InboundQueueURL)
	worker := conversation.NewWorker(store, queue, logger,
		conversation.WithWorkerCount(cfg.WorkerCount),
	)
	worker.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down conversation worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	if err := trigger.Shutdown(doneCtx); err != nil {
		logger.Warn("agent runs did not drain in time", "error", err)
	}

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("conversation worker stopped")
	case <-doneCtx.Done():
		logger.Error("conversation worker shutdown timed out", "error", doneCtx.Err())
	}

	if geminiClient != nil {
		_ = geminiClient.Close()
	}
}
