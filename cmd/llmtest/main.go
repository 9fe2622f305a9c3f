// Manual smoke test for the configured LLM providers. Runs a short
// consignado conversation against Gemini and Bedrock and prints the
// replies, latency and token usage.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joho/godotenv"

	"github.com/consigdesk/consig-ai-platform/cmd/mainconfig"
	appconfig "github.com/consigdesk/consig-ai-platform/internal/config"
	"github.com/consigdesk/consig-ai-platform/internal/conversation"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	req := conversation.LLMRequest{
		System: []string{conversation.DefaultSystemPrompt},
		Turns: []conversation.ChatTurn{
			{Role: conversation.ChatRoleUser, Content: "Oi, quero saber se consigo um empréstimo consignado."},
			{Role: conversation.ChatRoleAssistant, Content: "Olá! Aqui é a Eva. Consigo te ajudar sim! Você é aposentado, pensionista ou servidor público?"},
			{Role: conversation.ChatRoleUser, Content: "Sou aposentado pelo INSS. Quanto sai a parcela de 10 mil?"},
		},
		MaxTokens:   300,
		Temperature: 0.3,
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("LLM Provider Test")
	fmt.Println(strings.Repeat("=", 60))

	if cfg.GeminiAPIKey != "" {
		fmt.Println("\n[1] Testing Gemini...")
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			fmt.Printf("    create client failed: %v\n", err)
		} else {
			run(ctx, gemini, req, cfg.GeminiModelID)
			_ = gemini.Close()
		}
	} else {
		fmt.Println("\n[1] GEMINI_API_KEY not set, skipping Gemini")
	}

	if cfg.BedrockModelID != "" {
		fmt.Println("\n[2] Testing Bedrock...")
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			fmt.Printf("    load AWS config failed: %v\n", err)
			os.Exit(1)
		}
		bedrock := conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
		bedrockReq := req
		bedrockReq.Model = cfg.BedrockModelID
		run(ctx, bedrock, bedrockReq, cfg.BedrockModelID)
	} else {
		fmt.Println("\n[2] BEDROCK_MODEL_ID not set, skipping Bedrock")
	}
}

func run(ctx context.Context, client conversation.LLMClient, req conversation.LLMRequest, model string) {
	if req.Model == "" {
		req.Model = model
	}
	start := time.Now()
	resp, err := client.Complete(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Printf("    error after %v: %v\n", elapsed.Round(time.Millisecond), err)
		return
	}
	fmt.Printf("    response (%v, %d tokens):\n", elapsed.Round(time.Millisecond), resp.Usage.TotalTokens)
	fmt.Printf("    %s\n", resp.Text)
}
