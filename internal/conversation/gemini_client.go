package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiLLMClient implements LLMClient using Google's Gemini API with
// native function calling.
type GeminiLLMClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiLLMClient creates a new Gemini LLM client.
func NewGeminiLLMClient(ctx context.Context, apiKey, modelID string) (*GeminiLLMClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to create gemini client: %w", err)
	}

	return &GeminiLLMClient{
		client:  client,
		modelID: modelID,
	}, nil
}

// Complete sends a completion request to Gemini and returns the
// response. When the model invokes a declared function the call comes
// back in LLMResponse.ToolCall; more than one invocation in a single
// candidate is rejected with ErrMultipleToolCalls.
func (c *GeminiLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	if len(req.Turns) == 0 {
		return LLMResponse{}, errors.New("conversation: gemini requires at least one turn")
	}

	modelID := req.Model
	if modelID == "" {
		modelID = c.modelID
	}
	model := c.client.GenerativeModel(modelID)

	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}

	if len(req.System) > 0 {
		systemText := strings.TrimSpace(strings.Join(req.System, "\n\n"))
		if systemText != "" {
			model.SystemInstruction = genai.NewUserContent(genai.Text(systemText))
		}
	}

	if len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: toFunctionDeclarations(req.Tools)}}
	}

	contents := make([]*genai.Content, 0, len(req.Turns))
	for _, turn := range req.Turns {
		content := toGeminiContent(turn)
		if content != nil {
			contents = append(contents, content)
		}
	}
	if len(contents) == 0 {
		return LLMResponse{}, errors.New("conversation: gemini request has no sendable content")
	}

	cs := model.StartChat()
	cs.History = contents[:len(contents)-1]
	last := contents[len(contents)-1]

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: gemini completion failed: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return LLMResponse{}, errors.New("conversation: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return LLMResponse{}, errors.New("conversation: gemini returned empty content")
	}

	var responseText strings.Builder
	var calls []*genai.FunctionCall
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			responseText.WriteString(string(p))
		case genai.FunctionCall:
			fc := p
			calls = append(calls, &fc)
		}
	}
	if len(calls) > 1 {
		return LLMResponse{}, ErrMultipleToolCalls
	}

	result := LLMResponse{
		Text:       strings.TrimSpace(responseText.String()),
		StopReason: candidate.FinishReason.String(),
	}
	if len(calls) == 1 {
		result.ToolCall = &ToolCall{Name: calls[0].Name, Args: calls[0].Args}
	}
	if resp.UsageMetadata != nil {
		result.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}

	return result, nil
}

// Close releases resources held by the Gemini client.
func (c *GeminiLLMClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func toGeminiContent(turn ChatTurn) *genai.Content {
	role := "user"
	if turn.Role == ChatRoleAssistant {
		role = "model"
	}

	content := &genai.Content{Role: role}
	switch {
	case turn.ToolCall != nil:
		content.Parts = append(content.Parts, genai.FunctionCall{
			Name: turn.ToolCall.Name,
			Args: turn.ToolCall.Args,
		})
	case turn.ToolResult != nil:
		content.Parts = append(content.Parts, genai.FunctionResponse{
			Name:     turn.ToolResult.Name,
			Response: turn.ToolResult.Body(),
		})
	default:
		text := strings.TrimSpace(turn.Content)
		if text == "" {
			return nil
		}
		content.Parts = append(content.Parts, genai.Text(text))
	}
	return content
}

func toFunctionDeclarations(tools []ToolSchema) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, len(tool.Params)),
		}
		for name, param := range tool.Params {
			schema.Properties[name] = &genai.Schema{
				Type:        toGeminiType(param.Type),
				Description: param.Description,
			}
			if param.Required {
				schema.Required = append(schema.Required, name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  schema,
		})
	}
	return decls
}

func toGeminiType(t ParamType) genai.Type {
	switch t {
	case ParamNumber:
		return genai.TypeNumber
	case ParamInteger:
		return genai.TypeInteger
	case ParamBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}
