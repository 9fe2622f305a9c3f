package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockLLMClient implements LLMClient over the Bedrock Converse API.
// It serves as the fallback provider when Gemini is unavailable.
type BedrockLLMClient struct {
	api bedrockConverseAPI
}

// NewBedrockLLMClient creates a Bedrock-backed LLM client.
func NewBedrockLLMClient(api bedrockConverseAPI) *BedrockLLMClient {
	if api == nil {
		panic("conversation: bedrock converse client cannot be nil")
	}
	return &BedrockLLMClient{api: api}
}

// Complete sends a Converse request. Tool declarations map onto
// Bedrock's tool configuration; a response carrying more than one
// toolUse block is rejected with ErrMultipleToolCalls.
func (c *BedrockLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	if strings.TrimSpace(req.Model) == "" {
		return LLMResponse{}, errors.New("conversation: bedrock model id is required")
	}

	systemBlocks := make([]brtypes.SystemContentBlock, 0, len(req.System))
	for _, block := range req.System {
		if strings.TrimSpace(block) == "" {
			continue
		}
		systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: block})
	}

	messages, err := toBedrockMessages(req.Turns)
	if err != nil {
		return LLMResponse{}, err
	}

	inference := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(req.MaxTokens)
	}
	// Allow callers to omit temperature by passing a negative value.
	if req.Temperature >= 0 {
		inference.Temperature = aws.Float32(req.Temperature)
	}
	if inference.MaxTokens == nil && inference.Temperature == nil {
		inference = nil
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(req.Model),
		System:          systemBlocks,
		Messages:        messages,
		InferenceConfig: inference,
	}
	if len(req.Tools) > 0 {
		input.ToolConfig = &brtypes.ToolConfiguration{Tools: toBedrockTools(req.Tools)}
	}

	out, err := c.api.Converse(ctx, input)
	if err != nil {
		return LLMResponse{}, err
	}
	if out == nil {
		return LLMResponse{}, errors.New("conversation: bedrock response is nil")
	}

	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return LLMResponse{}, errors.New("conversation: bedrock response did not include a message output")
	}
	if len(msgOut.Value.Content) == 0 {
		return LLMResponse{}, errors.New("conversation: bedrock response message was empty")
	}

	var builder strings.Builder
	var toolUses []brtypes.ToolUseBlock
	for _, block := range msgOut.Value.Content {
		switch b := block.(type) {
		case *brtypes.ContentBlockMemberText:
			builder.WriteString(b.Value)
		case *brtypes.ContentBlockMemberToolUse:
			toolUses = append(toolUses, b.Value)
		}
	}
	if len(toolUses) > 1 {
		return LLMResponse{}, ErrMultipleToolCalls
	}

	resp := LLMResponse{Text: strings.TrimSpace(builder.String())}
	if out.StopReason != "" {
		resp.StopReason = string(out.StopReason)
	}
	if len(toolUses) == 1 {
		use := toolUses[0]
		args := map[string]any{}
		if use.Input != nil {
			if err := use.Input.UnmarshalSmithyDocument(&args); err != nil {
				return LLMResponse{}, fmt.Errorf("conversation: bedrock tool input parse: %w", err)
			}
		}
		resp.ToolCall = &ToolCall{Name: aws.ToString(use.Name), Args: args}
	}
	if out.Usage != nil {
		resp.Usage = TokenUsage{
			InputTokens:  int32OrZero(out.Usage.InputTokens),
			OutputTokens: int32OrZero(out.Usage.OutputTokens),
			TotalTokens:  int32OrZero(out.Usage.TotalTokens),
		}
	}
	return resp, nil
}

func toBedrockMessages(turns []ChatTurn) ([]brtypes.Message, error) {
	messages := make([]brtypes.Message, 0, len(turns))
	toolUseID := ""
	for i, turn := range turns {
		role := brtypes.ConversationRoleUser
		if turn.Role == ChatRoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}

		switch {
		case turn.ToolCall != nil:
			toolUseID = fmt.Sprintf("tooluse-%d", i)
			messages = append(messages, brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
						ToolUseId: aws.String(toolUseID),
						Name:      aws.String(turn.ToolCall.Name),
						Input:     document.NewLazyDocument(turn.ToolCall.Args),
					}},
				},
			})
		case turn.ToolResult != nil:
			if toolUseID == "" {
				return nil, errors.New("conversation: tool result without preceding tool call")
			}
			messages = append(messages, brtypes.Message{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberToolResult{Value: brtypes.ToolResultBlock{
						ToolUseId: aws.String(toolUseID),
						Content: []brtypes.ToolResultContentBlock{
							&brtypes.ToolResultContentBlockMemberJson{Value: document.NewLazyDocument(turn.ToolResult.Body())},
						},
					}},
				},
			})
		default:
			content := strings.TrimSpace(turn.Content)
			if content == "" {
				continue
			}
			messages = append(messages, brtypes.Message{
				Role: role,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: content},
				},
			})
		}
	}
	return messages, nil
}

func toBedrockTools(tools []ToolSchema) []brtypes.Tool {
	out := make([]brtypes.Tool, 0, len(tools))
	for _, tool := range tools {
		properties := make(map[string]any, len(tool.Params))
		var required []string
		for name, param := range tool.Params {
			properties[name] = map[string]any{
				"type":        string(param.Type),
				"description": param.Description,
			}
			if param.Required {
				required = append(required, name)
			}
		}
		schema := map[string]any{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			schema["required"] = required
		}
		out = append(out, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name:        aws.String(tool.Name),
			Description: aws.String(tool.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
		}})
	}
	return out
}

func int32OrZero(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}
