package conversation

import (
	"context"
	"errors"
)

// Chat roles as presented to the language model. Operator and agent
// replies both collapse into the assistant role so the model sees a
// single continuous counterpart.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ErrMultipleToolCalls is returned by LLM clients when the model emits
// more than one tool invocation in a single response. The contract is
// at most one tool call per turn; anything else aborts the run.
var ErrMultipleToolCalls = errors.New("conversation: model returned multiple tool calls")

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolError is the structured failure half of a tool result.
type ToolError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ToolResult is the outcome of executing a tool call. Exactly one of
// Payload or Err is meaningful. Degraded marks payloads computed from a
// fallback path rather than the live upstream.
type ToolResult struct {
	Name     string         `json:"name"`
	Payload  map[string]any `json:"payload,omitempty"`
	Degraded bool           `json:"degraded,omitempty"`
	Err      *ToolError     `json:"error,omitempty"`
}

// Body renders the result as the map handed back to the model on the
// second call. Failures become an error object so the model can phrase
// a graceful reply instead of hallucinating numbers.
func (r ToolResult) Body() map[string]any {
	if r.Err != nil {
		return map[string]any{
			"error":      r.Err.Message,
			"error_kind": r.Err.Kind,
		}
	}
	body := make(map[string]any, len(r.Payload)+1)
	for k, v := range r.Payload {
		body[k] = v
	}
	if r.Degraded {
		body["degraded"] = true
	}
	return body
}

// ChatTurn is one entry of the model-facing transcript. Plain turns
// carry Content only. A tool round-trip is represented as an assistant
// turn holding the ToolCall followed by a user turn holding the
// ToolResult.
type ChatTurn struct {
	Role       string
	Content    string
	ToolCall   *ToolCall
	ToolResult *ToolResult
}

// ParamType enumerates the JSON-schema primitive types used by tool
// parameter declarations.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamInteger ParamType = "integer"
	ParamBoolean ParamType = "boolean"
)

// ToolParam declares a single named parameter of a tool.
type ToolParam struct {
	Type        ParamType
	Description string
	Required    bool
}

// ToolSchema is the model-facing declaration of one tool.
type ToolSchema struct {
	Name        string
	Description string
	Params      map[string]ToolParam
}

// TokenUsage reports model token consumption for a single call.
type TokenUsage struct {
	InputTokens  int32 `json:"input_tokens"`
	OutputTokens int32 `json:"output_tokens"`
	TotalTokens  int32 `json:"total_tokens"`
}

// LLMRequest is a provider-neutral chat completion request.
type LLMRequest struct {
	Model       string
	System      []string
	Turns       []ChatTurn
	Temperature float32
	MaxTokens   int32
	Tools       []ToolSchema
}

// LLMResponse is the provider-neutral completion. When the model asked
// for a tool, ToolCall is set and Text may be empty.
type LLMResponse struct {
	Text       string
	ToolCall   *ToolCall
	Usage      TokenUsage
	StopReason string
}

// LLMClient generates chat completions. Implementations must honor the
// context deadline and must reject responses carrying more than one
// tool call with ErrMultipleToolCalls.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
