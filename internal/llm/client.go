// Package llm defines the backend client interface and the provider clients
// that talk to hosted generative models.
//
// Every provider speaks the same small dialect: a system prompt, a history of
// messages (text, inline images, tool calls and tool results) and an optional
// set of tool definitions of which the model may be forced to pick one.
package llm

import (
	"context"
	"time"
)

// Role constants for messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is a single turn in a conversation.
//
// An assistant message with ToolCall set records the tool the model picked;
// the matching RoleTool message carries the result under the same ToolCallID.
type Message struct {
	Role       string    `json:"role"`
	Content    string    `json:"content,omitempty"`
	Images     []string  `json:"images,omitempty"` // data URIs
	ToolCall   *ToolCall `json:"toolCall,omitempty"`
	ToolCallID string    `json:"toolCallId,omitempty"`
	ToolName   string    `json:"toolName,omitempty"`
}

// ToolDefinition describes a tool the model can invoke.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema object
}

// Purpose selects which configured model serves a request.
type Purpose string

const (
	PurposeChat   Purpose = "chat"
	PurposeVision Purpose = "vision"
)

// CompletionRequest is the input to a Complete call.
type CompletionRequest struct {
	Model       string           `json:"model,omitempty"` // overrides the purpose default
	Purpose     Purpose          `json:"purpose,omitempty"`
	System      string           `json:"system,omitempty"`
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	RequireTool bool             `json:"requireTool,omitempty"` // the model must call one of Tools
	MaxTokens   int              `json:"maxTokens,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
}

// CompletionResponse is the result of a completion.
type CompletionResponse struct {
	Content    string        `json:"content"`
	StopReason string        `json:"stopReason,omitempty"`
	ToolCalls  []ToolCall    `json:"toolCalls,omitempty"`
	Usage      Usage         `json:"usage"`
	Model      string        `json:"model,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// ToolCall is a model request to invoke a tool.
type ToolCall struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Input string `json:"input"` // JSON string
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Client is the interface all backend providers must implement.
type Client interface {
	// Complete sends a request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g., "openai", "gemini").
	Name() string
}

// modelFor picks the model for a request from a provider's chat and vision defaults.
func modelFor(req CompletionRequest, chat, vision string) string {
	if req.Model != "" {
		return req.Model
	}
	if req.Purpose == PurposeVision && vision != "" {
		return vision
	}
	return chat
}
