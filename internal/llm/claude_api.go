package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
)

const claudeDefaultMaxTokens = 1024

// ClaudeAPIClient talks to the Claude Messages API.
type ClaudeAPIClient struct {
	client      anthropic.Client
	model       string
	visionModel string
	maxTokens   int64
}

// NewClaudeAPIClient creates a Messages API client. Extra request options are
// appended after the key and base URL.
func NewClaudeAPIClient(apiKey, baseURL, model, visionModel string, opts ...aoption.RequestOption) *ClaudeAPIClient {
	reqOpts := []aoption.RequestOption{aoption.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, aoption.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	return &ClaudeAPIClient{
		client:      anthropic.NewClient(reqOpts...),
		model:       model,
		visionModel: visionModel,
		maxTokens:   claudeDefaultMaxTokens,
	}
}

// Name returns the provider name.
func (c *ClaudeAPIClient) Name() string {
	return "claude"
}

// Complete sends a completion request to the Claude API.
func (c *ClaudeAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	params, err := c.buildParams(req)
	if err != nil {
		return nil, &ProviderError{Provider: c.Name(), Message: err.Error()}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, c.wrapError(err)
	}
	return c.responseToCompletion(msg, time.Since(start)), nil
}

func (c *ClaudeAPIClient) buildParams(req CompletionRequest) (anthropic.MessageNewParams, error) {
	msgs, err := claudeMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelFor(req, c.model, c.visionModel)),
		MaxTokens: c.maxTokens,
		Messages:  msgs,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}
	if system := prependSystem(req.System, req.Messages); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			tool := anthropic.ToolParam{
				Name:        t.Name,
				InputSchema: anthropic.ToolInputSchemaParam{Type: "object", Properties: t.Parameters["properties"], Required: requiredNames(t.Parameters)},
			}
			if t.Description != "" {
				tool.Description = anthropic.String(t.Description)
			}
			tools = append(tools, anthropic.ToolUnionParam{OfTool: &tool})
		}
		params.Tools = tools
		if req.RequireTool {
			params.ToolChoice = anthropic.ToolChoiceUnionParam{
				OfAny: &anthropic.ToolChoiceAnyParam{DisableParallelToolUse: anthropic.Bool(true)},
			}
		}
	}
	return params, nil
}

// claudeMessages converts history into content blocks. Tool results travel
// as user messages, and consecutive same-role messages are merged since the
// API requires alternating roles.
func claudeMessages(msgs []Message) ([]anthropic.MessageParam, error) {
	var out []anthropic.MessageParam
	push := func(role anthropic.MessageParamRole, blocks ...anthropic.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			return
		}
		out = append(out, anthropic.MessageParam{Role: role, Content: blocks})
	}

	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
		case RoleTool:
			push(anthropic.MessageParamRoleUser, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
		case RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			if m.ToolCall != nil {
				input := json.RawMessage(m.ToolCall.Input)
				if len(input) == 0 {
					input = json.RawMessage("{}")
				}
				if !json.Valid(input) {
					return nil, fmt.Errorf("tool call %s has invalid arguments", m.ToolCall.ID)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(m.ToolCall.ID, input, m.ToolCall.Name))
			}
			push(anthropic.MessageParamRoleAssistant, blocks...)
		default:
			var blocks []anthropic.ContentBlockParamUnion
			for _, uri := range m.Images {
				mime, data, err := splitDataURIBase64(uri)
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, anthropic.NewImageBlockBase64(mime, data))
			}
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			push(anthropic.MessageParamRoleUser, blocks...)
		}
	}
	return out, nil
}

func (c *ClaudeAPIClient) responseToCompletion(msg *anthropic.Message, duration time.Duration) *CompletionResponse {
	var content strings.Builder
	var toolCalls []ToolCall

	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			content.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			input := string(b.Input)
			if input == "" {
				input = "{}"
			}
			toolCalls = append(toolCalls, ToolCall{ID: b.ID, Name: b.Name, Input: input})
		}
	}

	return &CompletionResponse{
		Content:    content.String(),
		StopReason: string(msg.StopReason),
		ToolCalls:  toolCalls,
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
		Model:    string(msg.Model),
		Duration: duration,
	}
}

func (c *ClaudeAPIClient) wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: c.Name(), Message: claudeErrorMessage(apiErr), Code: apiErr.StatusCode}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &ProviderError{Provider: c.Name(), Message: fmt.Sprintf("request failed: %v", err)}
}

// claudeErrorMessage pulls "type: message" out of the error body.
func claudeErrorMessage(apiErr *anthropic.Error) string {
	var e struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(apiErr.RawJSON()), &e); err == nil && e.Error.Message != "" {
		return e.Error.Type + ": " + e.Error.Message
	}
	return apiErr.Error()
}

// requiredNames reads the required list of a JSON schema object.
func requiredNames(schema map[string]any) []string {
	switch v := schema["required"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, n := range v {
			if s, ok := n.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
