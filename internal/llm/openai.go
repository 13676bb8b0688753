package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// OpenAIClient talks to the OpenAI Responses API.
type OpenAIClient struct {
	client      openai.Client
	model       string
	visionModel string
}

// NewOpenAIClient creates a Responses API client. Extra request options are
// appended after the key and base URL.
func NewOpenAIClient(apiKey, baseURL, model, visionModel string, opts ...option.RequestOption) *OpenAIClient {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	return &OpenAIClient{
		client:      openai.NewClient(reqOpts...),
		model:       model,
		visionModel: visionModel,
	}
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string { return "openai" }

// Complete sends one Responses API request.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	params := c.buildParams(req)
	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return nil, c.wrapError(err)
	}

	out := &CompletionResponse{
		Content:    resp.OutputText(),
		StopReason: string(resp.Status),
		Model:      resp.Model,
		Usage: Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
		Duration: time.Since(start),
	}
	for _, item := range resp.Output {
		if item.Type != "function_call" {
			continue
		}
		id := item.CallID
		if id == "" {
			id = item.ID
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: id, Name: item.Name, Input: item.Arguments})
	}
	return out, nil
}

func (c *OpenAIClient) buildParams(req CompletionRequest) responses.ResponseNewParams {
	params := responses.ResponseNewParams{
		Model: modelFor(req, c.model, c.visionModel),
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: openAIInput(req.Messages)},
	}
	if system := prependSystem(req.System, req.Messages); system != "" {
		params.Instructions = openai.String(system)
	}
	if req.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	if len(req.Tools) > 0 {
		tools := make([]responses.ToolUnionParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			tool := responses.ToolParamOfFunction(t.Name, t.Parameters, true)
			if tool.OfFunction != nil && t.Description != "" {
				tool.OfFunction.Description = openai.String(t.Description)
			}
			tools = append(tools, tool)
		}
		params.Tools = tools
		params.ParallelToolCalls = openai.Bool(false)
		if req.RequireTool {
			params.ToolChoice = responses.ResponseNewParamsToolChoiceUnion{
				OfToolChoiceMode: openai.Opt(responses.ToolChoiceOptionsRequired),
			}
		}
	}
	return params
}

func openAIInput(msgs []Message) responses.ResponseInputParam {
	items := make(responses.ResponseInputParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			// carried in Instructions
		case RoleTool:
			items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(m.ToolCallID, m.Content))
		case RoleAssistant:
			if m.Content != "" {
				items = append(items, responses.ResponseInputItemParamOfMessage(m.Content, responses.EasyInputMessageRoleAssistant))
			}
			if m.ToolCall != nil {
				args := m.ToolCall.Input
				if args == "" {
					args = "{}"
				}
				items = append(items, responses.ResponseInputItemParamOfFunctionCall(args, m.ToolCall.ID, m.ToolCall.Name))
			}
		default:
			if len(m.Images) == 0 {
				items = append(items, responses.ResponseInputItemParamOfMessage(m.Content, responses.EasyInputMessageRoleUser))
				continue
			}
			content := make(responses.ResponseInputMessageContentListParam, 0, len(m.Images)+1)
			if m.Content != "" {
				content = append(content, responses.ResponseInputContentUnionParam{
					OfInputText: &responses.ResponseInputTextParam{Text: m.Content},
				})
			}
			for _, uri := range m.Images {
				content = append(content, responses.ResponseInputContentUnionParam{
					OfInputImage: &responses.ResponseInputImageParam{
						Detail:   responses.ResponseInputImageDetailAuto,
						ImageURL: openai.String(uri),
					},
				})
			}
			items = append(items, responses.ResponseInputItemParamOfMessage(content, responses.EasyInputMessageRoleUser))
		}
	}
	return items
}

func (c *OpenAIClient) wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: c.Name(), Message: apiErr.Message, Code: apiErr.StatusCode}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &ProviderError{Provider: c.Name(), Message: fmt.Sprintf("request failed: %v", err)}
}
