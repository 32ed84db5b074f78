// Copyright (c) Microsoft. All rights reserved.

package openai

import (
	"context"
	"net/http"
	"strings"

	af "github.com/microsoft/hosted-agents-go/agentframework"
)

const responsesPath = "/responses"

// responsesRequest is a stateless Responses API request: the full
// conversation is sent every time and nothing is stored service-side.
type responsesRequest struct {
	Model           string            `json:"model"`
	Input           []any             `json:"input"`
	Tools           []any             `json:"tools,omitempty"`
	ToolChoice      string            `json:"tool_choice,omitempty"`
	Temperature     *float64          `json:"temperature,omitempty"`
	TopP            *float64          `json:"top_p,omitempty"`
	MaxOutputTokens *int              `json:"max_output_tokens,omitempty"`
	User            string            `json:"user,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Store           bool              `json:"store"`
}

type inputMessage struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

type inputFunctionCall struct {
	Type      string `json:"type"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type inputFunctionOutput struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

// responseFunctionSpec is the flat function tool shape of the Responses API.
type responseFunctionSpec struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

type responsesResponse struct {
	ID                string               `json:"id"`
	Model             string               `json:"model"`
	Status            string               `json:"status"`
	Output            []responseOutputItem `json:"output"`
	Usage             *responsesUsage      `json:"usage,omitempty"`
	Error             *responsesError      `json:"error,omitempty"`
	IncompleteDetails *incompleteDetails   `json:"incomplete_details,omitempty"`
}

type incompleteDetails struct {
	Reason string `json:"reason"`
}

type responseOutputItem struct {
	Type      string         `json:"type"`
	ID        string         `json:"id"`
	Role      string         `json:"role,omitempty"`
	Content   []responsePart `json:"content,omitempty"`
	CallID    string         `json:"call_id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Arguments string         `json:"arguments,omitempty"`
}

type responsePart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responsesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type responsesError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func hasHostedTools(tools []af.Tool) bool {
	for _, t := range tools {
		if _, ok := t.(af.HostedTool); ok {
			return true
		}
	}
	return false
}

// responsesCall runs one model turn through {endpoint}/openai/responses.
// Hosted tool calls happen inside the service; only function calls come
// back for the agent to execute.
func (c *Client) responsesCall(ctx context.Context, messages []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error) {
	var raw responsesResponse
	if err := c.post(ctx, responsesPath, c.respAPIVersion, buildResponsesRequest(c.deployment, messages, opts), &raw); err != nil {
		return nil, err
	}
	result, err := parseResponsesResponse(&raw)
	if err != nil {
		return nil, err
	}
	result.Raw = &raw
	return result, nil
}

func buildResponsesRequest(deployment string, messages []af.Message, opts *af.ChatOptions) *responsesRequest {
	req := &responsesRequest{
		Model:           deployment,
		Input:           convertInput(messages),
		Tools:           convertResponseTools(opts.Tools),
		Temperature:     opts.Temperature,
		TopP:            opts.TopP,
		MaxOutputTokens: opts.MaxTokens,
		User:            opts.User,
		Metadata:        opts.Metadata,
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = string(opts.ToolChoice)
	}
	return req
}

func convertResponseTools(tools []af.Tool) []any {
	out := make([]any, 0, len(tools))
	for _, t := range tools {
		if hosted, ok := t.(af.HostedTool); ok {
			out = append(out, hosted.Definition())
			continue
		}
		spec := responseFunctionSpec{Type: "function", Name: t.Name(), Description: t.Description()}
		if p := t.Parameters(); len(p) > 0 {
			spec.Parameters = p
		}
		out = append(out, spec)
	}
	return out
}

// convertInput flattens messages into Responses input items. Text of one
// message becomes one message item; calls and results become their own items.
func convertInput(messages []af.Message) []any {
	items := make([]any, 0, len(messages))
	for _, msg := range messages {
		var text []string
		var calls []any
		for _, c := range msg.Contents {
			switch v := c.(type) {
			case *af.TextContent:
				text = append(text, v.Text)
			case *af.FunctionCallContent:
				calls = append(calls, inputFunctionCall{
					Type: "function_call", CallID: v.CallID, Name: v.Name, Arguments: v.Arguments,
				})
			case *af.FunctionResultContent:
				calls = append(calls, inputFunctionOutput{
					Type: "function_call_output", CallID: v.CallID, Output: marshalResult(v.Result),
				})
			}
		}
		if len(text) > 0 && msg.Role != af.RoleTool {
			items = append(items, inputMessage{Type: "message", Role: string(msg.Role), Content: strings.Join(text, "")})
		}
		items = append(items, calls...)
	}
	return items
}

func parseResponsesResponse(raw *responsesResponse) (*af.ChatResponse, error) {
	switch {
	case raw.Error != nil:
		svcErr := &af.ServiceError{
			StatusCode: http.StatusOK,
			Code:       raw.Error.Code,
			Message:    raw.Error.Message,
			Err:        af.ErrService,
		}
		if raw.Error.Code == "content_filter" {
			svcErr.Err = af.ErrContentFilter
		}
		return nil, svcErr
	case raw.IncompleteDetails != nil && raw.IncompleteDetails.Reason == "content_filter":
		return nil, &af.ServiceError{
			StatusCode: http.StatusOK,
			Code:       "content_filter",
			Message:    contentFilterMessage(nil),
			Err:        af.ErrContentFilter,
		}
	}

	resp := &af.ChatResponse{
		ResponseID:   raw.ID,
		ModelID:      raw.Model,
		FinishReason: af.FinishReasonStop,
	}
	if raw.IncompleteDetails != nil && raw.IncompleteDetails.Reason == "max_output_tokens" {
		resp.FinishReason = af.FinishReasonLength
	}
	if raw.Usage != nil {
		resp.Usage = af.UsageDetails{
			InputTokens:  raw.Usage.InputTokens,
			OutputTokens: raw.Usage.OutputTokens,
			TotalTokens:  raw.Usage.TotalTokens,
		}
	}

	msg := af.Message{Role: af.RoleAssistant}
	for _, item := range raw.Output {
		switch item.Type {
		case "message":
			for _, part := range item.Content {
				if part.Type == "output_text" && part.Text != "" {
					msg.Contents = append(msg.Contents, &af.TextContent{Text: part.Text})
				}
			}
		case "function_call":
			msg.Contents = append(msg.Contents, &af.FunctionCallContent{
				CallID:    item.CallID,
				Name:      item.Name,
				Arguments: item.Arguments,
			})
			resp.FinishReason = af.FinishReasonToolCalls
		}
		// web_search_call, mcp_call and mcp_list_tools ran in the service.
	}
	resp.Messages = []af.Message{msg}
	return resp, nil
}
