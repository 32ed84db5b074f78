// Copyright (c) Microsoft. All rights reserved.

package openai

import (
	"encoding/json"
	"strings"

	af "github.com/microsoft/hosted-agents-go/agentframework"
)

// chatRequest is the Chat Completions request body. The model is implied by
// the deployment in the URL.
type chatRequest struct {
	Messages    []chatMessage     `json:"messages"`
	Temperature *float64          `json:"temperature,omitempty"`
	TopP        *float64          `json:"top_p,omitempty"`
	MaxTokens   *int              `json:"max_completion_tokens,omitempty"`
	Stop        []string          `json:"stop,omitempty"`
	Seed        *int              `json:"seed,omitempty"`
	Tools       []any             `json:"tools,omitempty"`
	ToolChoice  string            `json:"tool_choice,omitempty"`
	User        string            `json:"user,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    *string    `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolSpec struct {
	Type     string       `json:"type"`
	Function functionSpec `json:"function"`
}

type functionSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// buildRequest converts framework types into a Chat Completions request.
func buildRequest(messages []af.Message, opts *af.ChatOptions) *chatRequest {
	req := &chatRequest{}
	if opts != nil {
		req.Temperature = opts.Temperature
		req.TopP = opts.TopP
		req.MaxTokens = opts.MaxTokens
		req.Stop = opts.Stop
		req.Seed = opts.Seed
		req.User = opts.User
		req.Metadata = opts.Metadata
		req.Tools = convertTools(opts.Tools)
		if len(req.Tools) > 0 {
			req.ToolChoice = string(opts.ToolChoice)
		}
	}

	req.Messages = convertMessages(messages)
	return req
}

// convertTools declares function tools. Hosted tools never reach chat
// completions; see responsesCall.
func convertTools(tools []af.Tool) []any {
	out := make([]any, 0, len(tools))
	for _, t := range tools {
		out = append(out, toolSpec{
			Type: "function",
			Function: functionSpec{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// convertMessages translates framework Messages into chat messages. Messages
// left without any sendable content are dropped.
func convertMessages(messages []af.Message) []chatMessage {
	result := make([]chatMessage, 0, len(messages))

	for _, msg := range messages {
		cm := chatMessage{
			Role: string(msg.Role),
			Name: msg.AuthorName,
		}

		var text []string
		for _, c := range msg.Contents {
			switch v := c.(type) {
			case *af.TextContent:
				text = append(text, v.Text)
			case *af.FunctionCallContent:
				cm.ToolCalls = append(cm.ToolCalls, toolCall{
					ID:   v.CallID,
					Type: "function",
					Function: functionCall{
						Name:      v.Name,
						Arguments: v.Arguments,
					},
				})
			case *af.FunctionResultContent:
				cm.ToolCallID = v.CallID
				text = append(text, marshalResult(v.Result))
			}
		}

		if len(text) > 0 {
			s := strings.Join(text, "")
			cm.Content = &s
		}
		if cm.Content == nil && len(cm.ToolCalls) == 0 {
			continue
		}
		result = append(result, cm)
	}

	return result
}

func marshalResult(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "error: unserializable tool result"
	}
	return string(b)
}
