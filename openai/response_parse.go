// Copyright (c) Microsoft. All rights reserved.

package openai

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	af "github.com/microsoft/hosted-agents-go/agentframework"
)

// chatCompletionResponse is the Chat Completions response body, including
// the Azure content filter annotations.
type chatCompletionResponse struct {
	ID                  string               `json:"id"`
	Model               string               `json:"model"`
	Choices             []choice             `json:"choices"`
	Usage               *usage               `json:"usage,omitempty"`
	PromptFilterResults []promptFilterResult `json:"prompt_filter_results,omitempty"`
}

type choice struct {
	Index                int           `json:"index"`
	Message              respMessage   `json:"message"`
	FinishReason         string        `json:"finish_reason"`
	ContentFilterResults filterResults `json:"content_filter_results,omitempty"`
}

type respMessage struct {
	Role      string     `json:"role"`
	Content   *string    `json:"content"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type promptFilterResult struct {
	PromptIndex          int           `json:"prompt_index"`
	ContentFilterResults filterResults `json:"content_filter_results"`
}

// filterResults maps a category (hate, violence, ...) to its verdict.
type filterResults map[string]struct {
	Filtered bool   `json:"filtered"`
	Severity string `json:"severity,omitempty"`
}

// filtered returns the sorted categories that were filtered.
func (f filterResults) filtered() []string {
	var cats []string
	for name, r := range f {
		if r.Filtered {
			cats = append(cats, name)
		}
	}
	sort.Strings(cats)
	return cats
}

// parseChatResponse converts the first choice into a [af.ChatResponse]. A
// completion stopped by the content filter is reported as ErrContentFilter
// rather than as an empty answer.
func parseChatResponse(raw *chatCompletionResponse) (*af.ChatResponse, error) {
	if len(raw.Choices) == 0 {
		return nil, &af.ServiceError{
			StatusCode: http.StatusOK,
			Message:    "response has no choices",
			Err:        af.ErrService,
		}
	}

	c := raw.Choices[0]
	if c.FinishReason == "content_filter" {
		return nil, &af.ServiceError{
			StatusCode: http.StatusOK,
			Code:       "content_filter",
			Message:    contentFilterMessage(c.ContentFilterResults.filtered()),
			Err:        af.ErrContentFilter,
		}
	}

	resp := &af.ChatResponse{
		ResponseID:   raw.ID,
		ModelID:      raw.Model,
		FinishReason: mapFinishReason(c.FinishReason),
	}
	if raw.Usage != nil {
		resp.Usage = af.UsageDetails{
			InputTokens:  raw.Usage.PromptTokens,
			OutputTokens: raw.Usage.CompletionTokens,
			TotalTokens:  raw.Usage.TotalTokens,
		}
	}

	msg := af.Message{Role: af.Role(c.Message.Role)}
	if msg.Role == "" {
		msg.Role = af.RoleAssistant
	}
	if c.Message.Content != nil && *c.Message.Content != "" {
		msg.Contents = append(msg.Contents, &af.TextContent{Text: *c.Message.Content})
	}
	for _, tc := range c.Message.ToolCalls {
		msg.Contents = append(msg.Contents, &af.FunctionCallContent{
			CallID:    tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	resp.Messages = []af.Message{msg}
	return resp, nil
}

func contentFilterMessage(categories []string) string {
	if len(categories) == 0 {
		return "completion was filtered"
	}
	return fmt.Sprintf("completion was filtered: %s", strings.Join(categories, ", "))
}

func mapFinishReason(s string) af.FinishReason {
	switch s {
	case "stop":
		return af.FinishReasonStop
	case "length":
		return af.FinishReasonLength
	case "tool_calls", "function_call":
		return af.FinishReasonToolCalls
	case "content_filter":
		return af.FinishReasonContentFilter
	default:
		return af.FinishReason(s)
	}
}
