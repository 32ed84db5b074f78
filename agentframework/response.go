// Copyright (c) Microsoft. All rights reserved.

package agentframework

import "strings"

// UsageDetails holds token consumption statistics for a model response.
type UsageDetails struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add returns the element-wise sum of u and other.
func (u UsageDetails) Add(other UsageDetails) UsageDetails {
	return UsageDetails{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// ChatResponse is the complete response from a [ChatClient].
type ChatResponse struct {
	Messages       []Message
	ResponseID     string
	ConversationID string
	ModelID        string
	FinishReason   FinishReason
	Usage          UsageDetails
	Raw            any
}

// Text returns the concatenated text of all messages in this response.
func (r *ChatResponse) Text() string {
	return joinText(r.Messages)
}

// AgentResponse is the complete response from an [Agent] run.
type AgentResponse struct {
	Messages   []Message
	ResponseID string
	AgentID    string
	Usage      UsageDetails
	Raw        any
}

// Text returns the concatenated text of all messages in this agent response.
func (r *AgentResponse) Text() string {
	return joinText(r.Messages)
}

// ApprovalRequests returns all [ApprovalRequestContent] items across messages.
func (r *AgentResponse) ApprovalRequests() []*ApprovalRequestContent {
	var reqs []*ApprovalRequestContent
	for _, m := range r.Messages {
		for _, c := range m.Contents {
			if ar, ok := c.(*ApprovalRequestContent); ok {
				reqs = append(reqs, ar)
			}
		}
	}
	return reqs
}

func joinText(msgs []Message) string {
	var b strings.Builder
	for i := range msgs {
		b.WriteString(msgs[i].Text())
	}
	return b.String()
}
