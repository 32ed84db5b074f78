// Copyright (c) Microsoft. All rights reserved.

package hosting

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	af "github.com/microsoft/hosted-agents-go/agentframework"
)

// Item and content types of the Responses wire format.
const (
	itemMessage             = "message"
	itemMCPApprovalRequest  = "mcp_approval_request"
	itemMCPApprovalResponse = "mcp_approval_response"

	partInputText  = "input_text"
	partOutputText = "output_text"
	partText       = "text"
)

var errEmptyInput = errors.New("input is required")

// CreateResponseRequest is the body of POST /responses.
type CreateResponseRequest struct {
	Input        json.RawMessage   `json:"input"`
	Conversation json.RawMessage   `json:"conversation,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Stream       bool              `json:"stream,omitempty"`
}

// InputItem is one element of an array input.
type InputItem struct {
	Type    string          `json:"type,omitempty"`
	Role    string          `json:"role,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`

	// mcp_approval_response
	ApprovalRequestID string `json:"approval_request_id,omitempty"`
	Approve           bool   `json:"approve,omitempty"`
	Reason            string `json:"reason,omitempty"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Response is the body returned by POST /responses.
type Response struct {
	ID           string            `json:"id"`
	Object       string            `json:"object"`
	CreatedAt    int64             `json:"created_at"`
	Status       string            `json:"status"`
	Agent        *AgentReference   `json:"agent,omitempty"`
	Conversation *ConversationRef  `json:"conversation,omitempty"`
	Output       []OutputItem      `json:"output"`
	Usage        *af.UsageDetails  `json:"usage,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Error        *ErrorBody        `json:"error,omitempty"`
}

// AgentReference names the runnable that produced a response.
type AgentReference struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// ConversationRef identifies the conversation a response belongs to.
type ConversationRef struct {
	ID string `json:"id"`
}

// OutputItem is a message or an approval request.
type OutputItem struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`

	// message
	Role       string       `json:"role,omitempty"`
	Content    []OutputText `json:"content,omitempty"`
	AuthorName string       `json:"author_name,omitempty"`

	// mcp_approval_request
	Name        string `json:"name,omitempty"`
	Arguments   string `json:"arguments,omitempty"`
	ServerLabel string `json:"server_label,omitempty"`
}

// OutputText is a text part of an output message.
type OutputText struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	Annotations []any  `json:"annotations"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// conversationID accepts either "conv_..." or {"id": "conv_..."}.
func conversationID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, nil
	}
	var ref ConversationRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("conversation must be a string or an object with an id: %w", err)
	}
	return ref.ID, nil
}

// inputMessages converts the request input into framework messages.
func inputMessages(raw json.RawMessage) ([]af.Message, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errEmptyInput
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if text == "" {
			return nil, errEmptyInput
		}
		return []af.Message{af.NewUserMessage(text)}, nil
	}

	var items []InputItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("input must be a string or an array of items: %w", err)
	}

	var msgs []af.Message
	for i, item := range items {
		switch item.Type {
		case "", itemMessage:
			m, err := itemMessageToMessage(item)
			if err != nil {
				return nil, fmt.Errorf("input[%d]: %w", i, err)
			}
			if len(m.Contents) > 0 {
				msgs = append(msgs, m)
			}
		case itemMCPApprovalResponse:
			if item.ApprovalRequestID == "" {
				return nil, fmt.Errorf("input[%d]: approval_request_id is required", i)
			}
			msgs = append(msgs, af.NewApprovalResponseMessage(item.ApprovalRequestID, item.Approve, item.Reason))
		default:
			return nil, fmt.Errorf("input[%d]: unsupported item type %q", i, item.Type)
		}
	}
	if len(msgs) == 0 {
		return nil, errEmptyInput
	}
	return msgs, nil
}

func itemMessageToMessage(item InputItem) (af.Message, error) {
	role := af.Role(item.Role)
	switch role {
	case "":
		role = af.RoleUser
	case af.RoleUser, af.RoleAssistant, af.RoleSystem:
	case "developer":
		role = af.RoleSystem
	default:
		return af.Message{}, fmt.Errorf("unsupported role %q", item.Role)
	}
	m := af.Message{Role: role}

	if len(item.Content) == 0 {
		return m, nil
	}
	var text string
	if err := json.Unmarshal(item.Content, &text); err == nil {
		if text != "" {
			m.Contents = append(m.Contents, &af.TextContent{Text: text})
		}
		return m, nil
	}
	var parts []contentPart
	if err := json.Unmarshal(item.Content, &parts); err != nil {
		return m, fmt.Errorf("content must be a string or an array of parts: %w", err)
	}
	for _, p := range parts {
		switch p.Type {
		case partInputText, partOutputText, partText:
			if p.Text != "" {
				m.Contents = append(m.Contents, &af.TextContent{Text: p.Text})
			}
		default:
			return m, fmt.Errorf("unsupported content part %q", p.Type)
		}
	}
	return m, nil
}

// outputItems renders the runnable's messages. Function calls and results
// stay internal; approval requests are surfaced so the caller can answer them.
func outputItems(msgs []af.Message, serverLabel string) []OutputItem {
	items := make([]OutputItem, 0, len(msgs))
	for _, m := range msgs {
		var texts []OutputText
		for _, c := range m.Contents {
			switch v := c.(type) {
			case *af.TextContent:
				texts = append(texts, OutputText{Type: partOutputText, Text: v.Text, Annotations: []any{}})
			case *af.ApprovalRequestContent:
				items = append(items, OutputItem{
					Type:        itemMCPApprovalRequest,
					ID:          v.CallID,
					Name:        v.Name,
					Arguments:   v.Arguments,
					ServerLabel: serverLabel,
				})
			}
		}
		if len(texts) > 0 {
			items = append(items, OutputItem{
				Type:       itemMessage,
				ID:         newID("msg_"),
				Status:     "completed",
				Role:       string(af.RoleAssistant),
				Content:    texts,
				AuthorName: m.AuthorName,
			})
		}
	}
	return items
}

func newResponse(agentName, conversation string, metadata map[string]string) *Response {
	return &Response{
		ID:           newID("resp_"),
		Object:       "response",
		CreatedAt:    time.Now().Unix(),
		Agent:        &AgentReference{Type: "agent_reference", Name: agentName},
		Conversation: &ConversationRef{ID: conversation},
		Output:       []OutputItem{},
		Metadata:     metadata,
	}
}
