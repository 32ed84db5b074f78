// Copyright (c) Microsoft. All rights reserved.

package agentframework

// ContentType identifies the kind of content within a message.
type ContentType string

const (
	ContentTypeText             ContentType = "text"
	ContentTypeError            ContentType = "error"
	ContentTypeFunctionCall     ContentType = "functionCall"
	ContentTypeFunctionResult   ContentType = "functionResult"
	ContentTypeApprovalRequest  ContentType = "functionApprovalRequest"
	ContentTypeApprovalResponse ContentType = "functionApprovalResponse"
)

// Content is a sealed interface representing a piece of content within a [Message].
// Use a type switch to inspect the underlying type.
type Content interface {
	// Type returns the discriminator for this content item.
	Type() ContentType

	sealed()
}

// Contents is an ordered list of [Content] items.
type Contents []Content

// base is embedded by every concrete Content type to satisfy the sealed marker.
type base struct{}

func (base) sealed() {}

// TextContent holds plain text.
type TextContent struct {
	base
	Text string
}

func (c *TextContent) Type() ContentType { return ContentTypeText }

// ErrorContent represents an error returned as message content.
type ErrorContent struct {
	base
	Message   string
	ErrorCode string
}

func (c *ErrorContent) Type() ContentType { return ContentTypeError }

// FunctionCallContent represents a tool/function call requested by the model.
type FunctionCallContent struct {
	base
	CallID    string
	Name      string
	Arguments string // JSON-encoded arguments
}

func (c *FunctionCallContent) Type() ContentType { return ContentTypeFunctionCall }

// FunctionResultContent represents the result of a tool/function call.
type FunctionResultContent struct {
	base
	CallID string
	Result any
}

func (c *FunctionResultContent) Type() ContentType { return ContentTypeFunctionResult }

// ApprovalRequestContent asks the caller to approve a pending function call.
type ApprovalRequestContent struct {
	base
	CallID    string
	Name      string
	Arguments string
}

func (c *ApprovalRequestContent) Type() ContentType { return ContentTypeApprovalRequest }

// ApprovalResponseContent carries the caller's decision for a pending call.
type ApprovalResponseContent struct {
	base
	CallID   string
	Approved bool
	Reason   string
}

func (c *ApprovalResponseContent) Type() ContentType { return ContentTypeApprovalResponse }
