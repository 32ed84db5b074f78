// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ApprovalMode controls whether a tool requires human approval before invocation.
type ApprovalMode string

const (
	ApprovalNever  ApprovalMode = "never"
	ApprovalAlways ApprovalMode = "always"
)

// Tool defines a callable function that can be exposed to an LLM.
type Tool interface {
	// Name returns the function name as exposed to the model.
	Name() string

	// Description returns a human-readable description for the model.
	Description() string

	// Parameters returns the JSON Schema describing the function's input.
	Parameters() json.RawMessage

	// Invoke calls the function with the given JSON arguments.
	Invoke(ctx context.Context, args json.RawMessage) (any, error)

	// DeclarationOnly returns true if the tool should not be auto-invoked.
	DeclarationOnly() bool

	// Approval returns the approval mode for this tool.
	Approval() ApprovalMode
}

// HostedTool is a [Tool] executed by the model service itself (web search,
// MCP connections and similar). Chat clients send its Definition verbatim
// instead of a function declaration, and the agent never invokes it locally.
type HostedTool interface {
	Tool

	// Definition returns the wire representation of the tool.
	Definition() map[string]any
}

// FunctionTool is a concrete [Tool] backed by a Go function.
type FunctionTool struct {
	name            string
	description     string
	parameters      json.RawMessage
	fn              func(ctx context.Context, args json.RawMessage) (any, error)
	declarationOnly bool
	approvalMode    ApprovalMode
}

// ToolOption configures a [FunctionTool].
type ToolOption func(*FunctionTool)

// WithApprovalRequired sets the tool to require human approval before invocation.
func WithApprovalRequired() ToolOption {
	return func(t *FunctionTool) { t.approvalMode = ApprovalAlways }
}

// WithDeclarationOnly marks the tool as declaration-only (returned to caller, not auto-invoked).
func WithDeclarationOnly() ToolOption {
	return func(t *FunctionTool) { t.declarationOnly = true }
}

// NewTool creates a [FunctionTool] with raw JSON schema and handler.
func NewTool(name, description string, parameters json.RawMessage, fn func(ctx context.Context, args json.RawMessage) (any, error), opts ...ToolOption) *FunctionTool {
	t := &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewTypedTool creates a [FunctionTool] whose JSON Schema is inferred from
// the Args type and whose arguments are decoded into Args before fn runs.
//
// Field names come from json tags; a jsonschema tag becomes the property
// description:
//
//	type WeatherArgs struct {
//	    Location string `json:"location" jsonschema:"The location to get the weather for"`
//	}
func NewTypedTool[Args any](name, description string, fn func(ctx context.Context, args Args) (any, error), opts ...ToolOption) (*FunctionTool, error) {
	schema, err := jsonschema.For[Args](nil)
	if err != nil {
		return nil, fmt.Errorf("%w: schema for tool %q: %w", ErrInitialization, name, err)
	}
	params, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal schema for tool %q: %w", ErrInitialization, name, err)
	}

	wrapped := func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args Args
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, &ToolError{
					ToolName: name,
					Message:  "invalid arguments: " + err.Error(),
					Err:      ErrToolExecution,
				}
			}
		}
		return fn(ctx, args)
	}

	return NewTool(name, description, params, wrapped, opts...), nil
}

func (t *FunctionTool) Name() string                { return t.name }
func (t *FunctionTool) Description() string         { return t.description }
func (t *FunctionTool) Parameters() json.RawMessage { return t.parameters }
func (t *FunctionTool) DeclarationOnly() bool       { return t.declarationOnly }
func (t *FunctionTool) Approval() ApprovalMode      { return t.approvalMode }

// Invoke calls the tool's backing function.
func (t *FunctionTool) Invoke(ctx context.Context, args json.RawMessage) (any, error) {
	if t.fn == nil {
		return nil, &ToolError{
			ToolName: t.name,
			Message:  "tool is declaration-only and cannot be invoked",
			Err:      ErrToolExecution,
		}
	}
	return t.fn(ctx, args)
}
