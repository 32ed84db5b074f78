// Copyright (c) Microsoft. All rights reserved.

// Package foundrytools declares Azure AI Foundry hosted tools and attaches
// them to chat requests.
//
// Hosted tools are executed by the model service, not by the agent, so they
// travel as [agentframework.HostedTool] values and are serialized verbatim.
// The openai client sends requests carrying hosted tools to the Responses
// API. MCP tools need a [ConnectionResolver] to become a server the model
// service can reach:
//
//	tools := foundrytools.ToolsFromEnv(os.LookupEnv)
//	client, err := openai.New(
//	    openai.WithTokenProvider(tokens),
//	    openai.WithChatMiddleware(foundrytools.ChatMiddleware(tools,
//	        foundrytools.WithConnectionResolver(resolver))),
//	)
package foundrytools

import (
	"cmp"
	"context"
	"encoding/json"

	af "github.com/microsoft/hosted-agents-go/agentframework"
)

// Tool types understood by Foundry.
const (
	TypeWebSearchPreview = "web_search_preview"
	TypeMCP              = "mcp"
)

// EnvToolConnectionID names the optional project connection backing the MCP tool.
const EnvToolConnectionID = "AZURE_AI_PROJECT_TOOL_CONNECTION_ID"

// ToolDescriptor declares one hosted tool.
type ToolDescriptor struct {
	Type                string `json:"type"`
	ProjectConnectionID string `json:"project_connection_id,omitempty"`

	// Filled from the project connection when a [ConnectionResolver] is used.
	ServerLabel string `json:"server_label,omitempty"`
	ServerURL   string `json:"server_url,omitempty"`

	// RequireApproval is the MCP approval policy; empty means "never".
	RequireApproval string `json:"require_approval,omitempty"`
}

const defaultMCPApproval = "never"

var _ af.HostedTool = ToolDescriptor{}

// Name returns the server label for resolved MCP tools and the type otherwise.
func (d ToolDescriptor) Name() string {
	if d.ServerLabel != "" {
		return d.ServerLabel
	}
	return d.Type
}

func (d ToolDescriptor) Description() string         { return "" }
func (d ToolDescriptor) Parameters() json.RawMessage { return nil }
func (d ToolDescriptor) DeclarationOnly() bool       { return true }
func (d ToolDescriptor) Approval() af.ApprovalMode   { return af.ApprovalNever }

// Invoke always fails: hosted tools run inside the model service.
func (d ToolDescriptor) Invoke(context.Context, json.RawMessage) (any, error) {
	return nil, &af.ToolError{
		ToolName: d.Name(),
		Message:  "hosted tool is executed by the service",
		Err:      af.ErrToolExecution,
	}
}

// Definition returns the wire form of the descriptor. A resolved MCP tool
// (one with a server URL) is declared as a remote MCP server; otherwise the
// descriptor still refers to its project connection.
func (d ToolDescriptor) Definition() map[string]any {
	def := map[string]any{"type": d.Type}
	if d.Type == TypeMCP && d.ServerURL != "" {
		def["server_label"] = d.ServerLabel
		def["server_url"] = d.ServerURL
		def["require_approval"] = cmp.Or(d.RequireApproval, defaultMCPApproval)
		return def
	}
	if d.ProjectConnectionID != "" {
		def["project_connection_id"] = d.ProjectConnectionID
	}
	if d.ServerLabel != "" {
		def["server_label"] = d.ServerLabel
	}
	if d.ServerURL != "" {
		def["server_url"] = d.ServerURL
	}
	return def
}

// ToolsFromEnv returns the web search tool, followed by an MCP tool when
// AZURE_AI_PROJECT_TOOL_CONNECTION_ID is set and non-empty.
func ToolsFromEnv(lookup func(string) (string, bool)) []ToolDescriptor {
	tools := []ToolDescriptor{{Type: TypeWebSearchPreview}}
	if id, ok := lookup(EnvToolConnectionID); ok && id != "" {
		tools = append(tools, ToolDescriptor{Type: TypeMCP, ProjectConnectionID: id})
	}
	return tools
}
