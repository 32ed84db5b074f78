// Copyright (c) Microsoft. All rights reserved.

package agentframework

import "context"

// ChatClient is the interface for interacting with an LLM backend.
// Provider packages (e.g., openai) implement this interface.
type ChatClient interface {
	// Response sends messages to the model and returns a complete response.
	Response(ctx context.Context, messages []Message, opts *ChatOptions) (*ChatResponse, error)
}

// Runnable is anything a hosting runtime can serve: a single [Agent] or a
// composition of agents.
type Runnable interface {
	// Name identifies the runnable in logs and responses.
	Name() string

	// Run processes messages and returns the complete response.
	Run(ctx context.Context, messages []Message, opts ...RunOption) (*AgentResponse, error)
}
