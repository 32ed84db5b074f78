// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
)

// Agent is the top-level conversational agent. It composes a [ChatClient]
// with tools, middleware and session management.
//
// Create one with [NewAgent] and functional options:
//
//	agent := agentframework.NewAgent(client,
//	    agentframework.WithName("assistant"),
//	    agentframework.WithInstructions("You are helpful."),
//	    agentframework.WithTools(weatherTool),
//	)
//
// An Agent is immutable after construction and safe for concurrent use as
// long as its client and tools are.
type Agent struct {
	id                  string
	name                string
	description         string
	client              ChatClient
	instructions        string
	tools               []Tool
	defaultOptions      *ChatOptions
	messageStoreFactory func() MessageStore
	agentMiddleware     []AgentMiddleware
	chatMiddleware      []ChatMiddleware
	functionMiddleware  []FunctionMiddleware
	invocationConfig    InvocationConfig
}

var _ Runnable = (*Agent)(nil)

// AgentOption configures an [Agent] via [NewAgent].
type AgentOption func(*Agent)

// WithName sets the agent's display name.
func WithName(name string) AgentOption {
	return func(a *Agent) { a.name = name }
}

// WithDescription sets the agent's description.
func WithDescription(desc string) AgentOption {
	return func(a *Agent) { a.description = desc }
}

// WithInstructions sets the system instructions for the agent.
func WithInstructions(instructions string) AgentOption {
	return func(a *Agent) { a.instructions = instructions }
}

// WithTools adds tools to the agent's default tool set.
func WithTools(tools ...Tool) AgentOption {
	return func(a *Agent) { a.tools = append(a.tools, tools...) }
}

// WithDefaultOptions sets default [ChatOptions] for all requests.
func WithDefaultOptions(opts *ChatOptions) AgentOption {
	return func(a *Agent) { a.defaultOptions = opts }
}

// WithMessageStoreFactory sets a factory for creating message stores
// when a session without a store is first used.
func WithMessageStoreFactory(f func() MessageStore) AgentOption {
	return func(a *Agent) { a.messageStoreFactory = f }
}

// WithAgentMiddleware adds [AgentMiddleware] to the agent pipeline.
func WithAgentMiddleware(mws ...AgentMiddleware) AgentOption {
	return func(a *Agent) { a.agentMiddleware = append(a.agentMiddleware, mws...) }
}

// WithChatMiddleware adds [ChatMiddleware] around every model call made by
// this agent. Prefer attaching middleware to the client when it should apply
// to every agent built from it.
func WithChatMiddleware(mws ...ChatMiddleware) AgentOption {
	return func(a *Agent) { a.chatMiddleware = append(a.chatMiddleware, mws...) }
}

// WithFunctionMiddleware adds [FunctionMiddleware] to the tool invocation pipeline.
func WithFunctionMiddleware(mws ...FunctionMiddleware) AgentOption {
	return func(a *Agent) { a.functionMiddleware = append(a.functionMiddleware, mws...) }
}

// WithInvocationConfig overrides the default [InvocationConfig] for the
// function calling loop.
func WithInvocationConfig(cfg InvocationConfig) AgentOption {
	return func(a *Agent) { a.invocationConfig = cfg }
}

// NewAgent creates an Agent with the given [ChatClient] and options.
func NewAgent(client ChatClient, opts ...AgentOption) *Agent {
	a := &Agent{
		id:               uuid.NewString(),
		client:           client,
		invocationConfig: DefaultInvocationConfig(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns the agent's unique identifier.
func (a *Agent) ID() string { return a.id }

// Name returns the agent's display name.
func (a *Agent) Name() string { return a.name }

// Description returns the agent's description.
func (a *Agent) Description() string { return a.description }

// Instructions returns the agent's system instructions.
func (a *Agent) Instructions() string { return a.instructions }

// Tools returns a copy of the agent's default tool set.
func (a *Agent) Tools() []Tool { return slices.Clone(a.tools) }

// Client returns the chat client the agent sends requests to.
func (a *Agent) Client() ChatClient { return a.client }

// RunOption configures a single [Agent.Run] call.
type RunOption func(*runConfig)

type runConfig struct {
	session *Session
	tools   []Tool
	options *ChatOptions
}

// WithSession attaches a [Session] for multi-turn conversation.
func WithSession(s *Session) RunOption {
	return func(c *runConfig) { c.session = s }
}

// WithRunTools provides per-call tools, added to the agent defaults.
func WithRunTools(tools ...Tool) RunOption {
	return func(c *runConfig) { c.tools = tools }
}

// WithRunOptions provides per-call [ChatOptions] overrides.
func WithRunOptions(opts *ChatOptions) RunOption {
	return func(c *runConfig) { c.options = opts }
}

// Run sends messages to the agent and returns a complete response.
func (a *Agent) Run(ctx context.Context, messages []Message, opts ...RunOption) (*AgentResponse, error) {
	cfg := &runConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := chainAgentMiddleware(a.buildHandler(cfg), a.agentMiddleware...)
	return handler(ctx, &AgentRequest{
		AgentName: a.name,
		Messages:  messages,
		Session:   cfg.session,
		Options:   cfg.options,
	})
}

// NewSession creates a [Session] backed by this agent's message store factory.
func (a *Agent) NewSession(opts ...SessionOption) *Session {
	opts = append([]SessionOption{WithSessionStore(a.newStore())}, opts...)
	return NewSession(opts...)
}

func (a *Agent) newStore() MessageStore {
	if a.messageStoreFactory != nil {
		return a.messageStoreFactory()
	}
	return NewInMemoryStore()
}

func (a *Agent) prepareChatOptions(cfg *runConfig, override *ChatOptions) *ChatOptions {
	opts := MergeChatOptions(a.defaultOptions, override)

	tools := make([]Tool, 0, len(a.tools)+len(cfg.tools)+len(opts.Tools))
	tools = append(tools, a.tools...)
	tools = append(tools, cfg.tools...)
	opts.Tools = append(tools, opts.Tools...)

	opts.Instructions = joinInstructions(a.instructions, opts.Instructions)
	return opts
}

func (a *Agent) loadHistory(ctx context.Context, session *Session, opts *ChatOptions) ([]Message, error) {
	if session == nil {
		return nil, nil
	}
	if sid := session.ServiceID(); sid != "" {
		opts.ConversationID = sid
	}
	store := session.Store()
	if store == nil {
		return nil, nil
	}
	history, err := store.ListMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load history: %w", ErrSession, err)
	}
	return history, nil
}

func (a *Agent) buildHandler(cfg *runConfig) AgentHandler {
	return func(ctx context.Context, req *AgentRequest) (*AgentResponse, error) {
		chatOpts := a.prepareChatOptions(cfg, req.Options)
		history, err := a.loadHistory(ctx, req.Session, chatOpts)
		if err != nil {
			return nil, err
		}

		tools := toolsByName(chatOpts.Tools)
		allMessages := append(history, req.Messages...)
		allMessages, resolved := resolveApprovals(ctx, allMessages, tools, a.functionMiddleware, a.invocationConfig)
		allMessages = PrependInstructions(allMessages, chatOpts.Instructions)

		slog.DebugContext(ctx, "agent run",
			"agent_id", a.id,
			"agent_name", a.name,
			"message_count", len(allMessages),
			"tool_count", len(chatOpts.Tools),
			"resolved_calls", len(resolved),
		)

		chat := ChainChatMiddleware(a.client.Response, a.chatMiddleware...)
		var chatResp *ChatResponse
		if len(chatOpts.Tools) > 0 {
			chatResp, err = invokeFunctions(ctx, chat, allMessages, chatOpts, a.invocationConfig, a.functionMiddleware)
		} else {
			chatResp, err = chat(ctx, allMessages, chatOpts)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExecution, err)
		}

		if req.Session != nil {
			persisted := append(slices.Clone(req.Messages), resolved...)
			if err := a.updateSession(ctx, req.Session, persisted, chatResp); err != nil {
				slog.WarnContext(ctx, "failed to update session", "error", err)
			}
		}

		return &AgentResponse{
			Messages:   chatResp.Messages,
			ResponseID: chatResp.ResponseID,
			AgentID:    a.id,
			Usage:      chatResp.Usage,
			Raw:        chatResp.Raw,
		}, nil
	}
}

func (a *Agent) updateSession(ctx context.Context, session *Session, request []Message, resp *ChatResponse) error {
	store := session.Store()
	if store == nil {
		// A service-side conversation ID switches the session to service mode.
		if resp.ConversationID != "" {
			return session.SetServiceID(resp.ConversationID)
		}
		store = a.newStore()
		if err := session.SetStore(store); err != nil {
			return err
		}
	}

	if err := store.AddMessages(ctx, request); err != nil {
		return err
	}
	return store.AddMessages(ctx, resp.Messages)
}
