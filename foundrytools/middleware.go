// Copyright (c) Microsoft. All rights reserved.

package foundrytools

import (
	"context"
	"fmt"

	af "github.com/microsoft/hosted-agents-go/agentframework"
)

// MiddlewareOption configures [ChatMiddleware].
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	resolver *ConnectionResolver
}

// WithConnectionResolver resolves MCP descriptors against their project
// connection before each request, adding server_label and server_url.
func WithConnectionResolver(r *ConnectionResolver) MiddlewareOption {
	return func(c *middlewareConfig) { c.resolver = r }
}

// ChatMiddleware appends tools, in order, to the options of every chat
// request. The caller's options are not modified.
func ChatMiddleware(tools []ToolDescriptor, opts ...MiddlewareOption) af.ChatMiddleware {
	cfg := &middlewareConfig{}
	for _, o := range opts {
		o(cfg)
	}
	tools = append([]ToolDescriptor(nil), tools...)

	return func(next af.ChatHandler) af.ChatHandler {
		return func(ctx context.Context, msgs []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error) {
			withTools := opts.Clone()
			for _, t := range tools {
				if cfg.resolver != nil && t.Type == TypeMCP && t.ProjectConnectionID != "" {
					resolved, err := cfg.resolver.Resolve(ctx, t)
					if err != nil {
						return nil, fmt.Errorf("%w: tool connection %q: %w", af.ErrExecution, t.ProjectConnectionID, err)
					}
					t = resolved
				}
				withTools.Tools = append(withTools.Tools, t)
			}
			return next(ctx, msgs, withTools)
		}
	}
}
