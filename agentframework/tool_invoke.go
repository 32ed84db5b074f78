// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// InvocationConfig controls the function invocation loop behavior.
type InvocationConfig struct {
	// MaxIterations is the maximum number of LLM round-trips for tool calling.
	// Default: 40.
	MaxIterations int

	// MaxConsecutiveErrors is the maximum number of consecutive tool errors
	// before aborting. Default: 3.
	MaxConsecutiveErrors int

	// TerminateOnUnknown aborts if the model calls an unknown tool.
	TerminateOnUnknown bool

	// IncludeDetailedErrors includes full error text in tool results sent
	// back to the model. When false, a generic error message is used.
	IncludeDetailedErrors bool
}

// DefaultInvocationConfig returns the default configuration.
func DefaultInvocationConfig() InvocationConfig {
	return InvocationConfig{
		MaxIterations:        40,
		MaxConsecutiveErrors: 3,
	}
}

func (c InvocationConfig) withDefaults() InvocationConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 40
	}
	if c.MaxConsecutiveErrors <= 0 {
		c.MaxConsecutiveErrors = 3
	}
	return c
}

// invokeFunctions runs the tool-calling loop: extract function calls from the
// response, invoke matched tools, append results and call the model again.
// Usage is summed over every round-trip.
func invokeFunctions(
	ctx context.Context,
	chat ChatHandler,
	messages []Message,
	opts *ChatOptions,
	config InvocationConfig,
	fnMiddleware []FunctionMiddleware,
) (*ChatResponse, error) {
	config = config.withDefaults()
	tools := toolsByName(opts.Tools)

	var usage UsageDetails
	consecutiveErrors := 0

	for iteration := 0; iteration < config.MaxIterations; iteration++ {
		resp, err := chat(ctx, messages, opts)
		if err != nil {
			return nil, err
		}
		usage = usage.Add(resp.Usage)
		resp.Usage = usage

		calls := extractFunctionCalls(resp)
		if len(calls) == 0 {
			return resp, nil
		}

		// Pending approvals end the run; the caller answers in the next turn.
		if pending := approvalRequests(calls, tools); len(pending) > 0 {
			resp.Messages = append(resp.Messages, Message{Role: RoleAssistant, Contents: pending})
			return resp, nil
		}

		var results []Message
		for _, call := range calls {
			tool, ok := tools[call.Name]
			if !ok {
				if config.TerminateOnUnknown {
					return nil, fmt.Errorf("%w: unknown tool %q", ErrToolExecution, call.Name)
				}
				slog.WarnContext(ctx, "unknown tool called", "tool", call.Name)
				results = append(results, NewToolMessage(call.CallID, "error: unknown tool"))
				consecutiveErrors++
				continue
			}

			if tool.DeclarationOnly() {
				return resp, nil
			}

			result, invokeErr := invokeToolWithMiddleware(ctx, tool, json.RawMessage(call.Arguments), fnMiddleware)
			if invokeErr != nil {
				consecutiveErrors++
				slog.WarnContext(ctx, "tool invocation error",
					"tool", call.Name,
					"error", invokeErr,
					"consecutive_errors", consecutiveErrors,
				)
				if consecutiveErrors >= config.MaxConsecutiveErrors {
					return nil, fmt.Errorf("%w: max consecutive errors reached (%d)", ErrToolExecution, consecutiveErrors)
				}
				results = append(results, NewToolMessage(call.CallID, toolErrorText(invokeErr, config)))
				continue
			}

			consecutiveErrors = 0
			results = append(results, NewToolMessage(call.CallID, result))
		}

		messages = append(messages, resp.Messages...)
		messages = append(messages, results...)
	}

	return nil, fmt.Errorf("%w: max iterations reached (%d)", ErrExecution, config.MaxIterations)
}

func approvalRequests(calls []*FunctionCallContent, tools map[string]Tool) Contents {
	var pending Contents
	for _, call := range calls {
		if t, ok := tools[call.Name]; ok && t.Approval() == ApprovalAlways {
			pending = append(pending, &ApprovalRequestContent{
				CallID:    call.CallID,
				Name:      call.Name,
				Arguments: call.Arguments,
			})
		}
	}
	return pending
}

func toolsByName(tools []Tool) map[string]Tool {
	m := make(map[string]Tool, len(tools))
	for _, t := range tools {
		m[t.Name()] = t
	}
	return m
}

func toolErrorText(err error, config InvocationConfig) string {
	if config.IncludeDetailedErrors {
		return err.Error()
	}
	return "error invoking tool"
}

// extractFunctionCalls finds all FunctionCallContent in a response's messages.
func extractFunctionCalls(resp *ChatResponse) []*FunctionCallContent {
	var calls []*FunctionCallContent
	for _, msg := range resp.Messages {
		for _, c := range msg.Contents {
			if fc, ok := c.(*FunctionCallContent); ok {
				calls = append(calls, fc)
			}
		}
	}
	return calls
}

// invokeToolWithMiddleware runs the tool through the function middleware chain.
func invokeToolWithMiddleware(ctx context.Context, tool Tool, args json.RawMessage, mws []FunctionMiddleware) (any, error) {
	handler := func(ctx context.Context, t Tool, a json.RawMessage) (any, error) {
		return t.Invoke(ctx, a)
	}
	return chainFunctionMiddleware(handler, mws...)(ctx, tool, args)
}
