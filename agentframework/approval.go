// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"context"
	"encoding/json"
	"log/slog"
)

const rejectedCallResult = "The user did not approve this function call."

// resolveApprovals rewrites a conversation so it can be sent to the model.
//
// Approval requests and responses are stripped, and every function call is
// immediately followed by its tool result. Calls that have no result yet are
// resolved here: approved (or approval-free) calls are invoked, the rest get a
// rejection result. The newly produced tool messages are returned separately
// so the caller can persist them; replaying a persisted conversation therefore
// never invokes a tool twice.
func resolveApprovals(
	ctx context.Context,
	messages []Message,
	tools map[string]Tool,
	fnMiddleware []FunctionMiddleware,
	config InvocationConfig,
) (rewritten, resolved []Message) {
	results := make(map[string]Message)
	decisions := make(map[string]*ApprovalResponseContent)
	for _, m := range messages {
		for _, c := range m.Contents {
			switch v := c.(type) {
			case *FunctionResultContent:
				results[v.CallID] = Message{Role: RoleTool, Contents: Contents{v}}
			case *ApprovalResponseContent:
				decisions[v.CallID] = v
			}
		}
	}

	rewritten = make([]Message, 0, len(messages))
	for _, m := range messages {
		var kept Contents
		var calls []*FunctionCallContent
		for _, c := range m.Contents {
			switch v := c.(type) {
			case *ApprovalRequestContent, *ApprovalResponseContent, *FunctionResultContent:
				continue
			case *FunctionCallContent:
				calls = append(calls, v)
			}
			kept = append(kept, c)
		}
		if len(kept) == 0 {
			continue
		}
		m.Contents = kept
		rewritten = append(rewritten, m)

		for _, call := range calls {
			if res, ok := results[call.CallID]; ok {
				rewritten = append(rewritten, res)
				continue
			}
			res := resolvePendingCall(ctx, call, decisions[call.CallID], tools, fnMiddleware, config)
			results[call.CallID] = res
			rewritten = append(rewritten, res)
			resolved = append(resolved, res)
		}
	}
	return rewritten, resolved
}

func resolvePendingCall(
	ctx context.Context,
	call *FunctionCallContent,
	decision *ApprovalResponseContent,
	tools map[string]Tool,
	fnMiddleware []FunctionMiddleware,
	config InvocationConfig,
) Message {
	tool, ok := tools[call.Name]
	if !ok {
		return NewToolMessage(call.CallID, "error: unknown tool")
	}
	if tool.Approval() == ApprovalAlways && (decision == nil || !decision.Approved) {
		result := rejectedCallResult
		if decision != nil && decision.Reason != "" {
			result += " Reason: " + decision.Reason
		}
		slog.DebugContext(ctx, "function call rejected", "tool", call.Name, "call_id", call.CallID)
		return NewToolMessage(call.CallID, result)
	}
	if tool.DeclarationOnly() {
		return NewToolMessage(call.CallID, "error: tool is declaration-only")
	}

	result, err := invokeToolWithMiddleware(ctx, tool, json.RawMessage(call.Arguments), fnMiddleware)
	if err != nil {
		slog.WarnContext(ctx, "approved tool invocation error", "tool", call.Name, "error", err)
		return NewToolMessage(call.CallID, toolErrorText(err, config))
	}
	return NewToolMessage(call.CallID, result)
}
