// Copyright (c) Microsoft. All rights reserved.

// Package agentframework provides the agent core used by the hosted agent
// samples: a composable [Agent] with tool calling, human-in-the-loop
// approvals, middleware pipelines and session management.
//
// # Quick Start
//
// Create a ChatClient (from the openai package) and build an Agent:
//
//	client, err := openai.New(openai.WithTokenProvider(tp))
//	if err != nil {
//	    return err
//	}
//	agent := client.CreateAgent(
//	    agentframework.WithName("assistant"),
//	    agentframework.WithInstructions("You are helpful."),
//	)
//
//	resp, err := agent.Run(ctx, []agentframework.Message{
//	    agentframework.NewUserMessage("Hello!"),
//	})
//
// # Architecture
//
//   - [Agent]: composes a client with tools, middleware and sessions.
//   - [Runnable]: what a hosting runtime serves; implemented by [Agent] and
//     by composed workflows.
//   - [ChatClient]: interface for LLM backends.
//   - [Tool] and [HostedTool]: locally invoked functions and service-side
//     tool declarations.
//   - [Content]: sealed interface for message parts.
//   - [Session]: multi-turn conversation state.
//   - Middleware: three levels (Agent, Chat, Function).
//
// # Approvals
//
// Tools created with [WithApprovalRequired] are not invoked directly. The run
// ends with an [ApprovalRequestContent]; the caller answers with an
// [ApprovalResponseContent] in the next turn of the same [Session] and the
// agent then invokes (or skips) the pending call before asking the model again.
package agentframework
