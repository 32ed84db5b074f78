// Copyright (c) Microsoft. All rights reserved.

package agentframework_test

import (
	"context"
	"sync"

	af "github.com/microsoft/hosted-agents-go/agentframework"
)

// fakeClient implements ChatClient for testing and records every request.
type fakeClient struct {
	mu         sync.Mutex
	calls      [][]af.Message
	opts       []*af.ChatOptions
	responseFn func(call int, msgs []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error)
}

func (f *fakeClient) Response(_ context.Context, msgs []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, msgs)
	f.opts = append(f.opts, opts)
	call := len(f.calls)
	f.mu.Unlock()
	return f.responseFn(call, msgs, opts)
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func textReply(text string) func(int, []af.Message, *af.ChatOptions) (*af.ChatResponse, error) {
	return func(int, []af.Message, *af.ChatOptions) (*af.ChatResponse, error) {
		return &af.ChatResponse{Messages: []af.Message{af.NewAssistantMessage(text)}}, nil
	}
}

func callMessage(callID, name, args string) af.Message {
	return af.Message{
		Role: af.RoleAssistant,
		Contents: af.Contents{
			&af.FunctionCallContent{CallID: callID, Name: name, Arguments: args},
		},
	}
}
