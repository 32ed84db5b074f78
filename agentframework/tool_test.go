// Copyright (c) Microsoft. All rights reserved.

package agentframework_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	af "github.com/microsoft/hosted-agents-go/agentframework"
)

// fakeHostedTool is a service-executed tool.
type fakeHostedTool struct {
	name    string
	invoked int
}

func (f *fakeHostedTool) Name() string                { return f.name }
func (f *fakeHostedTool) Description() string         { return "" }
func (f *fakeHostedTool) Parameters() json.RawMessage { return nil }
func (f *fakeHostedTool) DeclarationOnly() bool       { return true }
func (f *fakeHostedTool) Approval() af.ApprovalMode   { return af.ApprovalNever }
func (f *fakeHostedTool) Definition() map[string]any  { return map[string]any{"type": f.name} }
func (f *fakeHostedTool) Invoke(context.Context, json.RawMessage) (any, error) {
	f.invoked++
	return nil, nil
}

var _ af.HostedTool = (*fakeHostedTool)(nil)

func TestNewTool(t *testing.T) {
	params := json.RawMessage(`{"type":"object"}`)
	tool := af.NewTool("echo", "Echoes input", params, func(_ context.Context, args json.RawMessage) (any, error) {
		return string(args), nil
	})

	assert.Equal(t, "echo", tool.Name())
	assert.Equal(t, "Echoes input", tool.Description())
	assert.JSONEq(t, `{"type":"object"}`, string(tool.Parameters()))
	assert.False(t, tool.DeclarationOnly())
	assert.NotEqual(t, af.ApprovalAlways, tool.Approval())

	out, err := tool.Invoke(context.Background(), json.RawMessage(`"x"`))
	require.NoError(t, err)
	assert.Equal(t, `"x"`, out)
}

func TestToolOptions(t *testing.T) {
	tool := af.NewTool("t", "d", nil, nil, af.WithApprovalRequired(), af.WithDeclarationOnly())
	assert.Equal(t, af.ApprovalAlways, tool.Approval())
	assert.True(t, tool.DeclarationOnly())

	_, err := tool.Invoke(context.Background(), nil)
	assert.ErrorIs(t, err, af.ErrToolExecution)

	var toolErr *af.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "t", toolErr.ToolName)
}

func TestNewTypedTool_Schema(t *testing.T) {
	tool, err := af.NewTypedTool("get_weather", "Get the weather for a given location.",
		func(_ context.Context, args weatherArgs) (any, error) { return args.Location, nil })
	require.NoError(t, err)

	var schema struct {
		Type       string `json:"type"`
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	require.NoError(t, json.Unmarshal(tool.Parameters(), &schema))

	assert.Equal(t, "object", schema.Type)
	require.Contains(t, schema.Properties, "location")
	assert.Equal(t, "string", schema.Properties["location"].Type)
	assert.Equal(t, "The location to get the weather for", schema.Properties["location"].Description)
	assert.Contains(t, schema.Required, "location")
}

func TestNewTypedTool_Invoke(t *testing.T) {
	tool, err := af.NewTypedTool("get_weather", "weather",
		func(_ context.Context, args weatherArgs) (any, error) { return "sunny in " + args.Location, nil })
	require.NoError(t, err)

	out, err := tool.Invoke(context.Background(), json.RawMessage(`{"location":"Lisbon"}`))
	require.NoError(t, err)
	assert.Equal(t, "sunny in Lisbon", out)

	_, err = tool.Invoke(context.Background(), json.RawMessage(`{"location":`))
	assert.ErrorIs(t, err, af.ErrToolExecution)
}

func TestAgent_ToolErrorIsReportedToModel(t *testing.T) {
	failing := af.NewTool("fail", "always fails", nil, func(context.Context, json.RawMessage) (any, error) {
		return nil, &af.ToolError{ToolName: "fail", Message: "backend down", Err: af.ErrToolExecution}
	})
	client := &fakeClient{
		responseFn: func(call int, _ []af.Message, _ *af.ChatOptions) (*af.ChatResponse, error) {
			if call == 1 {
				return &af.ChatResponse{Messages: []af.Message{callMessage("c1", "fail", `{}`)}}, nil
			}
			return &af.ChatResponse{Messages: []af.Message{af.NewAssistantMessage("sorry")}}, nil
		},
	}

	agent := af.NewAgent(client,
		af.WithTools(failing),
		af.WithInvocationConfig(af.InvocationConfig{IncludeDetailedErrors: true}),
	)
	resp, err := agent.Run(context.Background(), []af.Message{af.NewUserMessage("go")})
	require.NoError(t, err)
	assert.Equal(t, "sorry", resp.Text())

	second := client.calls[1]
	fr := second[len(second)-1].Contents[0].(*af.FunctionResultContent)
	assert.Equal(t, `tool "fail": backend down`, fr.Result)
}

func TestAgent_UnknownTool(t *testing.T) {
	known := af.NewTool("known", "", nil, func(context.Context, json.RawMessage) (any, error) { return "ok", nil })
	client := &fakeClient{
		responseFn: func(call int, _ []af.Message, _ *af.ChatOptions) (*af.ChatResponse, error) {
			if call == 1 {
				return &af.ChatResponse{Messages: []af.Message{callMessage("c1", "missing", `{}`)}}, nil
			}
			return &af.ChatResponse{Messages: []af.Message{af.NewAssistantMessage("recovered")}}, nil
		},
	}

	t.Run("reported", func(t *testing.T) {
		c := &fakeClient{responseFn: client.responseFn}
		resp, err := af.NewAgent(c, af.WithTools(known)).Run(context.Background(), []af.Message{af.NewUserMessage("x")})
		require.NoError(t, err)
		assert.Equal(t, "recovered", resp.Text())
	})

	t.Run("terminate", func(t *testing.T) {
		c := &fakeClient{responseFn: client.responseFn}
		agent := af.NewAgent(c,
			af.WithTools(known),
			af.WithInvocationConfig(af.InvocationConfig{TerminateOnUnknown: true}),
		)
		_, err := agent.Run(context.Background(), []af.Message{af.NewUserMessage("x")})
		assert.ErrorIs(t, err, af.ErrToolExecution)
	})
}
