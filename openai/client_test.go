// Copyright (c) Microsoft. All rights reserved.

package openai_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	af "github.com/microsoft/hosted-agents-go/agentframework"
	"github.com/microsoft/hosted-agents-go/openai"
)

// mockTransportFunc is a RoundTripper that delegates to a function.
type mockTransportFunc func(*http.Request) (*http.Response, error)

func (f mockTransportFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newMockHTTPClient(fn func(*http.Request) (*http.Response, error)) *http.Client {
	return &http.Client{Transport: mockTransportFunc(fn)}
}

func jsonResponse(status int, body any) *http.Response {
	b, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(b)),
	}
}

type staticTokens struct {
	token string
	calls int
	err   error
}

func (s *staticTokens) Token(context.Context) (string, error) {
	s.calls++
	return s.token, s.err
}

func noEnv(string) (string, bool) { return "", false }

func textCompletion(text string) map[string]any {
	return map[string]any{
		"id":    "chatcmpl-123",
		"model": "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": text},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 8, "total_tokens": 18},
	}
}

func newTestClient(t *testing.T, fn func(*http.Request) (*http.Response, error), opts ...openai.Option) *openai.Client {
	t.Helper()
	base := []openai.Option{
		openai.WithEnvLookup(noEnv),
		openai.WithEndpoint("https://example.openai.azure.com/"),
		openai.WithDeployment("gpt-4o"),
		openai.WithTokenProvider(&staticTokens{token: "tok"}),
		openai.WithHTTPClient(newMockHTTPClient(fn)),
	}
	c, err := openai.New(append(base, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	tokens := &staticTokens{token: "tok"}
	tests := []struct {
		name string
		opts []openai.Option
	}{
		{"missing endpoint", []openai.Option{openai.WithDeployment("d"), openai.WithTokenProvider(tokens)}},
		{"missing deployment", []openai.Option{openai.WithEndpoint("https://x"), openai.WithTokenProvider(tokens)}},
		{"missing auth", []openai.Option{openai.WithEndpoint("https://x"), openai.WithDeployment("d")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := openai.New(append(tc.opts, openai.WithEnvLookup(noEnv))...)
			assert.ErrorIs(t, err, af.ErrInitialization)
		})
	}
}

func TestNew_EnvironmentDefaults(t *testing.T) {
	env := map[string]string{
		openai.EnvEndpoint:   "https://env.openai.azure.com",
		openai.EnvDeployment: "env-deployment",
		openai.EnvAPIKey:     "secret",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	var gotURL, gotKey string
	c, err := openai.New(
		openai.WithEnvLookup(lookup),
		openai.WithHTTPClient(newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
			gotURL = req.URL.String()
			gotKey = req.Header.Get("api-key")
			return jsonResponse(200, textCompletion("hi")), nil
		})),
	)
	require.NoError(t, err)
	assert.Equal(t, "env-deployment", c.Deployment())

	_, err = c.Response(context.Background(), []af.Message{af.NewUserMessage("hi")}, nil)
	require.NoError(t, err)
	assert.Equal(t,
		"https://env.openai.azure.com/openai/deployments/env-deployment/chat/completions?api-version="+openai.DefaultAPIVersion,
		gotURL)
	assert.Equal(t, "secret", gotKey)
}

func TestClient_Response_Basic(t *testing.T) {
	tokens := &staticTokens{token: "entra-token"}
	var reqBody map[string]any

	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "/openai/deployments/gpt-4o/chat/completions", req.URL.Path)
		assert.Equal(t, "2024-06-01", req.URL.Query().Get("api-version"))
		assert.Equal(t, "Bearer entra-token", req.Header.Get("Authorization"))
		assert.Empty(t, req.Header.Get("api-key"))

		body, _ := io.ReadAll(req.Body)
		require.NoError(t, json.Unmarshal(body, &reqBody))
		return jsonResponse(200, textCompletion("Hello, I'm an AI assistant!")), nil
	}, openai.WithTokenProvider(tokens), openai.WithAPIVersion("2024-06-01"))

	resp, err := c.Response(context.Background(), []af.Message{
		af.NewSystemMessage("be brief"),
		af.NewUserMessage("hello"),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Hello, I'm an AI assistant!", resp.Text())
	assert.Equal(t, "chatcmpl-123", resp.ResponseID)
	assert.Equal(t, af.FinishReasonStop, resp.FinishReason)
	assert.Equal(t, af.UsageDetails{InputTokens: 10, OutputTokens: 8, TotalTokens: 18}, resp.Usage)
	assert.Equal(t, 1, tokens.calls)

	assert.NotContains(t, reqBody, "model", "the deployment selects the model")
	msgs := reqBody["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "hello", msgs[1].(map[string]any)["content"])
}

func TestClient_TokenProviderError(t *testing.T) {
	c := newTestClient(t, func(*http.Request) (*http.Response, error) {
		t.Fatal("request must not be sent without a token")
		return nil, nil
	}, openai.WithTokenProvider(&staticTokens{err: errors.New("expired")}))

	_, err := c.Response(context.Background(), []af.Message{af.NewUserMessage("hi")}, nil)
	assert.ErrorIs(t, err, af.ErrAuth)
}

func TestClient_Response_ToolCalls(t *testing.T) {
	apiResp := map[string]any{
		"id": "chatcmpl-456",
		"choices": []map[string]any{{
			"finish_reason": "tool_calls",
			"message": map[string]any{
				"role":    "assistant",
				"content": nil,
				"tool_calls": []map[string]any{{
					"id":   "call_abc",
					"type": "function",
					"function": map[string]any{
						"name":      "get_weather",
						"arguments": `{"location":"Seattle"}`,
					},
				}},
			},
		}},
	}

	c := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(200, apiResp), nil
	})

	resp, err := c.Response(context.Background(), []af.Message{af.NewUserMessage("weather?")}, nil)
	require.NoError(t, err)
	assert.Equal(t, af.FinishReasonToolCalls, resp.FinishReason)

	require.Len(t, resp.Messages, 1)
	require.Len(t, resp.Messages[0].Contents, 1)
	fc, ok := resp.Messages[0].Contents[0].(*af.FunctionCallContent)
	require.True(t, ok)
	assert.Equal(t, "call_abc", fc.CallID)
	assert.Equal(t, "get_weather", fc.Name)
	assert.JSONEq(t, `{"location":"Seattle"}`, fc.Arguments)
}

func TestClient_ToolResultsAndCallsAreSerialized(t *testing.T) {
	var reqBody struct {
		Messages []struct {
			Role       string `json:"role"`
			Content    *string
			ToolCallID string `json:"tool_call_id"`
			ToolCalls  []struct {
				ID string `json:"id"`
			} `json:"tool_calls"`
		} `json:"messages"`
	}
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(req.Body)
		require.NoError(t, json.Unmarshal(body, &reqBody))
		return jsonResponse(200, textCompletion("ok")), nil
	})

	_, err := c.Response(context.Background(), []af.Message{
		af.NewUserMessage("weather?"),
		{Role: af.RoleAssistant, Contents: af.Contents{
			&af.FunctionCallContent{CallID: "call_1", Name: "get_weather", Arguments: `{}`},
		}},
		af.NewToolMessage("call_1", map[string]int{"high": 15}),
		{Role: af.RoleAssistant, Contents: af.Contents{
			&af.ApprovalRequestContent{CallID: "call_2", Name: "get_weather"},
		}},
	}, nil)
	require.NoError(t, err)

	require.Len(t, reqBody.Messages, 3, "approval-only messages are not sent")
	require.Len(t, reqBody.Messages[1].ToolCalls, 1)
	assert.Equal(t, "call_1", reqBody.Messages[1].ToolCalls[0].ID)
	assert.Equal(t, "tool", reqBody.Messages[2].Role)
	assert.Equal(t, "call_1", reqBody.Messages[2].ToolCallID)
	require.NotNil(t, reqBody.Messages[2].Content)
	assert.JSONEq(t, `{"high":15}`, *reqBody.Messages[2].Content)
}

type hostedTool struct{ def map[string]any }

func (h hostedTool) Name() string                { return h.def["type"].(string) }
func (h hostedTool) Description() string         { return "" }
func (h hostedTool) Parameters() json.RawMessage { return nil }
func (h hostedTool) DeclarationOnly() bool       { return true }
func (h hostedTool) Approval() af.ApprovalMode   { return af.ApprovalNever }
func (h hostedTool) Definition() map[string]any  { return h.def }
func (h hostedTool) Invoke(context.Context, json.RawMessage) (any, error) {
	return nil, errors.New("hosted")
}

func TestClient_FunctionToolsUseChatCompletions(t *testing.T) {
	fn := af.NewTool("get_time", "Current time", json.RawMessage(`{"type":"object"}`), nil)

	var path string
	var body struct {
		Tools      []json.RawMessage `json:"tools"`
		ToolChoice string            `json:"tool_choice"`
	}
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		path = req.URL.Path
		raw, _ := io.ReadAll(req.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		return jsonResponse(200, textCompletion("ok")), nil
	})

	_, err := c.Response(context.Background(), []af.Message{af.NewUserMessage("hi")}, &af.ChatOptions{
		Tools:      []af.Tool{fn},
		ToolChoice: af.ToolChoiceAuto,
	})
	require.NoError(t, err)

	assert.Equal(t, "/openai/deployments/gpt-4o/chat/completions", path)
	require.Len(t, body.Tools, 1)
	assert.JSONEq(t, `{"type":"function","function":{"name":"get_time","description":"Current time","parameters":{"type":"object"}}}`, string(body.Tools[0]))
	assert.Equal(t, "auto", body.ToolChoice)
}

func responsesReply(output ...map[string]any) map[string]any {
	return map[string]any{
		"id":     "resp_1",
		"model":  "gpt-4o",
		"status": "completed",
		"output": output,
		"usage":  map[string]any{"input_tokens": 20, "output_tokens": 6, "total_tokens": 26},
	}
}

func TestClient_HostedToolsUseResponsesAPI(t *testing.T) {
	fn := af.NewTool("get_time", "Current time", json.RawMessage(`{"type":"object"}`), nil)
	web := hostedTool{def: map[string]any{"type": "web_search_preview"}}
	mcp := hostedTool{def: map[string]any{"type": "mcp", "server_label": "docs", "server_url": "https://mcp.example.com", "require_approval": "never"}}

	var gotURL *url.URL
	var body map[string]any
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL
		raw, _ := io.ReadAll(req.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		return jsonResponse(200, responsesReply(
			map[string]any{"type": "web_search_call", "id": "ws_1", "status": "completed"},
			map[string]any{"type": "message", "id": "msg_1", "role": "assistant", "content": []map[string]any{
				{"type": "output_text", "text": "Go 1.24 shipped.", "annotations": []any{}},
			}},
		)), nil
	})

	resp, err := c.Response(context.Background(), []af.Message{
		af.NewSystemMessage("be brief"),
		af.NewUserMessage("what's new in Go?"),
	}, &af.ChatOptions{Tools: []af.Tool{fn, web, mcp}})
	require.NoError(t, err)

	assert.Equal(t, "/openai/responses", gotURL.Path)
	assert.Equal(t, openai.DefaultResponsesAPIVersion, gotURL.Query().Get("api-version"))
	assert.Equal(t, "gpt-4o", body["model"])
	assert.Equal(t, false, body["store"])

	tools, err := json.Marshal(body["tools"])
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"type":"function","name":"get_time","description":"Current time","parameters":{"type":"object"}},
		{"type":"web_search_preview"},
		{"type":"mcp","server_label":"docs","server_url":"https://mcp.example.com","require_approval":"never"}
	]`, string(tools))

	input, err := json.Marshal(body["input"])
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"type":"message","role":"system","content":"be brief"},
		{"type":"message","role":"user","content":"what's new in Go?"}
	]`, string(input))

	assert.Equal(t, "Go 1.24 shipped.", resp.Text())
	assert.Equal(t, "resp_1", resp.ResponseID)
	assert.Equal(t, af.FinishReasonStop, resp.FinishReason)
	assert.Equal(t, af.UsageDetails{InputTokens: 20, OutputTokens: 6, TotalTokens: 26}, resp.Usage)
}

func TestClient_ResponsesAPIFunctionCalls(t *testing.T) {
	web := hostedTool{def: map[string]any{"type": "web_search_preview"}}

	var input json.RawMessage
	var version string
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		version = req.URL.Query().Get("api-version")
		var body struct {
			Input json.RawMessage `json:"input"`
		}
		raw, _ := io.ReadAll(req.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		input = body.Input
		return jsonResponse(200, responsesReply(map[string]any{
			"type": "function_call", "id": "fc_2", "call_id": "call_2",
			"name": "get_time", "arguments": `{"tz":"UTC"}`,
		})), nil
	}, openai.WithResponsesAPIVersion("2025-05-01-preview"))

	resp, err := c.Response(context.Background(), []af.Message{
		af.NewUserMessage("time?"),
		{Role: af.RoleAssistant, Contents: af.Contents{
			&af.FunctionCallContent{CallID: "call_1", Name: "get_time", Arguments: `{}`},
		}},
		af.NewToolMessage("call_1", "12:00"),
	}, &af.ChatOptions{Tools: []af.Tool{web}})
	require.NoError(t, err)

	assert.Equal(t, "2025-05-01-preview", version)
	assert.JSONEq(t, `[
		{"type":"message","role":"user","content":"time?"},
		{"type":"function_call","call_id":"call_1","name":"get_time","arguments":"{}"},
		{"type":"function_call_output","call_id":"call_1","output":"12:00"}
	]`, string(input))

	require.Len(t, resp.Messages, 1)
	call, ok := resp.Messages[0].Contents[0].(*af.FunctionCallContent)
	require.True(t, ok)
	assert.Equal(t, "call_2", call.CallID)
	assert.Equal(t, `{"tz":"UTC"}`, call.Arguments)
	assert.Equal(t, af.FinishReasonToolCalls, resp.FinishReason)
}

func TestClient_ResponsesAPIErrors(t *testing.T) {
	web := hostedTool{def: map[string]any{"type": "web_search_preview"}}
	tests := []struct {
		name string
		body map[string]any
		want error
	}{
		{
			"failed response",
			map[string]any{"id": "resp_1", "status": "failed", "error": map[string]any{"code": "server_error", "message": "boom"}},
			af.ErrService,
		},
		{
			"content filter",
			map[string]any{"id": "resp_1", "status": "incomplete", "incomplete_details": map[string]any{"reason": "content_filter"}},
			af.ErrContentFilter,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(*http.Request) (*http.Response, error) {
				return jsonResponse(200, tc.body), nil
			})
			_, err := c.Response(context.Background(), []af.Message{af.NewUserMessage("hi")},
				&af.ChatOptions{Tools: []af.Tool{web}})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestClient_Response_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       map[string]any
		wantTarget error
	}{
		{"unauthorized", 401, map[string]any{"error": map[string]any{"message": "bad token"}}, af.ErrAuth},
		{"forbidden", 403, map[string]any{"error": map[string]any{"message": "no access"}}, af.ErrAuth},
		{"throttled", 429, map[string]any{"error": map[string]any{"message": "slow down", "code": "429"}}, af.ErrRateLimited},
		{"bad request", 400, map[string]any{"error": map[string]any{"message": "bad"}}, af.ErrInvalidRequest},
		{"content filter", 400, map[string]any{"error": map[string]any{"message": "filtered", "code": "content_filter"}}, af.ErrContentFilter},
		{"server error", 500, map[string]any{"error": map[string]any{"message": "oops"}}, af.ErrService},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(*http.Request) (*http.Response, error) {
				return jsonResponse(tc.status, tc.body), nil
			})
			_, err := c.Response(context.Background(), []af.Message{af.NewUserMessage("hi")}, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantTarget)

			var svcErr *af.ServiceError
			require.True(t, errors.As(err, &svcErr))
			assert.Equal(t, tc.status, svcErr.StatusCode)
		})
	}
}

func TestClient_ChatOptions_PassedThrough(t *testing.T) {
	var reqBody map[string]any
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(req.Body)
		require.NoError(t, json.Unmarshal(body, &reqBody))
		return jsonResponse(200, textCompletion("ok")), nil
	})

	temp, maxTokens := 0.7, 100
	_, err := c.Response(context.Background(), []af.Message{af.NewUserMessage("hi")}, &af.ChatOptions{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		Stop:        []string{"END"},
		User:        "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, 0.7, reqBody["temperature"])
	assert.Equal(t, float64(100), reqBody["max_completion_tokens"])
	assert.Equal(t, []any{"END"}, reqBody["stop"])
	assert.Equal(t, "user-1", reqBody["user"])
	assert.NotContains(t, reqBody, "tools")
}

func TestClient_ChatMiddlewareAndCreateAgent(t *testing.T) {
	var seenTools int
	mw := func(next af.ChatHandler) af.ChatHandler {
		return func(ctx context.Context, msgs []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error) {
			seenTools = len(opts.Tools)
			return next(ctx, msgs, opts)
		}
	}
	c := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(200, textCompletion("Hi from the agent")), nil
	}, openai.WithChatMiddleware(mw))

	agent := c.CreateAgent(af.WithName("FoundryToolAgent"), af.WithInstructions("be helpful"))
	assert.Equal(t, "FoundryToolAgent", agent.Name())
	assert.Same(t, c, agent.Client())

	resp, err := agent.Run(context.Background(), []af.Message{af.NewUserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "Hi from the agent", resp.Text())
	assert.Zero(t, seenTools)
}
