// Copyright (c) Microsoft. All rights reserved.

package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	af "github.com/microsoft/hosted-agents-go/agentframework"
)

// Client implements [agentframework.ChatClient] against an Azure OpenAI
// chat deployment. Use [New] to create one.
//
// Requests go to Chat Completions unless they carry a
// [agentframework.HostedTool]; those go to the Responses API, which is where
// the service runs hosted tools.
type Client struct {
	tp             transport
	deployment     string
	apiVersion     string
	respAPIVersion string
	handler        af.ChatHandler
}

// Verify interface compliance at compile time.
var _ af.ChatClient = (*Client)(nil)

// New creates an Azure OpenAI [Client].
//
// Endpoint, deployment and api-version fall back to AZURE_OPENAI_ENDPOINT,
// AZURE_OPENAI_CHAT_DEPLOYMENT_NAME and AZURE_OPENAI_API_VERSION. A token
// provider or API key is required.
//
//	client, err := openai.New(
//	    openai.WithTokenProvider(tokens),
//	    openai.WithChatMiddleware(foundrytools.ChatMiddleware(tools)),
//	)
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{lookupEnv: os.LookupEnv}
	for _, o := range opts {
		o(cfg)
	}
	cfg.applyEnv()

	switch {
	case cfg.endpoint == "":
		return nil, fmt.Errorf("%w: endpoint is required (set %s)", af.ErrInitialization, EnvEndpoint)
	case cfg.deployment == "":
		return nil, fmt.Errorf("%w: deployment is required (set %s)", af.ErrInitialization, EnvDeployment)
	case cfg.tokenProvider == nil && cfg.apiKey == "":
		return nil, fmt.Errorf("%w: a token provider or API key is required", af.ErrInitialization)
	}

	c := &Client{
		tp:             newHTTPTransport(cfg),
		deployment:     cfg.deployment,
		apiVersion:     cfg.apiVersion,
		respAPIVersion: cfg.respAPIVersion,
	}
	c.handler = af.ChainChatMiddleware(c.coreResponse, cfg.chatMiddleware...)
	return c, nil
}

// newWithTransport creates a Client with a custom transport (for testing).
func newWithTransport(tp transport, deployment string, mws ...af.ChatMiddleware) *Client {
	c := &Client{
		tp:             tp,
		deployment:     deployment,
		apiVersion:     DefaultAPIVersion,
		respAPIVersion: DefaultResponsesAPIVersion,
	}
	c.handler = af.ChainChatMiddleware(c.coreResponse, mws...)
	return c
}

// Deployment returns the chat deployment name requests are sent to.
func (c *Client) Deployment() string { return c.deployment }

// CreateAgent builds an [agentframework.Agent] that sends its requests
// through this client and its middleware.
func (c *Client) CreateAgent(opts ...af.AgentOption) *af.Agent {
	return af.NewAgent(c, opts...)
}

// Response runs one model turn and returns the complete response. Requests
// that carry hosted tools go to the Responses API, all others to chat
// completions.
func (c *Client) Response(ctx context.Context, messages []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error) {
	return c.handler(ctx, messages, opts)
}

// coreResponse is the base implementation called by the middleware chain.
func (c *Client) coreResponse(ctx context.Context, messages []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error) {
	if opts != nil && hasHostedTools(opts.Tools) {
		return c.responsesCall(ctx, messages, opts)
	}

	var raw chatCompletionResponse
	if err := c.post(ctx, chatPath(c.deployment), c.apiVersion, buildRequest(messages, opts), &raw); err != nil {
		return nil, err
	}

	result, err := parseChatResponse(&raw)
	if err != nil {
		return nil, err
	}
	result.Raw = &raw
	return result, nil
}

// post sends body and decodes the JSON reply into out.
func (c *Client) post(ctx context.Context, path, apiVersion string, body, out any) error {
	resp, err := c.tp.do(ctx, http.MethodPost, path, apiVersion, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response body: %v", af.ErrService, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: parse response: %v", af.ErrService, err)
	}
	return nil
}
