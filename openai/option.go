// Copyright (c) Microsoft. All rights reserved.

package openai

import (
	"context"
	"net/http"

	af "github.com/microsoft/hosted-agents-go/agentframework"
)

// Environment variables read by [New] when the matching option is not given.
const (
	EnvEndpoint   = "AZURE_OPENAI_ENDPOINT"
	EnvDeployment = "AZURE_OPENAI_CHAT_DEPLOYMENT_NAME"
	EnvAPIVersion = "AZURE_OPENAI_API_VERSION"
	EnvAPIKey     = "AZURE_OPENAI_API_KEY"

	// EnvResponsesAPIVersion is the api-version for requests that carry
	// hosted tools and therefore go to the Responses API.
	EnvResponsesAPIVersion = "AZURE_OPENAI_RESPONSES_API_VERSION"

	DefaultAPIVersion          = "2024-10-21"
	DefaultResponsesAPIVersion = "2025-04-01-preview"
)

// TokenProvider returns a bearer token for every request.
// identity.TokenProvider satisfies it.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// clientConfig holds resolved configuration for the Azure OpenAI client.
type clientConfig struct {
	endpoint       string
	deployment     string
	apiVersion     string
	respAPIVersion string
	apiKey         string
	tokenProvider  TokenProvider
	httpClient     *http.Client
	headers        map[string]string
	lookupEnv      func(string) (string, bool)
	chatMiddleware []af.ChatMiddleware
}

// Option configures an Azure OpenAI [Client].
type Option func(*clientConfig)

// WithEndpoint sets the resource endpoint, e.g. https://my-resource.openai.azure.com.
func WithEndpoint(endpoint string) Option {
	return func(c *clientConfig) { c.endpoint = endpoint }
}

// WithDeployment sets the chat model deployment name.
func WithDeployment(name string) Option {
	return func(c *clientConfig) { c.deployment = name }
}

// WithAPIVersion overrides the api-version query parameter.
func WithAPIVersion(version string) Option {
	return func(c *clientConfig) { c.apiVersion = version }
}

// WithResponsesAPIVersion sets the api-version used for Responses API calls.
func WithResponsesAPIVersion(version string) Option {
	return func(c *clientConfig) { c.respAPIVersion = version }
}

// WithTokenProvider authenticates requests with Microsoft Entra bearer tokens.
// Share one provider between every client of a process.
func WithTokenProvider(tp TokenProvider) Option {
	return func(c *clientConfig) { c.tokenProvider = tp }
}

// WithAPIKey authenticates requests with the api-key header.
func WithAPIKey(key string) Option {
	return func(c *clientConfig) { c.apiKey = key }
}

// WithHTTPClient provides a custom http.Client for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = client }
}

// WithHeaders adds custom headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *clientConfig) { c.headers = headers }
}

// WithEnvLookup replaces os.LookupEnv for the environment defaults.
func WithEnvLookup(lookup func(string) (string, bool)) Option {
	return func(c *clientConfig) { c.lookupEnv = lookup }
}

// WithChatMiddleware adds middleware to the chat pipeline.
// Middleware is applied in the order provided (first = outermost).
func WithChatMiddleware(mw ...af.ChatMiddleware) Option {
	return func(c *clientConfig) { c.chatMiddleware = append(c.chatMiddleware, mw...) }
}

func (c *clientConfig) applyEnv() {
	env := func(name string) string {
		v, _ := c.lookupEnv(name)
		return v
	}
	if c.endpoint == "" {
		c.endpoint = env(EnvEndpoint)
	}
	if c.deployment == "" {
		c.deployment = env(EnvDeployment)
	}
	if c.apiVersion == "" {
		c.apiVersion = env(EnvAPIVersion)
	}
	if c.apiVersion == "" {
		c.apiVersion = DefaultAPIVersion
	}
	if c.respAPIVersion == "" {
		c.respAPIVersion = env(EnvResponsesAPIVersion)
	}
	if c.respAPIVersion == "" {
		c.respAPIVersion = DefaultResponsesAPIVersion
	}
	if c.apiKey == "" && c.tokenProvider == nil {
		c.apiKey = env(EnvAPIKey)
	}
}
