// Copyright (c) Microsoft. All rights reserved.

package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	af "github.com/microsoft/hosted-agents-go/agentframework"
)

// transport is an unexported interface for HTTP communication.
// The default implementation uses net/http; tests inject a mock.
type transport interface {
	do(ctx context.Context, method, path, apiVersion string, body any) (*http.Response, error)
}

// httpTransport sends requests to one Azure OpenAI resource. Paths are
// relative to {endpoint}/openai.
type httpTransport struct {
	client        *http.Client
	baseURL       string
	apiKey        string
	tokenProvider TokenProvider
	headers       map[string]string
}

func newHTTPTransport(cfg *clientConfig) *httpTransport {
	t := &httpTransport{
		client:        cfg.httpClient,
		baseURL:       resourceURL(cfg.endpoint),
		apiKey:        cfg.apiKey,
		tokenProvider: cfg.tokenProvider,
		headers:       cfg.headers,
	}
	if t.client == nil {
		t.client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return t
}

// resourceURL returns {endpoint}/openai.
func resourceURL(endpoint string) string {
	return strings.TrimRight(endpoint, "/") + "/openai"
}

// chatPath returns the chat completions path of a deployment.
func chatPath(deployment string) string {
	return "/deployments/" + url.PathEscape(deployment) + "/chat/completions"
}

func (t *httpTransport) do(ctx context.Context, method, path, apiVersion string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	u := t.baseURL + path + "?api-version=" + url.QueryEscape(apiVersion)
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if t.tokenProvider != nil {
		token, err := t.tokenProvider.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: acquire token: %w", af.ErrAuth, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Set("api-key", t.apiKey)
	}
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	slog.DebugContext(ctx, "azure openai request", "method", method, "path", path)
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, parseErrorResponse(resp)
	}

	return resp, nil
}

// parseErrorResponse reads an error response body and returns a typed error.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)

	msg := apiErr.Error.Message
	if msg == "" {
		msg = string(body)
	}

	svcErr := &af.ServiceError{
		StatusCode: resp.StatusCode,
		Message:    msg,
		Code:       apiErr.Error.Code,
		RequestID:  requestID(resp.Header),
		RetryAfter: retryAfter(resp.Header),
	}

	switch {
	case apiErr.Error.Code == "content_filter":
		svcErr.Err = af.ErrContentFilter
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		svcErr.Err = af.ErrAuth
	case resp.StatusCode == http.StatusTooManyRequests:
		svcErr.Err = af.ErrRateLimited
	case resp.StatusCode == http.StatusBadRequest:
		svcErr.Err = af.ErrInvalidRequest
	default:
		svcErr.Err = af.ErrService
	}

	return svcErr
}

// requestID returns the correlation ID Azure attaches to every response.
func requestID(h http.Header) string {
	if id := h.Get("apim-request-id"); id != "" {
		return id
	}
	return h.Get("x-request-id")
}

// retryAfter reads retry-after-ms, falling back to Retry-After in seconds.
func retryAfter(h http.Header) time.Duration {
	if ms, err := strconv.Atoi(h.Get("retry-after-ms")); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	if s, err := strconv.Atoi(h.Get("Retry-After")); err == nil && s > 0 {
		return time.Duration(s) * time.Second
	}
	return 0
}
