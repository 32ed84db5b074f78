// Copyright (c) Microsoft. All rights reserved.

package foundrytools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"

	"github.com/microsoft/hosted-agents-go/identity"
)

const (
	moduleName    = "foundrytools"
	moduleVersion = "v0.1.0"

	connectionsAPIVersion = "v1"
)

// ErrConnectionNotFound is returned when the project has no connection with
// the requested name.
var ErrConnectionNotFound = errors.New("project connection not found")

// Connection is the subset of a Foundry project connection used for tools.
type Connection struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	Target   string            `json:"target"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ConnectionResolver looks up project connections and caches them for the
// life of the process. Safe for concurrent use.
type ConnectionResolver struct {
	endpoint string
	pipeline runtime.Pipeline

	mu    sync.Mutex
	cache map[string]*Connection
}

// NewConnectionResolver creates a resolver for the project at
// projectEndpoint (AZURE_AI_PROJECT_ENDPOINT). Requests carry a bearer token
// for the Foundry scope obtained from cred.
func NewConnectionResolver(projectEndpoint string, cred azcore.TokenCredential, options *policy.ClientOptions) (*ConnectionResolver, error) {
	if projectEndpoint == "" {
		return nil, errors.New("project endpoint is required")
	}
	if cred == nil {
		return nil, errors.New("credential is required")
	}
	if options == nil {
		options = &policy.ClientOptions{}
	}
	auth := runtime.NewBearerTokenPolicy(cred, []string{identity.AIFoundryScope}, nil)
	pl := runtime.NewPipeline(moduleName, moduleVersion, runtime.PipelineOptions{
		PerRetry: []policy.Policy{auth},
	}, options)

	return &ConnectionResolver{
		endpoint: strings.TrimRight(projectEndpoint, "/"),
		pipeline: pl,
		cache:    make(map[string]*Connection),
	}, nil
}

// Get returns the named connection.
func (r *ConnectionResolver) Get(ctx context.Context, name string) (*Connection, error) {
	r.mu.Lock()
	if c, ok := r.cache[name]; ok {
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	conn, err := r.fetch(ctx, name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[name] = conn
	r.mu.Unlock()
	return conn, nil
}

// Resolve fills ServerLabel and ServerURL of an MCP descriptor from its
// project connection.
func (r *ConnectionResolver) Resolve(ctx context.Context, d ToolDescriptor) (ToolDescriptor, error) {
	conn, err := r.Get(ctx, d.ProjectConnectionID)
	if err != nil {
		return d, err
	}
	if d.ServerLabel == "" {
		d.ServerLabel = conn.Name
	}
	if d.ServerURL == "" {
		d.ServerURL = conn.Target
	}
	return d, nil
}

func (r *ConnectionResolver) fetch(ctx context.Context, name string) (*Connection, error) {
	req, err := runtime.NewRequest(ctx, http.MethodGet, r.endpoint+"/connections/"+url.PathEscape(name))
	if err != nil {
		return nil, err
	}
	q := req.Raw().URL.Query()
	q.Set("api-version", connectionsAPIVersion)
	req.Raw().URL.RawQuery = q.Encode()
	req.Raw().Header.Set("Accept", "application/json")

	resp, err := r.pipeline.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, name)
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return nil, runtime.NewResponseError(resp)
	}

	var conn Connection
	if err := runtime.UnmarshalAsJSON(resp, &conn); err != nil {
		return nil, fmt.Errorf("decode connection %s: %w", name, err)
	}
	if conn.Name == "" {
		conn.Name = name
	}
	return &conn, nil
}
