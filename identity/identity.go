// Copyright (c) Microsoft. All rights reserved.

// Package identity creates Microsoft Entra credentials and the bearer token
// provider chat clients authenticate with.
package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	af "github.com/microsoft/hosted-agents-go/agentframework"
)

// Token scopes used by the hosted agents.
const (
	CognitiveServicesScope = "https://cognitiveservices.azure.com/.default"
	AIFoundryScope         = "https://ai.azure.com/.default"
)

// NewDefaultCredential returns the default Azure credential chain
// (environment, workload identity, managed identity, Azure CLI, ...).
func NewDefaultCredential() (azcore.TokenCredential, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: default azure credential: %w", af.ErrInitialization, err)
	}
	return cred, nil
}

// NewCLICredential returns a credential backed by the signed-in Azure CLI
// account.
func NewCLICredential() (azcore.TokenCredential, error) {
	cred, err := azidentity.NewAzureCLICredential(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: azure cli credential: %w", af.ErrInitialization, err)
	}
	return cred, nil
}

// refreshWindow is how long before expiry a cached token is replaced.
const refreshWindow = 5 * time.Minute

// TokenProvider returns bearer tokens for a fixed set of scopes from one
// credential. The last token is reused until its RefreshOn time, or until it
// is within five minutes of expiring. Safe for concurrent use.
type TokenProvider struct {
	cred   azcore.TokenCredential
	scopes []string

	mu     sync.Mutex
	cached azcore.AccessToken
}

// NewBearerTokenProvider binds cred to scopes. With no scopes,
// [CognitiveServicesScope] is used.
func NewBearerTokenProvider(cred azcore.TokenCredential, scopes ...string) *TokenProvider {
	if len(scopes) == 0 {
		scopes = []string{CognitiveServicesScope}
	}
	return &TokenProvider{cred: cred, scopes: scopes}
}

// Scopes returns the scopes tokens are requested for.
func (p *TokenProvider) Scopes() []string {
	return append([]string(nil), p.scopes...)
}

// Token returns a bearer token string.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	// Held across GetToken so concurrent callers share one refresh.
	p.mu.Lock()
	defer p.mu.Unlock()

	if !needsRefresh(p.cached, time.Now()) {
		return p.cached.Token, nil
	}
	tok, err := p.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: p.scopes})
	if err != nil {
		return "", fmt.Errorf("%w: get token for %s: %w", af.ErrAuth, strings.Join(p.scopes, " "), err)
	}
	p.cached = tok
	return tok.Token, nil
}

func needsRefresh(tok azcore.AccessToken, now time.Time) bool {
	switch {
	case tok.Token == "":
		return true
	case !tok.RefreshOn.IsZero() && !now.Before(tok.RefreshOn):
		return true
	default:
		return !now.Before(tok.ExpiresOn.Add(-refreshWindow))
	}
}
