// Copyright (c) Microsoft. All rights reserved.

// Package openai provides an [agentframework.ChatClient] for Azure OpenAI
// chat completion deployments.
//
// Create a client and build agents from it:
//
//	tokens := identity.NewBearerTokenProvider(cred, identity.CognitiveServicesScope)
//	client, err := openai.New(openai.WithTokenProvider(tokens))
//	if err != nil {
//	    return err
//	}
//	agent := client.CreateAgent(agentframework.WithName("assistant"))
//
// Requests are sent to
// {endpoint}/openai/deployments/{deployment}/chat/completions?api-version={version}.
// A request that carries hosted tools ([agentframework.HostedTool]) goes to
// {endpoint}/openai/responses?api-version={responses version} instead, with
// the deployment as the model and store disabled. Hosted tool definitions are
// sent verbatim; function calls come back to the agent as usual.
//
// # Configuration
//
//   - [WithEndpoint], [WithDeployment], [WithAPIVersion]: default to
//     AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_CHAT_DEPLOYMENT_NAME and
//     AZURE_OPENAI_API_VERSION
//   - [WithResponsesAPIVersion]: defaults to AZURE_OPENAI_RESPONSES_API_VERSION
//     or [DefaultResponsesAPIVersion]
//   - [WithTokenProvider] or [WithAPIKey]: one is required
//   - [WithChatMiddleware]: wraps every model call made through the client
//   - [WithHTTPClient], [WithHeaders]: transport customization
//
// # Testing
//
// The client uses an unexported transport interface internally.
// For testing, provide a mock http.Client via [WithHTTPClient]
// with a custom RoundTripper.
package openai
