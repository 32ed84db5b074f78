// Copyright (c) Microsoft. All rights reserved.

// Command agent-with-foundry-tools hosts an Azure OpenAI agent that uses
// Foundry-hosted tools: web search, plus an MCP server from a project
// connection when one is configured. The connection is looked up in the
// project at AZURE_AI_PROJECT_ENDPOINT and the agent's requests go to the
// Azure OpenAI Responses API, where hosted tools run.
//
// Usage:
//
//	export AZURE_OPENAI_ENDPOINT=https://<resource>.openai.azure.com
//	export AZURE_OPENAI_CHAT_DEPLOYMENT_NAME=gpt-4o
//	export AZURE_AI_PROJECT_ENDPOINT=https://<resource>.services.ai.azure.com/api/projects/<project>
//	export AZURE_AI_PROJECT_TOOL_CONNECTION_ID=<connection>   # optional
//	go run .
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	af "github.com/microsoft/hosted-agents-go/agentframework"
	"github.com/microsoft/hosted-agents-go/foundrytools"
	"github.com/microsoft/hosted-agents-go/hosting"
	"github.com/microsoft/hosted-agents-go/identity"
	"github.com/microsoft/hosted-agents-go/internal/envcheck"
	"github.com/microsoft/hosted-agents-go/internal/observability"
	"github.com/microsoft/hosted-agents-go/openai"
)

const (
	serviceName  = "agent-with-foundry-tools"
	agentName    = "FoundryToolAgent"
	instructions = "You are a helpful assistant with access to various tools."

	envProjectEndpoint = "AZURE_AI_PROJECT_ENDPOINT"
)

var requiredEnv = []string{
	openai.EnvEndpoint,
	openai.EnvDeployment,
	envProjectEndpoint,
}

// deps holds everything main wires from the process environment.
type deps struct {
	lookup        envcheck.LookupFunc
	newCredential func() (azcore.TokenCredential, error)
	serve         func(ctx context.Context, r hosting.Runner) error
	logOutput     io.Writer

	// projectOptions configures the project connections client; nil uses
	// the azcore defaults.
	projectOptions *policy.ClientOptions
}

func main() {
	if err := envcheck.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, deps{
		lookup:        os.LookupEnv,
		newCredential: identity.NewDefaultCredential,
		serve:         func(ctx context.Context, r hosting.Runner) error { return r.Run(ctx) },
		logOutput:     os.Stderr,
	})
	if err != nil {
		slog.Error("agent-with-foundry-tools failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, d deps) error {
	env, err := envcheck.Require(d.lookup, requiredEnv...)
	if err != nil {
		return err
	}

	logCfg := observability.ConfigFromEnv(d.lookup, serviceName)
	logCfg.Output = d.logOutput
	logger, err := observability.NewLogger(logCfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	shutdown, err := observability.SetupTelemetry(ctx, observability.TelemetryConfigFromEnv(d.lookup, serviceName))
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	// Long-running servers need a refreshing token source, not a one-off token.
	cred, err := d.newCredential()
	if err != nil {
		return err
	}
	tokens := identity.NewBearerTokenProvider(cred, identity.CognitiveServicesScope)

	resolver, err := foundrytools.NewConnectionResolver(env[envProjectEndpoint], cred, d.projectOptions)
	if err != nil {
		return err
	}

	agent, err := newAgent(d.lookup, resolver, tokens, logger)
	if err != nil {
		return err
	}
	return d.serve(ctx, hosting.FromAgent(agent, hosting.WithLogger(logger)))
}

func newAgent(
	lookup envcheck.LookupFunc,
	resolver *foundrytools.ConnectionResolver,
	tokens openai.TokenProvider,
	logger *slog.Logger,
) (*af.Agent, error) {
	tools := foundrytools.ToolsFromEnv(lookup)
	logger.Info("foundry tools configured", "tools", len(tools))

	client, err := openai.New(
		openai.WithEnvLookup(lookup),
		openai.WithTokenProvider(tokens),
		openai.WithChatMiddleware(foundrytools.ChatMiddleware(tools, foundrytools.WithConnectionResolver(resolver))),
	)
	if err != nil {
		return nil, err
	}

	return client.CreateAgent(
		af.WithName(agentName),
		af.WithInstructions(instructions),
		af.WithAgentMiddleware(
			af.LoggingMiddleware(logger),
			af.TracingMiddleware(nil),
		),
	), nil
}
