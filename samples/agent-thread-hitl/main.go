// Copyright (c) Microsoft. All rights reserved.

// Command agent-thread-hitl hosts an agent whose weather tool needs the
// user's approval. The run stops with an mcp_approval_request; the caller
// answers with an mcp_approval_response in the same conversation.
//
// Usage:
//
//	az login
//	export AZURE_OPENAI_ENDPOINT=https://<resource>.openai.azure.com
//	export AZURE_OPENAI_DEPLOYMENT_NAME=gpt-4o-mini   # optional
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

	af "github.com/microsoft/hosted-agents-go/agentframework"
	"github.com/microsoft/hosted-agents-go/hosting"
	"github.com/microsoft/hosted-agents-go/identity"
	"github.com/microsoft/hosted-agents-go/internal/envcheck"
	"github.com/microsoft/hosted-agents-go/internal/observability"
	"github.com/microsoft/hosted-agents-go/openai"
)

const (
	serviceName = "agent-thread-hitl"

	envDeployment     = "AZURE_OPENAI_DEPLOYMENT_NAME"
	defaultDeployment = "gpt-4o-mini"
)

type weatherArgs struct {
	Location string `json:"location" jsonschema:"The location to get the weather for."`
}

func getWeather(_ context.Context, args weatherArgs) (any, error) {
	return fmt.Sprintf("The weather in %s is cloudy with a high of 15°C.", args.Location), nil
}

type deps struct {
	lookup        envcheck.LookupFunc
	newCredential func() (azcore.TokenCredential, error)
	serve         func(ctx context.Context, r hosting.Runner) error
	logOutput     io.Writer
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
		newCredential: identity.NewCLICredential,
		serve:         func(ctx context.Context, r hosting.Runner) error { return r.Run(ctx) },
		logOutput:     os.Stderr,
	})
	if err != nil {
		slog.Error("agent-thread-hitl failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, d deps) error {
	env, err := envcheck.Require(d.lookup, openai.EnvEndpoint)
	if err != nil {
		return err
	}
	deployment := envcheck.Get(d.lookup, envDeployment, defaultDeployment)

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

	cred, err := d.newCredential()
	if err != nil {
		return err
	}

	client, err := openai.New(
		openai.WithEndpoint(env[openai.EnvEndpoint]),
		openai.WithDeployment(deployment),
		openai.WithEnvLookup(d.lookup),
		openai.WithTokenProvider(identity.NewBearerTokenProvider(cred, identity.CognitiveServicesScope)),
	)
	if err != nil {
		return err
	}

	agent, err := newAgent(client, logger)
	if err != nil {
		return err
	}

	threads := hosting.NewInMemoryThreadRepository()
	return d.serve(ctx, hosting.FromAgent(agent,
		hosting.WithLogger(logger),
		hosting.WithThreadRepository(threads),
	))
}

func newAgent(client *openai.Client, logger *slog.Logger) (*af.Agent, error) {
	weather, err := af.NewTypedTool("get_weather", "Get the weather for a given location.", getWeather,
		af.WithApprovalRequired())
	if err != nil {
		return nil, err
	}
	return client.CreateAgent(
		af.WithInstructions("You are a helpful assistant"),
		af.WithTools(weather),
		af.WithAgentMiddleware(af.LoggingMiddleware(logger), af.TracingMiddleware(nil)),
	), nil
}
