// Copyright (c) Microsoft. All rights reserved.

// Command agents-in-workflow hosts a concurrent workflow of three Azure OpenAI
// agents (researcher, marketer and legal) that all answer the same prompt.
//
// Usage:
//
//	export AZURE_OPENAI_ENDPOINT=https://<resource>.openai.azure.com
//	export AZURE_OPENAI_CHAT_DEPLOYMENT_NAME=gpt-4o
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
	"github.com/microsoft/hosted-agents-go/workflow"
)

const serviceName = "agents-in-workflow"

type participant struct {
	name         string
	instructions string
}

var participants = []participant{
	{
		name: "researcher",
		instructions: "You're an expert market and product researcher. " +
			"Given a prompt, provide concise, factual insights, opportunities, and risks.",
	},
	{
		name: "marketer",
		instructions: "You're a creative marketing strategist. " +
			"Craft compelling value propositions and target messaging aligned to the prompt.",
	},
	{
		name: "legal",
		instructions: "You're a cautious legal/compliance reviewer. " +
			"Highlight constraints, disclaimers, and policy concerns based on the prompt.",
	},
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
		newCredential: identity.NewDefaultCredential,
		serve:         func(ctx context.Context, r hosting.Runner) error { return r.Run(ctx) },
		logOutput:     os.Stderr,
	})
	if err != nil {
		slog.Error("agents-in-workflow failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, d deps) error {
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
	// One provider for every participant's client.
	tokens := identity.NewBearerTokenProvider(cred, identity.CognitiveServicesScope)

	builder, err := newWorkflowBuilder(tokens, logger, openai.WithEnvLookup(d.lookup))
	if err != nil {
		return err
	}
	return d.serve(ctx, hosting.FromWorkflow(builder.Build, hosting.WithLogger(logger)))
}

// newWorkflowBuilder creates one chat client per participant, all sharing
// tokens.
func newWorkflowBuilder(tokens openai.TokenProvider, logger *slog.Logger, clientOpts ...openai.Option) (*workflow.ConcurrentBuilder, error) {
	agents := make([]af.Runnable, 0, len(participants))
	for _, p := range participants {
		opts := append([]openai.Option{openai.WithTokenProvider(tokens)}, clientOpts...)
		client, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create %s client: %w", p.name, err)
		}
		agents = append(agents, client.CreateAgent(
			af.WithName(p.name),
			af.WithInstructions(p.instructions),
			af.WithAgentMiddleware(af.LoggingMiddleware(logger), af.TracingMiddleware(nil)),
		))
	}
	return workflow.NewConcurrentBuilder().Participants(agents...), nil
}
