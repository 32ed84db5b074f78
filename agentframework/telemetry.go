// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used by [TracingMiddleware] when no
// tracer is supplied.
const TracerName = "github.com/microsoft/hosted-agents-go/agentframework"

// LoggingMiddleware returns an [AgentMiddleware] that logs agent runs using slog.
func LoggingMiddleware(logger *slog.Logger) AgentMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next AgentHandler) AgentHandler {
		return func(ctx context.Context, req *AgentRequest) (*AgentResponse, error) {
			start := time.Now()
			logger.InfoContext(ctx, "agent run started",
				"agent_name", req.AgentName,
				"message_count", len(req.Messages),
			)

			resp, err := next(ctx, req)

			duration := time.Since(start)
			if err != nil {
				logger.ErrorContext(ctx, "agent run failed",
					"agent_name", req.AgentName,
					"duration", duration,
					"error", err,
				)
				return nil, err
			}

			logger.InfoContext(ctx, "agent run completed",
				"agent_name", req.AgentName,
				"duration", duration,
				"response_messages", len(resp.Messages),
				"input_tokens", resp.Usage.InputTokens,
				"output_tokens", resp.Usage.OutputTokens,
			)
			return resp, nil
		}
	}
}

// TracingMiddleware returns an [AgentMiddleware] that wraps each run in an
// OpenTelemetry span. A nil tracer uses the global tracer provider.
func TracingMiddleware(tracer trace.Tracer) AgentMiddleware {
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	return func(next AgentHandler) AgentHandler {
		return func(ctx context.Context, req *AgentRequest) (*AgentResponse, error) {
			ctx, span := tracer.Start(ctx, "invoke_agent "+req.AgentName,
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(
					attribute.String("gen_ai.operation.name", "invoke_agent"),
					attribute.String("gen_ai.agent.name", req.AgentName),
				),
			)
			defer span.End()

			resp, err := next(ctx, req)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}

			span.SetAttributes(
				attribute.String("gen_ai.agent.id", resp.AgentID),
				attribute.String("gen_ai.response.id", resp.ResponseID),
				attribute.Int("gen_ai.usage.input_tokens", resp.Usage.InputTokens),
				attribute.Int("gen_ai.usage.output_tokens", resp.Usage.OutputTokens),
			)
			return resp, nil
		}
	}
}
