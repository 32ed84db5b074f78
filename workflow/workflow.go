// Copyright (c) Microsoft. All rights reserved.

// Package workflow composes runnables into multi-agent workflows.
//
// A concurrent workflow sends the same input to every participant at once
// and combines their answers:
//
//	wf, err := workflow.NewConcurrentBuilder().
//	    Participants(researcher, marketer, legal).
//	    Build()
//	resp, err := wf.Run(ctx, []agentframework.Message{agentframework.NewUserMessage(prompt)})
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	af "github.com/microsoft/hosted-agents-go/agentframework"
)

// Build errors.
var (
	ErrNoParticipants       = errors.New("workflow: at least one participant is required")
	ErrNilParticipant       = errors.New("workflow: participant is nil")
	ErrDuplicateParticipant = errors.New("workflow: duplicate participant name")
)

const defaultName = "ConcurrentWorkflow"

// Result is the outcome of one participant.
type Result struct {
	Participant string
	Response    *af.AgentResponse
}

// Aggregator turns participant results, in participant order, into the
// workflow's output messages.
type Aggregator func(ctx context.Context, results []Result) ([]af.Message, error)

// ConcurrentBuilder assembles a concurrent [Workflow].
// The zero value is not usable; call [NewConcurrentBuilder].
type ConcurrentBuilder struct {
	name         string
	participants []af.Runnable
	aggregator   Aggregator
}

// NewConcurrentBuilder returns an empty builder.
func NewConcurrentBuilder() *ConcurrentBuilder {
	return &ConcurrentBuilder{name: defaultName}
}

// Participants appends runnables. Order is kept and determines output order.
func (b *ConcurrentBuilder) Participants(rs ...af.Runnable) *ConcurrentBuilder {
	b.participants = append(b.participants, rs...)
	return b
}

// WithName sets the workflow name reported by [Workflow.Name].
func (b *ConcurrentBuilder) WithName(name string) *ConcurrentBuilder {
	if name != "" {
		b.name = name
	}
	return b
}

// WithAggregator replaces the default aggregator, which emits one assistant
// message per participant.
func (b *ConcurrentBuilder) WithAggregator(agg Aggregator) *ConcurrentBuilder {
	b.aggregator = agg
	return b
}

// Build validates the participants and returns a runnable workflow. Every
// participant must be non-nil and have a unique name.
func (b *ConcurrentBuilder) Build() (*Workflow, error) {
	if len(b.participants) == 0 {
		return nil, ErrNoParticipants
	}
	seen := make(map[string]struct{}, len(b.participants))
	for i, p := range b.participants {
		if p == nil {
			return nil, fmt.Errorf("%w: index %d", ErrNilParticipant, i)
		}
		if _, dup := seen[p.Name()]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateParticipant, p.Name())
		}
		seen[p.Name()] = struct{}{}
	}

	agg := b.aggregator
	if agg == nil {
		agg = DefaultAggregator
	}
	return &Workflow{
		id:           uuid.NewString(),
		name:         b.name,
		participants: slices.Clone(b.participants),
		aggregator:   agg,
	}, nil
}

// Workflow runs its participants concurrently. It implements
// [agentframework.Runnable] and is safe for concurrent use when its
// participants are.
type Workflow struct {
	id           string
	name         string
	participants []af.Runnable
	aggregator   Aggregator
}

var _ af.Runnable = (*Workflow)(nil)

// Name returns the workflow name.
func (w *Workflow) Name() string { return w.name }

// Participants returns participant names in order.
func (w *Workflow) Participants() []string {
	names := make([]string, len(w.participants))
	for i, p := range w.participants {
		names[i] = p.Name()
	}
	return names
}

// Run sends the session history plus messages to every participant
// concurrently. The first participant error cancels the others and is
// returned. On success the input and aggregated output are appended to the
// session store, if any.
func (w *Workflow) Run(ctx context.Context, messages []af.Message, opts ...af.RunOption) (*af.AgentResponse, error) {
	session := af.SessionOf(opts...)

	input := messages
	if session != nil && session.Store() != nil {
		history, err := session.Store().ListMessages(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: load history: %w", af.ErrSession, err)
		}
		input = append(slices.Clone(history), messages...)
	}

	slog.DebugContext(ctx, "workflow run",
		"workflow", w.name,
		"participants", len(w.participants),
		"message_count", len(input),
	)

	results := make([]Result, len(w.participants))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range w.participants {
		g.Go(func() error {
			resp, err := p.Run(gctx, slices.Clone(input))
			if err != nil {
				return fmt.Errorf("participant %q: %w", p.Name(), err)
			}
			results[i] = Result{Participant: p.Name(), Response: resp}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: workflow %q: %w", af.ErrExecution, w.name, err)
	}

	out, err := w.aggregator(ctx, results)
	if err != nil {
		return nil, fmt.Errorf("%w: aggregate: %w", af.ErrExecution, err)
	}

	var usage af.UsageDetails
	for _, r := range results {
		usage = usage.Add(r.Response.Usage)
	}

	if session != nil && session.Store() != nil {
		persisted := append(slices.Clone(messages), out...)
		if err := session.Store().AddMessages(ctx, persisted); err != nil {
			slog.WarnContext(ctx, "failed to update session", "workflow", w.name, "error", err)
		}
	}

	return &af.AgentResponse{
		Messages:   out,
		ResponseID: uuid.NewString(),
		AgentID:    w.id,
		Usage:      usage,
		Raw:        results,
	}, nil
}

// DefaultAggregator returns one assistant message per participant carrying
// that participant's text, with AuthorName set to the participant name.
func DefaultAggregator(_ context.Context, results []Result) ([]af.Message, error) {
	out := make([]af.Message, 0, len(results))
	for _, r := range results {
		msg := af.NewAssistantMessage(r.Response.Text())
		msg.AuthorName = r.Participant
		out = append(out, msg)
	}
	return out, nil
}
