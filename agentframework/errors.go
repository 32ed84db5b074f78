// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Agent lifecycle errors.
var (
	ErrAgent          = errors.New("agent error")
	ErrInitialization = fmt.Errorf("%w: initialization", ErrAgent)
	ErrExecution      = fmt.Errorf("%w: execution", ErrAgent)
	ErrSession        = fmt.Errorf("%w: session", ErrAgent)

	// ErrSessionModeLocked is returned when a session that already keeps
	// history locally is switched to a service conversation, or vice versa.
	ErrSessionModeLocked = fmt.Errorf("%w: mode already set", ErrSession)
)

// Model service errors. A [ServiceError] unwraps to one of these.
var (
	ErrService        = errors.New("service error")
	ErrAuth           = fmt.Errorf("%w: authentication", ErrService)
	ErrContentFilter  = fmt.Errorf("%w: content filter", ErrService)
	ErrInvalidRequest = fmt.Errorf("%w: invalid request", ErrService)
	ErrRateLimited    = fmt.Errorf("%w: rate limited", ErrService)
)

// Tool errors.
var (
	ErrTool          = errors.New("tool error")
	ErrToolExecution = fmt.Errorf("%w: execution", ErrTool)
)

// ServiceError is a failed model service call. RequestID carries the
// service's request correlation header when present.
type ServiceError struct {
	StatusCode int
	Message    string
	Code       string
	RequestID  string
	RetryAfter time.Duration
	Err        error
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "service error %d", e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.RequestID != "" {
		fmt.Fprintf(&b, " [request %s]", e.RequestID)
	}
	return b.String()
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Retryable reports whether the same request may succeed later.
func (e *ServiceError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// ToolError is a failed tool invocation.
type ToolError struct {
	ToolName string
	Message  string
	Err      error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q: %s", e.ToolName, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Err }
