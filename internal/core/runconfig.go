package core

import (
	"context"
	"time"

	"github.com/yanmxa/gencode/internal/message"
	"github.com/yanmxa/gencode/internal/provider"
	"golang.org/x/time/rate"
)

const (
	defaultReadOnlyFanout = 8
	defaultMaxRetries     = 2
	defaultRetryInitial   = time.Second
	defaultRetryMax       = 30 * time.Second
)

// ApprovalFunc resolves an interactive approval for a NeedsApproval tool call.
// A nil ApprovalFunc auto-approves, matching a non-interactive caller.
type ApprovalFunc func(ctx context.Context, tc message.ToolCall, params map[string]any) bool

// RunConfig tunes the turn algorithm's concurrency, retry, and routing
// behavior. The zero value resolves to sane defaults via withDefaults.
type RunConfig struct {
	// ReadOnlyFanout bounds concurrent dispatch of ReadOnly tool calls
	// within one assistant step. Default 8.
	ReadOnlyFanout int

	// RateLimit, when set, additionally paces ReadOnly dispatch (e.g. to
	// stay under a WebFetch/WebSearch provider's requests-per-second
	// quota) independent of ReadOnlyFanout's concurrency cap. Nil means
	// unpaced.
	RateLimit *rate.Limiter

	// MaxRetries bounds retryable ProviderStream failures per step.
	// Default 2 (so up to 3 total attempts).
	MaxRetries   int
	RetryInitial time.Duration
	RetryMax     time.Duration

	// RoutingEnabled turns on prompt-tier classification before opening
	// the stream. Routing is a no-op unless Routing is also set.
	RoutingEnabled bool
	Routing        provider.RoutingClassifier
	Models         map[provider.Tier]string

	// Credentials, when set, is asked to rotate on a 429 before a retry
	// attempt. Rotation is a side channel and does not consume a retry.
	Credentials provider.CredentialPort

	// Approval resolves NeedsApproval tool calls (permission.Prompt).
	Approval ApprovalFunc
}

func (c RunConfig) withDefaults() RunConfig {
	if c.ReadOnlyFanout <= 0 {
		c.ReadOnlyFanout = defaultReadOnlyFanout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = defaultRetryInitial
	}
	if c.RetryMax <= 0 {
		c.RetryMax = defaultRetryMax
	}
	return c
}
