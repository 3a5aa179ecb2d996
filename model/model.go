// Package model defines the minimal chat-completion seam the learning loop
// (C5) needs onto a judge backend. It is intentionally narrow: a new
// chat-completion runtime is out of scope (spec.md §1); this package only
// specifies the boundary where the core calls out to one.
package model

import (
	"context"
	"errors"
)

// ErrRateLimited marks rate-limit failures so callers can apply backoff
// uniformly regardless of backend. The adapters return it (wrapped) only
// when the error from their SDK client already matches it with errors.Is;
// they do not inspect provider HTTP status codes themselves.
var ErrRateLimited = errors.New("model: rate limited")

// Request is a single judge invocation: a system instruction plus the
// user-supplied extraction prompt assembled by the learning loop.
type Request struct {
	System      string
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float32
}

// Response is the judge's completion text plus token accounting.
type Response struct {
	Text  string
	Usage TokenUsage
}

// TokenUsage mirrors the token accounting every provider SDK in the pack
// reports.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Client is the seam C5's extractor calls through. Adapters translate
// Request/Response to a specific SDK's wire types; neither adapter
// implements planning, tool use, or streaming — those belong to a full
// agent chat-completion runtime, which is out of scope here.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
