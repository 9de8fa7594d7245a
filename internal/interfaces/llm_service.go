package interfaces

import (
	"context"
	"time"
)

// GenerateOptions carries the per-call parameters the pipeline controls.
// Everything else (temperature, credentials, endpoints) comes from provider
// configuration.
type GenerateOptions struct {
	// Model optionally overrides the configured model. May carry a provider
	// prefix such as "claude/..." or "gemini/...".
	Model string

	// MaxTokens caps the response length; 0 uses the provider default.
	MaxTokens int

	// Timeout bounds this single call; 0 means no per-call deadline.
	Timeout time.Duration

	// ThinkingLevel is a reasoning-effort hint: MINIMAL, LOW, MEDIUM, HIGH.
	ThinkingLevel string
}

// TextGenerator is the single normalized text-generation surface the pipeline
// consumes. Implementations translate every backend failure into one uniform
// error type and make exactly one outbound request per Generate call.
type TextGenerator interface {
	// Generate performs one backend call and returns the response text.
	Generate(ctx context.Context, systemText, userText string, opts GenerateOptions) (string, error)

	// Available reports whether usable credentials exist for the provider the
	// given model override resolves to. A non-nil error aborts a run before
	// any lease work.
	Available(model string) error

	// Describe resolves a model override to its provider name and effective
	// model, for provenance reporting.
	Describe(model string) (provider string, effectiveModel string)
}
