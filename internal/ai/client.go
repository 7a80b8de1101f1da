// Package ai defines the capability interface for external generative-text
// providers and ships Anthropic- and DeepSeek-backed implementations.
//
// Providers are plain text-completion adapters: they receive prompts and
// return the raw completion text. Extracting and validating the structured
// artifact inside that text is the narrative package's job — an adapter
// succeeds as long as the provider returned non-empty content.
package ai

import "context"

// Generator is implemented by each configured provider. The narrative
// orchestrator holds an ordered slice of these and tries them in priority
// order, exactly once each. Absence of credentials simply means the adapter
// is never constructed — the orchestrator sees a shorter (possibly empty)
// list, not a nil entry.
//
// Implementations must be safe to call concurrently.
type Generator interface {
	// Name identifies the provider in attempt logs ("anthropic", "deepseek").
	Name() string

	// Generate sends one completion request and returns the text content.
	// A non-nil error means this provider attempt failed; the orchestrator
	// moves on to the next provider without retrying.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
