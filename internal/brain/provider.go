// Package brain talks to hosted and local LLMs. It knows how to send one
// prompt and read one answer; what to ask is up to the caller.
package brain

import (
	"context"
)

// Provider is a configured LLM endpoint.
type Provider interface {
	Name() string // "claude", "openai" or "ollama"

	// Available is false when a required key or model is missing. Callers
	// check it before Generate and fall back to local logic.
	Available() bool

	Generate(ctx context.Context, req Request) (Response, error)
}

// Request is a single prompt. MaxTokens 0 uses the provider default.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
}

// Response carries the completion text and the model that produced it.
type Response struct {
	Content string
	Model   string
}
