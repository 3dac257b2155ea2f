// Package provider defines the external AI capability interfaces the
// pipeline depends on, plus their Genkit-backed implementations.
//
// The orchestrator never talks to a model SDK directly; it sees only
// Embedder and Generator so alternate providers and test doubles can be
// substituted without touching the pipeline.
package provider

import (
	"context"

	"github.com/koopa0/ragserve/internal/prompt"
)

// Embedder maps text to a fixed-length vector. The dimensionality is fixed
// for the lifetime of the Embedder; every vector in one index generation
// comes from the same Embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator sends a message sequence to a language model and returns the
// generated text.
type Generator interface {
	Generate(ctx context.Context, messages []prompt.Message) (string, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, messages []prompt.Message) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, messages []prompt.Message) (string, error) {
	return f(ctx, messages)
}
