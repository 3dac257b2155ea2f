// Package testutil provides hermetic test doubles for the pipeline: a
// deterministic embedder and a scripted generator, so index, rag, and api
// tests run without network access or API keys.
package testutil

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/koopa0/ragserve/internal/prompt"
	"github.com/koopa0/ragserve/internal/provider"
)

// EmbedDim is the dimensionality of vectors produced by NewEmbedder.
const EmbedDim = 64

// NewEmbedder returns a deterministic bag-of-words embedder. Each token is
// hashed into one of EmbedDim buckets, so texts sharing words produce similar
// vectors. Cosine similarity over these vectors ranks exact-word overlap
// highest, which is enough for retrieval tests.
func NewEmbedder() provider.Embedder {
	return provider.EmbedderFunc(func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, EmbedDim)
		for _, token := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(token))
			vec[h.Sum32()%EmbedDim]++
		}
		// All-zero vectors break cosine similarity; give empty text a
		// fixed direction instead.
		var sum float32
		for _, v := range vec {
			sum += v
		}
		if sum == 0 {
			vec[0] = 1
		}
		return vec, nil
	})
}

// Generator is a scripted provider.Generator that records every call.
type Generator struct {
	mu       sync.Mutex
	response string
	err      error
	calls    [][]prompt.Message
}

// NewGenerator returns a generator that always answers with response.
func NewGenerator(response string) *Generator {
	return &Generator{response: response}
}

// NewFailingGenerator returns a generator whose calls all fail with err.
func NewFailingGenerator(err error) *Generator {
	return &Generator{err: err}
}

// Generate implements provider.Generator.
func (g *Generator) Generate(_ context.Context, messages []prompt.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	copied := make([]prompt.Message, len(messages))
	copy(copied, messages)
	g.calls = append(g.calls, copied)
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

// Calls returns the message sequences of every Generate call so far.
func (g *Generator) Calls() [][]prompt.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([][]prompt.Message, len(g.calls))
	copy(out, g.calls)
	return out
}

// LastCall returns the messages of the most recent Generate call, or nil.
func (g *Generator) LastCall() []prompt.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.calls) == 0 {
		return nil
	}
	return g.calls[len(g.calls)-1]
}
