package provider

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/koopa0/ragserve/internal/prompt"
)

// GenkitEmbedder adapts a Genkit ai.Embedder to the Embedder interface.
type GenkitEmbedder struct {
	embedder ai.Embedder
}

// NewGenkitEmbedder wraps a Genkit embedder, e.g. the one returned by
// googlegenai.GoogleAIEmbedder.
func NewGenkitEmbedder(embedder ai.Embedder) *GenkitEmbedder {
	return &GenkitEmbedder{embedder: embedder}
}

// Embed generates the embedding vector for a single text.
func (e *GenkitEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	return resp.Embeddings[0].Embedding, nil
}

// GenkitGenerator adapts genkit.Generate to the Generator interface.
type GenkitGenerator struct {
	g           *genkit.Genkit
	modelName   string // provider-qualified, e.g. "googleai/gemini-2.5-flash"
	temperature float64
}

// NewGenkitGenerator creates a generator bound to one model.
func NewGenkitGenerator(g *genkit.Genkit, modelName string, temperature float64) *GenkitGenerator {
	return &GenkitGenerator{g: g, modelName: modelName, temperature: temperature}
}

// Generate sends the message sequence to the model and returns its text.
// System messages are passed through Genkit's system option; user and
// assistant messages keep their conversational order.
func (gg *GenkitGenerator) Generate(ctx context.Context, messages []prompt.Message) (string, error) {
	var system string
	conversation := make([]*ai.Message, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case prompt.RoleSystem:
			system = msg.Content
		case prompt.RoleAssistant:
			conversation = append(conversation, ai.NewModelMessage(ai.NewTextPart(msg.Content)))
		default:
			conversation = append(conversation, ai.NewUserMessage(ai.NewTextPart(msg.Content)))
		}
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(gg.modelName),
		ai.WithMessages(conversation...),
		ai.WithConfig(map[string]any{"temperature": gg.temperature}),
	}
	if system != "" {
		opts = append(opts, ai.WithSystem(system))
	}

	resp, err := genkit.Generate(ctx, gg.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generate failed: %w", err)
	}

	return resp.Text(), nil
}
