// Package app wires the application together: Genkit providers, the vector
// index, the session store, and the pipeline. All dependencies are
// constructed here and injected explicitly; no package holds globals.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/koopa0/ragserve/internal/config"
	"github.com/koopa0/ragserve/internal/document"
	"github.com/koopa0/ragserve/internal/index"
	"github.com/koopa0/ragserve/internal/prompt"
	"github.com/koopa0/ragserve/internal/provider"
	"github.com/koopa0/ragserve/internal/rag"
	"github.com/koopa0/ragserve/internal/security"
	"github.com/koopa0/ragserve/internal/session"
)

// collectionName is the single chromem collection the index uses.
const collectionName = "documents"

// App is the assembled application.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	System *rag.System

	index *index.Index
}

// Setup builds the full dependency graph from configuration. On success the
// vector store is open, locked, and populated (built from the document folder
// when empty).
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: cfg.GeminiAPIKey}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}

	embedder := provider.NewGenkitEmbedder(googlegenai.GoogleAIEmbedder(g, cfg.EmbeddingModel))
	generator := provider.NewGenkitGenerator(g, cfg.FullModelName(), cfg.Temperature)

	ix, err := index.Open(cfg.VectorStorePath, collectionName, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	system := rag.NewSystem(
		document.NewLoader(cfg.DataFolder, logger),
		document.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		ix,
		session.NewStore(logger),
		prompt.LoadAssembler(cfg.PromptsFolder, logger),
		security.NewValidator(),
		generator,
		rag.Options{
			TopK:            cfg.TopK,
			MaxContextChars: cfg.MaxContextChars,
			MaxQueryLength:  cfg.MaxQueryLength,
			MemoryWindow:    cfg.MaxMemoryMessages,
			SecurityEnabled: cfg.EnableSecurityCheck,
		},
		logger,
	)

	if err := system.EnsureBuilt(ctx); err != nil {
		_ = ix.Close()
		return nil, err
	}

	return &App{
		Config: cfg,
		Logger: logger,
		System: system,
		index:  ix,
	}, nil
}

// Close releases held resources, most importantly the vector store lock.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")
	if err := a.index.Close(); err != nil {
		return fmt.Errorf("closing vector store: %w", err)
	}
	return nil
}
