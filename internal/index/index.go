// Package index stores chunk embeddings in a persistent chromem-go
// collection and serves nearest-neighbour search over them.
//
// Failure semantics follow availability-over-completeness: Search never
// returns an error to the caller — embedding failures and an empty or
// unavailable collection all degrade to zero results, and the pipeline
// continues with no context.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/gofrs/flock"
	chromem "github.com/philippgille/chromem-go"

	"github.com/koopa0/ragserve/internal/document"
	"github.com/koopa0/ragserve/internal/provider"
)

// Result is one retrieved chunk with its similarity to the query.
type Result struct {
	Text       string
	Source     string
	Similarity float32
}

// Index is a persistent vector index over document chunks.
//
// Reads (Search, Count) take a shared lock; Build and Rebuild take an
// exclusive lock, so searches block during a rebuild instead of observing a
// half-built collection. A flock lock file beside the storage directory
// prevents two processes from sharing one store.
type Index struct {
	path       string
	collection string
	embed      chromem.EmbeddingFunc
	logger     *slog.Logger

	mu   sync.RWMutex
	db   *chromem.DB
	col  *chromem.Collection
	lock *flock.Flock
}

// NewEmbeddingFunc bridges a provider.Embedder to chromem-go's embedding
// callback. chromem-go normalizes vectors itself, so no manual normalization
// is needed.
func NewEmbeddingFunc(embedder provider.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
}

// Open opens (or creates) the persistent store at path and loads the named
// collection. Existing persisted data is loaded as-is; only an explicit
// Rebuild re-embeds from source documents.
func Open(path, collection string, embedder provider.Embedder, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ix := &Index{
		path:       path,
		collection: collection,
		embed:      NewEmbeddingFunc(embedder),
		logger:     logger,
		lock:       flock.New(path + ".lock"),
	}

	locked, err := ix.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking vector store: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("vector store %s is locked by another process", path)
	}

	if err := ix.open(); err != nil {
		_ = ix.lock.Unlock()
		return nil, err
	}

	logger.Info("vector store opened", "path", path, "collection", collection, "records", ix.col.Count())
	return ix, nil
}

// open loads the persistent DB and collection. Caller holds ix.mu (or is the
// only reference during Open).
func (ix *Index) open() error {
	db, err := chromem.NewPersistentDB(ix.path, false)
	if err != nil {
		return fmt.Errorf("opening vector store at %s: %w", ix.path, err)
	}

	col, err := db.GetOrCreateCollection(ix.collection, nil, ix.embed)
	if err != nil {
		return fmt.Errorf("opening collection %s: %w", ix.collection, err)
	}

	ix.db = db
	ix.col = col
	return nil
}

// Count returns the number of indexed records.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.col.Count()
}

// Build embeds every chunk and stores the records in the collection.
// An empty chunk set is a successful build of an empty index. Chunks with an
// empty text or source violate the index invariant and are dropped.
func (ix *Index) Build(ctx context.Context, chunks []document.Chunk) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.add(ctx, chunks)
}

// add embeds and stores chunks. Caller holds the write lock.
func (ix *Index) add(ctx context.Context, chunks []document.Chunk) error {
	docs := make([]chromem.Document, 0, len(chunks))
	seq := make(map[string]int, len(chunks))
	for _, chunk := range chunks {
		if chunk.Text == "" || chunk.Source == "" {
			ix.logger.Warn("dropping invalid chunk", "source", chunk.Source)
			continue
		}
		n := seq[chunk.Source]
		seq[chunk.Source] = n + 1
		docs = append(docs, chromem.Document{
			ID:       fmt.Sprintf("%s#%04d", chunk.Source, n),
			Content:  chunk.Text,
			Metadata: map[string]string{"source": chunk.Source},
		})
	}

	if len(docs) == 0 {
		ix.logger.Warn("no chunks to index, collection left empty", "collection", ix.collection)
		return nil
	}

	if err := ix.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("embedding %d chunks: %w", len(docs), err)
	}

	ix.logger.Info("vector store built", "records", len(docs), "collection", ix.collection)
	return nil
}

// Search embeds the query and returns up to k records ranked by similarity,
// highest first. k is clamped to the record count. All failures degrade to an
// empty result set; they are logged, never surfaced.
func (ix *Index) Search(ctx context.Context, query string, k int) []Result {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := min(k, ix.col.Count())
	if n <= 0 {
		return nil
	}

	hits, err := ix.col.Query(ctx, query, n, nil, nil)
	if err != nil {
		ix.logger.Warn("vector search failed, returning no context", "error", err)
		return nil
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			Text:       hit.Content,
			Source:     hit.Metadata["source"],
			Similarity: hit.Similarity,
		})
	}
	return results
}

// Rebuild drops the collection, removes the persisted storage from disk and
// builds fresh from chunks. Deletion failures are logged and the rebuild
// continues; only the fresh build's own failure is returned. Safe to call
// repeatedly, and tolerates the storage directory not existing.
func (ix *Index) Rebuild(ctx context.Context, chunks []document.Chunk) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.db.DeleteCollection(ix.collection); err != nil {
		ix.logger.Warn("deleting collection before rebuild", "error", err)
	}

	if err := os.RemoveAll(ix.path); err != nil {
		ix.logger.Warn("removing vector store directory, continuing rebuild", "path", ix.path, "error", err)
	}

	if err := ix.open(); err != nil {
		return fmt.Errorf("reopening vector store: %w", err)
	}

	return ix.add(ctx, chunks)
}

// Close releases the cross-process lock on the storage directory.
func (ix *Index) Close() error {
	if err := ix.lock.Unlock(); err != nil {
		return fmt.Errorf("unlocking vector store: %w", err)
	}
	return nil
}
