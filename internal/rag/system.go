// Package rag orchestrates the retrieval-augmented answer pipeline:
// validate, retrieve, assemble, generate, remember.
//
// The pipeline degrades instead of failing: retrieval problems shrink the
// context to nothing, generation problems substitute a fixed fallback answer.
// Only input rejection and index rebuild failures surface as errors.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/koopa0/ragserve/internal/document"
	"github.com/koopa0/ragserve/internal/index"
	"github.com/koopa0/ragserve/internal/prompt"
	"github.com/koopa0/ragserve/internal/provider"
	"github.com/koopa0/ragserve/internal/security"
	"github.com/koopa0/ragserve/internal/session"
)

// FallbackResponse is returned when the model cannot produce an answer.
// The turn is still recorded so the conversation stays consistent.
const FallbackResponse = "Unable to generate a response at this time."

// Options carries the tunable parameters of the pipeline.
type Options struct {
	TopK            int
	MaxContextChars int
	MaxQueryLength  int
	MemoryWindow    int
	SecurityEnabled bool
}

// Request is one chat query.
type Request struct {
	Query             string
	SessionID         string // empty starts a new session
	AdditionalContext string // caller-supplied context, ranked before retrieval
	UserData          map[string]any
}

// Result is the outcome of one query. Status is always "success" for a result
// that reaches the caller; degraded generation is reported via Degraded, not
// as a failure.
type Result struct {
	Response    string
	ContextUsed int
	SessionID   string
	MemorySize  int
	Status      string
	Degraded    bool
}

// System wires the pipeline components together. All dependencies are
// injected; System holds no globals and is safe for concurrent use.
type System struct {
	loader    *document.Loader
	splitter  *document.Splitter
	index     *index.Index
	sessions  *session.Store
	assembler *prompt.Assembler
	validator *security.Validator
	generator provider.Generator
	logger    *slog.Logger
	opts      Options
}

// NewSystem assembles the pipeline from its components.
func NewSystem(
	loader *document.Loader,
	splitter *document.Splitter,
	ix *index.Index,
	sessions *session.Store,
	assembler *prompt.Assembler,
	validator *security.Validator,
	generator provider.Generator,
	opts Options,
	logger *slog.Logger,
) *System {
	if logger == nil {
		logger = slog.Default()
	}
	return &System{
		loader:    loader,
		splitter:  splitter,
		index:     ix,
		sessions:  sessions,
		assembler: assembler,
		validator: validator,
		generator: generator,
		logger:    logger,
		opts:      opts,
	}
}

// EnsureBuilt builds the index from the document folder when it is empty.
// A previously persisted index is reused as-is.
func (s *System) EnsureBuilt(ctx context.Context) error {
	if n := s.index.Count(); n > 0 {
		s.logger.Info("vector store loaded from disk", "records", n)
		return nil
	}

	chunks := s.splitter.Split(s.loader.Load())
	if err := s.index.Build(ctx, chunks); err != nil {
		return fmt.Errorf("initial index build: %w", err)
	}
	return nil
}

// Query runs the full pipeline for one user turn.
//
// An error is returned only when the input is rejected; every downstream
// problem degrades inside the Result instead.
func (s *System) Query(ctx context.Context, req Request) (*Result, error) {
	req.Query = strings.TrimSpace(req.Query)
	if err := s.validateQuery(req.Query); err != nil {
		// A rejected query is a client error, not a system fault.
		s.logger.Debug("query rejected", "error", err)
		return nil, fmt.Errorf("validating query: %w", err)
	}

	sessionID := s.sessions.GetOrCreate(req.SessionID)
	history := s.sessions.Get(sessionID)

	contextText, contextUsed := s.gatherContext(ctx, req)

	messages := s.assembler.Build(history, contextText, req.Query)

	answer, degraded := s.generate(ctx, messages)

	memorySize, err := s.sessions.AppendTurn(sessionID, req.Query, answer, s.opts.MemoryWindow)
	if err != nil {
		// GetOrCreate above guarantees the session exists; reaching here
		// means a concurrent Clear raced us, which loses the turn but
		// nothing else.
		s.logger.Warn("recording turn failed", "session_id", sessionID, "error", err)
	}

	s.logger.Info("query answered",
		"session_id", sessionID,
		"context_used", contextUsed,
		"memory_size", memorySize,
		"degraded", degraded)

	return &Result{
		Response:    answer,
		ContextUsed: contextUsed,
		SessionID:   sessionID,
		MemorySize:  memorySize,
		Status:      "success",
		Degraded:    degraded,
	}, nil
}

// validateQuery enforces the structural bounds every query must meet,
// regardless of configuration: non-empty after trimming, and at most
// MaxQueryLength characters. The pattern-based security check runs only when
// enabled.
func (s *System) validateQuery(query string) error {
	if query == "" {
		return security.ErrEmptyInput
	}
	if utf8.RuneCountInString(query) > s.opts.MaxQueryLength {
		return fmt.Errorf("%w of %d characters", security.ErrInputTooLong, s.opts.MaxQueryLength)
	}
	if s.opts.SecurityEnabled {
		return s.validator.ValidateInput(query, s.opts.MaxQueryLength)
	}
	return nil
}

// gatherContext collects context pieces in rank order: caller-supplied
// context first, then retrieved chunks by similarity. Pieces are joined with
// blank lines and the combined text is capped at MaxContextChars runes.
func (s *System) gatherContext(ctx context.Context, req Request) (string, int) {
	var pieces []string
	if extra := strings.TrimSpace(req.AdditionalContext); extra != "" {
		pieces = append(pieces, extra)
	}

	for _, hit := range s.index.Search(ctx, req.Query, s.opts.TopK) {
		pieces = append(pieces, hit.Text)
	}

	joined := strings.Join(pieces, "\n\n")
	if limit := s.opts.MaxContextChars; limit > 0 {
		if runes := []rune(joined); len(runes) > limit {
			joined = string(runes[:limit])
			s.logger.Debug("context truncated", "limit", limit)
		}
	}
	return joined, len(pieces)
}

// generate asks the model for an answer. Failures and empty answers fall back
// to FallbackResponse with the degraded flag set.
func (s *System) generate(ctx context.Context, messages []prompt.Message) (answer string, degraded bool) {
	text, err := s.generator.Generate(ctx, messages)
	if err != nil {
		s.logger.Error("generation failed, using fallback response", "error", err)
		return FallbackResponse, true
	}

	if s.opts.SecurityEnabled {
		text = s.validator.SanitizeOutput(text)
	} else {
		text = strings.TrimSpace(text)
	}
	if text == "" {
		s.logger.Warn("model returned empty answer, using fallback response")
		return FallbackResponse, true
	}
	return text, false
}

// Reload re-reads the document folder, re-chunks, and rebuilds the index from
// scratch. Returns the number of chunks indexed.
func (s *System) Reload(ctx context.Context) (int, error) {
	chunks := s.splitter.Split(s.loader.Load())
	if err := s.index.Rebuild(ctx, chunks); err != nil {
		return 0, fmt.Errorf("rebuilding index: %w", err)
	}
	s.logger.Info("documents reloaded", "chunks", len(chunks))
	return len(chunks), nil
}

// History returns the recorded messages of a session, oldest first.
// Unknown sessions yield an empty history.
func (s *System) History(sessionID string) []prompt.Message {
	return s.sessions.Get(sessionID)
}

// ClearSession drops a session's history. Unknown ids are a no-op.
func (s *System) ClearSession(sessionID string) {
	s.sessions.Clear(sessionID)
}

// IndexSize reports the number of records currently indexed.
func (s *System) IndexSize() int {
	return s.index.Count()
}
