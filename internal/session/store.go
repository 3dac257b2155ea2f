// Package session keeps per-session conversation history in memory.
//
// Histories live for the lifetime of the process; they are created lazily on
// first use and dropped only by Clear. The store is a process-wide singleton
// shared by all concurrent queries, constructed explicitly and injected —
// never a package global.
package session

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/koopa0/ragserve/internal/prompt"
)

// ErrNotFound indicates an operation on a session id that was never created.
var ErrNotFound = errors.New("session not found")

// history holds one session's ordered messages.
// Its mutex serializes writers per session id, so two concurrent queries
// against the same session cannot interleave their turns.
type history struct {
	mu       sync.Mutex
	messages []prompt.Message
}

// Store maps session ids to bounded message histories.
// Safe for concurrent use by multiple goroutines.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*history
	logger   *slog.Logger
}

// NewStore creates an empty session store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*history),
		logger:   logger,
	}
}

// GetOrCreate returns id unchanged when it names a known session. Otherwise
// it initializes an empty history — under id when provided, else under a
// fresh generated id — and returns the id used.
func (s *Store) GetOrCreate(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if _, ok := s.sessions[id]; ok {
			return id
		}
	} else {
		id = uuid.NewString()
	}

	s.sessions[id] = &history{}
	s.logger.Debug("session created", "session_id", id)
	return id
}

// AppendTurn appends one user and one assistant message to the session and
// trims the history to the most recent window messages, oldest discarded
// first. Returns the message count after trimming.
// Fails with ErrNotFound only for an id that was never created.
func (s *Store) AppendTurn(id, userContent, assistantContent string, window int) (int, error) {
	s.mu.RLock()
	h, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return 0, ErrNotFound
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages, prompt.User(userContent), prompt.Assistant(assistantContent))
	if window > 0 && len(h.messages) > window {
		h.messages = append([]prompt.Message(nil), h.messages[len(h.messages)-window:]...)
	}
	return len(h.messages), nil
}

// Get returns a copy of the session's ordered messages.
// An unknown id yields an empty slice, never an error.
func (s *Store) Get(id string) []prompt.Message {
	s.mu.RLock()
	h, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]prompt.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the session's message count (0 for unknown ids).
func (s *Store) Len(id string) int {
	s.mu.RLock()
	h, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

// Clear empties the history of a known session. Clearing an unknown id is a
// no-op, not an error.
func (s *Store) Clear(id string) {
	s.mu.RLock()
	h, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
	s.logger.Debug("session cleared", "session_id", id)
}

// Count returns the number of sessions currently held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
