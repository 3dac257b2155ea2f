package config

import (
	"fmt"
	"strings"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
//
// The API key is deliberately NOT validated here: the document pipeline and
// the reindex command work without generation, and Genkit reports a missing
// key on first model call with a clear message.
func (c *Config) Validate() error {
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk_overlap must not be negative, got %d", ErrInvalidChunking, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}

	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: must be between 1 and 100, got %d", ErrInvalidTopK, c.TopK)
	}

	if c.MaxContextChars < 1 {
		return fmt.Errorf("%w: max_context_chars must be positive, got %d", ErrInvalidContextLimit, c.MaxContextChars)
	}

	if c.MaxQueryLength < 1 {
		return fmt.Errorf("%w: max_query_length must be positive, got %d", ErrInvalidQueryLimit, c.MaxQueryLength)
	}

	if c.MaxMemoryMessages < 2 {
		return fmt.Errorf("%w: max_memory_messages must hold at least one turn, got %d",
			ErrInvalidMemoryWindow, c.MaxMemoryMessages)
	}

	for name, path := range map[string]string{
		"data_folder":       c.DataFolder,
		"prompts_folder":    c.PromptsFolder,
		"vector_store_path": c.VectorStorePath,
	} {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("%w: %s cannot be empty", ErrMissingPath, name)
		}
	}

	return nil
}
