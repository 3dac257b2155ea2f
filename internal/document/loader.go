// Package document handles loading source documents and splitting them into
// retrieval-sized chunks.
package document

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Record is one source document read from the data folder.
type Record struct {
	Text   string // Full file content, UTF-8
	Source string // File name (not the full path)
}

// Chunk is a bounded slice of a Record, the unit of retrieval.
// Source carries the originating file name into the vector index.
type Chunk struct {
	Text   string
	Source string
}

// reservedName is excluded from loading; the data folder README documents the
// corpus and is not part of it.
const reservedName = "README.md"

// allowedExtensions lists the file types the loader accepts.
var allowedExtensions = map[string]struct{}{
	".txt": {},
	".md":  {},
}

// Loader reads eligible files from a single folder. It does not recurse.
type Loader struct {
	dir    string
	logger *slog.Logger
}

// NewLoader creates a Loader for the given folder.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{dir: dir, logger: logger}
}

// Load reads every eligible file in the folder into a Record.
// A missing folder yields an empty slice. Per-file read failures are logged
// and the file skipped; a single unreadable file never aborts the load.
func (l *Loader) Load() []Record {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn("reading data folder", "dir", l.dir, "error", err)
		}
		return nil
	}

	var records []Record
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == reservedName {
			continue
		}
		if _, ok := allowedExtensions[filepath.Ext(name)]; !ok {
			continue
		}

		content, err := os.ReadFile(filepath.Join(l.dir, name))
		if err != nil {
			l.logger.Warn("skipping unreadable document", "file", name, "error", err)
			continue
		}

		records = append(records, Record{Text: string(content), Source: name})
		l.logger.Debug("loaded document", "file", name, "bytes", len(content))
	}

	return records
}
