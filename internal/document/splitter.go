package document

import (
	"strings"
)

// separators orders the split units from largest to smallest: paragraph,
// line, word. Text that still exceeds the chunk size after the word level is
// cut at character boundaries.
var separators = []string{"\n\n", "\n", " "}

// Splitter cuts documents into chunks of at most chunkSize characters, with
// consecutive chunks from the same document overlapping by approximately
// overlap trailing characters.
//
// The split is recursive: a document is divided by the largest separator
// whose pieces fit, and oversized pieces are re-split with the next smaller
// one. This keeps paragraphs and sentences intact whenever they fit.
type Splitter struct {
	chunkSize int
	overlap   int
}

// NewSplitter creates a Splitter. overlap is clamped below chunkSize.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}
}

// Split chunks every record, propagating the record's source name to each
// chunk. Records that are empty after trimming yield no chunks; ordering
// within a record is preserved.
func (s *Splitter) Split(records []Record) []Chunk {
	var chunks []Chunk
	for _, rec := range records {
		for _, text := range s.SplitText(rec.Text) {
			chunks = append(chunks, Chunk{Text: text, Source: rec.Source})
		}
	}
	return chunks
}

// SplitText splits a single text into overlapping chunks.
// A text no longer than the chunk size yields exactly one chunk (trimmed);
// an empty or all-whitespace text yields none.
func (s *Splitter) SplitText(text string) []string {
	return s.merge(s.units(text, 0))
}

// units recursively divides text into pieces of at most chunkSize characters.
// SplitAfter keeps separators attached so concatenating the pieces
// reconstructs the input exactly.
func (s *Splitter) units(text string, level int) []string {
	if len(text) <= s.chunkSize {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	if level >= len(separators) {
		return s.hardSplit(text)
	}

	parts := strings.SplitAfter(text, separators[level])
	if len(parts) == 1 {
		return s.units(text, level+1)
	}

	var out []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		out = append(out, s.units(part, level+1)...)
	}
	return out
}

// hardSplit cuts at character boundaries as the last resort, respecting
// rune boundaries so multi-byte characters are never bisected.
func (s *Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	var out []string
	for len(runes) > 0 {
		n := min(len(runes), s.chunkSize)
		// A rune may occupy several bytes; shrink until the piece fits.
		for len(string(runes[:n])) > s.chunkSize && n > 1 {
			n--
		}
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}

// merge greedily packs units into chunks of at most chunkSize characters.
// When a chunk is emitted, trailing units totalling at most overlap
// characters are carried into the next chunk.
func (s *Splitter) merge(units []string) []string {
	var chunks []string
	var buf []string
	bufLen := 0
	fresh := false // true once buf holds units not yet emitted

	emit := func() {
		if chunk := strings.TrimSpace(strings.Join(buf, "")); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, u := range units {
		if fresh && bufLen+len(u) > s.chunkSize {
			emit()
			// Retain trailing units up to the overlap budget.
			keepFrom := len(buf)
			keepLen := 0
			for keepFrom > 0 && keepLen+len(buf[keepFrom-1]) <= s.overlap {
				keepLen += len(buf[keepFrom-1])
				keepFrom--
			}
			buf = append([]string(nil), buf[keepFrom:]...)
			bufLen = keepLen
			fresh = false
		}
		// Retained overlap may still crowd out a large unit; drop from the
		// front until it fits. Each unit is at most chunkSize on its own.
		for bufLen+len(u) > s.chunkSize && len(buf) > 0 {
			bufLen -= len(buf[0])
			buf = buf[1:]
		}
		buf = append(buf, u)
		bufLen += len(u)
		fresh = true
	}

	if fresh {
		emit()
	}
	return chunks
}
