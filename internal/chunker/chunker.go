// Package chunker splits extracted document text into bounded, overlapping
// segments suitable for embedding.
package chunker

import (
	"fmt"
	"strings"
)

// Chunk is a contiguous segment of the source text.
type Chunk struct {
	Text  string // Raw segment, at most ChunkSize characters
	Index int    // Position in document (0, 1, 2...)
}

// separators are tried in priority order when looking for a natural cut
// point: paragraph break, line break, sentence end, word boundary. When none
// fits inside the size budget the splitter falls back to a hard character cut.
var separators = []string{"\n\n", "\n", ". ", " "}

// Splitter produces overlapping chunks of at most ChunkSize characters.
// Splitting is deterministic: the same text and parameters always yield the
// same chunk sequence.
//
// Chunks are raw substrings of the input. Consecutive chunks share exactly
// Overlap characters (except possibly the last), so stripping the first
// Overlap characters of every chunk after the first and concatenating
// reconstructs the original text.
type Splitter struct {
	chunkSize int
	overlap   int
}

// NewSplitter creates a splitter with the given chunk size and overlap,
// both measured in characters. Overlap must be smaller than chunkSize.
func NewSplitter(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, chunk size), got %d for size %d", overlap, chunkSize)
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}, nil
}

// Split divides text into ordered chunks. Text shorter than the chunk size
// yields exactly one chunk; empty or whitespace-only text yields none.
func (s *Splitter) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= s.chunkSize {
		return []Chunk{{Text: text, Index: 0}}
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + s.chunkSize
		if end >= len(runes) {
			chunks = append(chunks, Chunk{Text: string(runes[start:]), Index: len(chunks)})
			break
		}

		end = s.cutPoint(runes, start, end)
		chunks = append(chunks, Chunk{Text: string(runes[start:end]), Index: len(chunks)})
		start = end - s.overlap
	}
	return chunks
}

// cutPoint pulls end back to the latest natural boundary inside
// runes[start:end]. A boundary is only usable if it leaves the window large
// enough that the next chunk still advances past start after the overlap is
// applied; otherwise the next separator in priority order is tried, and
// finally the hard cut at end stands.
func (s *Splitter) cutPoint(runes []rune, start, end int) int {
	window := string(runes[start:end])
	// The cut must land strictly after start+overlap or the splitter would
	// stop advancing.
	minCut := s.overlap + 1

	for _, sep := range separators {
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		cut := len([]rune(window[:idx])) + len([]rune(sep))
		if cut >= minCut {
			return start + cut
		}
	}
	return end
}

// ChunkSize returns the configured maximum chunk length in characters.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap in characters.
func (s *Splitter) Overlap() int { return s.overlap }
