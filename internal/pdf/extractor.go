// Package pdf extracts the text layer from PDF documents.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnreadable is returned when the document cannot be parsed as a PDF.
	ErrUnreadable = errors.New("document is not a readable PDF")

	// ErrNoTextContent is returned when the document contains no recoverable
	// text layer, e.g. purely scanned or image-based pages.
	ErrNoTextContent = errors.New("document contains no extractable text")
)

// minTextChars is the minimum number of non-whitespace characters a document
// must yield before it is considered text-bearing. Scanned PDFs typically
// extract to nothing or to a handful of stray glyphs.
const minTextChars = 16

// Extractor pulls plain text out of PDF bytes. It performs no chunking or
// interpretation of the content.
type Extractor struct{}

// NewExtractor creates a text extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the concatenated text of all pages, separated by newlines.
// Returns ErrUnreadable for malformed input and ErrNoTextContent when the
// document has no usable text layer.
func (e *Extractor) Extract(data []byte) (text string, err error) {
	// The underlying parser panics on some malformed xref tables.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// A single unparseable page does not invalidate the document.
			continue
		}
		if content != "" {
			sb.WriteString(content)
			sb.WriteString("\n")
		}
	}

	extracted := sb.String()
	if countTextChars(extracted) < minTextChars {
		return "", ErrNoTextContent
	}
	return extracted, nil
}

// countTextChars counts non-whitespace characters.
func countTextChars(s string) int {
	n := 0
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f', '\v':
		default:
			n++
		}
	}
	return n
}
