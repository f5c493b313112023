package chunking

import (
	"strings"
	"unicode/utf8"

	"github.com/agentkb/agentkb/internal/domain"
)

// MaxExtractedBytes is the ceiling on extracted text size (10 MiB).
const MaxExtractedBytes = 10 * 1024 * 1024

// Extractor turns raw file bytes into plain text. Binary formats (PDF, DOCX)
// are handled by external implementations plugged in behind this interface.
type Extractor interface {
	Extract(data []byte, extension string) (string, error)
}

// plainTextExtensions are the formats the built-in extractor decodes directly.
var plainTextExtensions = map[string]bool{
	"txt": true, "md": true, "json": true, "csv": true, "xml": true,
	"java": true, "kt": true, "js": true, "ts": true, "py": true,
	"cpp": true, "c": true, "go": true, "html": true, "yaml": true, "yml": true,
}

// TextExtractor is the built-in Extractor for plain-text formats.
type TextExtractor struct{}

// NewTextExtractor returns the built-in plain-text extractor.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Extract decodes data as UTF-8 text. It fails with a validation error for
// unknown extensions, empty content, invalid encoding, or content above the
// 10 MiB ceiling.
func (e *TextExtractor) Extract(data []byte, extension string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(extension, "."))
	if ext == "" {
		return "", domain.ErrMissingExtension
	}
	if !plainTextExtensions[ext] {
		return "", domain.ErrUnsupportedFormat
	}
	if len(data) > MaxExtractedBytes {
		return "", domain.ErrFileTooLarge
	}
	if !utf8.Valid(data) {
		return "", domain.ErrUnsupportedFormat
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return "", domain.ErrEmptyFile
	}
	return text, nil
}

// FileExtension extracts the lowercase extension from a filename, or "" when
// the filename has none.
func FileExtension(fileName string) string {
	idx := strings.LastIndex(fileName, ".")
	if idx == -1 || idx == len(fileName)-1 {
		return ""
	}
	return strings.ToLower(fileName[idx+1:])
}
