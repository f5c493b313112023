package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect_ExtensionPriority(t *testing.T) {
	tests := []struct {
		name      string
		extension string
		expected  string
	}{
		{"markdown extension", "md", ProfileMarkdown},
		{"text extension", "txt", ProfileMarkdown},
		{"go extension", "go", ProfileCode},
		{"python extension", "py", ProfileCode},
		{"json extension", "json", ProfileSemantic},
		{"csv extension", "csv", ProfileSemantic},
		{"pdf extension", "pdf", ProfileSemantic},
		{"uppercase extension", "MD", ProfileMarkdown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Detect("unstructured body text", tt.extension))
		})
	}
}

func TestDetect_UnknownExtensionFallsBackToContent(t *testing.T) {
	assert.Equal(t, ProfileMarkdown, Detect("# Title\n\nSome content", "weird"))
}

func TestDetectFromText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"markdown heading", "# Title\n\nSome content", ProfileMarkdown},
		{"markdown fence", "intro\n```\ncode\n```", ProfileMarkdown},
		{"markdown list", "- one\n- two", ProfileMarkdown},
		{"code class", "class Foo:\n    pass", ProfileCode},
		{"code braces", "if (x) { return y }", ProfileCode},
		{"json object", `{"key": "value"}`, ProfileSemantic},
		{"json array", `[1, 2, 3]`, ProfileSemantic},
		{"xml", "<root>value</root>", ProfileSemantic},
		{"csv", "a,b,c\n1,2,3\n4,5,6", ProfileSemantic},
		{"short plain text", "just a short note", ProfileSemantic},
		{"leading whitespace ignored", "   \n\t# Title\ncontent", ProfileMarkdown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectFromText(tt.text))
		})
	}
}

func TestDetectFromText_LengthBands(t *testing.T) {
	// Plain prose without structural markers, sized into each band.
	sentence := "the quick brown fox jumps over a lazy dog and keeps going. "

	short := sentence
	assert.Equal(t, ProfileSemantic, DetectFromText(short))

	medium := strings.Repeat(sentence, 60)
	assert.Greater(t, len(medium), smallTextThreshold)
	assert.Less(t, len(medium), mediumTextThreshold)
	assert.Equal(t, ProfileSentence, DetectFromText(medium))

	long := strings.Repeat(sentence, 200)
	assert.Greater(t, len(long), mediumTextThreshold)
	assert.Equal(t, ProfileSemantic, DetectFromText(long))
}

func TestDetect_Deterministic(t *testing.T) {
	text := "# Title\n\nSome content"
	first := Detect(text, "")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Detect(text, ""))
	}
}
