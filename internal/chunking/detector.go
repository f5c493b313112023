// Package chunking splits documents into bounded text segments for embedding
// and vector search, selecting a per-document chunking profile by heuristic.
package chunking

import "strings"

// Thresholds for text length analysis
const (
	smallTextThreshold  = 2000
	mediumTextThreshold = 10000
	csvSampleLines      = 5
)

// extensionToProfile maps file extensions to splitter profiles. Extensions
// take priority over content heuristics because they are cheap and reliable.
var extensionToProfile = map[string]string{
	// Markdown-like formats
	"txt": ProfileMarkdown,
	"md":  ProfileMarkdown,
	// Code files
	"java": ProfileCode,
	"kt":   ProfileCode,
	"js":   ProfileCode,
	"ts":   ProfileCode,
	"py":   ProfileCode,
	"cpp":  ProfileCode,
	"c":    ProfileCode,
	"go":   ProfileCode,
	// Data formats and large binary-derived documents
	"json": ProfileSemantic,
	"csv":  ProfileSemantic,
	"xml":  ProfileSemantic,
	"pdf":  ProfileSemantic,
	"docx": ProfileSemantic,
}

// Detect returns the chunking profile for the given text. A recognized
// extension hint short-circuits content analysis. Detection is a heuristic,
// not a guarantee; callers may always override with an explicit profile.
func Detect(text, extension string) string {
	if extension != "" {
		if profile, ok := extensionToProfile[strings.ToLower(extension)]; ok {
			return profile
		}
	}
	return DetectFromText(text)
}

// DetectFromText classifies text by structural markers first, then by length.
// The rule order matters: markdown and code markers win over structural data
// formats, which win over the length bands.
func DetectFromText(text string) string {
	trimmed := strings.TrimLeft(text, " \t\r\n")

	if looksLikeMarkdown(trimmed) {
		return ProfileMarkdown
	}
	if looksLikeCode(trimmed) {
		return ProfileCode
	}
	if looksLikeCSV(trimmed) || looksLikeJSON(trimmed) || looksLikeXML(trimmed) {
		return ProfileSemantic
	}

	// Short text favors precision over fragmentation.
	if len(trimmed) < smallTextThreshold {
		return ProfileSemantic
	}
	if len(trimmed) < mediumTextThreshold {
		return ProfileSentence
	}
	return ProfileSemantic
}

func looksLikeJSON(text string) bool {
	return (strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}")) ||
		(strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]"))
}

func looksLikeXML(text string) bool {
	return strings.HasPrefix(text, "<") && strings.Contains(text, "</")
}

// looksLikeCSV samples the first few lines and requires a delimiter on each.
func looksLikeCSV(text string) bool {
	if !strings.Contains(text, ",") {
		return false
	}
	lines := strings.Split(text, "\n")
	if len(lines) > csvSampleLines {
		lines = lines[:csvSampleLines]
	}
	for _, line := range lines {
		if !strings.Contains(line, ",") {
			return false
		}
	}
	return true
}

func looksLikeMarkdown(text string) bool {
	return strings.Contains(text, "# ") ||
		strings.Contains(text, "```") ||
		strings.Contains(text, "* ") ||
		strings.Contains(text, "- ")
}

func looksLikeCode(text string) bool {
	return strings.Contains(text, "class ") ||
		strings.Contains(text, "def ") ||
		strings.Contains(text, "fun ") ||
		strings.Contains(text, "public ") ||
		strings.Contains(text, "private ") ||
		(strings.Contains(text, "{") && strings.Contains(text, "}"))
}
