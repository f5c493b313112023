package chunking

import (
	"strings"
	"unicode"

	"github.com/agentkb/agentkb/internal/domain"
)

// Chunking profile names.
const (
	ProfileMarkdown = "markdown"
	ProfileCode     = "code"
	ProfileSemantic = "semantic"
	ProfileSentence = "sentence"
	ProfileDefault  = "default"
)

const (
	defaultChunkSize    = 500
	defaultMinChunkSize = 300
	maxChunksPerDoc     = 1000
)

// Profile carries the numeric parameters for one chunking strategy.
type Profile struct {
	// ChunkSize is the target character budget per chunk.
	ChunkSize int
	// MinChunkSize is the smallest viable chunk; trailing fragments below it
	// are merged into the previous chunk instead of being emitted.
	MinChunkSize int
	// Overlap is the number of characters carried over between consecutive
	// chunks to preserve cross-boundary context.
	Overlap int
	// KeepSeparator preserves line structure inside chunks; when false,
	// whitespace runs are collapsed.
	KeepSeparator bool
}

// DefaultProfiles returns the built-in profile set. These can be overridden
// through configuration; the "default" entry is the fallback for unknown
// profile names and must always be present.
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		// Markdown: smaller chunks to preserve structure.
		ProfileMarkdown: {ChunkSize: defaultChunkSize, MinChunkSize: defaultMinChunkSize, Overlap: 50, KeepSeparator: true},
		// Code: larger chunks to keep function boundaries together.
		ProfileCode: {ChunkSize: defaultChunkSize * 2, MinChunkSize: defaultMinChunkSize, Overlap: 100, KeepSeparator: true},
		// Semantic: large chunks for complex documents.
		ProfileSemantic: {ChunkSize: defaultChunkSize * 3, MinChunkSize: defaultMinChunkSize * 2, Overlap: 150, KeepSeparator: false},
		// Sentence: standard chunks with sentence awareness.
		ProfileSentence: {ChunkSize: defaultChunkSize, MinChunkSize: defaultMinChunkSize, Overlap: 75, KeepSeparator: true},
		ProfileDefault:  {ChunkSize: defaultChunkSize, MinChunkSize: defaultMinChunkSize, Overlap: 50, KeepSeparator: true},
	}
}

// SplitChunk is one splitter output segment with its attached metadata.
type SplitChunk struct {
	Content  string
	Metadata map[string]any
}

// Splitter splits text into bounded chunks using named profiles. It holds no
// state beyond the immutable per-profile parameter sets.
type Splitter struct {
	profiles map[string]Profile
}

// NewSplitter builds a Splitter from the given profile set. A missing
// "default" profile is a fatal configuration error because it is the fallback
// for every unknown profile name.
func NewSplitter(profiles map[string]Profile) (*Splitter, error) {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	if _, ok := profiles[ProfileDefault]; !ok {
		return nil, domain.ErrNoDefaultProfile
	}
	return &Splitter{profiles: profiles}, nil
}

// Profile resolves a profile by name, falling back to the default profile for
// unknown names.
func (s *Splitter) Profile(name string) Profile {
	_, p := s.resolve(name)
	return p
}

// resolve returns the profile for name along with the name that actually
// applied, so chunk metadata never claims a profile that was not used.
func (s *Splitter) resolve(name string) (string, Profile) {
	if p, ok := s.profiles[name]; ok && p.ChunkSize > 0 {
		return name, p
	}
	return ProfileDefault, s.profiles[ProfileDefault]
}

// Split segments text according to the named profile. Empty or
// whitespace-only input yields an empty sequence, not an error. Consecutive
// chunks overlap by the profile's overlap amount; a trailing fragment smaller
// than the minimum chunk size is merged into the previous chunk.
func (s *Splitter) Split(text, profileName string) []SplitChunk {
	resolved, cfg := s.resolve(profileName)

	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if !cfg.KeepSeparator {
		clean = strings.Join(strings.Fields(clean), " ")
	}

	runes := []rune(clean)
	if len(runes) <= cfg.ChunkSize {
		return []SplitChunk{newSplitChunk(clean, resolved, cfg)}
	}

	var pieces []string
	start := 0
	for start < len(runes) {
		if len(pieces) >= maxChunksPerDoc {
			break
		}

		end := start + cfg.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		// Prefer breaking at whitespace so words stay intact.
		if end < len(runes) {
			cut := end
			minCut := start + cfg.MinChunkSize
			if minCut > end {
				minCut = start
			}
			for i := end; i > minCut; i-- {
				if unicode.IsSpace(runes[i-1]) {
					cut = i
					break
				}
			}
			end = cut
		}

		if end <= start {
			break
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			pieces = append(pieces, piece)
		}

		if end >= len(runes) {
			break
		}

		nextStart := end
		if cfg.Overlap > 0 && end-start > cfg.Overlap {
			nextStart = end - cfg.Overlap
		}
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	// Merge a trailing fragment below the minimum into the previous chunk
	// rather than emitting a tiny chunk.
	if n := len(pieces); n > 1 && len([]rune(pieces[n-1])) < cfg.MinChunkSize {
		pieces[n-2] = pieces[n-2] + " " + pieces[n-1]
		pieces = pieces[:n-1]
	}

	chunks := make([]SplitChunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, newSplitChunk(p, resolved, cfg))
	}
	return chunks
}

func newSplitChunk(content, profileName string, cfg Profile) SplitChunk {
	return SplitChunk{
		Content: content,
		Metadata: map[string]any{
			"profile":       profileName,
			"chunkSize":     cfg.ChunkSize,
			"chunkOverlap":  cfg.Overlap,
			"keepSeparator": cfg.KeepSeparator,
		},
	}
}
