package service

import (
	"context"
	"fmt"
	"log"

	"github.com/agentkb/agentkb/internal/chunking"
	"github.com/agentkb/agentkb/internal/domain"
	"github.com/agentkb/agentkb/internal/telemetry"
)

// ChunkAdder is the slice of ChunkService the importer depends on.
type ChunkAdder interface {
	AddChunk(ctx context.Context, input AddChunkInput) (*domain.Chunk, error)
}

// DocumentArchive stores original imported documents.
type DocumentArchive interface {
	PutObject(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// ImportService turns uploaded documents into chunks: extract, detect a
// profile, split, then add each segment through the chunk lifecycle.
type ImportService struct {
	knowledgeRepo KnowledgeRepositoryInterface
	extractor     chunking.Extractor
	splitter      *chunking.Splitter
	chunks        ChunkAdder
	// archive is optional; without it imports skip document archival.
	archive DocumentArchive
}

// NewImportService creates a new ImportService instance
func NewImportService(
	knowledgeRepo KnowledgeRepositoryInterface,
	extractor chunking.Extractor,
	splitter *chunking.Splitter,
	chunks ChunkAdder,
	archive DocumentArchive,
) *ImportService {
	return &ImportService{
		knowledgeRepo: knowledgeRepo,
		extractor:     extractor,
		splitter:      splitter,
		chunks:        chunks,
		archive:       archive,
	}
}

// ImportInput represents one uploaded document
type ImportInput struct {
	AgentID     string
	KnowledgeID string
	FileName    string
	ContentType string
	Data        []byte
	// Profile overrides detection when non-empty.
	Profile string
}

// ImportResult reports what an import produced. IndexFailures counts chunks
// that were persisted but did not make it into the vector index; those remain
// listable and get retried by reconciliation.
type ImportResult struct {
	FileName      string
	Profile       string
	Segments      int
	Imported      int
	IndexFailures int
	ArchiveURI    string
}

// Import runs the full pipeline for one document. Extraction and embedding
// failures abort the import; vector index failures do not.
func (s *ImportService) Import(ctx context.Context, input ImportInput) (*ImportResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ImportService.Import", telemetry.SpanAttributes{
		AgentID:     input.AgentID,
		KnowledgeID: input.KnowledgeID,
		Operation:   "import",
	})
	defer span.End()

	source, err := s.knowledgeRepo.GetForAgent(ctx, input.KnowledgeID, input.AgentID)
	if err != nil {
		return nil, err
	}

	extension := chunking.FileExtension(input.FileName)
	text, err := s.extractor.Extract(input.Data, extension)
	if err != nil {
		return nil, err
	}

	profile := input.Profile
	if profile == "" {
		profile = chunking.Detect(text, extension)
	}

	segments := s.splitter.Split(text, profile)
	result := &ImportResult{
		FileName: input.FileName,
		Profile:  profile,
		Segments: len(segments),
	}

	for _, segment := range segments {
		metadata := segment.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata["fileName"] = input.FileName

		chunk, err := s.chunks.AddChunk(ctx, AddChunkInput{
			AgentID:     input.AgentID,
			KnowledgeID: input.KnowledgeID,
			Content:     segment.Content,
			Metadata:    metadata,
		})
		if err != nil {
			span.SetError(err)
			return result, err
		}
		result.Imported++
		if chunk.IndexStatus != domain.IndexStatusIndexed {
			result.IndexFailures++
		}
	}

	s.archiveOriginal(ctx, source, input, result)

	log.Printf("import service: %s -> %d chunks (profile %s, %d index failures)",
		input.FileName, result.Imported, result.Profile, result.IndexFailures)
	return result, nil
}

// archiveOriginal stores the uploaded bytes and records the location on the
// knowledge source. Best-effort: the chunks are already durable.
func (s *ImportService) archiveOriginal(ctx context.Context, source *domain.KnowledgeSource, input ImportInput, result *ImportResult) {
	if s.archive == nil {
		return
	}

	key := fmt.Sprintf("imports/%s/%s/%s", input.AgentID, input.KnowledgeID, input.FileName)
	uri, err := s.archive.PutObject(ctx, key, input.ContentType, input.Data)
	if err != nil {
		log.Printf("import service: archive failed for %s: %v", input.FileName, err)
		telemetry.CaptureError(ctx, err)
		return
	}

	source.SourceURI = uri
	if err := s.knowledgeRepo.Update(ctx, source); err != nil {
		log.Printf("import service: failed to record archive uri for knowledge %s: %v", source.ID, err)
		return
	}
	result.ArchiveURI = uri
}
