package service

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"doc-assembler-be/internal/dto"
	"doc-assembler-be/internal/entity"
	"doc-assembler-be/internal/pkg/logger"
	"doc-assembler-be/internal/repository/memory"
	"doc-assembler-be/pkg/docevents"
	"doc-assembler-be/pkg/docx"
	"doc-assembler-be/pkg/lexical"
)

type IAssemblerService interface {
	Ingest(ctx context.Context, sessionKey string, raw []byte) (*dto.IngestChunkResponse, error)
	Status(sessionKey string) *dto.SessionStatusResponse
	Discard(ctx context.Context, sessionKey string) (*dto.SessionStatusResponse, error)
}

type AssemblerOptions struct {
	OutputDir     string
	IngestTimeout time.Duration
	Now           func() time.Time
}

type assemblerService struct {
	sessions  *memory.SessionRepository
	writer    *docx.Writer
	artifacts IPublisherService
	events    docevents.Publisher
	logger    logger.ILogger
	opts      AssemblerOptions
}

func NewAssemblerService(
	sessions *memory.SessionRepository,
	writer *docx.Writer,
	artifacts IPublisherService,
	events docevents.Publisher,
	logger logger.ILogger,
	opts AssemblerOptions,
) IAssemblerService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &assemblerService{
		sessions:  sessions,
		writer:    writer,
		artifacts: artifacts,
		events:    events,
		logger:    logger,
		opts:      opts,
	}
}

// ParseChunk decodes a chunk body. Only a body that is not a JSON object is
// taken as raw, non-final content. A decoded object is structured even when
// its fields are oddly typed: a non-string content keeps its JSON text and
// is_final is read by truthiness.
func ParseChunk(raw []byte) dto.IngestChunkRequest {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return dto.IngestChunkRequest{Content: string(raw)}
	}
	return dto.IngestChunkRequest{
		Content: contentText(fields["content"]),
		IsFinal: truthy(fields["is_final"]),
	}
}

func contentText(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	if len(v) == 0 || string(v) == "null" {
		return ""
	}
	return string(v)
}

// truthy follows JSON truthiness: false, null, 0, "", [] and {} are false.
func truthy(v json.RawMessage) bool {
	var x interface{}
	if len(v) == 0 || json.Unmarshal(v, &x) != nil {
		return false
	}
	switch t := x.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	}
	return true
}

// Ingest applies one chunk to the session's document: classify, append,
// save the snapshot, and on the final chunk hand back the artifact and
// reset the session. Chunks of one session are applied strictly one at a
// time.
func (s *assemblerService) Ingest(ctx context.Context, sessionKey string, raw []byte) (*dto.IngestChunkResponse, error) {
	chunk := ParseChunk(raw)
	if chunk.Content == "" {
		return nil, ErrEmptyContent
	}

	if s.opts.IngestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.IngestTimeout)
		defer cancel()
	}

	lease, err := s.sessions.Acquire(ctx, sessionKey)
	if err != nil {
		return nil, &SessionBusyError{Err: err}
	}
	defer lease.Release()

	doc, created := lease.GetOrCreate(s.opts.Now())
	if created {
		s.logger.Info("ASSEMBLER", "New document created", map[string]interface{}{
			"session_key": sessionKey,
			"filename":    doc.Filename,
		})
		s.events.PublishDocumentStarted(ctx, sessionKey, doc.Filename)
	}

	blocks := lexical.ClassifyContent(chunk.Content)
	doc, err = lease.Append(blocks)
	if err != nil {
		return nil, err
	}

	path, err := s.writer.WriteFile(s.opts.OutputDir, doc)
	if err != nil {
		s.logger.Error("ASSEMBLER", "Failed to save document", map[string]interface{}{
			"filename": doc.Filename,
			"error":    err.Error(),
		})
		return nil, &PersistError{Filename: doc.Filename, Err: err}
	}

	s.logger.Debug("ASSEMBLER", "Chunk appended", map[string]interface{}{
		"session_key":  sessionKey,
		"filename":     doc.Filename,
		"blocks_added": len(blocks),
		"blocks_total": len(doc.Blocks),
		"is_final":     chunk.IsFinal,
	})

	res := &dto.IngestChunkResponse{
		Filename:    doc.Filename,
		BlocksAdded: len(blocks),
		TotalBlocks: len(doc.Blocks),
		IsFinal:     chunk.IsFinal,
	}
	if !chunk.IsFinal {
		return res, nil
	}

	return s.finalize(ctx, lease, sessionKey, path, res)
}

// finalize reads back the saved artifact and only then resets the session,
// so a failure leaves the document Building for a retry.
func (s *assemblerService) finalize(ctx context.Context, lease *memory.Lease, sessionKey, path string, res *dto.IngestChunkResponse) (*dto.IngestChunkResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Error("ASSEMBLER", "Failed to read finished document", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return nil, &SerializationError{Filename: res.Filename, Err: err}
	}

	if _, err := lease.Finalize(); err != nil {
		return nil, err
	}

	res.Path = path
	res.Artifact = data

	s.logger.Info("ASSEMBLER", "Document finalized", map[string]interface{}{
		"session_key": sessionKey,
		"path":        path,
		"size_bytes":  len(data),
		"blocks":      res.TotalBlocks,
	})

	if err := s.artifacts.Publish(ctx, dto.ArtifactFinalizedMessage{
		SessionKey: sessionKey,
		Filename:   res.Filename,
		Path:       path,
	}); err != nil {
		s.logger.Warn("ASSEMBLER", "Failed to dispatch artifact open", map[string]interface{}{"error": err.Error()})
	}
	s.events.PublishDocumentFinalized(ctx, sessionKey, res.Filename, res.TotalBlocks, len(data))

	return res, nil
}

func (s *assemblerService) Status(sessionKey string) *dto.SessionStatusResponse {
	doc, ok := s.sessions.Peek(sessionKey)
	return statusResponse(sessionKey, doc, ok)
}

// Discard drops the Building document of the session. The partial file on
// disk is left untouched.
func (s *assemblerService) Discard(ctx context.Context, sessionKey string) (*dto.SessionStatusResponse, error) {
	if s.opts.IngestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.IngestTimeout)
		defer cancel()
	}

	lease, err := s.sessions.Acquire(ctx, sessionKey)
	if err != nil {
		return nil, &SessionBusyError{Err: err}
	}
	defer lease.Release()

	doc, ok := lease.Discard()
	if !ok {
		return nil, &NotFoundError{Reason: memory.ErrNoActiveSession.Error()}
	}

	s.logger.Info("ASSEMBLER", "Document discarded", map[string]interface{}{
		"session_key": sessionKey,
		"filename":    doc.Filename,
	})
	return statusResponse(sessionKey, doc, true), nil
}

// OnEvicted reports a Building document dropped for inactivity.
func OnEvicted(log logger.ILogger, events docevents.Publisher) memory.EvictFunc {
	return func(key string, doc *entity.Document) {
		log.Warn("ASSEMBLER", "Idle document evicted, file left on disk", map[string]interface{}{
			"session_key": key,
			"filename":    doc.Filename,
			"blocks":      len(doc.Blocks),
		})
		events.PublishDocumentEvicted(context.Background(), key, doc.Filename, len(doc.Blocks))
	}
}

func statusResponse(sessionKey string, doc *entity.Document, building bool) *dto.SessionStatusResponse {
	if !building || doc == nil {
		return &dto.SessionStatusResponse{
			SessionKey: sessionKey,
			State:      string(entity.SessionStateEmpty),
		}
	}
	createdAt := doc.CreatedAt
	return &dto.SessionStatusResponse{
		SessionKey: sessionKey,
		State:      string(entity.SessionStateBuilding),
		Filename:   doc.Filename,
		Blocks:     len(doc.Blocks),
		CreatedAt:  &createdAt,
	}
}
