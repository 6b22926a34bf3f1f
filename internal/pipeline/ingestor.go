// Package pipeline implements document ingestion: segment, embed, append
// to the index, register the document.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"wattson/internal/model"
	"wattson/internal/rag"
	"wattson/internal/repository"
	"wattson/pkg/embedding"
	"wattson/pkg/log"
)

// Ingestor turns one document's plain text into indexed segments. Writers
// must be serialized by the caller; the ingestion queue consumer runs one
// task at a time.
type Ingestor struct {
	embedder     embedding.Client
	segments     repository.SegmentRepository
	documents    repository.DocumentRepository
	chunkSize    int
	chunkOverlap int
}

// NewIngestor creates an Ingestor. Non-positive chunk parameters fall back
// to the defaults.
func NewIngestor(embedder embedding.Client, segments repository.SegmentRepository, documents repository.DocumentRepository, chunkSize, chunkOverlap int) *Ingestor {
	if chunkSize <= 0 {
		chunkSize = rag.DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = rag.DefaultChunkOverlap
	}
	return &Ingestor{
		embedder:     embedder,
		segments:     segments,
		documents:    documents,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Ingest segments rawText, embeds all segments in one batch, appends the
// records to the index and registers the document. An empty document is a
// zero-count success. Embedding and store failures wrap ErrIngestionFailed;
// a brand-new document is then left unregistered, but records already
// appended from the failed batch stay (the store is append-only, there is
// no transaction abort).
//
// Re-ingesting a registered name appends fresh segment records without
// duplicating the registry entry; the synthetic per-run record ids keep
// repeated ingestions distinguishable.
func (in *Ingestor) Ingest(ctx context.Context, name, rawText string) (model.IngestReport, error) {
	report := model.IngestReport{File: name}

	chunks, err := rag.SplitText(rawText, in.chunkSize, in.chunkOverlap)
	if err != nil {
		return report, fmt.Errorf("%w: %w", rag.ErrIngestionFailed, err)
	}
	if len(chunks) == 0 {
		log.Infof("[Ingestor] document %q produced no segments, nothing to index", name)
		return report, nil
	}
	report.Chunks = len(chunks)

	vectors, err := in.embedder.Embed(ctx, chunks)
	if err != nil {
		return report, fmt.Errorf("%w: embed %d segments of %q: %w", rag.ErrIngestionFailed, len(chunks), name, err)
	}

	now := time.Now()
	records := make([]model.Segment, 0, len(chunks))
	for i, text := range chunks {
		records = append(records, model.Segment{
			ID:         fmt.Sprintf("%d_%d", now.UnixMilli(), i),
			Doc:        name,
			ChunkIndex: i,
			Text:       text,
			Embedding:  vectors[i],
		})
	}

	if err := in.segments.Append(records); err != nil {
		return report, fmt.Errorf("%w: append segments of %q: %w", rag.ErrIngestionFailed, name, err)
	}
	if err := in.documents.Register(name, int64(len(rawText)), now); err != nil {
		return report, fmt.Errorf("%w: register %q: %w", rag.ErrIngestionFailed, name, err)
	}

	report.Added = len(records)
	log.Infof("[Ingestor] indexed %q: %d segments", name, report.Added)
	return report, nil
}
