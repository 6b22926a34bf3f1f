// Package service contains the application business logic.
package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"wattson/internal/model"
	"wattson/internal/rag"
	"wattson/internal/repository"
	"wattson/pkg/embedding"
	"wattson/pkg/log"
)

// DefaultTopK is the number of segments retrieved when the caller does not
// ask for a specific count.
const DefaultTopK = 8

// maxStatsDocNames caps the document name list in the stats payload.
const maxStatsDocNames = 20

// RetrievalService answers similarity queries over the segment index and
// reports index statistics.
type RetrievalService interface {
	Query(ctx context.Context, text string, topK int) (model.RetrievalResult, error)
	Stats() model.IndexStats
}

type retrievalService struct {
	embedder  embedding.Client
	segments  repository.SegmentRepository
	documents repository.DocumentRepository
	ranker    rag.Ranker
	dataDir   string
}

// NewRetrievalService creates a RetrievalService.
func NewRetrievalService(embedder embedding.Client, segments repository.SegmentRepository, documents repository.DocumentRepository, ranker rag.Ranker, dataDir string) RetrievalService {
	return &retrievalService{
		embedder:  embedder,
		segments:  segments,
		documents: documents,
		ranker:    ranker,
		dataDir:   dataDir,
	}
}

// Query embeds the question, ranks it against the whole index and
// assembles the context block. A blank question or an empty/unreadable
// index yields an empty result; only a failed query embedding is an error
// (ErrRetrievalFailed).
func (s *retrievalService) Query(ctx context.Context, text string, topK int) (model.RetrievalResult, error) {
	empty := model.RetrievalResult{Sources: []string{}, Hits: []model.Hit{}}

	text = strings.TrimSpace(text)
	if text == "" {
		return empty, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return empty, fmt.Errorf("%w: embed query: %w", rag.ErrRetrievalFailed, err)
	}
	queryVec := vectors[0]

	hits, err := s.ranker.Rank(queryVec, s.segments, topK)
	if err != nil {
		// Degraded index (unreadable file, mixed dimensions) returns no
		// results rather than failing the query.
		log.Warnf("[RetrievalService] ranking failed, returning empty result: %v", err)
		return empty, nil
	}
	if len(hits) == 0 {
		return empty, nil
	}

	var contextBuilder strings.Builder
	sources := make([]string, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for i, h := range hits {
		if i > 0 {
			contextBuilder.WriteString("\n---\n")
		}
		fmt.Fprintf(&contextBuilder, "【%s · #%d · %.3f】\n%s", h.Segment.Doc, h.Segment.ChunkIndex, h.Score, h.Segment.Text)
		if _, ok := seen[h.Segment.Doc]; !ok {
			seen[h.Segment.Doc] = struct{}{}
			sources = append(sources, h.Segment.Doc)
		}
	}

	return model.RetrievalResult{
		Context: contextBuilder.String(),
		Sources: sources,
		Hits:    hits,
	}, nil
}

// Stats reports the registry and index state. Unreadable parts degrade to
// zero values instead of failing.
func (s *retrievalService) Stats() model.IndexStats {
	stats := model.IndexStats{DataDir: s.dataDir, DocNames: []string{}}

	docs, err := s.documents.List()
	if err != nil {
		log.Warnf("[RetrievalService] listing documents failed: %v", err)
	}
	stats.DocsCount = len(docs)
	for i, d := range docs {
		if i >= maxStatsDocNames {
			break
		}
		stats.DocNames = append(stats.DocNames, d.Name)
	}

	chunks, err := s.segments.Count()
	if err != nil {
		log.Warnf("[RetrievalService] counting segments failed: %v", err)
	}
	stats.Chunks = chunks

	totalBytes := s.segments.SizeBytes() + s.documents.SizeBytes()
	stats.SizeMB = math.Round(float64(totalBytes)/(1024*1024)*100) / 100

	return stats
}
