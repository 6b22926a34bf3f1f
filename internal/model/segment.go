// Package model defines the data structures shared across layers.
package model

import "time"

// Segment is one indexed slice of a document's text. It maps 1:1 to a line
// of the JSONL segment index, so the field names and order are part of the
// on-disk format and must not change.
type Segment struct {
	ID         string    `json:"id"`
	Doc        string    `json:"doc"`
	ChunkIndex int       `json:"chunkIndex"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding"`
}

// Document is one entry of the document registry (docs.json).
type Document struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// Hit is a scored segment returned by a retrieval query. It is never
// persisted.
type Hit struct {
	Score   float64 `json:"score"`
	Segment `json:"segment"`
}

// RetrievalResult is the outcome of one query: the assembled context block,
// the distinct source document names in ranked order, and the raw hits.
type RetrievalResult struct {
	Context string   `json:"context"`
	Sources []string `json:"sources"`
	Hits    []Hit    `json:"hits"`
}

// IngestReport summarizes a single document ingestion.
type IngestReport struct {
	File   string `json:"file"`
	Added  int    `json:"added"`
	Chunks int    `json:"chunks"`
}

// IndexStats describes the current state of the on-disk index.
type IndexStats struct {
	DataDir   string   `json:"dataDir"`
	DocsCount int      `json:"docsCount"`
	Chunks    int      `json:"chunks"`
	SizeMB    float64  `json:"sizeMB"`
	DocNames  []string `json:"docNames"`
}
