// Package rag implements the retrieval core: text segmentation, cosine
// ranking over the segment index, and the error taxonomy shared by the
// ingestion and query pipelines.
package rag

import "errors"

// Sentinel errors for the pipeline boundaries. Callers match them with
// errors.Is; the wrapped message carries the underlying cause.
var (
	// ErrExtractionFailed means the upstream text extractor could not turn
	// the raw document into plain text. Not retryable here.
	ErrExtractionFailed = errors.New("text extraction failed")

	// ErrEmbeddingUnavailable means the embedding provider was unreachable
	// or returned a response the adapter cannot interpret. Transient; the
	// caller may retry with backoff, the core never retries on its own.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrIngestionFailed wraps an embedding or I/O failure during ingest.
	// The document was not registered.
	ErrIngestionFailed = errors.New("ingestion failed")

	// ErrRetrievalFailed means the query text could not be embedded. An
	// empty or unreadable index is not a retrieval failure.
	ErrRetrievalFailed = errors.New("retrieval failed")

	// ErrDimensionMismatch is returned when two vectors of different
	// lengths are compared. Mixing embedding dimensions in one index would
	// silently produce meaningless scores, so it surfaces as an error.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
