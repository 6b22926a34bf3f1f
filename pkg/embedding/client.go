// Package embedding provides a client for the Gemini embedding API.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"wattson/internal/config"
	"wattson/internal/rag"
	"wattson/pkg/log"
)

// Client turns batches of texts into fixed-dimension vectors. Callers
// always embed a whole batch in one call (a document's segments, or the
// single query string) to amortize the provider round trip.
type Client interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

type geminiClient struct {
	cfg    config.EmbeddingConfig
	client *http.Client
}

// NewClient creates an embedding client from the configuration.
func NewClient(cfg config.EmbeddingConfig) Client {
	return &geminiClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type embedContentRequest struct {
	Model                string      `json:"model"`
	Content              richContent `json:"content"`
	OutputDimensionality int         `json:"outputDimensionality,omitempty"`
}

type richContent struct {
	Parts []contentPart `json:"parts"`
}

type contentPart struct {
	Text string `json:"text"`
}

type batchEmbedRequest struct {
	Requests []embedContentRequest `json:"requests"`
}

type vectorValues struct {
	Values []float32 `json:"values"`
}

// batchEmbedResponse accepts both the per-input list and the single
// aggregate vector the API returns for one-element batches.
type batchEmbedResponse struct {
	Embeddings []vectorValues `json:"embeddings"`
	Embedding  *vectorValues  `json:"embedding"`
}

// Embed returns one vector per input text, in input order. Every vector has
// exactly Dimensions() entries. A provider that is unreachable or answers
// in a shape the adapter cannot interpret yields ErrEmbeddingUnavailable.
func (c *geminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	log.Infof("[EmbeddingClient] embedding batch of %d texts, model: %s, dim: %d", len(texts), c.cfg.Model, c.cfg.Dimensions)

	reqBody := batchEmbedRequest{Requests: make([]embedContentRequest, 0, len(texts))}
	for _, t := range texts {
		reqBody.Requests = append(reqBody.Requests, embedContentRequest{
			Model:                "models/" + c.cfg.Model,
			Content:              richContent{Parts: []contentPart{{Text: t}}},
			OutputDimensionality: c.cfg.Dimensions,
		})
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:batchEmbedContents", c.cfg.BaseURL, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[EmbeddingClient] embedding API call failed: %v", err)
		return nil, fmt.Errorf("%w: %v", rag.ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Errorf("[EmbeddingClient] embedding API returned %s", resp.Status)
		return nil, fmt.Errorf("%w: embedding api returned %s", rag.ErrEmbeddingUnavailable, resp.Status)
	}

	var embeddingResp batchEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, fmt.Errorf("%w: decode embedding response: %v", rag.ErrEmbeddingUnavailable, err)
	}

	vectors := make([][]float32, 0, len(texts))
	switch {
	case len(embeddingResp.Embeddings) > 0:
		for _, e := range embeddingResp.Embeddings {
			vectors = append(vectors, e.Values)
		}
	case embeddingResp.Embedding != nil && len(embeddingResp.Embedding.Values) > 0:
		vectors = append(vectors, embeddingResp.Embedding.Values)
	default:
		return nil, fmt.Errorf("%w: unrecognized embedding response", rag.ErrEmbeddingUnavailable)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", rag.ErrEmbeddingUnavailable, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != c.cfg.Dimensions {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", rag.ErrEmbeddingUnavailable, i, len(v), c.cfg.Dimensions)
		}
	}

	log.Infof("[EmbeddingClient] got %d vectors from embedding API", len(vectors))
	return vectors, nil
}

// Dimensions returns the configured output dimensionality.
func (c *geminiClient) Dimensions() int {
	return c.cfg.Dimensions
}
