// Package tasks defines the job payloads sent through Kafka.
package tasks

// IngestionTask asks the worker to extract, segment, embed and index one
// archived document.
type IngestionTask struct {
	DocName  string `json:"doc_name"`
	Size     int64  `json:"size"`
	UserID   uint   `json:"user_id"`
	Uploaded string `json:"uploaded"` // RFC3339 enqueue time, for tracing
}
