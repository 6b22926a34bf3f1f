package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"wattson/internal/model"
	"wattson/pkg/log"
)

// registryFileName is the document registry inside the data dir.
const registryFileName = "docs.json"

// documentList is the persisted shape of docs.json.
type documentList struct {
	Docs []model.Document `json:"docs"`
}

// DocumentRepository is the durable registry of ingested documents, keyed
// by name. Registration is idempotent; documents are never removed.
type DocumentRepository interface {
	Register(name string, size int64, createdAt time.Time) error
	List() ([]model.Document, error)
	SizeBytes() int64
}

type fileDocumentRepository struct {
	path string
}

// NewDocumentRepository creates the registry under dataDir, writing an
// empty document list if the file does not exist yet.
func NewDocumentRepository(dataDir string) (DocumentRepository, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dataDir, registryFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeRegistry(path, documentList{Docs: []model.Document{}}); err != nil {
			return nil, fmt.Errorf("init document registry: %w", err)
		}
	}
	return &fileDocumentRepository{path: path}, nil
}

// Register appends the document unless an entry with the same name already
// exists, in which case it is a no-op.
func (r *fileDocumentRepository) Register(name string, size int64, createdAt time.Time) error {
	docs := r.read()
	for _, d := range docs.Docs {
		if d.Name == name {
			return nil
		}
	}
	docs.Docs = append(docs.Docs, model.Document{Name: name, Size: size, CreatedAt: createdAt})
	if err := writeRegistry(r.path, docs); err != nil {
		return fmt.Errorf("register document %q: %w", name, err)
	}
	return nil
}

// List returns all registered documents in insertion order.
func (r *fileDocumentRepository) List() ([]model.Document, error) {
	return r.read().Docs, nil
}

// SizeBytes returns the on-disk size of the registry file, 0 if unreadable.
func (r *fileDocumentRepository) SizeBytes() int64 {
	info, err := os.Stat(r.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// read loads the registry, falling back to an empty list when the file is
// missing or corrupt. A damaged registry must not take queries down.
func (r *fileDocumentRepository) read() documentList {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return documentList{}
	}
	var docs documentList
	if err := json.Unmarshal(data, &docs); err != nil {
		log.Warnf("document registry: unreadable %s, treating as empty: %v", filepath.Base(r.path), err)
		return documentList{}
	}
	return docs
}

func writeRegistry(path string, docs documentList) error {
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
