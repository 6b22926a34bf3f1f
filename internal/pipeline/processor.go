package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"wattson/internal/config"
	"wattson/pkg/log"
	"wattson/pkg/storage"
	"wattson/pkg/tasks"
	"wattson/pkg/tika"
)

// Processor handles queued ingestion tasks: it reads the archived raw
// document back from object storage, extracts its text and hands it to the
// Ingestor.
type Processor struct {
	tikaClient *tika.Client
	ingestor   *Ingestor
	minioCfg   config.MinIOConfig
}

// NewProcessor creates a Processor.
func NewProcessor(tikaClient *tika.Client, ingestor *Ingestor, minioCfg config.MinIOConfig) *Processor {
	return &Processor{
		tikaClient: tikaClient,
		ingestor:   ingestor,
		minioCfg:   minioCfg,
	}
}

// Process runs one ingestion task end to end.
func (p *Processor) Process(ctx context.Context, task tasks.IngestionTask) error {
	log.Infof("[Processor] processing document %q (size %d)", task.DocName, task.Size)

	object, err := storage.GetDocument(ctx, p.minioCfg.BucketName, task.DocName)
	if err != nil {
		return fmt.Errorf("download archived document: %w", err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	size, err := buf.ReadFrom(object)
	if err != nil {
		return fmt.Errorf("read archived document: %w", err)
	}
	if size == 0 {
		return errors.New("archived document is empty")
	}

	text, err := p.tikaClient.ExtractText(bytes.NewReader(buf.Bytes()), task.DocName)
	if err != nil {
		return fmt.Errorf("extract text from %q: %w", task.DocName, err)
	}

	report, err := p.ingestor.Ingest(ctx, task.DocName, text)
	if err != nil {
		return err
	}
	log.Infof("[Processor] document %q done: %d of %d segments indexed", task.DocName, report.Added, report.Chunks)
	return nil
}
