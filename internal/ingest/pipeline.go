// Package ingest builds the knowledge index: fetch a source, chunk it,
// embed the chunks and append them to the persisted vector index.
package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"internationally/internal/ai"
	"internationally/internal/chunker"
	"internationally/internal/model"
	"internationally/internal/pkg/pdfextract"
	"internationally/internal/vectorstore"
)

// Embedding providers commonly cap the batch size, so chunk embeddings are
// requested in small groups.
const embeddingBatchSize = 10

type SourceRegistry interface {
	Create(source *model.KnowledgeSource) error
	DeleteAll() error
}

type Pipeline struct {
	fetcher  *Fetcher
	chunker  *chunker.Chunker
	embedder ai.Embedder
	index    *vectorstore.Index
	sources  SourceRegistry
	logger   *log.Logger
}

type Result struct {
	URL        string
	Title      string
	ChunkCount int
}

func NewPipeline(
	fetcher *Fetcher,
	ch *chunker.Chunker,
	embedder ai.Embedder,
	index *vectorstore.Index,
	sources SourceRegistry,
	logger *log.Logger,
) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		fetcher:  fetcher,
		chunker:  ch,
		embedder: embedder,
		index:    index,
		sources:  sources,
		logger:   logger,
	}
}

// IngestURL fetches one source and appends its chunks to the index. The
// index file is rewritten once per document, after all chunks are in.
func (p *Pipeline) IngestURL(ctx context.Context, url string) (*Result, error) {
	doc, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return p.ingestDocument(ctx, doc)
}

// IngestFile ingests a local text, markdown or PDF file.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s failed: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	doc := &Document{URL: "file://" + path, Title: name}

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err := pdfextract.ExtractText(f)
		if err != nil {
			return nil, fmt.Errorf("extract pdf %s failed: %w", path, err)
		}
		doc.Text = text
	} else {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s failed: %w", path, err)
		}
		doc.Text = string(raw)
	}

	return p.ingestDocument(ctx, doc)
}

// Reset clears the index and the source registry together, for a rebuild
// from scratch.
func (p *Pipeline) Reset() error {
	if err := p.index.Reset(); err != nil {
		return err
	}
	if p.sources != nil {
		if err := p.sources.DeleteAll(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) ingestDocument(ctx context.Context, doc *Document) (*Result, error) {
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return nil, fmt.Errorf("source %s has no extractable text", doc.URL)
	}

	ingestedAt := time.Now()
	chunks := p.chunker.Chunk(text, doc.URL, doc.Title, ingestedAt)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("source %s produced no chunks", doc.URL)
	}

	for start := 0; start < len(chunks); start += embeddingBatchSize {
		end := start + embeddingBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks of %s failed: %w", doc.URL, err)
		}

		for i, c := range batch {
			record := vectorstore.Record{
				Content:     c.Content,
				SourceURL:   c.Metadata.SourceURL,
				Title:       c.Metadata.Title,
				ChunkIndex:  c.Metadata.ChunkIndex,
				TotalChunks: c.Metadata.TotalChunks,
				IngestedAt:  c.Metadata.IngestedAt,
			}
			if err := p.index.Add(vectors[i], record); err != nil {
				return nil, fmt.Errorf("index chunk %d of %s failed: %w", record.ChunkIndex, doc.URL, err)
			}
		}
	}

	if err := p.index.Persist(); err != nil {
		return nil, fmt.Errorf("persist index after %s failed: %w", doc.URL, err)
	}

	if p.sources != nil {
		source := &model.KnowledgeSource{
			URL:        doc.URL,
			Title:      doc.Title,
			ChunkCount: len(chunks),
			IngestedAt: ingestedAt,
		}
		if err := p.sources.Create(source); err != nil {
			p.logger.Printf("ingest: recording source %s failed: %v", doc.URL, err)
		}
	}

	p.logger.Printf("ingest: %s -> %d chunks (index size %d)", doc.URL, len(chunks), p.index.Len())
	return &Result{URL: doc.URL, Title: doc.Title, ChunkCount: len(chunks)}, nil
}
