// Package rag retrieves supporting passages from the vector index for a
// free-text query.
package rag

import (
	"context"
	"log"

	"internationally/internal/ai"
	"internationally/internal/vectorstore"
)

// Fragment is one retrieved passage with its citation fields.
type Fragment struct {
	Content    string  `json:"content"`
	SourceURL  string  `json:"source_url"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
}

// Searcher is the slice of the vector index the retriever needs.
type Searcher interface {
	Search(query []float32, k int) ([]vectorstore.Match, error)
	Len() int
}

type Retriever struct {
	embedder ai.Embedder
	index    Searcher
	logger   *log.Logger
}

func NewRetriever(embedder ai.Embedder, index Searcher, logger *log.Logger) *Retriever {
	if logger == nil {
		logger = log.Default()
	}
	return &Retriever{embedder: embedder, index: index, logger: logger}
}

// Retrieve returns the top-k passages for the query. Retrieval degrades
// silently: an embedding failure or an empty index yields no fragments
// rather than an error, and the caller decides how to answer without
// supporting documents.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) []Fragment {
	if r.index.Len() == 0 {
		return nil
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Printf("rag: embed query failed: %v", err)
		return nil
	}

	matches, err := r.index.Search(embedding, k)
	if err != nil {
		r.logger.Printf("rag: index search failed: %v", err)
		return nil
	}

	fragments := make([]Fragment, len(matches))
	for i, match := range matches {
		fragments[i] = Fragment{
			Content:    match.Record.Content,
			SourceURL:  match.Record.SourceURL,
			Title:      match.Record.Title,
			Similarity: match.Similarity,
		}
	}
	return fragments
}
