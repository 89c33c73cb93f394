// Package chunker splits scraped document text into overlapping,
// header-aware segments sized for embedding.
package chunker

import (
	"strings"
	"time"
)

const (
	defaultChunkWords   = 1000
	defaultOverlapWords = 200
)

type Metadata struct {
	SourceURL   string    `json:"source_url"`
	Title       string    `json:"title"`
	ChunkIndex  int       `json:"chunk_index"`
	TotalChunks int       `json:"total_chunks"`
	IngestedAt  time.Time `json:"ingested_at"`
}

type Chunk struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

type Chunker struct {
	chunkWords   int
	overlapWords int
}

func New(chunkWords, overlapWords int) *Chunker {
	if chunkWords <= 0 {
		chunkWords = defaultChunkWords
	}
	if overlapWords < 0 {
		overlapWords = defaultOverlapWords
	}
	if overlapWords >= chunkWords {
		overlapWords = chunkWords / 2
	}
	return &Chunker{chunkWords: chunkWords, overlapWords: overlapWords}
}

// Chunk splits text and wraps each segment with source metadata.
// ChunkIndex is contiguous across the whole document.
func (c *Chunker) Chunk(text, sourceURL, title string, ingestedAt time.Time) []Chunk {
	segments := c.Split(text)
	chunks := make([]Chunk, len(segments))
	for i, segment := range segments {
		chunks[i] = Chunk{
			Content: segment,
			Metadata: Metadata{
				SourceURL:   sourceURL,
				Title:       title,
				ChunkIndex:  i,
				TotalChunks: len(segments),
				IngestedAt:  ingestedAt,
			},
		}
	}
	return chunks
}

// Split produces the overlapping text segments. A document shorter than the
// chunk size comes back as a single unmodified segment. Markdown headers act
// as hard boundaries; chunks never cross a section.
func (c *Chunker) Split(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if len(strings.Fields(trimmed)) <= c.chunkWords {
		return []string{text}
	}

	var segments []string
	for _, section := range splitSections(trimmed) {
		segments = append(segments, c.splitSection(section)...)
	}
	return segments
}

type section struct {
	header string
	body   string
}

func splitSections(text string) []section {
	lines := strings.Split(text, "\n")
	var sections []section
	current := section{}
	var body []string

	flush := func() {
		current.body = strings.TrimSpace(strings.Join(body, "\n"))
		if current.header != "" || current.body != "" {
			sections = append(sections, current)
		}
		body = body[:0]
	}

	for _, line := range lines {
		if isHeaderLine(line) {
			flush()
			current = section{header: strings.TrimSpace(line)}
			continue
		}
		body = append(body, line)
	}
	flush()
	return sections
}

func isHeaderLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return false
	}
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	return level <= 6 && level < len(trimmed) && trimmed[level] == ' '
}

func (c *Chunker) splitSection(s section) []string {
	words := strings.Fields(s.body)
	if len(words) == 0 {
		if s.header == "" {
			return nil
		}
		return []string{s.header}
	}

	var segments []string
	start := 0
	for start < len(words) {
		end := start + c.chunkWords
		if end > len(words) {
			end = len(words)
		} else {
			end = c.backscanBoundary(words, start, end)
		}

		segment := strings.Join(words[start:end], " ")
		if s.header != "" && !strings.HasPrefix(segment, s.header) {
			segment = s.header + "\n" + segment
		}
		segments = append(segments, segment)

		if end == len(words) {
			break
		}
		next := end - c.overlapWords
		if next <= start {
			// overlap must never stall the walk
			next = end
		}
		start = next
	}
	return segments
}

// backscanBoundary moves the cut point back to the nearest sentence end,
// scanning at most half a chunk so a run of unpunctuated text cannot walk
// the boundary arbitrarily far.
func (c *Chunker) backscanBoundary(words []string, start, end int) int {
	limit := end - c.chunkWords/2
	if limit < start+1 {
		limit = start + 1
	}
	for i := end - 1; i >= limit; i-- {
		if endsSentence(words[i]) {
			return i + 1
		}
	}
	return end
}

func endsSentence(word string) bool {
	if word == "" {
		return false
	}
	switch word[len(word)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
