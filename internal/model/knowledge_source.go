package model

import "time"

// KnowledgeSource records one ingested document so operators can see what
// the vector index was built from. The chunks themselves live in the index
// file, not in the database.
type KnowledgeSource struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	URL        string    `gorm:"size:512;not null;index" json:"url"`
	Title      string    `gorm:"size:256" json:"title"`
	ChunkCount int       `gorm:"not null" json:"chunk_count"`
	IngestedAt time.Time `json:"ingested_at"`
}
