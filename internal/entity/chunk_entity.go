package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChunkMetadata travels with the chunk into every sink.
type ChunkMetadata struct {
	DocId            uuid.UUID `json:"doc_id"`
	KnowledgeSpaceId uuid.UUID `json:"knowledge_space_id"`
	DocName          string    `json:"doc_name"`
	DocType          string    `json:"doc_type"`
	CreatedAt        time.Time `json:"created_at"`
	ModifiedAt       time.Time `json:"modified_at"`
}

type Chunk struct {
	Id               uuid.UUID
	DocId            uuid.UUID
	KnowledgeSpaceId uuid.UUID
	ChunkIndex       int
	Content          string
	Summary          string
	Metadata         ChunkMetadata
	VectorId         string
	FullTextId       string
	CreatedAt        time.Time
	UpdatedAt        *time.Time
	DeletedAt        *time.Time
	IsDeleted        bool
}

// IsImage reports whether the chunk content is an image reference
// rather than text. Image chunks go through the image extractor.
func (c *Chunk) IsImage() bool {
	return c.Metadata.DocType == "image" || hasImagePrefix(c.Content)
}

func hasImagePrefix(content string) bool {
	const prefix = "![image]("
	return len(content) >= len(prefix) && content[:len(prefix)] == prefix
}
