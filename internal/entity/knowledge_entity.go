package entity

import (
	"time"

	"github.com/google/uuid"
)

type KnowledgeDocument struct {
	Id           int
	Title        string
	Content      string
	Category     string
	Tags         string
	Price        *float64
	HasEmbedding bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    *time.Time
	DeletedAt    *time.Time
	IsDeleted    bool
}

type KnowledgeEmbedding struct {
	Id         uuid.UUID
	DocumentId int
	ChunkIndex int
	Chunk      string
	Embedding  []float32
	CreatedAt  time.Time
}
