package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type KnowledgeDocument struct {
	Id           int            `gorm:"primaryKey;autoIncrement"`
	Title        string         `gorm:"type:varchar(255);not null"`
	Content      string         `gorm:"type:text;not null"`
	Category     string         `gorm:"type:varchar(100);index"`
	Tags         string         `gorm:"type:text"`
	Price        *float64       `gorm:"type:numeric(12,2)"`
	HasEmbedding bool           `gorm:"default:false"`
	IsActive     bool           `gorm:"default:true;index"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (KnowledgeDocument) TableName() string {
	return "knowledge_documents"
}

type KnowledgeEmbedding struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DocumentId     int             `gorm:"not null;index"`
	ChunkIndex     int             `gorm:"default:0"` // 0-based index for ordering
	Chunk          string          `gorm:"type:text"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector(768)"` // nomic-embed-text uses 768 dimensions
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt  `gorm:"index"`
}

func (KnowledgeEmbedding) TableName() string {
	return "knowledge_embeddings"
}
