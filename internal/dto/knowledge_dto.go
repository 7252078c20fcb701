package dto

import "time"

type CreateKnowledgeDocumentRequest struct {
	Title    string   `json:"title" validate:"required"`
	Content  string   `json:"content" validate:"required"`
	Category string   `json:"category"`
	Tags     string   `json:"tags"`
	Price    *float64 `json:"price"`
}

type UpdateKnowledgeDocumentRequest struct {
	Title    string   `json:"title" validate:"required"`
	Content  string   `json:"content" validate:"required"`
	Category string   `json:"category"`
	Tags     string   `json:"tags"`
	Price    *float64 `json:"price"`
	IsActive *bool    `json:"is_active"`
}

type KnowledgeDocumentResponse struct {
	Id           int       `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Category     string    `json:"category"`
	Tags         string    `json:"tags"`
	Price        *float64  `json:"price,omitempty"`
	HasEmbedding bool      `json:"has_embedding"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}
