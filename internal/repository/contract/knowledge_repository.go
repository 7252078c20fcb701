package contract

import (
	"context"

	"ai-chatbot-be/internal/entity"
)

// ScoredDocument wraps a KnowledgeDocument with its similarity score
type ScoredDocument struct {
	Document   *entity.KnowledgeDocument
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

type KnowledgeRepository interface {
	Create(ctx context.Context, doc *entity.KnowledgeDocument) error
	Update(ctx context.Context, doc *entity.KnowledgeDocument) error
	Delete(ctx context.Context, id int) error
	GetById(ctx context.Context, id int) (*entity.KnowledgeDocument, error)
	GetAllActive(ctx context.Context) ([]*entity.KnowledgeDocument, error)

	// Search is the keyword path: case-insensitive match over title, content
	// and tags of active documents.
	Search(ctx context.Context, term string, limit int) ([]*entity.KnowledgeDocument, error)

	// VectorSearch returns distinct documents ordered by cosine similarity of
	// their chunk embeddings, filtered by threshold.
	VectorSearch(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*ScoredDocument, error)

	// FilteredSearch applies optional price bounds and category on top of an
	// optional keyword term. Nil bounds and empty strings mean "no filter".
	FilteredSearch(ctx context.Context, term string, minPrice, maxPrice *float64, category string, limit int) ([]*entity.KnowledgeDocument, error)

	// Embedding pipeline support
	FindPendingEmbedding(ctx context.Context, limit int) ([]*entity.KnowledgeDocument, error)
	ReplaceEmbeddings(ctx context.Context, documentId int, embeddings []*entity.KnowledgeEmbedding) error
	MarkEmbedded(ctx context.Context, documentId int, hasEmbedding bool) error
}
