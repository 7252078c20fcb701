package implementation

import (
	"context"
	"errors"

	"ai-chatbot-be/internal/entity"
	"ai-chatbot-be/internal/mapper"
	"ai-chatbot-be/internal/model"
	"ai-chatbot-be/internal/repository/contract"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type KnowledgeRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.KnowledgeMapper
}

func NewKnowledgeRepository(db *gorm.DB) contract.KnowledgeRepository {
	return &KnowledgeRepositoryImpl{
		db:     db,
		mapper: mapper.NewKnowledgeMapper(),
	}
}

func (r *KnowledgeRepositoryImpl) Create(ctx context.Context, doc *entity.KnowledgeDocument) error {
	m := r.mapper.DocumentToModel(doc)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*doc = *r.mapper.DocumentToEntity(m)
	return nil
}

func (r *KnowledgeRepositoryImpl) Update(ctx context.Context, doc *entity.KnowledgeDocument) error {
	m := r.mapper.DocumentToModel(doc)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*doc = *r.mapper.DocumentToEntity(m)
	return nil
}

func (r *KnowledgeRepositoryImpl) Delete(ctx context.Context, id int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&model.KnowledgeEmbedding{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.KnowledgeDocument{}, id).Error
	})
}

func (r *KnowledgeRepositoryImpl) GetById(ctx context.Context, id int) (*entity.KnowledgeDocument, error) {
	var m model.KnowledgeDocument
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.DocumentToEntity(&m), nil
}

func (r *KnowledgeRepositoryImpl) GetAllActive(ctx context.Context) ([]*entity.KnowledgeDocument, error) {
	var models []*model.KnowledgeDocument
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.toEntities(models), nil
}

func (r *KnowledgeRepositoryImpl) Search(ctx context.Context, term string, limit int) ([]*entity.KnowledgeDocument, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + term + "%"

	var models []*model.KnowledgeDocument
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("title ILIKE ? OR content ILIKE ? OR tags ILIKE ?", pattern, pattern, pattern).
		Order("id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.toEntities(models), nil
}

func (r *KnowledgeRepositoryImpl) VectorSearch(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*contract.ScoredDocument, error) {
	if limit <= 0 {
		limit = 5
	}

	// Cosine distance in pgvector is 1 - cosine_similarity, so
	// 1 - (embedding_value <=> query_vector) = cosine_similarity.
	// Over-fetch chunk rows because several chunks of the same document can
	// rank near each other; dedup below is first-wins on document id.
	type result struct {
		model.KnowledgeEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("knowledge_embeddings").
		Select("knowledge_embeddings.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Joins("JOIN knowledge_documents ON knowledge_documents.id = knowledge_embeddings.document_id").
		Where("knowledge_documents.is_active = ?", true).
		Where("knowledge_embeddings.deleted_at IS NULL").
		Where("knowledge_documents.deleted_at IS NULL").
		Where("1 - (embedding_value <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Limit(limit * 4).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	scored := make([]*contract.ScoredDocument, 0, limit)
	for _, res := range results {
		if seen[res.DocumentId] {
			continue
		}
		seen[res.DocumentId] = true

		doc, err := r.GetById(ctx, res.DocumentId)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		scored = append(scored, &contract.ScoredDocument{
			Document:   doc,
			Similarity: res.Similarity,
		})
		if len(scored) >= limit {
			break
		}
	}
	return scored, nil
}

func (r *KnowledgeRepositoryImpl) FilteredSearch(ctx context.Context, term string, minPrice, maxPrice *float64, category string, limit int) ([]*entity.KnowledgeDocument, error) {
	if limit <= 0 {
		limit = 10
	}

	query := r.db.WithContext(ctx).Where("is_active = ?", true)

	if term != "" {
		pattern := "%" + term + "%"
		query = query.Where("title ILIKE ? OR content ILIKE ? OR tags ILIKE ?", pattern, pattern, pattern)
	}
	if minPrice != nil {
		query = query.Where("price >= ?", *minPrice)
	}
	if maxPrice != nil {
		query = query.Where("price <= ?", *maxPrice)
	}
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var models []*model.KnowledgeDocument
	if err := query.Order("price ASC NULLS LAST, id ASC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	return r.toEntities(models), nil
}

func (r *KnowledgeRepositoryImpl) FindPendingEmbedding(ctx context.Context, limit int) ([]*entity.KnowledgeDocument, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []*model.KnowledgeDocument
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND has_embedding = ?", true, false).
		Order("id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.toEntities(models), nil
}

func (r *KnowledgeRepositoryImpl) ReplaceEmbeddings(ctx context.Context, documentId int, embeddings []*entity.KnowledgeEmbedding) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Hard delete so re-embeds do not accumulate soft-deleted chunk rows.
		if err := tx.Unscoped().Where("document_id = ?", documentId).Delete(&model.KnowledgeEmbedding{}).Error; err != nil {
			return err
		}

		if len(embeddings) == 0 {
			return nil
		}

		models := make([]*model.KnowledgeEmbedding, len(embeddings))
		for i, e := range embeddings {
			models[i] = r.mapper.EmbeddingToModel(e)
		}
		if err := tx.Create(models).Error; err != nil {
			return err
		}
		for i, m := range models {
			*embeddings[i] = *r.mapper.EmbeddingToEntity(m)
		}
		return nil
	})
}

func (r *KnowledgeRepositoryImpl) MarkEmbedded(ctx context.Context, documentId int, hasEmbedding bool) error {
	return r.db.WithContext(ctx).
		Model(&model.KnowledgeDocument{}).
		Where("id = ?", documentId).
		Update("has_embedding", hasEmbedding).Error
}

func (r *KnowledgeRepositoryImpl) toEntities(models []*model.KnowledgeDocument) []*entity.KnowledgeDocument {
	entities := make([]*entity.KnowledgeDocument, len(models))
	for i, m := range models {
		entities[i] = r.mapper.DocumentToEntity(m)
	}
	return entities
}
