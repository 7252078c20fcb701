package implementation

import (
	"context"
	"time"

	"ai-chatbot-be/internal/entity"
	"ai-chatbot-be/internal/mapper"
	"ai-chatbot-be/internal/model"
	"ai-chatbot-be/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatMemoryRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatMemoryRepository(db *gorm.DB) contract.ChatMemoryRepository {
	return &ChatMemoryRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatMemoryRepositoryImpl) AppendMessage(ctx context.Context, sessionId, subjectId string, msg *entity.ChatMessage) error {
	session := &model.ChatSession{
		SessionId: sessionId,
		SubjectId: subjectId,
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Upsert keeps the session row's updated_at moving with activity.
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"updated_at": time.Now()}),
		}).Create(session).Error
		if err != nil {
			return err
		}

		m := r.mapper.MessageToModel(msg)
		m.SessionId = sessionId
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		*msg = *r.mapper.MessageToEntity(m)
		return nil
	})
}

func (r *ChatMemoryRepositoryImpl) GetHistory(ctx context.Context, sessionId string) ([]*entity.ChatMessage, error) {
	var models []*model.ChatMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionId).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entities := make([]*entity.ChatMessage, len(models))
	for i, m := range models {
		entities[i] = r.mapper.MessageToEntity(m)
	}
	return entities, nil
}

func (r *ChatMemoryRepositoryImpl) Clear(ctx context.Context, sessionId string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionId).Delete(&model.ChatMessage{}).Error; err != nil {
			return err
		}
		return tx.Where("session_id = ?", sessionId).Delete(&model.ChatSession{}).Error
	})
}
