package service

import (
	"context"
	"encoding/json"
	"errors"

	"ai-chatbot-be/internal/dto"
	"ai-chatbot-be/internal/entity"
	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/internal/repository/contract"
	"ai-chatbot-be/pkg/events"
)

var ErrDocumentNotFound = errors.New("knowledge document not found")

// IKnowledgeService is the admin surface for the knowledge base. Every write
// queues the document for re-embedding.
type IKnowledgeService interface {
	Create(ctx context.Context, request *dto.CreateKnowledgeDocumentRequest) (*dto.KnowledgeDocumentResponse, error)
	Update(ctx context.Context, id int, request *dto.UpdateKnowledgeDocumentRequest) (*dto.KnowledgeDocumentResponse, error)
	Delete(ctx context.Context, id int) error
	GetById(ctx context.Context, id int) (*dto.KnowledgeDocumentResponse, error)
	GetAll(ctx context.Context) ([]*dto.KnowledgeDocumentResponse, error)
	ListPending(ctx context.Context) ([]*dto.KnowledgeDocumentResponse, error)
	ReembedOne(ctx context.Context, id int) error
	ReembedPending(ctx context.Context) (int, error)
}

type knowledgeService struct {
	repo      contract.KnowledgeRepository
	publisher IPublisherService
	events    EventPublisher
	log       logger.ILogger
}

func NewKnowledgeService(repo contract.KnowledgeRepository, publisher IPublisherService, events EventPublisher, log logger.ILogger) IKnowledgeService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &knowledgeService{
		repo:      repo,
		publisher: publisher,
		events:    events,
		log:       log,
	}
}

func (s *knowledgeService) Create(ctx context.Context, request *dto.CreateKnowledgeDocumentRequest) (*dto.KnowledgeDocumentResponse, error) {
	doc := &entity.KnowledgeDocument{
		Title:    request.Title,
		Content:  request.Content,
		Category: request.Category,
		Tags:     request.Tags,
		Price:    request.Price,
		IsActive: true,
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}

	s.queueEmbedding(ctx, doc.Id)
	s.publishChanged(ctx, doc.Id)
	return toDocumentResponse(doc), nil
}

func (s *knowledgeService) Update(ctx context.Context, id int, request *dto.UpdateKnowledgeDocumentRequest) (*dto.KnowledgeDocumentResponse, error) {
	doc, err := s.repo.GetById(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}

	doc.Title = request.Title
	doc.Content = request.Content
	doc.Category = request.Category
	doc.Tags = request.Tags
	doc.Price = request.Price
	if request.IsActive != nil {
		doc.IsActive = *request.IsActive
	}
	// Content changed, old vectors are stale until the worker catches up.
	doc.HasEmbedding = false

	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, err
	}

	s.queueEmbedding(ctx, doc.Id)
	s.publishChanged(ctx, doc.Id)
	return toDocumentResponse(doc), nil
}

func (s *knowledgeService) Delete(ctx context.Context, id int) error {
	doc, err := s.repo.GetById(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publishChanged(ctx, id)
	return nil
}

func (s *knowledgeService) GetById(ctx context.Context, id int) (*dto.KnowledgeDocumentResponse, error) {
	doc, err := s.repo.GetById(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return toDocumentResponse(doc), nil
}

func (s *knowledgeService) GetAll(ctx context.Context) ([]*dto.KnowledgeDocumentResponse, error) {
	docs, err := s.repo.GetAllActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.KnowledgeDocumentResponse, len(docs))
	for i, d := range docs {
		out[i] = toDocumentResponse(d)
	}
	return out, nil
}

// ListPending returns the documents whose embeddings are missing or stale.
func (s *knowledgeService) ListPending(ctx context.Context) ([]*dto.KnowledgeDocumentResponse, error) {
	docs, err := s.repo.FindPendingEmbedding(ctx, 100)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.KnowledgeDocumentResponse, len(docs))
	for i, d := range docs {
		out[i] = toDocumentResponse(d)
	}
	return out, nil
}

// ReembedOne queues a single document for re-embedding regardless of its
// current embedding state.
func (s *knowledgeService) ReembedOne(ctx context.Context, id int) error {
	doc, err := s.repo.GetById(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	s.queueEmbedding(ctx, doc.Id)
	return nil
}

// ReembedPending queues every document whose embeddings are missing or stale.
// Returns how many were queued.
func (s *knowledgeService) ReembedPending(ctx context.Context) (int, error) {
	docs, err := s.repo.FindPendingEmbedding(ctx, 100)
	if err != nil {
		return 0, err
	}
	for _, d := range docs {
		s.queueEmbedding(ctx, d.Id)
	}
	return len(docs), nil
}

func (s *knowledgeService) queueEmbedding(ctx context.Context, documentId int) {
	if s.publisher == nil {
		return
	}

	payload, err := json.Marshal(EmbedDocumentMessage{DocumentId: documentId})
	if err != nil {
		s.log.Error("knowledge", "failed to marshal embed message", map[string]interface{}{
			"document_id": documentId,
			"error":       err.Error(),
		})
		return
	}

	if err := s.publisher.Publish(ctx, payload); err != nil {
		s.log.Error("knowledge", "failed to queue embedding", map[string]interface{}{
			"document_id": documentId,
			"error":       err.Error(),
		})
		return
	}

	s.log.Debug("knowledge", "embedding queued", map[string]interface{}{
		"document_id": documentId,
	})
}

// publishChanged emits the change event to the external bus, best effort.
func (s *knowledgeService) publishChanged(ctx context.Context, documentId int) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, events.NewKnowledgeDocumentChanged(documentId)); err != nil {
		s.log.Warn("knowledge", "change event publish failed", map[string]interface{}{
			"document_id": documentId,
			"error":       err.Error(),
		})
	}
}

func toDocumentResponse(d *entity.KnowledgeDocument) *dto.KnowledgeDocumentResponse {
	return &dto.KnowledgeDocumentResponse{
		Id:           d.Id,
		Title:        d.Title,
		Content:      d.Content,
		Category:     d.Category,
		Tags:         d.Tags,
		Price:        d.Price,
		HasEmbedding: d.HasEmbedding,
		IsActive:     d.IsActive,
		CreatedAt:    d.CreatedAt,
	}
}
