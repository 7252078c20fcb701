package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-chatbot-be/internal/entity"
	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/internal/repository/contract"
	"ai-chatbot-be/pkg/embedding"
	"ai-chatbot-be/pkg/utils"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// EmbedDocumentMessage is the queue payload for one document to (re)embed.
type EmbedDocumentMessage struct {
	DocumentId int `json:"document_id"`
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	repo              contract.KnowledgeRepository
	embeddingProvider embedding.EmbeddingProvider
	log               logger.ILogger

	// Bounds concurrent embedding calls so a burst of admin edits does not
	// flood the model server.
	sem chan struct{}
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	repo contract.KnowledgeRepository,
	embeddingProvider embedding.EmbeddingProvider,
	log logger.ILogger,
) IConsumerService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		repo:              repo,
		embeddingProvider: embeddingProvider,
		log:               log,
		sem:               make(chan struct{}, 2),
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.sem <- struct{}{}
			go func(m *message.Message) {
				defer func() { <-cs.sem }()
				cs.processMessage(ctx, m)
			}(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload EmbedDocumentMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.log.Error("consumer", "failed to unmarshal message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	cs.log.Info("consumer", "embedding document", map[string]interface{}{
		"document_id": payload.DocumentId,
	})

	doc, err := cs.repo.GetById(ctx, payload.DocumentId)
	if err != nil {
		cs.log.Error("consumer", "failed to load document", map[string]interface{}{
			"document_id": payload.DocumentId,
			"error":       err.Error(),
		})
		msg.Nack() // Nack for retriable errors
		return
	}
	if doc == nil {
		// Document deleted before the worker got to it.
		msg.Ack()
		return
	}

	content := doc.Title + "\n\n" + doc.Content
	if doc.Tags != "" {
		content += "\n\nEtiketler: " + doc.Tags
	}

	chunks := utils.SplitText(content, 1500, 200)
	cs.log.Debug("consumer", "content split", map[string]interface{}{
		"document_id": payload.DocumentId,
		"chunks":      len(chunks),
	})

	var newEmbeddings []*entity.KnowledgeEmbedding
	for i, chunk := range chunks {
		vec, err := cs.embeddingProvider.Generate(ctx, chunk, embedding.TaskTypeDocument)
		if err != nil {
			cs.log.Error("consumer", "embedding generation failed", map[string]interface{}{
				"document_id": payload.DocumentId,
				"chunk":       i,
				"error":       err.Error(),
			})
			msg.Nack()
			return
		}

		newEmbeddings = append(newEmbeddings, &entity.KnowledgeEmbedding{
			Id:         uuid.New(),
			DocumentId: doc.Id,
			ChunkIndex: i,
			Chunk:      chunk,
			Embedding:  vec,
			CreatedAt:  time.Now(),
		})

		// Small gap between chunks keeps the embedding server responsive.
		time.Sleep(100 * time.Millisecond)
	}

	if err := cs.repo.ReplaceEmbeddings(ctx, doc.Id, newEmbeddings); err != nil {
		cs.log.Error("consumer", "failed to replace embeddings", map[string]interface{}{
			"document_id": payload.DocumentId,
			"error":       err.Error(),
		})
		msg.Nack()
		return
	}

	if err := cs.repo.MarkEmbedded(ctx, doc.Id, true); err != nil {
		cs.log.Error("consumer", "failed to mark document embedded", map[string]interface{}{
			"document_id": payload.DocumentId,
			"error":       err.Error(),
		})
		msg.Nack()
		return
	}

	cs.log.Info("consumer", "document embedded", map[string]interface{}{
		"document_id": payload.DocumentId,
		"chunks":      len(newEmbeddings),
	})
	msg.Ack()
}
