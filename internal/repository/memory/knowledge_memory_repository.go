package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"ai-chatbot-be/internal/entity"
	"ai-chatbot-be/internal/repository/contract"

	"github.com/google/uuid"
)

// KnowledgeMemoryRepository keeps the knowledge base in process memory,
// chunk embeddings included. Used when no database is configured; vector
// search runs cosine similarity in-process instead of pgvector.
type KnowledgeMemoryRepository struct {
	mu         sync.RWMutex
	docs       map[int]*entity.KnowledgeDocument
	embeddings map[int][]*entity.KnowledgeEmbedding
	nextId     int
}

var _ contract.KnowledgeRepository = &KnowledgeMemoryRepository{}

func NewKnowledgeMemoryRepository() *KnowledgeMemoryRepository {
	return &KnowledgeMemoryRepository{
		docs:       make(map[int]*entity.KnowledgeDocument),
		embeddings: make(map[int][]*entity.KnowledgeEmbedding),
		nextId:     1,
	}
}

func (r *KnowledgeMemoryRepository) Create(ctx context.Context, doc *entity.KnowledgeDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *doc
	stored.Id = r.nextId
	r.nextId++
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.docs[stored.Id] = &stored

	*doc = stored
	return nil
}

func (r *KnowledgeMemoryRepository) Update(ctx context.Context, doc *entity.KnowledgeDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *doc
	now := time.Now()
	stored.UpdatedAt = &now
	r.docs[stored.Id] = &stored

	*doc = stored
	return nil
}

func (r *KnowledgeMemoryRepository) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.docs, id)
	delete(r.embeddings, id)
	return nil
}

func (r *KnowledgeMemoryRepository) GetById(ctx context.Context, id int) (*entity.KnowledgeDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[id]
	if !ok {
		return nil, nil
	}
	c := *doc
	return &c, nil
}

func (r *KnowledgeMemoryRepository) GetAllActive(ctx context.Context) ([]*entity.KnowledgeDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(d *entity.KnowledgeDocument) bool { return d.IsActive }, 0), nil
}

func (r *KnowledgeMemoryRepository) Search(ctx context.Context, term string, limit int) ([]*entity.KnowledgeDocument, error) {
	if limit <= 0 {
		limit = 10
	}
	needle := strings.ToLower(term)

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(d *entity.KnowledgeDocument) bool {
		if !d.IsActive {
			return false
		}
		return strings.Contains(strings.ToLower(d.Title), needle) ||
			strings.Contains(strings.ToLower(d.Content), needle) ||
			strings.Contains(strings.ToLower(d.Tags), needle)
	}, limit), nil
}

func (r *KnowledgeMemoryRepository) VectorSearch(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*contract.ScoredDocument, error) {
	if limit <= 0 {
		limit = 5
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	// Best chunk similarity wins per document.
	best := make(map[int]float64)
	for docId, chunks := range r.embeddings {
		doc, ok := r.docs[docId]
		if !ok || !doc.IsActive {
			continue
		}
		for _, chunk := range chunks {
			sim := cosineSimilarity(embedding, chunk.Embedding)
			if sim < threshold {
				continue
			}
			if sim > best[docId] {
				best[docId] = sim
			}
		}
	}

	scored := make([]*contract.ScoredDocument, 0, len(best))
	for docId, sim := range best {
		c := *r.docs[docId]
		scored = append(scored, &contract.ScoredDocument{Document: &c, Similarity: sim})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].Document.Id < scored[j].Document.Id
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (r *KnowledgeMemoryRepository) FilteredSearch(ctx context.Context, term string, minPrice, maxPrice *float64, category string, limit int) ([]*entity.KnowledgeDocument, error) {
	if limit <= 0 {
		limit = 10
	}
	needle := strings.ToLower(term)

	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := r.collect(func(d *entity.KnowledgeDocument) bool {
		if !d.IsActive {
			return false
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(d.Title), needle) &&
			!strings.Contains(strings.ToLower(d.Content), needle) &&
			!strings.Contains(strings.ToLower(d.Tags), needle) {
			return false
		}
		if minPrice != nil && (d.Price == nil || *d.Price < *minPrice) {
			return false
		}
		if maxPrice != nil && (d.Price == nil || *d.Price > *maxPrice) {
			return false
		}
		if category != "" && d.Category != category {
			return false
		}
		return true
	}, 0)

	// Cheapest first, unpriced documents last.
	sort.SliceStable(matches, func(i, j int) bool {
		pi, pj := matches[i].Price, matches[j].Price
		if pi == nil {
			return false
		}
		if pj == nil {
			return true
		}
		return *pi < *pj
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r *KnowledgeMemoryRepository) FindPendingEmbedding(ctx context.Context, limit int) ([]*entity.KnowledgeDocument, error) {
	if limit <= 0 {
		limit = 50
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(d *entity.KnowledgeDocument) bool {
		return d.IsActive && !d.HasEmbedding
	}, limit), nil
}

func (r *KnowledgeMemoryRepository) ReplaceEmbeddings(ctx context.Context, documentId int, embeddings []*entity.KnowledgeEmbedding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := make([]*entity.KnowledgeEmbedding, len(embeddings))
	for i, e := range embeddings {
		c := *e
		if c.Id == uuid.Nil {
			c.Id = uuid.New()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now()
		}
		c.DocumentId = documentId
		stored[i] = &c
		*embeddings[i] = c
	}
	r.embeddings[documentId] = stored
	return nil
}

func (r *KnowledgeMemoryRepository) MarkEmbedded(ctx context.Context, documentId int, hasEmbedding bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if doc, ok := r.docs[documentId]; ok {
		doc.HasEmbedding = hasEmbedding
	}
	return nil
}

// collect copies every matching document ordered by id. limit 0 means all.
// Callers hold the lock.
func (r *KnowledgeMemoryRepository) collect(match func(*entity.KnowledgeDocument) bool, limit int) []*entity.KnowledgeDocument {
	ids := make([]int, 0, len(r.docs))
	for id, doc := range r.docs {
		if match(doc) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]*entity.KnowledgeDocument, len(ids))
	for i, id := range ids {
		c := *r.docs[id]
		out[i] = &c
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
