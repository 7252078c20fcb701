package rag

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"ai-chatbot-be/internal/entity"
	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/internal/repository/contract"
	"ai-chatbot-be/pkg/embedding"
)

// Config tunes the retrieval behavior.
type Config struct {
	// MinSimilarity filters vector hits below this cosine similarity.
	MinSimilarity float64
	// TopK caps how many distinct documents a search returns.
	TopK int
}

// Engine is the retrieval layer: vector search first, keyword search as the
// degradation path, plus price/category extraction for the filtered path.
type Engine struct {
	repo     contract.KnowledgeRepository
	embedder embedding.EmbeddingProvider
	log      logger.ILogger
	cfg      Config
}

func NewEngine(repo contract.KnowledgeRepository, embedder embedding.EmbeddingProvider, log logger.ILogger, cfg Config) *Engine {
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = 0.5
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Engine{
		repo:     repo,
		embedder: embedder,
		log:      log,
		cfg:      cfg,
	}
}

// SemanticSearch embeds the query and ranks documents by chunk similarity.
// Any failure in the vector path, or an empty result, silently degrades to
// keyword search; retrieval problems must never surface to the caller.
func (e *Engine) SemanticSearch(ctx context.Context, query string) []*entity.KnowledgeDocument {
	if e.embedder == nil {
		e.log.Warn("rag", "no embedder configured, using keyword search", nil)
		return e.KeywordSearch(ctx, query)
	}

	vector, err := e.embedder.Generate(ctx, query, embedding.TaskTypeQuery)
	if err != nil {
		e.log.Warn("rag", "embedding failed, falling back to keyword search", map[string]interface{}{
			"error": err.Error(),
		})
		return e.KeywordSearch(ctx, query)
	}

	scored, err := e.repo.VectorSearch(ctx, vector, e.cfg.TopK, e.cfg.MinSimilarity)
	if err != nil {
		e.log.Warn("rag", "vector search failed, falling back to keyword search", map[string]interface{}{
			"error": err.Error(),
		})
		return e.KeywordSearch(ctx, query)
	}

	if len(scored) == 0 {
		e.log.Debug("rag", "vector search empty, falling back to keyword search", map[string]interface{}{
			"query": query,
		})
		return e.KeywordSearch(ctx, query)
	}

	docs := make([]*entity.KnowledgeDocument, len(scored))
	for i, s := range scored {
		docs[i] = s.Document
	}
	return docs
}

// KeywordSearch runs one repository lookup per extracted keyword and merges
// the results, first occurrence wins.
func (e *Engine) KeywordSearch(ctx context.Context, query string) []*entity.KnowledgeDocument {
	keywords := ExtractKeywords(query)

	seen := make(map[int]bool)
	var unique []*entity.KnowledgeDocument

	for _, keyword := range keywords {
		docs, err := e.repo.Search(ctx, keyword, e.cfg.TopK*2)
		if err != nil {
			e.log.Warn("rag", "keyword lookup failed", map[string]interface{}{
				"keyword": keyword,
				"error":   err.Error(),
			})
			continue
		}
		for _, doc := range docs {
			if seen[doc.Id] {
				continue
			}
			seen[doc.Id] = true
			unique = append(unique, doc)
		}
	}

	if len(unique) > e.cfg.TopK {
		unique = unique[:e.cfg.TopK]
	}
	return unique
}

// SmartSearch applies price and category filters extracted from the query;
// with no filters present it behaves like SemanticSearch. A filtered lookup
// that matches nothing falls back to SemanticSearch so the filter words
// alone never empty the result set.
func (e *Engine) SmartSearch(ctx context.Context, query string) []*entity.KnowledgeDocument {
	minPrice, maxPrice := ExtractPriceRange(query)
	category := ExtractCategory(query)

	if minPrice == nil && maxPrice == nil && category == "" {
		return e.SemanticSearch(ctx, query)
	}

	e.log.Debug("rag", "filtered search", map[string]interface{}{
		"min_price": minPrice,
		"max_price": maxPrice,
		"category":  category,
	})

	docs, err := e.repo.FilteredSearch(ctx, "", minPrice, maxPrice, category, e.cfg.TopK*3)
	if err != nil {
		e.log.Warn("rag", "filtered search failed, falling back to keyword search", map[string]interface{}{
			"error": err.Error(),
		})
		return e.KeywordSearch(ctx, query)
	}
	if len(docs) == 0 {
		e.log.Debug("rag", "filtered search empty, falling back to semantic search", map[string]interface{}{
			"query": query,
		})
		return e.SemanticSearch(ctx, query)
	}
	return docs
}

// FormatAsContext renders retrieved documents as the grounding block injected
// into the system prompt. Long contents are truncated at 500 characters.
func (e *Engine) FormatAsContext(documents []*entity.KnowledgeDocument) string {
	if len(documents) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("📚 BİLGİ BANKASI:\n\n")

	for _, doc := range documents {
		content := doc.Content
		if runes := []rune(content); len(runes) > 500 {
			content = string(runes[:500]) + "..."
		}
		b.WriteString("• **" + doc.Title + "**\n  " + content + "\n\n")
	}

	b.WriteString("⚠️ SADECE yukarıdaki bilgileri kullan!\n")
	return b.String()
}

var turkishStopwords = map[string]bool{
	"bir": true, "ve": true, "veya": true, "ile": true, "için": true,
	"ne": true, "nedir": true, "nasıl": true,
	"mi": true, "mu": true, "mı": true, "mü": true,
	"da": true, "de": true, "ta": true, "te": true,
	"kaç": true, "hangi": true, "şu": true, "bu": true, "o": true,
	"olan": true, "olarak": true,
	"ise": true, "eğer": true, "ancak": true, "ama": true, "fakat": true,
	"ya": true, "yani": true,
}

var wordSeparators = regexp.MustCompile(`[\s?!.,;:]+`)

// ExtractKeywords lowercases the query, strips Turkish stopwords and words
// of two characters or fewer, and dedups preserving order. A query that
// reduces to nothing is returned as a single keyword so the lookup still runs.
func ExtractKeywords(query string) []string {
	lowered := strings.ToLower(query)
	parts := wordSeparators.Split(lowered, -1)

	seen := make(map[string]bool)
	var keywords []string
	for _, w := range parts {
		if len([]rune(w)) <= 2 || turkishStopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
	}

	if len(keywords) == 0 {
		return []string{query}
	}
	return keywords
}

var priceRangePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s*-\s*(\d+)\s*TL`),         // 500-1000 TL
	regexp.MustCompile(`(\d+)\s+ile\s+(\d+)\s*TL`),       // 500 ile 1000 TL
	regexp.MustCompile(`(\d+)\s*TL\s*ile\s*(\d+)\s*TL`),  // 500 TL ile 1000 TL
	regexp.MustCompile(`(\d+)\s*TL.*?(\d+)\s*TL\s+arası`), // 500 TL 1000 TL arası
}

var maxPricePattern = regexp.MustCompile(`(\d+)\s*TL\s+(altı|altında|kadar)`)

// ExtractPriceRange pulls a "min-max TL" range out of free text. A single
// bounded phrase like "1000 TL altında" yields only the upper bound.
func ExtractPriceRange(query string) (*float64, *float64) {
	for _, p := range priceRangePatterns {
		m := p.FindStringSubmatch(query)
		if m == nil {
			continue
		}
		min, err1 := strconv.ParseFloat(m[1], 64)
		max, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		return &min, &max
	}

	if m := maxPricePattern.FindStringSubmatch(query); m != nil {
		if max, err := strconv.ParseFloat(m[1], 64); err == nil {
			return nil, &max
		}
	}

	return nil, nil
}

type categoryMapping struct {
	category string
	keywords []string
}

// Ordered so extraction is deterministic when a query mentions several
// category words.
var categoryMappings = []categoryMapping{
	{"Bilgisayar", []string{"bilgisayar", "laptop", "pc", "masaüstü", "notebook"}},
	{"Elektronik", []string{"elektronik", "telefon", "tablet", "akıllı saat"}},
	{"Aksesuar", []string{"aksesuar", "kulaklık", "kablo", "şarj", "kılıf"}},
	{"Ev", []string{"ev", "mobilya", "dekorasyon"}},
	{"Giyim", []string{"giyim", "kıyafet", "ayakkabı", "çanta"}},
}

// ExtractCategory maps well-known product words to their category. Empty
// string means no category matched.
func ExtractCategory(query string) string {
	lowered := strings.ToLower(query)
	for _, cm := range categoryMappings {
		for _, k := range cm.keywords {
			if strings.Contains(lowered, k) {
				return cm.category
			}
		}
	}
	return ""
}
