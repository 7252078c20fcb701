package rag

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"ai-chatbot-be/internal/entity"
	"ai-chatbot-be/internal/repository/contract"
	"ai-chatbot-be/pkg/embedding"
)

type fakeKnowledgeRepo struct {
	searchFn         func(term string, limit int) ([]*entity.KnowledgeDocument, error)
	vectorSearchFn   func(vector []float32, limit int, threshold float64) ([]*contract.ScoredDocument, error)
	filteredSearchFn func(term string, minPrice, maxPrice *float64, category string, limit int) ([]*entity.KnowledgeDocument, error)

	searchCalls   []string
	filteredCalls int
}

func (f *fakeKnowledgeRepo) Create(ctx context.Context, doc *entity.KnowledgeDocument) error { return nil }
func (f *fakeKnowledgeRepo) Update(ctx context.Context, doc *entity.KnowledgeDocument) error { return nil }
func (f *fakeKnowledgeRepo) Delete(ctx context.Context, id int) error                        { return nil }
func (f *fakeKnowledgeRepo) GetById(ctx context.Context, id int) (*entity.KnowledgeDocument, error) {
	return nil, nil
}
func (f *fakeKnowledgeRepo) GetAllActive(ctx context.Context) ([]*entity.KnowledgeDocument, error) {
	return nil, nil
}

func (f *fakeKnowledgeRepo) Search(ctx context.Context, term string, limit int) ([]*entity.KnowledgeDocument, error) {
	f.searchCalls = append(f.searchCalls, term)
	if f.searchFn != nil {
		return f.searchFn(term, limit)
	}
	return nil, nil
}

func (f *fakeKnowledgeRepo) VectorSearch(ctx context.Context, vector []float32, limit int, threshold float64) ([]*contract.ScoredDocument, error) {
	if f.vectorSearchFn != nil {
		return f.vectorSearchFn(vector, limit, threshold)
	}
	return nil, nil
}

func (f *fakeKnowledgeRepo) FilteredSearch(ctx context.Context, term string, minPrice, maxPrice *float64, category string, limit int) ([]*entity.KnowledgeDocument, error) {
	f.filteredCalls++
	if f.filteredSearchFn != nil {
		return f.filteredSearchFn(term, minPrice, maxPrice, category, limit)
	}
	return nil, nil
}

func (f *fakeKnowledgeRepo) FindPendingEmbedding(ctx context.Context, limit int) ([]*entity.KnowledgeDocument, error) {
	return nil, nil
}
func (f *fakeKnowledgeRepo) ReplaceEmbeddings(ctx context.Context, documentId int, embeddings []*entity.KnowledgeEmbedding) error {
	return nil
}
func (f *fakeKnowledgeRepo) MarkEmbedded(ctx context.Context, documentId int, hasEmbedding bool) error {
	return nil
}

type fakeEmbedder struct {
	generateFn func(text string, taskType embedding.TaskType) ([]float32, error)
}

func (f *fakeEmbedder) Generate(ctx context.Context, text string, taskType embedding.TaskType) ([]float32, error) {
	if f.generateFn != nil {
		return f.generateFn(text, taskType)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func doc(id int, title string) *entity.KnowledgeDocument {
	return &entity.KnowledgeDocument{Id: id, Title: title, Content: "content " + title}
}

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "strips stopwords and short words",
			query: "laptop fiyatı nedir",
			want:  []string{"laptop", "fiyatı"},
		},
		{
			name:  "lowercases",
			query: "GAMING Laptop",
			want:  []string{"gaming", "laptop"},
		},
		{
			name:  "dedups preserving order",
			query: "kargo kargo ücreti kargo",
			want:  []string{"kargo", "ücreti"},
		},
		{
			name:  "punctuation separates words",
			query: "iade,politikası?nedir",
			want:  []string{"iade", "politikası"},
		},
		{
			name:  "all stopwords falls back to raw query",
			query: "bu ne",
			want:  []string{"bu ne"},
		},
		{
			name:  "turkish question particles dropped",
			query: "telefon var mı",
			want:  []string{"telefon", "var"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractKeywords(tt.query)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractKeywords(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestExtractPriceRange(t *testing.T) {
	fp := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		query   string
		wantMin *float64
		wantMax *float64
	}{
		{"dash range", "500-1000 TL arası laptop", fp(500), fp(1000)},
		{"ile range", "500 ile 1000 TL arasında", fp(500), fp(1000)},
		{"TL ile TL range", "500 TL ile 1000 TL arası ürünler", fp(500), fp(1000)},
		{"upper bound altında", "1000 TL altında telefon var mı", nil, fp(1000)},
		{"upper bound kadar", "2000 TL kadar bütçem var", nil, fp(2000)},
		{"no price", "en iyi laptop hangisi", nil, nil},
		{"number without TL", "16 GB RAM yeterli mi", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotMin, gotMax := ExtractPriceRange(tt.query)
			if !floatPtrEqual(gotMin, tt.wantMin) {
				t.Errorf("min = %v, want %v", fmtPtr(gotMin), fmtPtr(tt.wantMin))
			}
			if !floatPtrEqual(gotMax, tt.wantMax) {
				t.Errorf("max = %v, want %v", fmtPtr(gotMax), fmtPtr(tt.wantMax))
			}
		})
	}
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fmtPtr(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func TestExtractCategory(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"ucuz laptop arıyorum", "Bilgisayar"},
		{"TELEFON önerisi", "Elektronik"},
		{"kablosuz kulaklık var mı", "Aksesuar"},
		{"mobilya kampanyası", "Ev"},
		{"spor ayakkabı", "Giyim"},
		{"kargo ücreti ne kadar", ""},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := ExtractCategory(tt.query)
			if got != tt.want {
				t.Errorf("ExtractCategory(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestFormatAsContext(t *testing.T) {
	e := NewEngine(&fakeKnowledgeRepo{}, nil, nil, Config{})

	t.Run("empty input yields empty string", func(t *testing.T) {
		if got := e.FormatAsContext(nil); got != "" {
			t.Errorf("FormatAsContext(nil) = %q, want empty", got)
		}
	})

	t.Run("renders header, entries and footer", func(t *testing.T) {
		got := e.FormatAsContext([]*entity.KnowledgeDocument{
			{Id: 1, Title: "Kargo", Content: "Kargo bilgisi"},
		})
		if !strings.HasPrefix(got, "📚 BİLGİ BANKASI:\n\n") {
			t.Errorf("missing header: %q", got)
		}
		if !strings.Contains(got, "• **Kargo**\n  Kargo bilgisi\n\n") {
			t.Errorf("missing entry: %q", got)
		}
		if !strings.HasSuffix(got, "⚠️ SADECE yukarıdaki bilgileri kullan!\n") {
			t.Errorf("missing footer: %q", got)
		}
	})

	t.Run("truncates long content at 500 characters", func(t *testing.T) {
		long := strings.Repeat("ş", 600)
		got := e.FormatAsContext([]*entity.KnowledgeDocument{
			{Id: 1, Title: "Uzun", Content: long},
		})
		want := strings.Repeat("ş", 500) + "..."
		if !strings.Contains(got, want) {
			t.Error("content not truncated at 500 runes")
		}
		if strings.Contains(got, strings.Repeat("ş", 501)) {
			t.Error("more than 500 runes of content survived")
		}
	})
}

func TestSemanticSearchUsesVectorHits(t *testing.T) {
	repo := &fakeKnowledgeRepo{
		vectorSearchFn: func(vector []float32, limit int, threshold float64) ([]*contract.ScoredDocument, error) {
			return []*contract.ScoredDocument{
				{Document: doc(1, "A"), Similarity: 0.9},
				{Document: doc(2, "B"), Similarity: 0.7},
			}, nil
		},
	}
	e := NewEngine(repo, &fakeEmbedder{}, nil, Config{})

	docs := e.SemanticSearch(context.Background(), "laptop")
	if len(docs) != 2 || docs[0].Id != 1 || docs[1].Id != 2 {
		t.Errorf("unexpected docs: %v", docs)
	}
	if len(repo.searchCalls) != 0 {
		t.Errorf("keyword search ran despite vector hits: %v", repo.searchCalls)
	}
}

func TestSemanticSearchFallsBackToKeyword(t *testing.T) {
	tests := []struct {
		name  string
		setup func(repo *fakeKnowledgeRepo) *Engine
	}{
		{
			name: "no embedder configured",
			setup: func(repo *fakeKnowledgeRepo) *Engine {
				return NewEngine(repo, nil, nil, Config{})
			},
		},
		{
			name: "embedding fails",
			setup: func(repo *fakeKnowledgeRepo) *Engine {
				emb := &fakeEmbedder{generateFn: func(string, embedding.TaskType) ([]float32, error) {
					return nil, errors.New("ollama down")
				}}
				return NewEngine(repo, emb, nil, Config{})
			},
		},
		{
			name: "vector search fails",
			setup: func(repo *fakeKnowledgeRepo) *Engine {
				repo.vectorSearchFn = func([]float32, int, float64) ([]*contract.ScoredDocument, error) {
					return nil, errors.New("pgvector missing")
				}
				return NewEngine(repo, &fakeEmbedder{}, nil, Config{})
			},
		},
		{
			name: "vector search empty",
			setup: func(repo *fakeKnowledgeRepo) *Engine {
				return NewEngine(repo, &fakeEmbedder{}, nil, Config{})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeKnowledgeRepo{
				searchFn: func(term string, limit int) ([]*entity.KnowledgeDocument, error) {
					return []*entity.KnowledgeDocument{doc(7, "keyword hit")}, nil
				},
			}
			e := tt.setup(repo)

			docs := e.SemanticSearch(context.Background(), "laptop fiyatı")
			if len(docs) != 1 || docs[0].Id != 7 {
				t.Errorf("expected keyword fallback result, got %v", docs)
			}
			if len(repo.searchCalls) == 0 {
				t.Error("keyword search never ran")
			}
		})
	}
}

func TestKeywordSearchDedupsAndCaps(t *testing.T) {
	repo := &fakeKnowledgeRepo{
		searchFn: func(term string, limit int) ([]*entity.KnowledgeDocument, error) {
			// Every keyword returns the same overlapping set.
			return []*entity.KnowledgeDocument{doc(1, "A"), doc(2, "B"), doc(3, "C"), doc(4, "D")}, nil
		},
	}
	e := NewEngine(repo, nil, nil, Config{TopK: 3})

	docs := e.KeywordSearch(context.Background(), "laptop telefon tablet")
	if len(docs) != 3 {
		t.Fatalf("expected TopK=3 docs, got %d", len(docs))
	}
	seen := map[int]bool{}
	for _, d := range docs {
		if seen[d.Id] {
			t.Errorf("duplicate document %d in result", d.Id)
		}
		seen[d.Id] = true
	}
}

func TestSmartSearchRoutesFilters(t *testing.T) {
	t.Run("price query goes to filtered search", func(t *testing.T) {
		repo := &fakeKnowledgeRepo{
			filteredSearchFn: func(term string, minPrice, maxPrice *float64, category string, limit int) ([]*entity.KnowledgeDocument, error) {
				if maxPrice == nil || *maxPrice != 1000 {
					t.Errorf("maxPrice = %v, want 1000", fmtPtr(maxPrice))
				}
				if category != "Bilgisayar" {
					t.Errorf("category = %q, want Bilgisayar", category)
				}
				return []*entity.KnowledgeDocument{doc(1, "cheap laptop")}, nil
			},
		}
		e := NewEngine(repo, nil, nil, Config{})

		docs := e.SmartSearch(context.Background(), "1000 TL altında laptop")
		if repo.filteredCalls != 1 {
			t.Fatalf("filtered search calls = %d, want 1", repo.filteredCalls)
		}
		if len(docs) != 1 {
			t.Errorf("expected 1 doc, got %d", len(docs))
		}
	})

	t.Run("plain query goes to semantic path", func(t *testing.T) {
		repo := &fakeKnowledgeRepo{}
		e := NewEngine(repo, nil, nil, Config{})

		e.SmartSearch(context.Background(), "merhaba size nasıl ulaşabilirim")
		if repo.filteredCalls != 0 {
			t.Errorf("filtered search ran for an unfiltered query")
		}
	})

	t.Run("empty filtered result falls back to the semantic path", func(t *testing.T) {
		repo := &fakeKnowledgeRepo{
			filteredSearchFn: func(string, *float64, *float64, string, int) ([]*entity.KnowledgeDocument, error) {
				return nil, nil
			},
			searchFn: func(term string, limit int) ([]*entity.KnowledgeDocument, error) {
				return []*entity.KnowledgeDocument{doc(4, "Bluetooth Kulaklık")}, nil
			},
		}
		e := NewEngine(repo, nil, nil, Config{})

		// Category word routes to the filtered path, which matches nothing;
		// the keyword hits must still come back.
		docs := e.SmartSearch(context.Background(), "kulaklık önerir misin")
		if repo.filteredCalls != 1 {
			t.Fatalf("filtered search calls = %d, want 1", repo.filteredCalls)
		}
		if len(docs) != 1 || docs[0].Id != 4 {
			t.Errorf("expected the keyword hit, got %v", docs)
		}
		if len(repo.searchCalls) == 0 {
			t.Error("keyword search never ran")
		}
	})

	t.Run("filtered failure degrades to keyword search", func(t *testing.T) {
		repo := &fakeKnowledgeRepo{
			filteredSearchFn: func(string, *float64, *float64, string, int) ([]*entity.KnowledgeDocument, error) {
				return nil, errors.New("db down")
			},
			searchFn: func(term string, limit int) ([]*entity.KnowledgeDocument, error) {
				return []*entity.KnowledgeDocument{doc(9, "fallback")}, nil
			},
		}
		e := NewEngine(repo, nil, nil, Config{})

		docs := e.SmartSearch(context.Background(), "500 TL altında kulaklık")
		if len(docs) != 1 || docs[0].Id != 9 {
			t.Errorf("expected keyword fallback, got %v", docs)
		}
	})
}
