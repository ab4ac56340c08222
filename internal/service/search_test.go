package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/corpusworks/corpusd/internal/domain"
)

// MockSearchRepository is a mock implementation of SearchRepositoryInterface
type MockSearchRepository struct {
	mock.Mock
}

func (m *MockSearchRepository) SearchChunksSemantic(ctx context.Context, embedding []float32, filters SearchFilters, limit int) ([]*ChunkHit, error) {
	args := m.Called(ctx, embedding, filters, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ChunkHit), args.Error(1)
}

func (m *MockSearchRepository) SearchChunksLexical(ctx context.Context, query string, filters SearchFilters, limit int) ([]*ChunkHit, error) {
	args := m.Called(ctx, query, filters, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ChunkHit), args.Error(1)
}

// MockQueryEmbedder is a mock implementation of QueryEmbedder
type MockQueryEmbedder struct {
	mock.Mock
}

func (m *MockQueryEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockSearchLogRecorder is a mock implementation of SearchLogRecorder
type MockSearchLogRecorder struct {
	mock.Mock
}

func (m *MockSearchLogRecorder) CreateSearchLog(ctx context.Context, entry SearchLogEntry) (string, error) {
	args := m.Called(ctx, entry)
	return args.String(0), args.Error(1)
}

func hit(chunkID, docID string, chunkIndex int, score float64) *ChunkHit {
	return &ChunkHit{
		Chunk: domain.ChunkRecord{
			ID:         chunkID,
			DocID:      docID,
			ChunkIndex: chunkIndex,
			Content:    "content of " + chunkID,
		},
		Score: score,
	}
}

func TestSearchService_Search(t *testing.T) {
	ctx := context.Background()
	queryVec := []float32{0.1, 0.2}

	t.Run("rejects empty query", func(t *testing.T) {
		svc := NewSearchService(new(MockSearchRepository), new(MockQueryEmbedder), nil, SearchConfig{})
		_, err := svc.Search(ctx, SearchInput{Query: "   "})
		require.ErrorIs(t, err, domain.ErrEmptyQuery)
	})

	t.Run("rejects out-of-range top_k", func(t *testing.T) {
		svc := NewSearchService(new(MockSearchRepository), new(MockQueryEmbedder), nil, SearchConfig{})
		_, err := svc.Search(ctx, SearchInput{Query: "pump", TopK: 101})
		require.Error(t, err)
		assert.Equal(t, domain.ErrCodeValidation, domain.ErrorCode(err))
	})

	t.Run("rejects unknown filter field before any retrieval", func(t *testing.T) {
		repo := new(MockSearchRepository)
		embedder := new(MockQueryEmbedder)
		svc := NewSearchService(repo, embedder, nil, SearchConfig{})

		_, err := svc.Search(ctx, SearchInput{
			Query:   "pump",
			Filters: map[string]string{"author": "smith"},
		})
		require.Error(t, err)
		assert.Equal(t, domain.ErrCodeValidation, domain.ErrorCode(err))
		assert.Contains(t, err.Error(), "author")
		embedder.AssertNotCalled(t, "EmbedQuery", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "SearchChunksSemantic", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty index yields empty results", func(t *testing.T) {
		repo := new(MockSearchRepository)
		embedder := new(MockQueryEmbedder)
		svc := NewSearchService(repo, embedder, nil, SearchConfig{})

		embedder.On("EmbedQuery", mock.Anything, "pump").Return(queryVec, nil)
		repo.On("SearchChunksSemantic", mock.Anything, queryVec, mock.Anything, mock.Anything).
			Return([]*ChunkHit{}, nil)
		repo.On("SearchChunksLexical", mock.Anything, "pump", mock.Anything, mock.Anything).
			Return([]*ChunkHit{}, nil)

		results, err := svc.Search(ctx, SearchInput{Query: "pump"})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("fuses both legs with reciprocal ranks", func(t *testing.T) {
		repo := new(MockSearchRepository)
		embedder := new(MockQueryEmbedder)
		svc := NewSearchService(repo, embedder, nil, SearchConfig{})

		embedder.On("EmbedQuery", mock.Anything, "pump").Return(queryVec, nil)
		repo.On("SearchChunksSemantic", mock.Anything, queryVec, mock.Anything, mock.Anything).
			Return([]*ChunkHit{
				hit("chunk-a", "doc-1", 0, 0.91),
				hit("chunk-b", "doc-1", 1, 0.85),
			}, nil)
		repo.On("SearchChunksLexical", mock.Anything, "pump", mock.Anything, mock.Anything).
			Return([]*ChunkHit{
				hit("chunk-b", "doc-1", 1, 0.42),
				hit("chunk-c", "doc-2", 0, 0.31),
			}, nil)

		results, err := svc.Search(ctx, SearchInput{Query: "pump"})
		require.NoError(t, err)
		require.Len(t, results, 3)

		// chunk-b appears in both legs: 1.0/62 + 0.85/61.
		assert.Equal(t, "chunk-b", results[0].ChunkID)
		assert.InDelta(t, 1.0/62+0.85/61, results[0].Score, 1e-9)
		assert.Equal(t, 0.85, results[0].SemanticScore)
		assert.Equal(t, 0.42, results[0].LexicalScore)

		assert.Equal(t, "chunk-a", results[1].ChunkID)
		assert.InDelta(t, 1.0/61, results[1].Score, 1e-9)
		assert.Equal(t, 0.0, results[1].LexicalScore)

		assert.Equal(t, "chunk-c", results[2].ChunkID)
		assert.InDelta(t, 0.85/62, results[2].Score, 1e-9)
		assert.Equal(t, 0.0, results[2].SemanticScore)
	})

	t.Run("breaks score ties by doc ID then chunk index", func(t *testing.T) {
		repo := new(MockSearchRepository)
		embedder := new(MockQueryEmbedder)
		svc := NewSearchService(repo, embedder, nil, SearchConfig{
			SemanticWeight: 1.0,
			LexicalWeight:  1.0,
		})

		// Mirrored ranks with equal weights produce identical fused scores.
		embedder.On("EmbedQuery", mock.Anything, "pump").Return(queryVec, nil)
		repo.On("SearchChunksSemantic", mock.Anything, queryVec, mock.Anything, mock.Anything).
			Return([]*ChunkHit{
				hit("chunk-x", "doc-2", 3, 0.9),
				hit("chunk-y", "doc-1", 7, 0.8),
				hit("chunk-z", "doc-1", 2, 0.7),
			}, nil)
		repo.On("SearchChunksLexical", mock.Anything, "pump", mock.Anything, mock.Anything).
			Return([]*ChunkHit{
				hit("chunk-z", "doc-1", 2, 0.5),
				hit("chunk-y", "doc-1", 7, 0.4),
				hit("chunk-x", "doc-2", 3, 0.3),
			}, nil)

		results, err := svc.Search(ctx, SearchInput{Query: "pump"})
		require.NoError(t, err)
		require.Len(t, results, 3)

		// chunk-x and chunk-z tie on 1/61 + 1/63; doc-1 sorts before doc-2.
		assert.InDelta(t, results[0].Score, results[1].Score, 1e-9)
		assert.Equal(t, "chunk-z", results[0].ChunkID)
		assert.Equal(t, "chunk-x", results[1].ChunkID)
		assert.Equal(t, "chunk-y", results[2].ChunkID)
	})

	t.Run("truncates fused results to top_k", func(t *testing.T) {
		repo := new(MockSearchRepository)
		embedder := new(MockQueryEmbedder)
		svc := NewSearchService(repo, embedder, nil, SearchConfig{})

		embedder.On("EmbedQuery", mock.Anything, "pump").Return(queryVec, nil)
		repo.On("SearchChunksSemantic", mock.Anything, queryVec, mock.Anything, mock.Anything).
			Return([]*ChunkHit{
				hit("chunk-a", "doc-1", 0, 0.9),
				hit("chunk-b", "doc-1", 1, 0.8),
				hit("chunk-c", "doc-2", 0, 0.7),
			}, nil)
		repo.On("SearchChunksLexical", mock.Anything, "pump", mock.Anything, mock.Anything).
			Return([]*ChunkHit{}, nil)

		results, err := svc.Search(ctx, SearchInput{Query: "pump", TopK: 2})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "chunk-a", results[0].ChunkID)
		assert.Equal(t, "chunk-b", results[1].ChunkID)
	})

	t.Run("clamps the candidate limit", func(t *testing.T) {
		tests := []struct {
			name      string
			topK      int
			wantLimit int
		}{
			{name: "small top_k hits the floor", topK: 1, wantLimit: 20},
			{name: "default multiplier", topK: 10, wantLimit: 40},
			{name: "large top_k hits the ceiling", topK: 100, wantLimit: 200},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				repo := new(MockSearchRepository)
				embedder := new(MockQueryEmbedder)
				svc := NewSearchService(repo, embedder, nil, SearchConfig{})

				embedder.On("EmbedQuery", mock.Anything, "pump").Return(queryVec, nil)
				repo.On("SearchChunksSemantic", mock.Anything, queryVec, mock.Anything, tt.wantLimit).
					Return([]*ChunkHit{}, nil)
				repo.On("SearchChunksLexical", mock.Anything, "pump", mock.Anything, tt.wantLimit).
					Return([]*ChunkHit{}, nil)

				_, err := svc.Search(ctx, SearchInput{Query: "pump", TopK: tt.topK})
				require.NoError(t, err)
				repo.AssertExpectations(t)
			})
		}
	})

	t.Run("passes validated filters to both legs", func(t *testing.T) {
		repo := new(MockSearchRepository)
		embedder := new(MockQueryEmbedder)
		svc := NewSearchService(repo, embedder, nil, SearchConfig{})

		wantFilters := SearchFilters{Library: "manuals", FileType: "md", Source: "guide.md"}
		embedder.On("EmbedQuery", mock.Anything, "pump").Return(queryVec, nil)
		repo.On("SearchChunksSemantic", mock.Anything, queryVec, wantFilters, mock.Anything).
			Return([]*ChunkHit{}, nil)
		repo.On("SearchChunksLexical", mock.Anything, "pump", wantFilters, mock.Anything).
			Return([]*ChunkHit{}, nil)

		_, err := svc.Search(ctx, SearchInput{
			Query:   "pump",
			Library: "manuals",
			Filters: map[string]string{"file_type": "md", "source": "guide.md"},
		})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("wraps embedding failures", func(t *testing.T) {
		repo := new(MockSearchRepository)
		embedder := new(MockQueryEmbedder)
		svc := NewSearchService(repo, embedder, nil, SearchConfig{})

		embedder.On("EmbedQuery", mock.Anything, "pump").
			Return(nil, errors.New("model overloaded"))

		_, err := svc.Search(ctx, SearchInput{Query: "pump"})
		require.Error(t, err)
		assert.Equal(t, domain.ErrCodeEmbedding, domain.ErrorCode(err))
	})

	t.Run("wraps repository failures from either leg", func(t *testing.T) {
		repo := new(MockSearchRepository)
		embedder := new(MockQueryEmbedder)
		svc := NewSearchService(repo, embedder, nil, SearchConfig{})

		embedder.On("EmbedQuery", mock.Anything, "pump").Return(queryVec, nil)
		repo.On("SearchChunksSemantic", mock.Anything, queryVec, mock.Anything, mock.Anything).
			Return(nil, errors.New("connection reset"))
		repo.On("SearchChunksLexical", mock.Anything, "pump", mock.Anything, mock.Anything).
			Return([]*ChunkHit{}, nil)

		_, err := svc.Search(ctx, SearchInput{Query: "pump"})
		require.Error(t, err)
		assert.Equal(t, domain.ErrCodeStore, domain.ErrorCode(err))
	})

	t.Run("records a search log entry", func(t *testing.T) {
		repo := new(MockSearchRepository)
		embedder := new(MockQueryEmbedder)
		recorder := new(MockSearchLogRecorder)
		svc := NewSearchService(repo, embedder, recorder, SearchConfig{})

		embedder.On("EmbedQuery", mock.Anything, "pump seal").Return(queryVec, nil)
		repo.On("SearchChunksSemantic", mock.Anything, queryVec, mock.Anything, mock.Anything).
			Return([]*ChunkHit{hit("chunk-a", "doc-1", 0, 0.9)}, nil)
		repo.On("SearchChunksLexical", mock.Anything, "pump seal", mock.Anything, mock.Anything).
			Return([]*ChunkHit{}, nil)
		recorder.On("CreateSearchLog", mock.Anything, mock.MatchedBy(func(entry SearchLogEntry) bool {
			return entry.Query == "pump seal" &&
				entry.Library == "manuals" &&
				entry.TopK == 10 &&
				entry.ResultCount == 1
		})).Return("log-1", nil)

		_, err := svc.Search(ctx, SearchInput{Query: "  pump seal ", Library: "manuals"})
		require.NoError(t, err)
		recorder.AssertExpectations(t)
	})

	t.Run("search log failures do not fail the search", func(t *testing.T) {
		repo := new(MockSearchRepository)
		embedder := new(MockQueryEmbedder)
		recorder := new(MockSearchLogRecorder)
		svc := NewSearchService(repo, embedder, recorder, SearchConfig{})

		embedder.On("EmbedQuery", mock.Anything, "pump").Return(queryVec, nil)
		repo.On("SearchChunksSemantic", mock.Anything, queryVec, mock.Anything, mock.Anything).
			Return([]*ChunkHit{}, nil)
		repo.On("SearchChunksLexical", mock.Anything, "pump", mock.Anything, mock.Anything).
			Return([]*ChunkHit{}, nil)
		recorder.On("CreateSearchLog", mock.Anything, mock.Anything).
			Return("", errors.New("table locked"))

		_, err := svc.Search(ctx, SearchInput{Query: "pump"})
		require.NoError(t, err)
	})
}

func TestMakeSnippet(t *testing.T) {
	t.Run("collapses whitespace", func(t *testing.T) {
		assert.Equal(t, "a b c", makeSnippet("a\n  b\t\tc"))
	})

	t.Run("truncates long content with ellipsis", func(t *testing.T) {
		snippet := makeSnippet(strings.Repeat("word ", 100))
		assert.Len(t, snippet, 220)
		assert.True(t, strings.HasSuffix(snippet, "..."))
	})

	t.Run("truncates multi-byte content on a rune boundary", func(t *testing.T) {
		snippet := makeSnippet(strings.Repeat("ä ", 300))
		assert.True(t, utf8.ValidString(snippet))
		assert.Equal(t, 220, utf8.RuneCountInString(snippet))
		assert.True(t, strings.HasSuffix(snippet, "..."))
	})

	t.Run("empty content stays empty", func(t *testing.T) {
		assert.Equal(t, "", makeSnippet(""))
	})
}
