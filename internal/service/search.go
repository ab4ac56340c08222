package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/corpusworks/corpusd/internal/domain"
	"github.com/corpusworks/corpusd/internal/telemetry"
)

const (
	defaultTopK            = 10
	maxTopK                = 100
	defaultMinCandidates   = 20
	defaultMaxCandidates   = 200
	defaultSnippetMaxChars = 220
)

// allowedFilterFields are the chunk columns callers may filter on, besides
// the library which travels separately.
var allowedFilterFields = map[string]bool{
	"source":    true,
	"file_type": true,
	"title":     true,
}

// SearchFilters restricts candidate retrieval to matching chunk columns.
// Empty fields do not filter.
type SearchFilters struct {
	Library  string
	Source   string
	FileType string
	Title    string
}

// ChunkHit is one ranked chunk from a single retrieval leg.
type ChunkHit struct {
	Chunk domain.ChunkRecord
	Score float64
}

// DuplicateSource is a (source, library) pair holding more than one live
// document, doc IDs newest first.
type DuplicateSource struct {
	Source  string
	Library string
	DocIDs  []string
}

// SearchLogEntry records one search for evaluation/feedback loops.
type SearchLogEntry struct {
	Query       string
	Library     string
	Filters     map[string]string
	TopK        int
	ResultCount int
	DurationMs  int64
}

// SearchRepositoryInterface defines the repository interface for candidate retrieval
type SearchRepositoryInterface interface {
	SearchChunksSemantic(ctx context.Context, embedding []float32, filters SearchFilters, limit int) ([]*ChunkHit, error)
	SearchChunksLexical(ctx context.Context, query string, filters SearchFilters, limit int) ([]*ChunkHit, error)
}

// QueryEmbedder embeds search queries in query role.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// SearchLogRecorder persists search log entries.
type SearchLogRecorder interface {
	CreateSearchLog(ctx context.Context, entry SearchLogEntry) (string, error)
}

// SearchConfig tunes hybrid rank fusion.
type SearchConfig struct {
	RRFConstant         int
	CandidateMultiplier int
	SemanticWeight      float64
	LexicalWeight       float64
}

// DefaultSearchConfig provides the standard fusion parameters.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		RRFConstant:         60,
		CandidateMultiplier: 4,
		SemanticWeight:      1.0,
		LexicalWeight:       0.85,
	}
}

// SearchService answers queries by fusing semantic and lexical retrieval with
// reciprocal rank fusion.
type SearchService struct {
	repo      SearchRepositoryInterface
	embedder  QueryEmbedder
	searchLog SearchLogRecorder
	cfg       SearchConfig
}

// NewSearchService creates a new SearchService instance. searchLog may be nil
// to disable logging.
func NewSearchService(repo SearchRepositoryInterface, embedder QueryEmbedder, searchLog SearchLogRecorder, cfg SearchConfig) *SearchService {
	if cfg.RRFConstant <= 0 {
		cfg.RRFConstant = DefaultSearchConfig().RRFConstant
	}
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = DefaultSearchConfig().CandidateMultiplier
	}
	if cfg.SemanticWeight <= 0 {
		cfg.SemanticWeight = DefaultSearchConfig().SemanticWeight
	}
	if cfg.LexicalWeight <= 0 {
		cfg.LexicalWeight = DefaultSearchConfig().LexicalWeight
	}
	return &SearchService{
		repo:      repo,
		embedder:  embedder,
		searchLog: searchLog,
		cfg:       cfg,
	}
}

// SearchInput is one search request. Filters maps column names to required
// values; unknown columns are rejected before any retrieval runs.
type SearchInput struct {
	Query   string
	Library string
	TopK    int
	Filters map[string]string
}

// SearchResult is one fused hit.
type SearchResult struct {
	DocID         string
	ChunkID       string
	ChunkIndex    int
	Source        string
	Library       string
	Title         string
	Content       string
	Snippet       string
	Score         float64
	SemanticScore float64
	LexicalScore  float64
	Metadata      map[string]string
	FileType      string
	Page          int
}

// Search runs both retrieval legs in parallel, fuses them, and returns the
// top K chunks. An empty index yields an empty result, not an error.
func (s *SearchService) Search(ctx context.Context, input SearchInput) ([]*SearchResult, error) {
	started := time.Now()

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	topK := input.TopK
	if topK == 0 {
		topK = defaultTopK
	}
	if topK < 1 || topK > maxTopK {
		return nil, domain.ValidationError(fmt.Sprintf("top_k must be between 1 and %d", maxTopK))
	}
	filters, err := buildFilters(input.Library, input.Filters)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		Library:   input.Library,
		Operation: "search",
	})
	defer span.End()

	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, domain.EmbeddingError("failed to embed query", err)
	}

	candidateLimit := topK * s.cfg.CandidateMultiplier
	if candidateLimit < defaultMinCandidates {
		candidateLimit = defaultMinCandidates
	}
	if candidateLimit > defaultMaxCandidates {
		candidateLimit = defaultMaxCandidates
	}

	var semanticHits, lexicalHits []*ChunkHit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		semanticHits, err = s.repo.SearchChunksSemantic(gctx, embedding, filters, candidateLimit)
		return err
	})
	g.Go(func() error {
		var err error
		lexicalHits, err = s.repo.SearchChunksLexical(gctx, query, filters, candidateLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		span.SetError(err)
		return nil, domain.StoreError("search query failed", err)
	}

	results := s.fuse(semanticHits, lexicalHits)
	if len(results) > topK {
		results = results[:topK]
	}

	s.logSearch(ctx, input, query, topK, len(results), time.Since(started))
	return results, nil
}

type fusionCandidate struct {
	result        *SearchResult
	rrfScore      float64
	semanticScore float64
	lexicalScore  float64
}

// fuse merges both candidate lists with reciprocal rank fusion: each list
// contributes weight / (k + rank) per chunk, rank 1-based.
func (s *SearchService) fuse(semanticHits, lexicalHits []*ChunkHit) []*SearchResult {
	candidates := make(map[string]*fusionCandidate)
	addList := func(list []*ChunkHit, weight float64, semantic bool) {
		for i, hit := range list {
			if hit == nil {
				continue
			}
			key := hit.Chunk.ID
			cand, ok := candidates[key]
			if !ok {
				cand = &fusionCandidate{result: hitToResult(hit)}
				candidates[key] = cand
			}
			cand.rrfScore += weight / float64(s.cfg.RRFConstant+i+1)
			if semantic {
				if hit.Score > cand.semanticScore {
					cand.semanticScore = hit.Score
				}
			} else {
				if hit.Score > cand.lexicalScore {
					cand.lexicalScore = hit.Score
				}
			}
		}
	}

	addList(semanticHits, s.cfg.SemanticWeight, true)
	addList(lexicalHits, s.cfg.LexicalWeight, false)

	out := make([]*SearchResult, 0, len(candidates))
	for _, cand := range candidates {
		cand.result.Score = cand.rrfScore
		cand.result.SemanticScore = cand.semanticScore
		cand.result.LexicalScore = cand.lexicalScore
		out = append(out, cand.result)
	}

	// Equal scores order by (doc_id, chunk_index) so results are stable
	// across runs.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].DocID != out[j].DocID {
			return out[i].DocID < out[j].DocID
		}
		return out[i].ChunkIndex < out[j].ChunkIndex
	})
	return out
}

func (s *SearchService) logSearch(ctx context.Context, input SearchInput, query string, topK, resultCount int, elapsed time.Duration) {
	if s.searchLog == nil {
		return
	}
	_, err := s.searchLog.CreateSearchLog(ctx, SearchLogEntry{
		Query:       query,
		Library:     input.Library,
		Filters:     input.Filters,
		TopK:        topK,
		ResultCount: resultCount,
		DurationMs:  elapsed.Milliseconds(),
	})
	if err != nil {
		log.Printf("search: failed to record search log: %v", err)
	}
}

func buildFilters(library string, fields map[string]string) (SearchFilters, error) {
	filters := SearchFilters{Library: strings.TrimSpace(library)}
	for field, value := range fields {
		if !allowedFilterFields[field] {
			return SearchFilters{}, domain.ValidationError(fmt.Sprintf("unknown filter field %q", field))
		}
		switch field {
		case "source":
			filters.Source = value
		case "file_type":
			filters.FileType = value
		case "title":
			filters.Title = value
		}
	}
	return filters, nil
}

func hitToResult(hit *ChunkHit) *SearchResult {
	c := hit.Chunk
	return &SearchResult{
		DocID:      c.DocID,
		ChunkID:    c.ID,
		ChunkIndex: c.ChunkIndex,
		Source:     c.Source,
		Library:    c.Library,
		Title:      c.Title,
		Content:    c.Content,
		Snippet:    makeSnippet(c.Content),
		Metadata:   c.Metadata,
		FileType:   c.FileType,
		Page:       c.Page,
	}
}

func makeSnippet(content string) string {
	if content == "" {
		return ""
	}
	clean := strings.Join(strings.Fields(content), " ")
	runes := []rune(clean)
	if len(runes) <= defaultSnippetMaxChars {
		return clean
	}
	return string(runes[:defaultSnippetMaxChars-3]) + "..."
}
