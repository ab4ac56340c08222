package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/corpusworks/corpusd/internal/api"
	"github.com/corpusworks/corpusd/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) ([]*service.SearchResult, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query   string            `json:"query"`
	Library string            `json:"library"`
	TopK    int               `json:"top_k"`
	Filters map[string]string `json:"filters"`
}

type SearchResultResponse struct {
	DocID         string            `json:"doc_id"`
	ChunkID       string            `json:"chunk_id"`
	ChunkIndex    int               `json:"chunk_index"`
	Source        string            `json:"source"`
	Library       string            `json:"library"`
	Title         string            `json:"title,omitempty"`
	Content       string            `json:"content"`
	Snippet       string            `json:"snippet"`
	Score         float64           `json:"score"`
	SemanticScore float64           `json:"semantic_score"`
	LexicalScore  float64           `json:"lexical_score"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	FileType      string            `json:"file_type,omitempty"`
	Page          int               `json:"page,omitempty"`
}

type SearchResponse struct {
	Results []*SearchResultResponse `json:"results"`
	Count   int                     `json:"count"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	results, err := h.svc.Search(r.Context(), service.SearchInput{
		Query:   req.Query,
		Library: req.Library,
		TopK:    req.TopK,
		Filters: req.Filters,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := &SearchResponse{
		Results: make([]*SearchResultResponse, 0, len(results)),
		Count:   len(results),
	}
	for _, res := range results {
		resp.Results = append(resp.Results, &SearchResultResponse{
			DocID:         res.DocID,
			ChunkID:       res.ChunkID,
			ChunkIndex:    res.ChunkIndex,
			Source:        res.Source,
			Library:       res.Library,
			Title:         res.Title,
			Content:       res.Content,
			Snippet:       res.Snippet,
			Score:         res.Score,
			SemanticScore: res.SemanticScore,
			LexicalScore:  res.LexicalScore,
			Metadata:      res.Metadata,
			FileType:      res.FileType,
			Page:          res.Page,
		})
	}

	api.Success(w, http.StatusOK, resp)
}
