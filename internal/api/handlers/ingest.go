package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/corpusworks/corpusd/internal/api"
	"github.com/corpusworks/corpusd/internal/domain"
	"github.com/corpusworks/corpusd/internal/service"
)

type IngestService interface {
	IngestFile(ctx context.Context, input service.IngestInput) (*service.IngestResult, error)
	IngestURL(ctx context.Context, input service.IngestInput) (*service.IngestResult, error)
	IngestContent(ctx context.Context, input service.IngestContentInput) (*service.IngestResult, error)
	IngestFolder(ctx context.Context, input service.FolderInput) (*service.BatchResult, error)
}

type IngestHandler struct {
	svc IngestService
}

func NewIngestHandler(svc IngestService) *IngestHandler {
	return &IngestHandler{svc: svc}
}

type IngestSourceRequest struct {
	Source   string            `json:"source"`
	Library  string            `json:"library"`
	Metadata map[string]string `json:"metadata"`
}

type IngestContentRequest struct {
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Library  string            `json:"library"`
	Title    string            `json:"title"`
	Metadata map[string]string `json:"metadata"`
}

type IngestFolderRequest struct {
	Path    string `json:"path"`
	Library string `json:"library"`
	// Recursive defaults to true when omitted.
	Recursive *bool             `json:"recursive"`
	Metadata  map[string]string `json:"metadata"`
}

type IngestResultResponse struct {
	DocID       string `json:"doc_id"`
	Source      string `json:"source"`
	Library     string `json:"library"`
	Title       string `json:"title,omitempty"`
	Status      string `json:"status"`
	ChunkCount  int    `json:"chunk_count"`
	ContentHash string `json:"content_hash"`
}

type BatchErrorResponse struct {
	Source string `json:"source"`
	Error  string `json:"error"`
	Code   string `json:"code"`
}

type BatchResultResponse struct {
	Total    int                     `json:"total"`
	Indexed  int                     `json:"indexed"`
	Replaced int                     `json:"replaced"`
	Skipped  int                     `json:"skipped"`
	Failed   int                     `json:"failed"`
	Results  []*IngestResultResponse `json:"results"`
	Errors   []*BatchErrorResponse   `json:"errors"`
}

func ingestResultToResponse(r *service.IngestResult) *IngestResultResponse {
	return &IngestResultResponse{
		DocID:       r.DocID,
		Source:      r.Source,
		Library:     r.Library,
		Title:       r.Title,
		Status:      string(r.Status),
		ChunkCount:  r.ChunkCount,
		ContentHash: r.ContentHash,
	}
}

func batchResultToResponse(b *service.BatchResult) *BatchResultResponse {
	resp := &BatchResultResponse{
		Total:    b.Total,
		Indexed:  b.Indexed,
		Replaced: b.Replaced,
		Skipped:  b.Skipped,
		Failed:   b.Failed,
		Results:  make([]*IngestResultResponse, 0, len(b.Results)),
		Errors:   make([]*BatchErrorResponse, 0, len(b.Errors)),
	}
	for _, r := range b.Results {
		resp.Results = append(resp.Results, ingestResultToResponse(r))
	}
	for _, e := range b.Errors {
		resp.Errors = append(resp.Errors, &BatchErrorResponse{
			Source: e.Source,
			Error:  e.Err.Error(),
			Code:   domain.ErrorCode(e.Err),
		})
	}
	return resp
}

func (h *IngestHandler) IngestFile(w http.ResponseWriter, r *http.Request) {
	var req IngestSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" {
		api.Error(w, http.StatusBadRequest, "source is required")
		return
	}

	result, err := h.svc.IngestFile(r.Context(), service.IngestInput{
		Source:   req.Source,
		Library:  req.Library,
		Metadata: req.Metadata,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, ingestResultToResponse(result))
}

func (h *IngestHandler) IngestURL(w http.ResponseWriter, r *http.Request) {
	var req IngestSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" {
		api.Error(w, http.StatusBadRequest, "source is required")
		return
	}

	result, err := h.svc.IngestURL(r.Context(), service.IngestInput{
		Source:   req.Source,
		Library:  req.Library,
		Metadata: req.Metadata,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, ingestResultToResponse(result))
}

func (h *IngestHandler) IngestContent(w http.ResponseWriter, r *http.Request) {
	var req IngestContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" {
		api.Error(w, http.StatusBadRequest, "source is required")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	result, err := h.svc.IngestContent(r.Context(), service.IngestContentInput{
		Content:  req.Content,
		Source:   req.Source,
		Library:  req.Library,
		Title:    req.Title,
		Metadata: req.Metadata,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, ingestResultToResponse(result))
}

func (h *IngestHandler) IngestFolder(w http.ResponseWriter, r *http.Request) {
	var req IngestFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		api.Error(w, http.StatusBadRequest, "path is required")
		return
	}

	batch, err := h.svc.IngestFolder(r.Context(), service.FolderInput{
		Path:      req.Path,
		Library:   req.Library,
		Metadata:  req.Metadata,
		NoRecurse: req.Recursive != nil && !*req.Recursive,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, batchResultToResponse(batch))
}
