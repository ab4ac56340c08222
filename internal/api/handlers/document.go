package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/corpusworks/corpusd/internal/api"
	"github.com/corpusworks/corpusd/internal/domain"
	"github.com/corpusworks/corpusd/internal/service"
)

type DocumentService interface {
	GetDocument(ctx context.Context, docID string) (*service.DocumentContent, error)
	Delete(ctx context.Context, docID string) (int, error)
	ListDocuments(ctx context.Context, input service.ListDocumentsInput) (*service.DocumentPage, error)
	ListLibraries(ctx context.Context) ([]*domain.LibraryInfo, error)
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type DocumentResponse struct {
	DocID      string            `json:"doc_id"`
	Source     string            `json:"source"`
	Library    string            `json:"library"`
	Title      string            `json:"title,omitempty"`
	Content    string            `json:"content"`
	ChunkCount int               `json:"chunk_count"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	FileType   string            `json:"file_type,omitempty"`
	CreatedAt  string            `json:"created_at"`
}

type DocumentInfoResponse struct {
	DocID       string            `json:"doc_id"`
	Source      string            `json:"source"`
	Title       string            `json:"title,omitempty"`
	Library     string            `json:"library"`
	ContentHash string            `json:"content_hash"`
	FileType    string            `json:"file_type,omitempty"`
	CreatedAt   string            `json:"created_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ChunkCount  int               `json:"chunk_count"`
}

type DocumentListResponse struct {
	Items  []*DocumentInfoResponse `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

type DeleteDocumentResponse struct {
	DocID         string `json:"doc_id"`
	ChunksDeleted int    `json:"chunks_deleted"`
}

type LibraryResponse struct {
	Library       string `json:"library"`
	DocumentCount int    `json:"document_count"`
	ChunkCount    int    `json:"chunk_count"`
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")

	doc, err := h.svc.GetDocument(r.Context(), docID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &DocumentResponse{
		DocID:      doc.DocID,
		Source:     doc.Source,
		Library:    doc.Library,
		Title:      doc.Title,
		Content:    doc.Content,
		ChunkCount: doc.ChunkCount,
		Metadata:   doc.Metadata,
		FileType:   doc.FileType,
		CreatedAt:  doc.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")

	deleted, err := h.svc.Delete(r.Context(), docID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &DeleteDocumentResponse{
		DocID:         docID,
		ChunksDeleted: deleted,
	})
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	input := service.ListDocumentsInput{
		Library: r.URL.Query().Get("library"),
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		input.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
		input.Offset = offset
	}

	page, err := h.svc.ListDocuments(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := &DocumentListResponse{
		Items:  make([]*DocumentInfoResponse, 0, len(page.Items)),
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	for _, d := range page.Items {
		resp.Items = append(resp.Items, &DocumentInfoResponse{
			DocID:       d.DocID,
			Source:      d.Source,
			Title:       d.Title,
			Library:     d.Library,
			ContentHash: d.ContentHash,
			FileType:    d.FileType,
			CreatedAt:   d.CreatedAt.Format("2006-01-02T15:04:05Z"),
			Metadata:    d.Metadata,
			ChunkCount:  d.ChunkCount,
		})
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *DocumentHandler) ListLibraries(w http.ResponseWriter, r *http.Request) {
	libraries, err := h.svc.ListLibraries(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]*LibraryResponse, 0, len(libraries))
	for _, l := range libraries {
		resp = append(resp, &LibraryResponse{
			Library:       l.Library,
			DocumentCount: l.DocumentCount,
			ChunkCount:    l.ChunkCount,
		})
	}

	api.Success(w, http.StatusOK, resp)
}
