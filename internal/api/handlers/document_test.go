package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/corpusworks/corpusd/internal/domain"
	"github.com/corpusworks/corpusd/internal/service"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) GetDocument(ctx context.Context, docID string) (*service.DocumentContent, error) {
	args := m.Called(ctx, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentContent), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, docID string) (int, error) {
	args := m.Called(ctx, docID)
	return args.Int(0), args.Error(1)
}

func (m *MockDocumentService) ListDocuments(ctx context.Context, input service.ListDocumentsInput) (*service.DocumentPage, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentPage), args.Error(1)
}

func (m *MockDocumentService) ListLibraries(ctx context.Context) ([]*domain.LibraryInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LibraryInfo), args.Error(1)
}

func requestWithDocID(method, url, docID string) *http.Request {
	req := httptest.NewRequest(method, url, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("docID", docID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestDocumentHandler_Get_Success(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	created := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	mockSvc.On("GetDocument", mock.Anything, "doc-1").Return(&service.DocumentContent{
		DocID:      "doc-1",
		Source:     "guides/pump.md",
		Library:    "manuals",
		Title:      "Pump Guide",
		Content:    "first\n\nsecond",
		ChunkCount: 2,
		FileType:   "md",
		CreatedAt:  created,
	}, nil)

	w := httptest.NewRecorder()
	handler.Get(w, requestWithDocID(http.MethodGet, "/documents/doc-1", "doc-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "doc-1", data["doc_id"])
	assert.Equal(t, "first\n\nsecond", data["content"])
	assert.Equal(t, float64(2), data["chunk_count"])
	assert.Equal(t, "2026-08-20T09:30:00Z", data["created_at"])
}

func TestDocumentHandler_Get_NotFound(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("GetDocument", mock.Anything, "missing").
		Return(nil, domain.ErrDocumentNotFound)

	w := httptest.NewRecorder()
	handler.Get(w, requestWithDocID(http.MethodGet, "/documents/missing", "missing"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrCodeNotFound)
}

func TestDocumentHandler_Delete_Success(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("Delete", mock.Anything, "doc-1").Return(4, nil)

	w := httptest.NewRecorder()
	handler.Delete(w, requestWithDocID(http.MethodDelete, "/documents/doc-1", "doc-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "doc-1", data["doc_id"])
	assert.Equal(t, float64(4), data["chunks_deleted"])
}

func TestDocumentHandler_Delete_UnknownDocIsIdempotent(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("Delete", mock.Anything, "missing").Return(0, nil)

	w := httptest.NewRecorder()
	handler.Delete(w, requestWithDocID(http.MethodDelete, "/documents/missing", "missing"))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["chunks_deleted"])
}

func TestDocumentHandler_List_Success(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("ListDocuments", mock.Anything, mock.MatchedBy(func(input service.ListDocumentsInput) bool {
		return input.Library == "manuals" && input.Limit == 10 && input.Offset == 20
	})).Return(&service.DocumentPage{
		Items: []*domain.DocumentInfo{
			{DocID: "doc-1", Source: "a.md", Library: "manuals", ChunkCount: 2},
		},
		Total:  41,
		Limit:  10,
		Offset: 20,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents/?library=manuals&limit=10&offset=20", nil)
	w := httptest.NewRecorder()
	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(41), data["total"])
	items := data["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "doc-1", items[0].(map[string]interface{})["doc_id"])
}

func TestDocumentHandler_List_BadLimit(t *testing.T) {
	handler := NewDocumentHandler(new(MockDocumentService))

	req := httptest.NewRequest(http.MethodGet, "/documents/?limit=ten", nil)
	w := httptest.NewRecorder()
	handler.List(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "limit must be an integer")
}

func TestDocumentHandler_ListLibraries_Success(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("ListLibraries", mock.Anything).Return([]*domain.LibraryInfo{
		{Library: "manuals", DocumentCount: 3, ChunkCount: 17},
		{Library: "fieldnotes", DocumentCount: 1, ChunkCount: 2},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/libraries", nil)
	w := httptest.NewRecorder()
	handler.ListLibraries(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].([]interface{})
	require.Len(t, data, 2)
	first := data[0].(map[string]interface{})
	assert.Equal(t, "manuals", first["library"])
	assert.Equal(t, float64(3), first["document_count"])
}
