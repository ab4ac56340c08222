package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/corpusworks/corpusd/internal/api/handlers"
	"github.com/corpusworks/corpusd/internal/domain"
	"github.com/corpusworks/corpusd/internal/service"
)

type MockIngestService struct {
	mock.Mock
}

func (m *MockIngestService) IngestFile(ctx context.Context, input service.IngestInput) (*service.IngestResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

func (m *MockIngestService) IngestURL(ctx context.Context, input service.IngestInput) (*service.IngestResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

func (m *MockIngestService) IngestContent(ctx context.Context, input service.IngestContentInput) (*service.IngestResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

func (m *MockIngestService) IngestFolder(ctx context.Context, input service.FolderInput) (*service.BatchResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BatchResult), args.Error(1)
}

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, input service.SearchInput) ([]*service.SearchResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*service.SearchResult), args.Error(1)
}

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

func setupRouter() (http.Handler, *MockIngestService, *MockSearchService, *MockDocumentService) {
	ingestSvc := new(MockIngestService)
	searchSvc := new(MockSearchService)
	documentSvc := new(MockDocumentService)

	cfg := RouterConfig{
		IngestHandler:   handlers.NewIngestHandler(ingestSvc),
		SearchHandler:   handlers.NewSearchHandler(searchSvc),
		DocumentHandler: handlers.NewDocumentHandler(documentSvc),
		MaxBodyBytes:    1024,
	}

	router := NewRouter(cfg)
	return router, ingestSvc, searchSvc, documentSvc
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router, _, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w = httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestRouter_IngestRoutes(t *testing.T) {
	router, ingestSvc, _, _ := setupRouter()

	result := &service.IngestResult{DocID: "doc-1", Status: domain.IngestStatusIndexed, ChunkCount: 1}
	ingestSvc.On("IngestFile", mock.Anything, mock.Anything).Return(result, nil)
	ingestSvc.On("IngestURL", mock.Anything, mock.Anything).Return(result, nil)
	ingestSvc.On("IngestContent", mock.Anything, mock.Anything).Return(result, nil)
	ingestSvc.On("IngestFolder", mock.Anything, mock.Anything).Return(&service.BatchResult{}, nil)

	routes := []struct {
		path     string
		body     string
		expected int
	}{
		{"/ingest/file", `{"source": "./doc.md"}`, http.StatusCreated},
		{"/ingest/url", `{"source": "https://example.com/doc.md"}`, http.StatusCreated},
		{"/ingest/content", `{"content": "text", "source": "inline.md"}`, http.StatusCreated},
		{"/ingest/folder", `{"path": "./docs"}`, http.StatusOK},
	}

	for _, route := range routes {
		t.Run(route.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, route.path, strings.NewReader(route.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, route.expected, w.Code)
		})
	}

	ingestSvc.AssertExpectations(t)
}

func TestRouter_SearchRoute(t *testing.T) {
	router, _, searchSvc, _ := setupRouter()

	searchSvc.On("Search", mock.Anything, mock.MatchedBy(func(input service.SearchInput) bool {
		return input.Query == "pump seal"
	})).Return([]*service.SearchResult{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query": "pump seal"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	searchSvc.AssertExpectations(t)
}

func TestRouter_DocumentRoutes(t *testing.T) {
	router, _, _, documentSvc := setupRouter()

	documentSvc.On("GetDocument", mock.Anything, "doc-1").
		Return(&service.DocumentContent{DocID: "doc-1"}, nil)
	documentSvc.On("Delete", mock.Anything, "doc-1").Return(2, nil)
	documentSvc.On("ListDocuments", mock.Anything, mock.Anything).
		Return(&service.DocumentPage{Items: []*domain.DocumentInfo{}}, nil)
	documentSvc.On("ListLibraries", mock.Anything).Return([]*domain.LibraryInfo{}, nil)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/documents/doc-1"},
		{http.MethodDelete, "/documents/doc-1"},
		{http.MethodGet, "/documents/"},
		{http.MethodGet, "/libraries"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
		})
	}

	documentSvc.AssertExpectations(t)
}

func TestRouter_BodyTooLarge(t *testing.T) {
	router, _, _, _ := setupRouter()

	body := strings.Repeat("x", 2048)
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router, _, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
