package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/corpusworks/corpusd/internal/domain"
	"github.com/corpusworks/corpusd/internal/telemetry"
)

const maxTitleLength = 200

// ChunkRepositoryInterface defines the repository interface for chunk persistence
type ChunkRepositoryInterface interface {
	FindLiveDocument(ctx context.Context, source, library string) (*domain.LiveDocument, error)
	DeleteByDocID(ctx context.Context, docID string) (int, error)
	GetDocumentChunks(ctx context.Context, docID string) ([]*domain.ChunkRecord, error)
	ListDocuments(ctx context.Context, library string, limit, offset int) ([]*domain.DocumentInfo, error)
	CountDocuments(ctx context.Context, library string) (int, error)
	ListLibraries(ctx context.Context) ([]*domain.LibraryInfo, error)
}

// ChunkWriter is the transactional subset used while persisting a document.
type ChunkWriter interface {
	InsertChunks(ctx context.Context, chunks []domain.ChunkRecord) error
}

// TxRepositories exposes repositories bound to one transaction.
type TxRepositories interface {
	Chunks() ChunkWriter
}

// TxRunnerInterface runs a function inside a database transaction.
type TxRunnerInterface interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}

// FetcherInterface resolves a source to raw bytes.
type FetcherInterface interface {
	Fetch(ctx context.Context, source string) (*FetchResult, error)
}

// ConverterInterface extracts plain text from raw document bytes.
type ConverterInterface interface {
	Supported(source string) bool
	FileType(source string) string
	Convert(source string, data []byte) (string, error)
}

// ChunkerInterface splits document text into embedding-sized chunks.
type ChunkerInterface interface {
	Chunk(text string) []string
}

// DocumentEmbedder embeds chunk texts in document role.
type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// IngestConfig tunes the ingestion pipeline.
type IngestConfig struct {
	DefaultLibrary string
	MaxConcurrency int
}

// IngestService runs the document pipeline: fetch, fingerprint, dedup,
// convert, chunk, embed, persist.
type IngestService struct {
	repo      ChunkRepositoryInterface
	txRunner  TxRunnerInterface
	fetcher   FetcherInterface
	converter ConverterInterface
	chunker   ChunkerInterface
	embedder  DocumentEmbedder
	uuidGen   UUIDGenerator
	cfg       IngestConfig
}

// NewIngestService creates a new IngestService instance
func NewIngestService(
	repo ChunkRepositoryInterface,
	txRunner TxRunnerInterface,
	fetcher FetcherInterface,
	converter ConverterInterface,
	chunker ChunkerInterface,
	embedder DocumentEmbedder,
	cfg IngestConfig,
) *IngestService {
	if cfg.DefaultLibrary == "" {
		cfg.DefaultLibrary = domain.DefaultLibrary
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	return &IngestService{
		repo:      repo,
		txRunner:  txRunner,
		fetcher:   fetcher,
		converter: converter,
		chunker:   chunker,
		embedder:  embedder,
		uuidGen:   &DefaultUUIDGenerator{},
		cfg:       cfg,
	}
}

// WithUUIDGen swaps the UUID generator, used by tests for deterministic IDs.
func (s *IngestService) WithUUIDGen(gen UUIDGenerator) *IngestService {
	s.uuidGen = gen
	return s
}

// IngestInput identifies one source to ingest.
type IngestInput struct {
	Source   string
	Library  string
	Metadata map[string]string
}

// IngestContentInput carries text supplied directly by the caller instead of
// fetched from a source.
type IngestContentInput struct {
	Content  string
	Source   string
	Library  string
	Title    string
	Metadata map[string]string
}

// IngestResult reports what the pipeline did with one document.
type IngestResult struct {
	DocID       string
	Source      string
	Library     string
	Title       string
	Status      domain.IngestStatus
	ChunkCount  int
	ContentHash string
}

// BatchItemError pairs a failed source with its error.
type BatchItemError struct {
	Source string
	Err    error
}

// BatchResult aggregates a multi-document ingest. Total always equals
// Indexed + Replaced + Skipped + Failed, and len(Errors) equals Failed.
type BatchResult struct {
	Total    int
	Indexed  int
	Replaced int
	Skipped  int
	Failed   int
	Results  []*IngestResult
	Errors   []BatchItemError
}

// IngestFile ingests a local file path or file:// URL.
func (s *IngestService) IngestFile(ctx context.Context, input IngestInput) (*IngestResult, error) {
	if strings.HasPrefix(input.Source, "http://") || strings.HasPrefix(input.Source, "https://") {
		return nil, domain.ValidationError(fmt.Sprintf("%s is a URL, use IngestURL", input.Source))
	}
	return s.IngestSource(ctx, input)
}

// IngestURL ingests an http(s) URL.
func (s *IngestService) IngestURL(ctx context.Context, input IngestInput) (*IngestResult, error) {
	if !strings.HasPrefix(input.Source, "http://") && !strings.HasPrefix(input.Source, "https://") {
		return nil, domain.ValidationError(fmt.Sprintf("%s is not an http(s) URL", input.Source))
	}
	return s.IngestSource(ctx, input)
}

// IngestSource runs the full pipeline for one source of any scheme.
func (s *IngestService) IngestSource(ctx context.Context, input IngestInput) (*IngestResult, error) {
	source := strings.TrimSpace(input.Source)
	if source == "" {
		return nil, domain.ValidationError("source must not be empty")
	}
	library := s.resolveLibrary(input.Library)

	ctx, span := telemetry.StartSpan(ctx, "IngestService.IngestSource", telemetry.SpanAttributes{
		Library:   library,
		Source:    source,
		Operation: "ingest",
	})
	defer span.End()

	if !s.converter.Supported(source) {
		return nil, domain.UnsupportedFormatError(fmt.Sprintf("unsupported file type for %s", source))
	}

	fetched, err := s.fetcher.Fetch(ctx, source)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return s.ingestBytes(ctx, ingestDoc{
		source:       source,
		library:      library,
		data:         fetched.Data,
		lastModified: fetched.LastModified,
		fileType:     s.converter.FileType(source),
		metadata:     input.Metadata,
		convert:      true,
	})
}

// IngestContent ingests caller-supplied text under a source identifier, which
// still participates in (source, library) dedup.
func (s *IngestService) IngestContent(ctx context.Context, input IngestContentInput) (*IngestResult, error) {
	source := strings.TrimSpace(input.Source)
	if source == "" {
		return nil, domain.ValidationError("source must not be empty")
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, domain.NoContentError("content must not be empty")
	}
	library := s.resolveLibrary(input.Library)

	ctx, span := telemetry.StartSpan(ctx, "IngestService.IngestContent", telemetry.SpanAttributes{
		Library:   library,
		Source:    source,
		Operation: "ingest_content",
	})
	defer span.End()

	return s.ingestBytes(ctx, ingestDoc{
		source:   source,
		library:  library,
		data:     []byte(input.Content),
		fileType: "text",
		title:    input.Title,
		metadata: input.Metadata,
		convert:  false,
	})
}

// FolderInput identifies a directory tree to ingest.
type FolderInput struct {
	Path     string
	Library  string
	Metadata map[string]string
	// NoRecurse limits the walk to the top-level directory.
	NoRecurse bool
}

// IngestFolder walks a directory and ingests every supported file under it.
func (s *IngestService) IngestFolder(ctx context.Context, input FolderInput) (*BatchResult, error) {
	folder := strings.TrimSpace(input.Path)
	if folder == "" {
		return nil, domain.ErrEmptyFolder
	}

	var sources []string
	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == folder {
				return nil
			}
			if input.NoRecurse || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if s.converter.Supported(path) {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return nil, domain.FetchError(fmt.Sprintf("failed to walk %s", folder), err)
	}
	sort.Strings(sources)

	return s.IngestBatch(ctx, sources, input.Library, input.Metadata)
}

// IngestBatch ingests sources concurrently with per-item failure isolation.
// One bad document never fails the batch.
func (s *IngestService) IngestBatch(ctx context.Context, sources []string, library string, metadata map[string]string) (*BatchResult, error) {
	batch := &BatchResult{Total: len(sources)}
	if len(sources) == 0 {
		return batch, nil
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)

	for _, source := range sources {
		g.Go(func() error {
			result, err := s.IngestSource(ctx, IngestInput{
				Source:   source,
				Library:  library,
				Metadata: metadata,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				batch.Failed++
				batch.Errors = append(batch.Errors, BatchItemError{Source: source, Err: err})
				return nil
			}
			batch.Results = append(batch.Results, result)
			switch result.Status {
			case domain.IngestStatusIndexed:
				batch.Indexed++
			case domain.IngestStatusReplaced:
				batch.Replaced++
			case domain.IngestStatusSkipped:
				batch.Skipped++
			}
			return nil
		})
	}

	// Workers never return errors; failures land in batch.Errors.
	_ = g.Wait()

	sort.Slice(batch.Results, func(i, j int) bool { return batch.Results[i].Source < batch.Results[j].Source })
	sort.Slice(batch.Errors, func(i, j int) bool { return batch.Errors[i].Source < batch.Errors[j].Source })
	return batch, nil
}

type ingestDoc struct {
	source       string
	library      string
	data         []byte
	lastModified string
	fileType     string
	title        string
	metadata     map[string]string
	convert      bool
}

func (s *IngestService) ingestBytes(ctx context.Context, doc ingestDoc) (*IngestResult, error) {
	hash := fingerprint(doc.data)

	existing, err := s.repo.FindLiveDocument(ctx, doc.source, doc.library)
	if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
		return nil, domain.StoreError(fmt.Sprintf("failed to look up %s", doc.source), err)
	}
	if existing != nil && existing.ContentHash == hash {
		return &IngestResult{
			DocID:       existing.DocID,
			Source:      doc.source,
			Library:     doc.library,
			Status:      domain.IngestStatusSkipped,
			ContentHash: hash,
		}, nil
	}

	text := string(doc.data)
	if doc.convert {
		text, err = s.converter.Convert(doc.source, doc.data)
		if err != nil {
			return nil, err
		}
	}

	title := strings.TrimSpace(doc.title)
	if title == "" {
		title = extractTitle(text, doc.source)
	}

	chunks := s.chunker.Chunk(text)
	if len(chunks) == 0 {
		return nil, domain.NoContentError(fmt.Sprintf("no text content in %s", doc.source))
	}

	embeddings, err := s.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return nil, domain.EmbeddingError(fmt.Sprintf("failed to embed %s", doc.source), err)
	}
	if len(embeddings) != len(chunks) {
		return nil, domain.EmbeddingError(fmt.Sprintf("embedding count mismatch for %s", doc.source), nil)
	}

	docID := s.uuidGen.NewString()
	now := time.Now().UTC()
	records := make([]domain.ChunkRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = domain.ChunkRecord{
			ID:           s.uuidGen.NewString(),
			DocID:        docID,
			Library:      doc.library,
			Source:       doc.source,
			ContentHash:  hash,
			Title:        title,
			Content:      chunk,
			Embedding:    embeddings[i],
			ChunkIndex:   i,
			CreatedAt:    now,
			Metadata:     doc.metadata,
			FileType:     doc.fileType,
			LastModified: doc.lastModified,
		}
	}

	// The new document lands before the old one goes away. A crash in
	// between leaves a duplicate (source, library) pair, which the
	// reconciler cleans up; readers keep seeing a complete document either
	// way.
	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		return repos.Chunks().InsertChunks(ctx, records)
	})
	if err != nil {
		return nil, domain.StoreError(fmt.Sprintf("failed to store %s", doc.source), err)
	}

	status := domain.IngestStatusIndexed
	if existing != nil {
		status = domain.IngestStatusReplaced
		if _, err := s.repo.DeleteByDocID(ctx, existing.DocID); err != nil {
			// The new document is already live; the reconciler sweeps the
			// leftover rows on its next pass.
			log.Printf("ingest: failed to remove replaced document %s for %s: %v", existing.DocID, doc.source, err)
		}
	}

	return &IngestResult{
		DocID:       docID,
		Source:      doc.source,
		Library:     doc.library,
		Title:       title,
		Status:      status,
		ChunkCount:  len(records),
		ContentHash: hash,
	}, nil
}

// Delete removes a document by ID. Deleting an unknown ID reports zero chunks
// rather than an error, so retries are safe.
func (s *IngestService) Delete(ctx context.Context, docID string) (int, error) {
	docID = strings.TrimSpace(docID)
	if docID == "" {
		return 0, domain.ErrEmptyDocID
	}

	ctx, span := telemetry.StartSpan(ctx, "IngestService.Delete", telemetry.SpanAttributes{
		DocID:     docID,
		Operation: "delete",
	})
	defer span.End()

	deleted, err := s.repo.DeleteByDocID(ctx, docID)
	if err != nil {
		span.SetError(err)
		return 0, domain.StoreError(fmt.Sprintf("failed to delete document %s", docID), err)
	}
	return deleted, nil
}

// DocumentContent is a document reassembled from its chunks.
type DocumentContent struct {
	DocID      string
	Source     string
	Library    string
	Title      string
	Content    string
	ChunkCount int
	Metadata   map[string]string
	FileType   string
	CreatedAt  time.Time
}

// GetDocument reassembles a document's full text in chunk order.
func (s *IngestService) GetDocument(ctx context.Context, docID string) (*DocumentContent, error) {
	docID = strings.TrimSpace(docID)
	if docID == "" {
		return nil, domain.ErrEmptyDocID
	}

	chunks, err := s.repo.GetDocumentChunks(ctx, docID)
	if err != nil {
		return nil, err
	}

	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}

	first := chunks[0]
	return &DocumentContent{
		DocID:      first.DocID,
		Source:     first.Source,
		Library:    first.Library,
		Title:      first.Title,
		Content:    strings.Join(parts, "\n\n"),
		ChunkCount: len(chunks),
		Metadata:   first.Metadata,
		FileType:   first.FileType,
		CreatedAt:  first.CreatedAt,
	}, nil
}

// ListDocumentsInput pages through per-document summaries.
type ListDocumentsInput struct {
	Library string
	Limit   int
	Offset  int
}

// DocumentPage is one page of document summaries plus the total count.
type DocumentPage struct {
	Items  []*domain.DocumentInfo
	Total  int
	Limit  int
	Offset int
}

// ListDocuments lists ingested documents, newest first.
func (s *IngestService) ListDocuments(ctx context.Context, input ListDocumentsInput) (*DocumentPage, error) {
	limit := input.Limit
	if limit == 0 {
		limit = 100
	}
	if limit < 1 || limit > 1000 {
		return nil, domain.ValidationError("limit must be between 1 and 1000")
	}
	if input.Offset < 0 {
		return nil, domain.ValidationError("offset must not be negative")
	}

	items, err := s.repo.ListDocuments(ctx, input.Library, limit, input.Offset)
	if err != nil {
		return nil, domain.StoreError("failed to list documents", err)
	}
	total, err := s.repo.CountDocuments(ctx, input.Library)
	if err != nil {
		return nil, domain.StoreError("failed to count documents", err)
	}

	return &DocumentPage{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: input.Offset,
	}, nil
}

// ListLibraries summarises every non-empty library.
func (s *IngestService) ListLibraries(ctx context.Context) ([]*domain.LibraryInfo, error) {
	libraries, err := s.repo.ListLibraries(ctx)
	if err != nil {
		return nil, domain.StoreError("failed to list libraries", err)
	}
	return libraries, nil
}

func (s *IngestService) resolveLibrary(library string) string {
	library = strings.TrimSpace(library)
	if library == "" {
		return s.cfg.DefaultLibrary
	}
	return library
}

// fingerprint is the dedup key over raw source bytes.
func fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// extractTitle takes the first markdown heading, else the last path segment
// of the source, capped at 200 characters.
func extractTitle(text, source string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		heading := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		if heading != "" {
			return truncateTitle(heading)
		}
	}

	cleaned := strings.TrimRight(source, "/")
	if i := strings.IndexAny(cleaned, "?#"); i >= 0 {
		cleaned = cleaned[:i]
	}
	if i := strings.LastIndexAny(cleaned, "/\\"); i >= 0 {
		cleaned = cleaned[i+1:]
	}
	if cleaned == "" {
		cleaned = source
	}
	return truncateTitle(cleaned)
}

func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= maxTitleLength {
		return title
	}
	return string(runes[:maxTitleLength])
}
