package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/corpusworks/corpusd/internal/domain"
	"github.com/corpusworks/corpusd/internal/service"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx so repositories can run
// against the pool or inside a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ChunkRepository handles persistence of embedded document chunks.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// InsertChunks writes all rows for a document. Callers that need the insert
// to be all-or-nothing run it through TxRunner.WithTx.
func (r *ChunkRepository) InsertChunks(ctx context.Context, chunks []domain.ChunkRecord) error {
	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		metadata := c.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO chunks
				(id, doc_id, library, source, content_hash, title, content, embedding, chunk_index, created_at, metadata, file_type, last_modified, page)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			c.ID,
			c.DocID,
			c.Library,
			c.Source,
			c.ContentHash,
			c.Title,
			c.Content,
			pgvector.NewVector(c.Embedding),
			c.ChunkIndex,
			createdAt,
			metadata,
			c.FileType,
			c.LastModified,
			c.Page,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// DeleteByDocID removes every chunk of a document and reports how many rows
// were deleted. Deleting an absent document is not an error.
func (r *ChunkRepository) DeleteByDocID(ctx context.Context, docID string) (int, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE doc_id = $1`, docID)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}

// FindLiveDocument returns the current document for a (source, library) pair.
// When the replace crash window has left duplicates behind, the newest one
// wins.
func (r *ChunkRepository) FindLiveDocument(ctx context.Context, source, library string) (*domain.LiveDocument, error) {
	var doc domain.LiveDocument
	err := r.db.QueryRow(ctx,
		`SELECT doc_id::text, content_hash, MIN(created_at)
		 FROM chunks
		 WHERE source = $1 AND library = $2
		 GROUP BY doc_id, content_hash
		 ORDER BY MIN(created_at) DESC
		 LIMIT 1`,
		source, library,
	).Scan(&doc.DocID, &doc.ContentHash, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// GetDocumentChunks returns a document's chunks in chunk_index order.
func (r *ChunkRepository) GetDocumentChunks(ctx context.Context, docID string) ([]*domain.ChunkRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id::text, doc_id::text, library, source, content_hash, title, content, chunk_index, created_at, metadata, file_type, last_modified, page
		 FROM chunks
		 WHERE doc_id = $1
		 ORDER BY chunk_index ASC`,
		docID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chunks, err := scanChunkRows(rows)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, domain.ErrDocumentNotFound
	}
	return chunks, nil
}

// ListDocuments aggregates chunk rows into per-document summaries, newest
// first. An empty library lists across all libraries.
func (r *ChunkRepository) ListDocuments(ctx context.Context, library string, limit, offset int) ([]*domain.DocumentInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT doc_id::text, source, title, library, content_hash, file_type,
		       MIN(created_at) AS created_at,
		       (array_agg(metadata ORDER BY chunk_index))[1] AS metadata,
		       COUNT(*) AS chunk_count
		FROM chunks`
	args := []any{}
	if library != "" {
		query += ` WHERE library = $1`
		args = append(args, library)
	}
	query += `
		GROUP BY doc_id, source, title, library, content_hash, file_type
		ORDER BY created_at DESC, doc_id DESC`
	args = append(args, limit, offset)
	if library != "" {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.DocumentInfo
	for rows.Next() {
		var d domain.DocumentInfo
		if err := rows.Scan(&d.DocID, &d.Source, &d.Title, &d.Library, &d.ContentHash, &d.FileType, &d.CreatedAt, &d.Metadata, &d.ChunkCount); err != nil {
			return nil, err
		}
		results = append(results, &d)
	}
	return results, rows.Err()
}

// CountDocuments counts distinct documents, optionally scoped to a library.
func (r *ChunkRepository) CountDocuments(ctx context.Context, library string) (int, error) {
	var count int
	var err error
	if library != "" {
		err = r.db.QueryRow(ctx, `SELECT COUNT(DISTINCT doc_id) FROM chunks WHERE library = $1`, library).Scan(&count)
	} else {
		err = r.db.QueryRow(ctx, `SELECT COUNT(DISTINCT doc_id) FROM chunks`).Scan(&count)
	}
	return count, err
}

// ListLibraries summarises every library that has at least one chunk.
func (r *ChunkRepository) ListLibraries(ctx context.Context) ([]*domain.LibraryInfo, error) {
	rows, err := r.db.Query(ctx,
		`SELECT library, COUNT(DISTINCT doc_id), COUNT(*)
		 FROM chunks
		 GROUP BY library
		 ORDER BY library ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.LibraryInfo
	for rows.Next() {
		var l domain.LibraryInfo
		if err := rows.Scan(&l.Library, &l.DocumentCount, &l.ChunkCount); err != nil {
			return nil, err
		}
		results = append(results, &l)
	}
	return results, rows.Err()
}

// SearchChunksSemantic ranks chunks by cosine distance to the query embedding.
func (r *ChunkRepository) SearchChunksSemantic(ctx context.Context, embedding []float32, filters service.SearchFilters, limit int) ([]*service.ChunkHit, error) {
	if limit <= 0 {
		limit = 20
	}

	vec := pgvector.NewVector(embedding)

	query := `
		SELECT id::text, doc_id::text, library, source, content_hash, title, content, chunk_index, created_at, metadata, file_type, last_modified, page,
		       1.0 / (1.0 + (embedding <=> $1)) AS score
		FROM chunks
		WHERE embedding IS NOT NULL`
	args := []any{vec}
	query, args = appendFilterClauses(query, args, filters)
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY embedding <=> $1 ASC, doc_id ASC, chunk_index ASC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunkHitRows(rows)
}

// SearchChunksLexical ranks chunks by full-text relevance using websearch
// query syntax.
func (r *ChunkRepository) SearchChunksLexical(ctx context.Context, queryText string, filters service.SearchFilters, limit int) ([]*service.ChunkHit, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id::text, doc_id::text, library, source, content_hash, title, content, chunk_index, created_at, metadata, file_type, last_modified, page,
		       ts_rank_cd(to_tsvector('english', content), websearch_to_tsquery('english', $1)) AS score
		FROM chunks
		WHERE to_tsvector('english', content) @@ websearch_to_tsquery('english', $1)`
	args := []any{queryText}
	query, args = appendFilterClauses(query, args, filters)
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY score DESC, doc_id ASC, chunk_index ASC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunkHitRows(rows)
}

// FindDuplicateSources reports (source, library) pairs that currently map to
// more than one document, doc IDs ordered newest first.
func (r *ChunkRepository) FindDuplicateSources(ctx context.Context) ([]*service.DuplicateSource, error) {
	rows, err := r.db.Query(ctx,
		`WITH docs AS (
			SELECT source, library, doc_id, MIN(created_at) AS created_at
			FROM chunks
			GROUP BY source, library, doc_id
		)
		SELECT source, library, array_agg(doc_id::text ORDER BY created_at DESC, doc_id DESC)
		FROM docs
		GROUP BY source, library
		HAVING COUNT(*) > 1`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*service.DuplicateSource
	for rows.Next() {
		var d service.DuplicateSource
		if err := rows.Scan(&d.Source, &d.Library, &d.DocIDs); err != nil {
			return nil, err
		}
		results = append(results, &d)
	}
	return results, rows.Err()
}

func appendFilterClauses(query string, args []any, filters service.SearchFilters) (string, []any) {
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		query += fmt.Sprintf(" AND %s = $%d", column, len(args))
	}
	add("library", filters.Library)
	add("source", filters.Source)
	add("file_type", filters.FileType)
	add("title", filters.Title)
	return query, args
}

func scanChunkRows(rows pgx.Rows) ([]*domain.ChunkRecord, error) {
	var results []*domain.ChunkRecord
	for rows.Next() {
		var c domain.ChunkRecord
		if err := rows.Scan(&c.ID, &c.DocID, &c.Library, &c.Source, &c.ContentHash, &c.Title, &c.Content, &c.ChunkIndex, &c.CreatedAt, &c.Metadata, &c.FileType, &c.LastModified, &c.Page); err != nil {
			return nil, err
		}
		results = append(results, &c)
	}
	return results, rows.Err()
}

func scanChunkHitRows(rows pgx.Rows) ([]*service.ChunkHit, error) {
	var results []*service.ChunkHit
	for rows.Next() {
		var hit service.ChunkHit
		c := &hit.Chunk
		if err := rows.Scan(&c.ID, &c.DocID, &c.Library, &c.Source, &c.ContentHash, &c.Title, &c.Content, &c.ChunkIndex, &c.CreatedAt, &c.Metadata, &c.FileType, &c.LastModified, &c.Page, &hit.Score); err != nil {
			return nil, err
		}
		results = append(results, &hit)
	}
	return results, rows.Err()
}
