package domain

import "time"

// DefaultLibrary is the library documents land in when the caller does not
// name one.
const DefaultLibrary = "default"

// ChunkRecord is one row in the chunks table: a single embedded segment of an
// ingested document. All rows sharing a DocID carry the same Source, Library,
// ContentHash, Title, CreatedAt, and Metadata; ChunkIndex values for a DocID
// form a contiguous range starting at 0.
type ChunkRecord struct {
	ID           string
	DocID        string
	Library      string
	Source       string
	ContentHash  string
	Title        string
	Content      string
	Embedding    []float32
	ChunkIndex   int
	CreatedAt    time.Time
	Metadata     map[string]string
	FileType     string
	LastModified string
	Page         int // 1-indexed page number, 0 when not applicable
}

// IngestStatus describes what the ingestion pipeline did with a document.
type IngestStatus string

const (
	IngestStatusIndexed  IngestStatus = "indexed"
	IngestStatusReplaced IngestStatus = "replaced"
	IngestStatusSkipped  IngestStatus = "skipped"
)

// DocumentInfo is a per-document aggregation over chunk rows, used by listing
// endpoints.
type DocumentInfo struct {
	DocID       string
	Source      string
	Title       string
	Library     string
	ContentHash string
	FileType    string
	CreatedAt   time.Time
	Metadata    map[string]string
	ChunkCount  int
}

// LibraryInfo summarises one library's contents.
type LibraryInfo struct {
	Library       string
	DocumentCount int
	ChunkCount    int
}

// LiveDocument identifies the current row set for a (source, library) dedup
// key.
type LiveDocument struct {
	DocID       string
	ContentHash string
	CreatedAt   time.Time
}
