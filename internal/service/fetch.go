package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/corpusworks/corpusd/internal/domain"
	"github.com/corpusworks/corpusd/internal/storage"
)

// FetchResult carries the raw bytes of a source plus whatever modification
// timestamp the transport exposed.
type FetchResult struct {
	Data         []byte
	LastModified string
}

// ObjectStore reads documents from S3-compatible storage.
type ObjectStore interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	HeadObject(ctx context.Context, bucket, key string) (*storage.ObjectMetadata, error)
}

// FetcherConfig controls transport behaviour.
type FetcherConfig struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
}

// Fetcher resolves a source string to document bytes. Sources are local
// paths, file:// and http(s):// URLs, or s3://bucket/key URIs.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	objects    ObjectStore
}

func NewFetcher(cfg FetcherConfig, objects ObjectStore) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "corpusd/1.0"
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		maxBytes:   cfg.MaxBytes,
		objects:    objects,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, source string) (*FetchResult, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return f.fetchHTTP(ctx, source)
	case strings.HasPrefix(source, "s3://"):
		return f.fetchS3(ctx, source)
	case strings.HasPrefix(source, "file://"):
		return f.fetchFile(strings.TrimPrefix(source, "file://"))
	default:
		return f.fetchFile(source)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, url string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.FetchError(fmt.Sprintf("invalid URL %s", url), err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, domain.FetchError(fmt.Sprintf("failed to fetch %s", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.FetchError(fmt.Sprintf("failed to fetch %s: status %d", url, resp.StatusCode), nil)
	}

	var reader io.Reader = resp.Body
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, domain.FetchError(fmt.Sprintf("failed to read %s", url), err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, domain.FetchError(fmt.Sprintf("%s exceeds %d bytes", url, f.maxBytes), nil)
	}

	return &FetchResult{
		Data:         data,
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

func (f *Fetcher) fetchS3(ctx context.Context, uri string) (*FetchResult, error) {
	if f.objects == nil {
		return nil, domain.FetchError(fmt.Sprintf("s3 source %s requires S3 credentials", uri), nil)
	}

	trimmed := strings.TrimPrefix(uri, "s3://")
	bucket, key, ok := strings.Cut(trimmed, "/")
	if !ok || bucket == "" || key == "" {
		return nil, domain.FetchError(fmt.Sprintf("invalid s3 URI %s, want s3://bucket/key", uri), nil)
	}

	var lastModified string
	if meta, err := f.objects.HeadObject(ctx, bucket, key); err == nil && !meta.LastModified.IsZero() {
		lastModified = meta.LastModified.UTC().Format(time.RFC3339)
	}

	data, err := f.objects.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, domain.FetchError(fmt.Sprintf("failed to fetch %s", uri), err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, domain.FetchError(fmt.Sprintf("%s exceeds %d bytes", uri, f.maxBytes), nil)
	}

	return &FetchResult{Data: data, LastModified: lastModified}, nil
}

func (f *Fetcher) fetchFile(path string) (*FetchResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, domain.FetchError(fmt.Sprintf("failed to stat %s", path), err)
	}
	if info.IsDir() {
		return nil, domain.FetchError(fmt.Sprintf("%s is a directory", path), nil)
	}
	if f.maxBytes > 0 && info.Size() > f.maxBytes {
		return nil, domain.FetchError(fmt.Sprintf("%s exceeds %d bytes", path, f.maxBytes), nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.FetchError(fmt.Sprintf("failed to read %s", path), err)
	}

	return &FetchResult{
		Data:         data,
		LastModified: info.ModTime().UTC().Format(time.RFC3339),
	}, nil
}
