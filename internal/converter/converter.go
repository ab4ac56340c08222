package converter

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"

	"github.com/corpusworks/corpusd/internal/domain"
)

// plaintextExtensions pass through without conversion.
var plaintextExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".text":     true,
	".csv":      true,
	".json":     true,
	".yaml":     true,
	".yml":      true,
	".toml":     true,
	".rst":      true,
	".log":      true,
}

// docconvMimeTypes maps binary document extensions to the MIME types docconv
// converts.
var docconvMimeTypes = map[string]string{
	".pdf":   "application/pdf",
	".docx":  "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".doc":   "application/msword",
	".odt":   "application/vnd.oasis.opendocument.text",
	".rtf":   "application/rtf",
	".html":  "text/html",
	".htm":   "text/html",
	".xml":   "text/xml",
	".pptx":  "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".pages": "application/vnd.apple.pages",
}

// Converter extracts plain text from fetched document bytes.
type Converter struct {
	useReadability bool
}

func New(useReadability bool) *Converter {
	return &Converter{useReadability: useReadability}
}

// Supported reports whether a source can be converted. File paths are gated
// on their extension; http(s) URLs are always fetchable because most web
// pages carry no meaningful suffix.
func (c *Converter) Supported(source string) bool {
	if isHTTPURL(source) {
		return true
	}
	ext := normalizedExt(source)
	return plaintextExtensions[ext] || docconvMimeTypes[ext] != ""
}

// FileType returns the file_type attribute stored on chunks: "url" for web
// sources, otherwise the normalized extension without the leading dot.
func (c *Converter) FileType(source string) string {
	if isHTTPURL(source) {
		return "url"
	}
	return strings.TrimPrefix(normalizedExt(source), ".")
}

// Convert turns raw document bytes into plain text. Plaintext formats pass
// through as UTF-8; binary formats go through docconv; URL bodies with no
// recognized extension are treated as HTML. Unknown extensions on file paths
// get an UNSUPPORTED_FORMAT error, extraction that yields nothing gets
// NO_CONTENT.
func (c *Converter) Convert(source string, data []byte) (string, error) {
	ext := normalizedExt(source)

	if plaintextExtensions[ext] {
		if !utf8.Valid(data) {
			return "", domain.NoContentError(fmt.Sprintf("%s is not valid UTF-8", source))
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			return "", domain.NoContentError(fmt.Sprintf("no text content in %s", source))
		}
		return text, nil
	}

	mimeType, ok := docconvMimeTypes[ext]
	if !ok {
		if !isHTTPURL(source) {
			return "", domain.UnsupportedFormatError(fmt.Sprintf("unsupported file type %q for %s", ext, source))
		}
		mimeType = "text/html"
	}

	res, err := docconv.Convert(bytes.NewReader(data), mimeType, c.useReadability)
	if err != nil {
		return "", domain.NoContentError(fmt.Sprintf("failed to extract text from %s: %v", source, err))
	}

	text := strings.TrimSpace(res.Body)
	if text == "" {
		return "", domain.NoContentError(fmt.Sprintf("no text content in %s", source))
	}
	return text, nil
}

func isHTTPURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func normalizedExt(source string) string {
	// Strip URL query/fragment so https sources resolve their extension.
	if i := strings.IndexAny(source, "?#"); i >= 0 {
		source = source[:i]
	}
	return strings.ToLower(path.Ext(source))
}
