package service

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// separators are tried in order when splitting oversized text. The empty
// string means a hard token-window split.
var separators = []string{"\n\n", "\n", " ", ""}

// ChunkConfig controls token-based chunking for document embeddings.
type ChunkConfig struct {
	SizeTokens    int
	OverlapTokens int
	MinTokens     int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		SizeTokens:    512,
		OverlapTokens: 64,
		MinTokens:     50,
	}
}

// Chunker splits document text into embedding-sized chunks, measured in
// cl100k_base tokens. Splitting prefers paragraph then line then word
// boundaries before falling back to raw token windows.
type Chunker struct {
	enc *tiktoken.Tiktoken
	cfg ChunkConfig
}

func NewChunker(cfg ChunkConfig) (*Chunker, error) {
	if cfg.SizeTokens <= 0 {
		cfg = DefaultChunkConfig()
	}
	if cfg.OverlapTokens < 0 {
		cfg.OverlapTokens = 0
	}
	if cfg.OverlapTokens >= cfg.SizeTokens {
		cfg.OverlapTokens = cfg.SizeTokens / 4
	}

	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &Chunker{enc: enc, cfg: cfg}, nil
}

// Chunk splits text into chunks of at most SizeTokens tokens. Chunks shorter
// than MinTokens are dropped, except when the whole text fits in one chunk.
func (c *Chunker) Chunk(text string) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}

	if c.countTokens(clean) <= c.cfg.SizeTokens {
		return []string{clean}
	}

	raw := c.split(clean, separators)

	chunks := make([]string, 0, len(raw))
	for _, chunk := range raw {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		if c.cfg.MinTokens > 0 && c.countTokens(chunk) < c.cfg.MinTokens {
			continue
		}
		chunks = append(chunks, chunk)
	}

	// Everything fell under the minimum; keep the text as one chunk rather
	// than losing it.
	if len(chunks) == 0 {
		return []string{clean}
	}
	return chunks
}

func (c *Chunker) countTokens(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

func (c *Chunker) split(text string, seps []string) []string {
	sep := seps[len(seps)-1]
	rest := []string{}
	for i, s := range seps {
		if s == "" {
			sep = ""
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = seps[i+1:]
			break
		}
	}

	if sep == "" {
		return c.splitByTokens(text)
	}

	var final []string
	var pending []string
	for _, piece := range strings.Split(text, sep) {
		if c.countTokens(piece) <= c.cfg.SizeTokens {
			pending = append(pending, piece)
			continue
		}
		final = append(final, c.merge(pending, sep)...)
		pending = nil
		final = append(final, c.split(piece, rest)...)
	}
	final = append(final, c.merge(pending, sep)...)
	return final
}

// merge packs small pieces back into chunks up to SizeTokens, carrying
// OverlapTokens worth of trailing pieces into the next chunk.
func (c *Chunker) merge(pieces []string, sep string) []string {
	if len(pieces) == 0 {
		return nil
	}

	sepTokens := c.countTokens(sep)

	var chunks []string
	var window []string
	total := 0

	flush := func() {
		if len(window) == 0 {
			return
		}
		chunk := strings.TrimSpace(strings.Join(window, sep))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, piece := range pieces {
		pieceTokens := c.countTokens(piece)
		if total > 0 && total+sepTokens+pieceTokens > c.cfg.SizeTokens {
			flush()
			// Drop leading pieces until the retained tail fits the overlap.
			for total > c.cfg.OverlapTokens && len(window) > 0 {
				total -= c.countTokens(window[0]) + sepTokens
				window = window[1:]
			}
			if total < 0 {
				total = 0
			}
		}
		window = append(window, piece)
		if total > 0 {
			total += sepTokens
		}
		total += pieceTokens
	}
	flush()
	return chunks
}

// splitByTokens is the last resort for text without any usable separator:
// fixed token windows stepping by size minus overlap.
func (c *Chunker) splitByTokens(text string) []string {
	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) <= c.cfg.SizeTokens {
		return []string{text}
	}

	step := c.cfg.SizeTokens - c.cfg.OverlapTokens
	if step <= 0 {
		step = c.cfg.SizeTokens
	}

	var chunks []string
	for start := 0; start < len(tokens); start += step {
		end := start + c.cfg.SizeTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, c.enc.Decode(tokens[start:end]))
		if end == len(tokens) {
			break
		}
	}
	return chunks
}
