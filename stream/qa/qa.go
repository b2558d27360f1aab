// Package qa implements Stream D: retrieval-augmented question answering
// over a single document. Chunks live in a per-request arena of the
// similarity index and are evicted when the request ends.
package qa

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/nevindra/docmind"
)

const (
	// DefaultQuery is used when the caller gives none.
	DefaultQuery = "What is this document?"
	// DefaultTopK is the number of chunks given to the answer prompt.
	DefaultTopK = 3
	// MinChunkChars is the trimmed length a paragraph must exceed to become a chunk.
	MinChunkChars = 50
)

const system = "You are a precise legal/document analyst."

// Payload is the data of a successful run.
type Payload struct {
	Answer                  string   `json:"answer"`
	RelevantContextSnippets []string `json:"relevant_context_snippets"`
}

// Stream runs Stream D. It is safe for concurrent use; every call works in
// its own index namespace.
type Stream struct {
	layout docmind.LayoutAnalyzer
	embed  docmind.EmbeddingProvider
	index  docmind.SimilarityIndex
	llm    docmind.Provider
	topK   int
	logger *slog.Logger
}

// Option configures a Stream.
type Option func(*Stream)

// WithTopK sets how many chunks are retrieved (default 3).
func WithTopK(k int) Option {
	return func(s *Stream) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option { return func(s *Stream) { s.logger = l } }

func New(layout docmind.LayoutAnalyzer, embed docmind.EmbeddingProvider, index docmind.SimilarityIndex, llm docmind.Provider, opts ...Option) *Stream {
	s := &Stream{layout: layout, embed: embed, index: index, llm: llm, topK: DefaultTopK, logger: docmind.NopLogger()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Process runs Extract → Chunk → Embed+Index → Retrieve → Answer. The
// request's index entries are evicted on every exit path.
func (s *Stream) Process(ctx context.Context, doc docmind.Document, query string) docmind.Result {
	start := time.Now()
	if strings.TrimSpace(query) == "" {
		query = DefaultQuery
	}

	content := s.extract(ctx, doc)
	chunks := Chunk(content)

	arena := docmind.AcquireArena(s.index, s.logger)
	defer arena.Release(ctx) //nolint:errcheck

	// One pinned embedder per request keeps chunk and query vectors in one space.
	embed := docmind.PinEmbedding(s.embed)
	vectors := s.embedChunks(ctx, embed, chunks)
	entries := make([]docmind.IndexEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = docmind.IndexEntry{ID: fmt.Sprintf("%s_%d", doc.Filename, i), Text: c}
		if vectors != nil {
			entries[i].Vector = vectors[i]
		}
	}
	if err := arena.Add(ctx, entries); err != nil {
		s.logger.Error("qa: index add failed", "filename", doc.Filename, "error", err)
		return docmind.Failure("Indexing failed: "+err.Error(), nil)
	}

	var qvec []float32
	if vecs, err := embed.Embed(ctx, []string{query}); err != nil || len(vecs) != 1 {
		s.logger.Warn("qa: query embedding failed, using text search", "error", err)
	} else {
		qvec = vecs[0]
	}
	hits, err := arena.Query(ctx, qvec, query, s.topK)
	if err != nil {
		s.logger.Error("qa: retrieval failed", "filename", doc.Filename, "error", err)
		return docmind.Failure("Retrieval failed: "+err.Error(), nil)
	}
	snippets := make([]string, len(hits))
	for i, h := range hits {
		snippets[i] = h.Text
	}

	user := fmt.Sprintf(`Answer the user's question based ONLY on the following context.

Context:
%s

Question: %s`, strings.Join(snippets, "\n---\n"), query)
	answer, err := docmind.Generate(ctx, s.llm, system, user)
	if err != nil {
		s.logger.Error("qa: answer failed", "filename", doc.Filename, "error", err)
		return docmind.Failure("Answer generation failed: "+err.Error(), nil)
	}

	s.logger.Info("qa: done", "filename", doc.Filename, "chunks", len(chunks),
		"vectors", vectors != nil, "retrieved", len(hits), "duration", time.Since(start))
	return docmind.Success("", Payload{Answer: answer, RelevantContextSnippets: snippets})
}

// extract returns the document text. Plain-text formats are decoded
// directly; everything else goes through layout analysis.
func (s *Stream) extract(ctx context.Context, doc docmind.Document) string {
	switch strings.ToLower(filepath.Ext(doc.Filename)) {
	case ".txt", ".md", ".csv":
		return DecodeText(doc.Content)
	}
	lay, err := s.layout.Analyze(ctx, doc.Content)
	if err != nil || lay.Content == "" {
		s.logger.Warn("qa: extraction failed", "filename", doc.Filename, "error", err)
		return fmt.Sprintf("Error: Could not extract content from %s.", doc.Filename)
	}
	return lay.Content
}

// embedChunks embeds one chunk at a time. Any failure drops all vectors so
// the index falls back to text relevance.
func (s *Stream) embedChunks(ctx context.Context, embed docmind.EmbeddingProvider, chunks []string) [][]float32 {
	out := make([][]float32, 0, len(chunks))
	for _, c := range chunks {
		vecs, err := embed.Embed(ctx, []string{c})
		if err != nil || len(vecs) != 1 {
			s.logger.Warn("qa: chunk embedding failed, indexing text only", "embedding", embed.Name(), "error", err)
			return nil
		}
		out = append(out, vecs[0])
	}
	return out
}

// DecodeText decodes UTF-8, falling back to ISO-8859-1 for anything else.
func DecodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// Chunk splits text on blank lines and keeps paragraphs whose trimmed
// length exceeds MinChunkChars. If none qualifies the whole text is one chunk.
func Chunk(text string) []string {
	var chunks []string
	for _, p := range strings.Split(text, "\n\n") {
		if utf8.RuneCountInString(strings.TrimSpace(p)) > MinChunkChars {
			chunks = append(chunks, p)
		}
	}
	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}
