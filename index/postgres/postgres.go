// Package postgres implements docmind.SimilarityIndex on PostgreSQL with
// pgvector for cosine similarity and tsvector for text relevance.
//
// The Index accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nevindra/docmind"
	"github.com/nevindra/docmind/index"
)

// Index implements docmind.SimilarityIndex backed by PostgreSQL.
type Index struct {
	pool   *pgxpool.Pool
	cfg    pgConfig
	logger *slog.Logger
}

type pgConfig struct {
	embeddingDimension int    // 0 = untyped vector
	textConfig         string // text search configuration, default "english"
}

// Option configures an Index.
type Option func(*Index)

// WithEmbeddingDimension sets the vector column dimension (e.g. 1536). Only
// affects new table creation.
func WithEmbeddingDimension(dim int) Option {
	return func(s *Index) { s.cfg.embeddingDimension = dim }
}

// WithTextSearchConfig sets the text search configuration (default
// "english"). Names other than lower-case letters and underscores are ignored.
func WithTextSearchConfig(name string) Option {
	return func(s *Index) {
		if configRE.MatchString(name) {
			s.cfg.textConfig = name
		}
	}
}

var configRE = regexp.MustCompile(`^[a-z_]+$`)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Index) { s.logger = l }
}

var _ docmind.SimilarityIndex = (*Index)(nil)

// New creates an Index using an existing pool.
func New(pool *pgxpool.Pool, opts ...Option) *Index {
	s := &Index{pool: pool, cfg: pgConfig{textConfig: "english"}, logger: docmind.NopLogger()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Connect opens a pool for dsn. The caller closes it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

func (s *Index) vectorType() string {
	if s.cfg.embeddingDimension > 0 {
		return fmt.Sprintf("vector(%d)", s.cfg.embeddingDimension)
	}
	return "vector"
}

// Init creates the pgvector extension, the entry table and its indexes.
// Safe to call multiple times.
func (s *Index) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS index_entries (
			namespace TEXT NOT NULL,
			id TEXT NOT NULL,
			seq BIGSERIAL,
			content TEXT NOT NULL,
			embedding ` + s.vectorType() + `,
			created_at BIGINT NOT NULL,
			PRIMARY KEY (namespace, id)
		)`,
		`CREATE INDEX IF NOT EXISTS index_entries_seq_idx ON index_entries(namespace, seq)`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS index_entries_fts_idx ON index_entries USING gin(to_tsvector('%s', content))`, s.cfg.textConfig),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}
	return nil
}

// Add upserts entries in one batch. An existing id keeps its position.
func (s *Index) Add(ctx context.Context, ns string, entries []docmind.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().Unix()
	batch := &pgx.Batch{}
	for _, e := range entries {
		var emb *string
		if len(e.Vector) > 0 {
			v := serializeEmbedding(e.Vector)
			emb = &v
		}
		batch.Queue(
			`INSERT INTO index_entries (namespace, id, content, embedding, created_at)
			 VALUES ($1, $2, $3, $4::vector, $5)
			 ON CONFLICT (namespace, id) DO UPDATE SET
			   content = EXCLUDED.content,
			   embedding = EXCLUDED.embedding`,
			ns, e.ID, e.Text, emb, now)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert entry: %w", err)
		}
	}
	s.logger.Debug("postgres: add ok", "namespace", ns, "entries", len(entries))
	return nil
}

// Query ranks with pgvector's cosine distance when vector is set and the
// namespace holds vectors, otherwise with ts_rank.
func (s *Index) Query(ctx context.Context, ns string, vector []float32, text string, k int) ([]docmind.ScoredEntry, error) {
	if k <= 0 {
		return nil, nil
	}
	var ranked []docmind.ScoredEntry
	var err error
	if len(vector) > 0 {
		ranked, err = s.searchVector(ctx, ns, vector, k)
		if err != nil {
			return nil, err
		}
	}
	if len(ranked) == 0 {
		ranked, err = s.searchText(ctx, ns, text, k)
		if err != nil {
			return nil, err
		}
	}
	if len(ranked) >= k {
		return ranked[:k], nil
	}
	all, err := s.entries(ctx, ns, k+len(ranked))
	if err != nil {
		return nil, err
	}
	return index.Pad(ranked, all, k), nil
}

func (s *Index) searchVector(ctx context.Context, ns string, vector []float32, k int) ([]docmind.ScoredEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, content, 1 - (embedding <=> $2::vector) AS score
		 FROM index_entries
		 WHERE namespace = $1 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $2::vector, seq
		 LIMIT $3`,
		ns, serializeEmbedding(vector), k)
	if err != nil {
		return nil, fmt.Errorf("postgres: vector search: %w", err)
	}
	return scanScored(rows)
}

func (s *Index) searchText(ctx context.Context, ns, text string, k int) ([]docmind.ScoredEntry, error) {
	q := tsQuery(text)
	if q == "" {
		return nil, nil
	}
	cfg := s.cfg.textConfig
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT id, content, ts_rank(to_tsvector('%[1]s', content), to_tsquery('%[1]s', $2)) AS score
		 FROM index_entries
		 WHERE namespace = $1 AND to_tsvector('%[1]s', content) @@ to_tsquery('%[1]s', $2)
		 ORDER BY score DESC, seq
		 LIMIT $3`, cfg),
		ns, q, k)
	if err != nil {
		return nil, fmt.Errorf("postgres: text search: %w", err)
	}
	return scanScored(rows)
}

func scanScored(rows pgx.Rows) ([]docmind.ScoredEntry, error) {
	defer rows.Close()
	var out []docmind.ScoredEntry
	for rows.Next() {
		var e docmind.ScoredEntry
		if err := rows.Scan(&e.ID, &e.Text, &e.Score); err != nil {
			return nil, fmt.Errorf("postgres: scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// entries returns up to limit entries of ns in insertion order.
func (s *Index) entries(ctx context.Context, ns string, limit int) ([]docmind.IndexEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, content FROM index_entries WHERE namespace = $1 ORDER BY seq LIMIT $2`, ns, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: load entries: %w", err)
	}
	defer rows.Close()
	var out []docmind.IndexEntry
	for rows.Next() {
		var e docmind.IndexEntry
		if err := rows.Scan(&e.ID, &e.Text); err != nil {
			return nil, fmt.Errorf("postgres: scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Index) Delete(ctx context.Context, ns string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM index_entries WHERE namespace = $1 AND id = ANY($2)`, ns, ids)
	if err != nil {
		return fmt.Errorf("postgres: delete entries: %w", err)
	}
	return nil
}

func (s *Index) DeleteNamespace(ctx context.Context, ns string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM index_entries WHERE namespace = $1`, ns)
	if err != nil {
		return fmt.Errorf("postgres: delete namespace: %w", err)
	}
	s.logger.Debug("postgres: namespace deleted", "namespace", ns, "entries", tag.RowsAffected())
	return nil
}

func (s *Index) Count(ctx context.Context, ns string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM index_entries WHERE namespace = $1`, ns).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count: %w", err)
	}
	return n, nil
}

// Close is a no-op. The caller owns the pool and manages its lifecycle.
func (s *Index) Close() error {
	return nil
}

// serializeEmbedding converts []float32 to a string like "[0.1,0.2,0.3]"
// suitable for pgvector's text input format.
func serializeEmbedding(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// tsQuery builds an OR tsquery from the letter/digit terms of text.
func tsQuery(text string) string {
	return strings.Join(index.Terms(text), " | ")
}
