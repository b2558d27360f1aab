// Package sqlite implements docmind.SimilarityIndex using pure-Go SQLite
// with in-process brute-force vector search and an FTS5 text index. Zero CGO
// required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nevindra/docmind"
	"github.com/nevindra/docmind/index"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Option configures an Index.
type Option func(*Index)

// WithLogger sets a structured logger. The index logs every operation at
// debug level with timing and row counts.
func WithLogger(l *slog.Logger) Option {
	return func(s *Index) { s.logger = l }
}

// Index implements docmind.SimilarityIndex backed by a SQLite file.
// Embeddings are stored as JSON text.
type Index struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ docmind.SimilarityIndex = (*Index)(nil)

// New opens an Index at dbPath (":memory:" for a private in-memory database).
// The pool is limited to one connection so all goroutines serialize through
// it and concurrent writers never hit SQLITE_BUSY.
func New(dbPath string, opts ...Option) *Index {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Index{db: db, logger: docmind.NopLogger()}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: index opened", "path", dbPath)
	return s
}

// Init creates the entry table and its FTS5 shadow.
func (s *Index) Init(ctx context.Context) error {
	start := time.Now()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS index_entries (
			namespace TEXT NOT NULL,
			id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding TEXT,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (namespace, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_index_entries_seq ON index_entries(namespace, seq)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS index_fts USING fts5(namespace UNINDEXED, entry_id UNINDEXED, content)`,
	}
	for _, ddl := range stmts {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("sqlite: init: %w", err)
		}
	}
	s.logger.Debug("sqlite: init completed", "duration", time.Since(start))
	return nil
}

// Add inserts entries into ns. An existing id keeps its position and takes
// the new text and vector. The FTS index is kept in sync.
func (s *Index) Add(ctx context.Context, ns string, entries []docmind.IndexEntry) error {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var next int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), -1) + 1 FROM index_entries WHERE namespace = ?`, ns,
	).Scan(&next); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	now := time.Now().Unix()
	for i, e := range entries {
		var embJSON *string
		if len(e.Vector) > 0 {
			v := serializeEmbedding(e.Vector)
			embJSON = &v
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO index_entries (namespace, id, seq, content, embedding, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (namespace, id) DO UPDATE SET
			   content = excluded.content,
			   embedding = excluded.embedding`,
			ns, e.ID, next+int64(i), e.Text, embJSON, now,
		); err != nil {
			s.logger.Error("sqlite: insert entry failed", "namespace", ns, "id", e.ID, "error", err)
			return fmt.Errorf("insert entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM index_fts WHERE namespace = ? AND entry_id = ?`, ns, e.ID); err != nil {
			return fmt.Errorf("delete entry fts: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO index_fts(namespace, entry_id, content) VALUES (?, ?, ?)`, ns, e.ID, e.Text,
		); err != nil {
			return fmt.Errorf("insert entry fts: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	s.logger.Debug("sqlite: add ok", "namespace", ns, "entries", len(entries), "duration", time.Since(start))
	return nil
}

// Query ranks by cosine over stored vectors when vector is set and the
// namespace holds vectors, otherwise by FTS5 bm25 over text.
func (s *Index) Query(ctx context.Context, ns string, vector []float32, text string, k int) ([]docmind.ScoredEntry, error) {
	start := time.Now()
	all, err := s.entries(ctx, ns)
	if err != nil {
		return nil, err
	}

	var out []docmind.ScoredEntry
	mode := "vector"
	if len(vector) > 0 && index.HasVectors(all) {
		out = index.RankByVector(all, vector, k)
	} else {
		mode = "text"
		ranked, err := s.searchText(ctx, ns, text, k, all)
		if err != nil {
			return nil, err
		}
		out = index.Pad(ranked, all, k)
	}
	s.logger.Debug("sqlite: query ok", "namespace", ns, "mode", mode, "scanned", len(all),
		"returned", len(out), "duration", time.Since(start))
	return out, nil
}

// entries loads ns in insertion order.
func (s *Index) entries(ctx context.Context, ns string) ([]docmind.IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, embedding FROM index_entries WHERE namespace = ? ORDER BY seq`, ns)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	defer rows.Close()

	var out []docmind.IndexEntry
	for rows.Next() {
		var e docmind.IndexEntry
		var embJSON sql.NullString
		if err := rows.Scan(&e.ID, &e.Text, &embJSON); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if embJSON.Valid {
			e.Vector, _ = deserializeEmbedding(embJSON.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Index) searchText(ctx context.Context, ns, text string, k int, all []docmind.IndexEntry) ([]docmind.ScoredEntry, error) {
	q := matchQuery(text)
	if q == "" || k <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_id, rank FROM index_fts
		 WHERE index_fts MATCH ? AND namespace = ?
		 ORDER BY rank LIMIT ?`, q, ns, k)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]docmind.IndexEntry, len(all))
	for _, e := range all {
		byID[e.ID] = e
	}
	var out []docmind.ScoredEntry
	for rows.Next() {
		var id string
		var rank float64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, fmt.Errorf("scan fts: %w", err)
		}
		e, ok := byID[id]
		if !ok {
			continue
		}
		// FTS5 rank is negative (closer to 0 = worse). Use -rank as score.
		score := float32(-rank)
		if score < 0 {
			score = 0
		}
		out = append(out, docmind.ScoredEntry{IndexEntry: e, Score: score})
	}
	return out, rows.Err()
}

// matchQuery turns free text into an FTS5 OR query of quoted terms.
func matchQuery(text string) string {
	terms := index.Terms(text)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " OR ")
}

func (s *Index) Delete(ctx context.Context, ns string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM index_entries WHERE namespace = ? AND id = ?`, ns, id); err != nil {
			return fmt.Errorf("delete entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM index_fts WHERE namespace = ? AND entry_id = ?`, ns, id); err != nil {
			return fmt.Errorf("delete entry fts: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Index) DeleteNamespace(ctx context.Context, ns string) error {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	res, err := tx.ExecContext(ctx, `DELETE FROM index_entries WHERE namespace = ?`, ns)
	if err != nil {
		return fmt.Errorf("delete namespace: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_fts WHERE namespace = ?`, ns); err != nil {
		return fmt.Errorf("delete namespace fts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	n, _ := res.RowsAffected()
	s.logger.Debug("sqlite: namespace deleted", "namespace", ns, "entries", n, "duration", time.Since(start))
	return nil
}

func (s *Index) Count(ctx context.Context, ns string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM index_entries WHERE namespace = ?`, ns).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Index) Close() error {
	return s.db.Close()
}

// serializeEmbedding converts []float32 to a JSON array string.
func serializeEmbedding(embedding []float32) string {
	data, _ := json.Marshal(embedding)
	return string(data)
}

// deserializeEmbedding parses a JSON array string back to []float32.
func deserializeEmbedding(s string) ([]float32, error) {
	var v []float32
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}
