package docmind

import (
	"context"
	"log/slog"
	"time"
)

// IndexEntry is one chunk stored in a SimilarityIndex. Vector may be nil
// when embedding failed; such entries are still retrievable by text.
type IndexEntry struct {
	ID     string    `json:"id"`
	Text   string    `json:"text"`
	Vector []float32 `json:"-"`
}

// ScoredEntry is an IndexEntry with its relevance score.
type ScoredEntry struct {
	IndexEntry
	Score float32 `json:"score"`
}

// SimilarityIndex stores chunks per namespace and returns the nearest ones.
//
// Query ranks by cosine similarity when vector is non-nil and the namespace
// holds vectors; otherwise it ranks by text relevance to text. Either way it
// returns min(k, n) entries for a namespace holding n entries, filling any
// shortfall with unranked entries in insertion order.
type SimilarityIndex interface {
	Init(ctx context.Context) error
	Add(ctx context.Context, ns string, entries []IndexEntry) error
	Query(ctx context.Context, ns string, vector []float32, text string, k int) ([]ScoredEntry, error)
	Delete(ctx context.Context, ns string, ids []string) error
	DeleteNamespace(ctx context.Context, ns string) error
	Count(ctx context.Context, ns string) (int, error)
	Close() error
}

// Arena is a per-request view of a SimilarityIndex. Everything added through
// it lives in a private namespace, so concurrent requests never see each
// other's entries even when ids collide. Release evicts the namespace.
type Arena struct {
	idx    SimilarityIndex
	ns     string
	ids    []string
	logger *slog.Logger
}

// AcquireArena opens a fresh namespace on idx. Callers must defer Release.
func AcquireArena(idx SimilarityIndex, logger *slog.Logger) *Arena {
	if logger == nil {
		logger = nopLogger
	}
	return &Arena{idx: idx, ns: NewID(), logger: logger}
}

// Namespace returns the arena's namespace key.
func (a *Arena) Namespace() string { return a.ns }

// IDs returns the ids added so far, in insertion order.
func (a *Arena) IDs() []string { return append([]string(nil), a.ids...) }

func (a *Arena) Add(ctx context.Context, entries []IndexEntry) error {
	if err := a.idx.Add(ctx, a.ns, entries); err != nil {
		return err
	}
	for _, e := range entries {
		a.ids = append(a.ids, e.ID)
	}
	return nil
}

func (a *Arena) Query(ctx context.Context, vector []float32, text string, k int) ([]ScoredEntry, error) {
	return a.idx.Query(ctx, a.ns, vector, text, k)
}

// Release removes every entry added through the arena. It runs on a context
// detached from ctx's cancellation so eviction still happens when the
// request that owned the arena was cancelled.
func (a *Arena) Release(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	start := time.Now()
	if err := a.idx.DeleteNamespace(ctx, a.ns); err != nil {
		a.logger.Error("arena release failed", "namespace", a.ns, "entries", len(a.ids), "error", err)
		return err
	}
	a.logger.Debug("arena released", "namespace", a.ns, "entries", len(a.ids), "duration", time.Since(start))
	return nil
}
