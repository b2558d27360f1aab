package index

import (
	"context"
	"sync"

	"github.com/nevindra/docmind"
)

// Memory is an in-process SimilarityIndex with brute-force scoring. It is
// the default when no database is configured.
type Memory struct {
	mu     sync.RWMutex
	spaces map[string][]docmind.IndexEntry
}

// NewMemory creates an empty Memory index.
func NewMemory() *Memory {
	return &Memory{spaces: make(map[string][]docmind.IndexEntry)}
}

func (m *Memory) Init(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }

// Add appends entries; an entry whose id already exists in ns replaces it in place.
func (m *Memory) Add(_ context.Context, ns string, entries []docmind.IndexEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	space := m.spaces[ns]
	for _, e := range entries {
		e.Vector = append([]float32(nil), e.Vector...)
		replaced := false
		for i := range space {
			if space[i].ID == e.ID {
				space[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			space = append(space, e)
		}
	}
	m.spaces[ns] = space
	return nil
}

func (m *Memory) Query(ctx context.Context, ns string, vector []float32, text string, k int) ([]docmind.ScoredEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	entries := append([]docmind.IndexEntry(nil), m.spaces[ns]...)
	m.mu.RUnlock()

	if len(vector) > 0 && HasVectors(entries) {
		return RankByVector(entries, vector, k), nil
	}
	return RankByText(entries, text, k), nil
}

func (m *Memory) Delete(_ context.Context, ns string, ids []string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.spaces[ns][:0]
	for _, e := range m.spaces[ns] {
		if !drop[e.ID] {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(m.spaces, ns)
		return nil
	}
	m.spaces[ns] = kept
	return nil
}

func (m *Memory) DeleteNamespace(_ context.Context, ns string) error {
	m.mu.Lock()
	delete(m.spaces, ns)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Count(_ context.Context, ns string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.spaces[ns]), nil
}

// Namespaces returns the number of live namespaces.
func (m *Memory) Namespaces() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.spaces)
}

var _ docmind.SimilarityIndex = (*Memory)(nil)
