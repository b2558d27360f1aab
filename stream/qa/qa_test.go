package qa

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nevindra/docmind"
	"github.com/nevindra/docmind/index"
	"github.com/nevindra/docmind/internal/testutil"
	"github.com/nevindra/docmind/provider/offline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contract = `This Agreement is entered into by the parties named below on the effective date.

The refund window is thirty days from delivery, after which no refund is possible.

Termination of this agreement requires ninety days written notice by either party.

short line

Liability of either party is limited to the fees paid in the preceding twelve months.`

func TestChunk(t *testing.T) {
	chunks := Chunk(contract)
	require.Len(t, chunks, 4)
	assert.True(t, strings.HasPrefix(chunks[1], "The refund window"))

	assert.Equal(t, []string{"tiny"}, Chunk("tiny"))
	assert.Equal(t, []string{"a\n\nb"}, Chunk("a\n\nb"))
	// exactly 50 trimmed characters is not enough
	fifty := strings.Repeat("x", 50)
	assert.Equal(t, []string{"  " + fifty + "  \n\nz"}, Chunk("  "+fifty+"  \n\nz"))
	assert.Equal(t, []string{" " + fifty + "y"}, Chunk(" "+fifty+"y"))
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, "café", DecodeText([]byte("café")))
	assert.Equal(t, "café", DecodeText([]byte{'c', 'a', 'f', 0xE9}))
}

func TestProcess_AnswersFromTopChunks(t *testing.T) {
	idx := index.NewMemory()
	llm := testutil.NewCompletion("Thirty days.")
	emb := &testutil.Embedding{}
	s := New(&testutil.Layout{}, emb, idx, llm)

	res := s.Process(context.Background(), docmind.Document{Filename: "contract.txt", Content: []byte(contract)}, "How long is the refund window?")

	require.Equal(t, docmind.StatusSuccess, res.Status, res.Message)
	p := res.Data.(Payload)
	assert.Equal(t, "Thirty days.", p.Answer)
	assert.Len(t, p.RelevantContextSnippets, 3)
	assert.Equal(t, 5, emb.Calls(), "one call per chunk plus the query")

	req := llm.Requests()[0]
	assert.Equal(t, "You are a precise legal/document analyst.", req.Messages[0].Content)
	assert.Contains(t, req.Messages[1].Content, "Answer the user's question based ONLY on the following context.")
	assert.Contains(t, req.Messages[1].Content, strings.Join(p.RelevantContextSnippets, "\n---\n"))
	assert.Contains(t, req.Messages[1].Content, "Question: How long is the refund window?")

	assert.Zero(t, idx.Namespaces(), "arena must be evicted")
}

func TestProcess_TextFallbackWhenEmbeddingFails(t *testing.T) {
	idx := index.NewMemory()
	llm := testutil.NewCompletion("ok")
	s := New(&testutil.Layout{}, &testutil.Embedding{Err: errors.New("no key")}, idx, llm, WithTopK(1))

	res := s.Process(context.Background(), docmind.Document{Filename: "contract.md", Content: []byte(contract)}, "termination notice")

	require.Equal(t, docmind.StatusSuccess, res.Status, res.Message)
	p := res.Data.(Payload)
	require.Len(t, p.RelevantContextSnippets, 1)
	assert.True(t, strings.HasPrefix(p.RelevantContextSnippets[0], "Termination"))
	assert.Zero(t, idx.Namespaces())
}

func TestProcess_PartialEmbeddingFailureNeverMixesSpaces(t *testing.T) {
	idx := &recordingIndex{Memory: index.NewMemory()}
	remote := &testutil.Embedding{FailOn: 2}
	emb := docmind.NewFallbackEmbedding(nil, remote, offline.NewHashing(256))
	s := New(&testutil.Layout{}, emb, idx, testutil.NewCompletion("ok"), WithTopK(1))

	res := s.Process(context.Background(), docmind.Document{Filename: "contract.txt", Content: []byte(contract)}, "refund window")

	require.Equal(t, docmind.StatusSuccess, res.Status, res.Message)
	require.Len(t, idx.added, 4)
	for _, e := range idx.added {
		assert.Nil(t, e.Vector, e.ID)
	}
	snippets := res.Data.(Payload).RelevantContextSnippets
	require.Len(t, snippets, 1)
	assert.True(t, strings.HasPrefix(snippets[0], "The refund window"))
}

func TestProcess_FallbackUsedForWholeRequest(t *testing.T) {
	idx := &recordingIndex{Memory: index.NewMemory()}
	remote := &testutil.Embedding{Err: errors.New("quota")}
	s := New(&testutil.Layout{}, docmind.NewFallbackEmbedding(nil, remote, offline.NewHashing(64)), idx, testutil.NewCompletion("ok"))

	res := s.Process(context.Background(), docmind.Document{Filename: "contract.txt", Content: []byte(contract)}, "q")

	require.Equal(t, docmind.StatusSuccess, res.Status, res.Message)
	require.Len(t, idx.added, 4)
	for _, e := range idx.added {
		assert.Len(t, e.Vector, 64, e.ID)
	}
	assert.Equal(t, 1, remote.Calls(), "remote is not retried once the request fell back")
}

func TestProcess_SingleChunkDocument(t *testing.T) {
	llm := testutil.NewCompletion("A note.")
	res := New(&testutil.Layout{}, &testutil.Embedding{}, index.NewMemory(), llm).
		Process(context.Background(), docmind.Document{Filename: "note.txt", Content: []byte("short note")}, "")

	require.Equal(t, docmind.StatusSuccess, res.Status)
	assert.Equal(t, []string{"short note"}, res.Data.(Payload).RelevantContextSnippets)
	assert.Contains(t, llm.Prompt(0), "Question: "+DefaultQuery)
}

func TestProcess_LayoutPathAndFallbackText(t *testing.T) {
	lay := &testutil.Layout{Result: docmind.Layout{Content: "scanned text"}}
	llm := testutil.NewCompletion("ok")
	res := New(lay, &testutil.Embedding{}, index.NewMemory(), llm).
		Process(context.Background(), docmind.Document{Filename: "scan.pdf", Content: []byte("%PDF")}, "q")
	require.Equal(t, docmind.StatusSuccess, res.Status)
	assert.Equal(t, []string{"scanned text"}, res.Data.(Payload).RelevantContextSnippets)
	assert.Equal(t, 1, lay.Calls())

	bad := &testutil.Layout{Err: errors.New("unsupported")}
	res = New(bad, &testutil.Embedding{}, index.NewMemory(), testutil.NewCompletion("ok")).
		Process(context.Background(), docmind.Document{Filename: "scan.pdf", Content: []byte("%PDF")}, "q")
	require.Equal(t, docmind.StatusSuccess, res.Status)
	assert.Equal(t, []string{"Error: Could not extract content from scan.pdf."}, res.Data.(Payload).RelevantContextSnippets)
}

func TestProcess_EvictsOnFailure(t *testing.T) {
	idx := index.NewMemory()
	res := New(&testutil.Layout{}, &testutil.Embedding{}, idx, testutil.FailingCompletion(errors.New("down"))).
		Process(context.Background(), docmind.Document{Filename: "c.txt", Content: []byte(contract)}, "q")

	assert.Equal(t, docmind.StatusError, res.Status)
	assert.Contains(t, res.Message, "down")
	assert.Zero(t, idx.Namespaces())
}

func TestProcess_EvictsOnCancellation(t *testing.T) {
	idx := index.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	llm := &cancellingCompletion{cancel: cancel}

	res := New(&testutil.Layout{}, &testutil.Embedding{}, idx, llm).
		Process(ctx, docmind.Document{Filename: "c.txt", Content: []byte(contract)}, "q")

	assert.Equal(t, docmind.StatusError, res.Status)
	assert.Zero(t, idx.Namespaces())
}

// cancellingCompletion cancels the request context and fails like a
// transport would.
type cancellingCompletion struct{ cancel context.CancelFunc }

func (c *cancellingCompletion) Name() string { return "cancelling" }

func (c *cancellingCompletion) Chat(ctx context.Context, _ docmind.ChatRequest) (docmind.ChatResponse, error) {
	c.cancel()
	return docmind.ChatResponse{}, ctx.Err()
}

func TestProcess_ConcurrentRequestsIsolated(t *testing.T) {
	idx := &observedIndex{Memory: index.NewMemory()}
	s := New(&testutil.Layout{}, &testutil.Embedding{}, idx, testutil.NewCompletion("ok"))

	docs := []string{
		strings.Repeat("alpha paragraph about apples and orchards. ", 3),
		strings.Repeat("beta paragraph about bridges and rivers. ", 3),
	}
	var wg sync.WaitGroup
	results := make([]docmind.Result, len(docs))
	for i, text := range docs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.Process(context.Background(), docmind.Document{Filename: "same.txt", Content: []byte(text)}, "what?")
		}()
	}
	wg.Wait()

	for i, res := range results {
		require.Equal(t, docmind.StatusSuccess, res.Status)
		assert.Equal(t, []string{docs[i]}, res.Data.(Payload).RelevantContextSnippets)
	}
	assert.Len(t, idx.namespaces(), 2)
	assert.Zero(t, idx.Namespaces())
}

type observedIndex struct {
	*index.Memory
	mu  sync.Mutex
	nss map[string]bool
}

func (o *observedIndex) Add(ctx context.Context, ns string, entries []docmind.IndexEntry) error {
	o.mu.Lock()
	if o.nss == nil {
		o.nss = map[string]bool{}
	}
	o.nss[ns] = true
	o.mu.Unlock()
	return o.Memory.Add(ctx, ns, entries)
}

func (o *observedIndex) namespaces() map[string]bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.nss
}

type recordingIndex struct {
	*index.Memory
	added []docmind.IndexEntry
}

func (r *recordingIndex) Add(ctx context.Context, ns string, entries []docmind.IndexEntry) error {
	r.added = append(r.added, entries...)
	return r.Memory.Add(ctx, ns, entries)
}
