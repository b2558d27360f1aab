package dispatch

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/nevindra/docmind"
	"github.com/nevindra/docmind/classify"
	"github.com/nevindra/docmind/index"
	"github.com/nevindra/docmind/internal/testutil"
	"github.com/nevindra/docmind/observer"
	"github.com/nevindra/docmind/stream/extract"
	"github.com/nevindra/docmind/stream/qa"
	"github.com/nevindra/docmind/stream/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	llm   *testutil.Completion
	lay   *testutil.Layout
	idx   *index.Memory
	store *testutil.Artifacts
	d     *Dispatcher
}

func newFixture(t *testing.T, llm *testutil.Completion, lay *testutil.Layout, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{llm: llm, lay: lay, idx: index.NewMemory(), store: testutil.NewArtifacts()}
	f.d = New(Deps{
		Completion: llm,
		Embedding:  &testutil.Embedding{},
		Layout:     lay,
		Index:      f.idx,
		Artifacts:  f.store,
	}, opts...)
	return f
}

func TestProcess_CSVRoutesToA(t *testing.T) {
	f := newFixture(t, testutil.NewCompletion(`{"steps":[{"op":"assign","in":"df","out":"result_df"}]}`), &testutil.Layout{})

	res := f.d.Process(context.Background(), Request{Document: docmind.Document{
		Filename: "data.csv",
		Content:  []byte("a,b\n1,2\n3,4\n5,6\n"),
	}})

	require.Equal(t, docmind.StatusSuccess, res.Status, res.Message)
	assert.Equal(t, docmind.StreamA, res.Stream)
	assert.Equal(t, "Transformation successful", res.Message)
	assert.Equal(t, 3, res.Data.(transform.Payload).RowsProcessed)
	assert.Contains(t, f.llm.Prompt(0), transform.DefaultInstruction)
	assert.Equal(t, 1, f.store.Len())
}

func TestProcess_TaxFormRoutesToB(t *testing.T) {
	lay := &testutil.Layout{Err: fmt.Errorf("x: %w", docmind.ErrServiceUnavailable)}
	f := newFixture(t, testutil.NewCompletion(`{}`), lay)

	res := f.d.Process(context.Background(), Request{Document: docmind.Document{
		Filename: "tax_form.pdf",
		Content:  []byte("Form 1040 U.S. Individual Income Tax Return"),
	}})

	assert.Equal(t, docmind.StreamB, res.Stream)
	assert.Equal(t, docmind.StatusSimulated, res.Status)
	assert.Equal(t, "Layout analysis not configured. Simulating self-healing loop.", res.Message)
}

func TestProcess_DenseTextRoutesToD(t *testing.T) {
	content := strings.Repeat("x", 1601) + strings.Repeat(" ", 399)
	f := newFixture(t, testutil.NewCompletion("It is x."), &testutil.Layout{})

	res := f.d.Process(context.Background(), Request{Document: docmind.Document{
		Filename: "report.txt",
		Content:  []byte(content),
	}})

	require.Equal(t, docmind.StatusSuccess, res.Status, res.Message)
	assert.Equal(t, docmind.StreamD, res.Stream)
	assert.Equal(t, "Automatically routed to Stream D", res.Message)
	assert.Equal(t, "It is x.", res.Data.(qa.Payload).Answer)
	assert.Contains(t, f.llm.Prompt(0), "Question: "+qa.DefaultQuery)
	assert.Zero(t, f.idx.Namespaces())
}

func TestProcess_ImageRoutesToC(t *testing.T) {
	f := newFixture(t, testutil.NewCompletion(`{"chart":"bar"}`), &testutil.Layout{})

	res := f.d.Process(context.Background(), Request{
		Document: docmind.Document{Filename: "chart.jpg", Content: []byte("a b c")},
		Query:    "axis labels",
	})

	require.Equal(t, docmind.StatusSuccess, res.Status, res.Message)
	assert.Equal(t, docmind.StreamC, res.Stream)
	assert.Contains(t, f.llm.Prompt(0), "axis labels")
}

func TestRun_ForcesStream(t *testing.T) {
	f := newFixture(t, testutil.NewCompletion(`{"Total":"$5"}`), &testutil.Layout{Result: docmind.Layout{Content: "invoice"}})

	res := f.d.Run(context.Background(), docmind.StreamB, Request{Document: docmind.Document{Filename: "data.csv", Content: []byte("a\n1\n")}})

	require.Equal(t, docmind.StatusSuccess, res.Status)
	assert.Equal(t, docmind.StreamB, res.Stream)
	assert.Equal(t, "$5", res.Data.(extract.Payload).Extracted["Total"])

	res = f.d.Run(context.Background(), "Z", Request{})
	assert.Equal(t, docmind.StatusError, res.Status)
}

func TestOptions(t *testing.T) {
	inst, err := observer.NewNoop()
	require.NoError(t, err)
	f := newFixture(t, testutil.NewCompletion(`{}`),
		&testutil.Layout{Result: docmind.Layout{Content: "SSN: 1", KeyValuePairs: []docmind.KeyValue{{Key: "SSN", Value: "1"}}}},
		WithClassifier(classify.New(classify.WithKeywords("Patient"))),
		WithRules(extract.RequiredMonetary("SSN")),
		WithInstruments(inst),
	)

	doc := docmind.Document{Filename: "chart.pdf", Content: []byte("Patient record")}
	assert.Equal(t, docmind.StreamB, f.d.Classify(doc))
	res := f.d.Process(context.Background(), Request{Document: doc})
	require.Equal(t, docmind.StatusSuccess, res.Status)
	assert.Nil(t, res.Data.(extract.Payload).HealingReport)
	assert.Zero(t, f.llm.Calls())
}

func TestProcessAll_KeepsOrder(t *testing.T) {
	f := newFixture(t, testutil.NewCompletion(`{}`), &testutil.Layout{Err: docmind.ErrServiceUnavailable})
	reqs := []Request{
		{Document: docmind.Document{Filename: "a.csv", Content: []byte("x\n1\n")}},
		{Document: docmind.Document{Filename: "tax.pdf", Content: []byte("IRS notice")}},
		{Document: docmind.Document{Filename: "b.csv", Content: []byte("x\n1\n2\n")}},
		{Document: docmind.Document{Filename: "pic.png", Content: []byte("  ")}},
	}

	results := f.d.ProcessAll(context.Background(), reqs, 2)

	require.Len(t, results, 4)
	assert.Equal(t, docmind.StreamA, results[0].Stream)
	assert.Equal(t, 1, results[0].Data.(transform.Payload).RowsProcessed)
	assert.Equal(t, docmind.StreamB, results[1].Stream)
	assert.Equal(t, docmind.StatusSimulated, results[1].Status)
	assert.Equal(t, 2, results[2].Data.(transform.Payload).RowsProcessed)
	assert.Equal(t, docmind.StreamC, results[3].Stream)
	assert.Equal(t, docmind.StatusError, results[3].Status)
}
