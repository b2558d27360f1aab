// Package dispatch routes documents to their stream and runs it.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nevindra/docmind"
	"github.com/nevindra/docmind/classify"
	"github.com/nevindra/docmind/observer"
	"github.com/nevindra/docmind/stream/extract"
	"github.com/nevindra/docmind/stream/qa"
	"github.com/nevindra/docmind/stream/transform"
	"github.com/nevindra/docmind/stream/visual"
	"github.com/nevindra/docmind/tabops"
)

// Classifier picks a stream for a document.
type Classifier interface {
	Classify(content []byte, filename string) docmind.StreamTag
}

// Deps are the capabilities the streams need. All are required.
type Deps struct {
	Completion docmind.Provider
	Embedding  docmind.EmbeddingProvider
	Layout     docmind.LayoutAnalyzer
	Index      docmind.SimilarityIndex
	Artifacts  docmind.ArtifactStore
}

// Request is one document to process. Instruction feeds Stream A; Query
// feeds Streams C and D.
type Request struct {
	Document    docmind.Document
	Instruction string
	Query       string
}

// Option configures a Dispatcher.
type Option func(*config)

type config struct {
	classifier  Classifier
	rules       []extract.Rule
	limits      tabops.Limits
	topK        int
	instruments *observer.Instruments
	logger      *slog.Logger
}

// WithClassifier replaces the default cascade.
func WithClassifier(c Classifier) Option { return func(cfg *config) { cfg.classifier = c } }

// WithRules sets Stream B's validation rules.
func WithRules(rules ...extract.Rule) Option { return func(cfg *config) { cfg.rules = rules } }

// WithLimits bounds Stream A program execution.
func WithLimits(l tabops.Limits) Option { return func(cfg *config) { cfg.limits = l } }

// WithTopK sets how many chunks Stream D retrieves.
func WithTopK(k int) Option { return func(cfg *config) { cfg.topK = k } }

// WithInstruments opens an OTEL span per stream run.
func WithInstruments(inst *observer.Instruments) Option {
	return func(cfg *config) { cfg.instruments = inst }
}

// WithLogger sets a structured logger, passed on to every stream.
func WithLogger(l *slog.Logger) Option { return func(cfg *config) { cfg.logger = l } }

// Dispatcher classifies documents and runs the selected stream. It is safe
// for concurrent use.
type Dispatcher struct {
	classifier Classifier
	transform  *transform.Stream
	extract    *extract.Stream
	visual     *visual.Stream
	qa         *qa.Stream
	inst       *observer.Instruments
	logger     *slog.Logger
}

// New builds the four streams over deps.
func New(deps Deps, opts ...Option) *Dispatcher {
	cfg := config{logger: docmind.NopLogger()}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.classifier == nil {
		cfg.classifier = classify.New()
	}

	extractOpts := []extract.Option{extract.WithLogger(cfg.logger)}
	if len(cfg.rules) > 0 {
		extractOpts = append(extractOpts, extract.WithRules(cfg.rules...))
	}
	return &Dispatcher{
		classifier: cfg.classifier,
		transform: transform.New(deps.Completion, deps.Artifacts,
			transform.WithLimits(cfg.limits), transform.WithLogger(cfg.logger)),
		extract: extract.New(deps.Layout, deps.Completion, extractOpts...),
		visual:  visual.New(deps.Layout, deps.Completion, visual.WithLogger(cfg.logger)),
		qa: qa.New(deps.Layout, deps.Embedding, deps.Index, deps.Completion,
			qa.WithTopK(cfg.topK), qa.WithLogger(cfg.logger)),
		inst:   cfg.instruments,
		logger: cfg.logger,
	}
}

// Classify returns the stream Process would select for doc.
func (d *Dispatcher) Classify(doc docmind.Document) docmind.StreamTag {
	return d.classifier.Classify(doc.Content, doc.Filename)
}

// Process classifies the document and runs the selected stream.
func (d *Dispatcher) Process(ctx context.Context, req Request) docmind.Result {
	tag := d.Classify(req.Document)
	d.logger.Info("dispatch: routed", "filename", req.Document.Filename, "stream", string(tag))
	res := d.Run(ctx, tag, req)
	if res.Message == "" {
		res.Message = "Automatically routed to Stream " + string(tag)
	}
	return res
}

// Run forces the given stream, skipping classification.
func (d *Dispatcher) Run(ctx context.Context, tag docmind.StreamTag, req Request) (res docmind.Result) {
	if !tag.Valid() {
		return docmind.Failure(fmt.Sprintf("Unknown stream %q", tag), nil)
	}
	if d.inst != nil {
		var finish func(docmind.Result)
		ctx, finish = observer.StreamSpan(ctx, d.inst, tag, req.Document.Filename)
		defer func() { finish(res) }()
	}

	doc := req.Document
	switch tag {
	case docmind.StreamA:
		instruction := req.Instruction
		if strings.TrimSpace(instruction) == "" {
			instruction = transform.DefaultInstruction
		}
		res = d.transform.Process(ctx, doc, instruction)
	case docmind.StreamB:
		res = d.extract.Process(ctx, doc)
	case docmind.StreamC:
		res = d.visual.Process(ctx, doc, req.Query)
	case docmind.StreamD:
		query := req.Query
		if strings.TrimSpace(query) == "" {
			query = qa.DefaultQuery
		}
		res = d.qa.Process(ctx, doc, query)
	}
	res.Stream = tag
	return res
}

// ProcessAll runs Process for every request with at most concurrency in
// flight (unbounded when concurrency <= 0). Results are in request order.
func (d *Dispatcher) ProcessAll(ctx context.Context, reqs []Request, concurrency int) []docmind.Result {
	results := make([]docmind.Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = d.Process(gctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
