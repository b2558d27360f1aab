// Package docmind routes uploaded documents through one of four processing
// streams chosen by a cheap, deterministic cascade classifier.
//
// # Quick Start
//
//	llm := docmind.WithRetry(openai.New(apiKey, model))
//	emb := docmind.WithEmbeddingRetry(openai.NewEmbedding(apiKey, embModel, 1536))
//	lay := docmind.WithLayoutRetry(azure.New(endpoint, key))
//	idx := sqlite.New("docmind.db")
//	if err := idx.Init(ctx); err != nil {
//		return err
//	}
//	defer idx.Close()
//	art := fs.New("results")
//
//	d := dispatch.New(dispatch.Deps{
//		Completion: llm,
//		Embedding:  emb,
//		Layout:     lay,
//		Index:      idx,
//		Artifacts:  art,
//	})
//	res := d.Process(ctx, dispatch.Request{Document: docmind.Document{Filename: "sales.csv", Content: raw}})
//
// # Core Interfaces
//
// The root package defines the capability contracts every stream depends on:
//
//   - [Provider]: text completion (system + user prompt in, text out)
//   - [EmbeddingProvider]: text-to-vector embedding
//   - [LayoutAnalyzer]: document layout analysis (text, tables, key-value pairs)
//   - [SimilarityIndex]: namespaced vector/text index used through an [Arena]
//   - [ArtifactStore]: persistence of Stream A result tables
//
// # Streams
//
//   - A (stream/transform): tabular transformation through a restricted evaluator
//   - B (stream/extract): structured extraction with validation-triggered healing
//   - C (stream/visual): free-form entity extraction from layout text
//   - D (stream/qa): retrieval-augmented question answering over one document
//
// # Resilience
//
// [WithRetry], [WithEmbeddingRetry] and [WithLayoutRetry] share one backoff
// policy. [WithRateLimit] and its siblings add a token bucket in front of any
// capability. Wrappers compose in any order.
package docmind
