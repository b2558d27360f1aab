package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for docmind spans and metrics.
var (
	AttrLLMModel    = attribute.Key("llm.model")
	AttrLLMProvider = attribute.Key("llm.provider")
	AttrLLMMethod   = attribute.Key("llm.method")

	AttrTokensInput  = attribute.Key("llm.tokens.input")
	AttrTokensOutput = attribute.Key("llm.tokens.output")
	AttrCostUSD      = attribute.Key("llm.cost_usd")

	AttrEmbedTextCount  = attribute.Key("llm.embed.text_count")
	AttrEmbedDimensions = attribute.Key("llm.embed.dimensions")

	AttrLayoutAnalyzer  = attribute.Key("layout.analyzer")
	AttrLayoutBytes     = attribute.Key("layout.bytes")
	AttrLayoutPages     = attribute.Key("layout.pages")
	AttrLayoutTables    = attribute.Key("layout.tables")
	AttrLayoutKeyValues = attribute.Key("layout.key_values")

	AttrStream       = attribute.Key("stream")
	AttrStreamStatus = attribute.Key("stream.status")
	AttrFilename     = attribute.Key("document.filename")
)
