package docmind

// --- Documents and routing ---

// Document is an uploaded file. It is never mutated after creation.
type Document struct {
	Content  []byte
	Filename string
}

// StreamTag names one of the four processing streams.
type StreamTag string

const (
	StreamA StreamTag = "A" // tabular transformation
	StreamB StreamTag = "B" // structured extraction with healing
	StreamC StreamTag = "C" // visual / semantic entity extraction
	StreamD StreamTag = "D" // retrieval-augmented QA
)

// Valid reports whether t is one of the four known streams.
func (t StreamTag) Valid() bool {
	switch t {
	case StreamA, StreamB, StreamC, StreamD:
		return true
	}
	return false
}

// Status is the outcome of a stream run.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusSimulated Status = "simulated"
)

// Result is the uniform envelope every stream returns.
type Result struct {
	Status  Status    `json:"status"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
	Stream  StreamTag `json:"stream_used,omitempty"`
}

// Success builds a success Result.
func Success(msg string, data any) Result {
	return Result{Status: StatusSuccess, Message: msg, Data: data}
}

// Failure builds an error Result. data may be nil.
func Failure(msg string, data any) Result {
	return Result{Status: StatusError, Message: msg, Data: data}
}

// Simulated builds a simulated Result, used when a required service is
// not configured and the stream demonstrates its flow with canned data.
func Simulated(msg string, data any) Result {
	return Result{Status: StatusSimulated, Message: msg, Data: data}
}

// Record is a flat extraction record. Unresolved fields hold nil.
type Record map[string]any

// --- Layout analysis ---

// Layout is the result of document layout analysis. Only Content is
// guaranteed to be populated.
type Layout struct {
	Content       string        `json:"content"`
	Pages         []LayoutPage  `json:"pages,omitempty"`
	Tables        []LayoutTable `json:"tables,omitempty"`
	KeyValuePairs []KeyValue    `json:"key_value_pairs,omitempty"`
}

type LayoutPage struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

type LayoutTable struct {
	RowCount    int          `json:"row_count"`
	ColumnCount int          `json:"column_count"`
	Cells       []LayoutCell `json:"cells"`
}

type LayoutCell struct {
	Row     int    `json:"row"`
	Column  int    `json:"column"`
	Content string `json:"content"`
}

type KeyValue struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence,omitempty"`
}

// --- Completion protocol types ---

type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	// JSONOutput asks the backend to constrain output to a JSON object
	// when it supports doing so.
	JSONOutput bool `json:"json_output,omitempty"`
}

type ChatResponse struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: "user", Content: text}
}

func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: "system", Content: text}
}
