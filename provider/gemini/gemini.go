// Package gemini implements the Google Gemini completion and embedding
// providers over the generativelanguage REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nevindra/docmind"
)

var baseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini implements docmind.Provider for Gemini models.
type Gemini struct {
	apiKey      string
	model       string
	httpClient  *http.Client
	temperature float64
	topP        float64
}

// New creates a Gemini chat provider.
func New(apiKey, model string, opts ...Option) *Gemini {
	g := &Gemini{
		apiKey:      apiKey,
		model:       model,
		httpClient:  &http.Client{},
		temperature: 0.1,
		topP:        0.9,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns "gemini".
func (g *Gemini) Name() string { return "gemini" }

// Chat sends a generateContent request and returns the concatenated text parts.
func (g *Gemini) Chat(ctx context.Context, req docmind.ChatRequest) (docmind.ChatResponse, error) {
	if g.apiKey == "" {
		return docmind.ChatResponse{}, fmt.Errorf("gemini: api key not set: %w", docmind.ErrServiceUnavailable)
	}
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", baseURL, g.model, g.apiKey)
	respBody, err := post(ctx, g.httpClient, url, g.buildBody(req))
	if err != nil {
		return docmind.ChatResponse{}, err
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return docmind.ChatResponse{}, wrapErr("failed to parse response JSON: " + err.Error())
	}
	if len(parsed.Candidates) == 0 {
		return docmind.ChatResponse{}, wrapErr("response has no candidates")
	}

	var content strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		// Thinking parts are not part of the answer.
		if part.Thought {
			continue
		}
		content.WriteString(part.Text)
	}

	var usage docmind.Usage
	if parsed.UsageMetadata != nil {
		usage.InputTokens = parsed.UsageMetadata.PromptTokenCount
		usage.OutputTokens = parsed.UsageMetadata.CandidatesTokenCount
	}
	return docmind.ChatResponse{Content: content.String(), Usage: usage}, nil
}

// buildBody maps chat messages onto Gemini contents. System messages become
// the systemInstruction.
func (g *Gemini) buildBody(req docmind.ChatRequest) map[string]any {
	var system []string
	contents := make([]map[string]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		contents = append(contents, map[string]any{
			"role":  mapRole(m.Role),
			"parts": []map[string]any{{"text": m.Content}},
		})
	}

	temp := g.temperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	genConfig := map[string]any{
		"temperature": temp,
		"topP":        g.topP,
	}
	if req.JSONOutput {
		genConfig["responseMimeType"] = "application/json"
	}

	body := map[string]any{
		"contents":         contents,
		"generationConfig": genConfig,
	}
	if len(system) > 0 {
		body["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": strings.Join(system, "\n\n")}},
		}
	}
	return body
}

// mapRole converts standard roles to Gemini API roles.
func mapRole(role string) string {
	if role == "assistant" {
		return "model"
	}
	return role
}

// Embedding implements docmind.EmbeddingProvider for Gemini embedding models.
type Embedding struct {
	apiKey     string
	model      string
	dims       int
	httpClient *http.Client
}

// NewEmbedding creates a Gemini embedding provider.
func NewEmbedding(apiKey, model string, dims int) *Embedding {
	return &Embedding{
		apiKey:     apiKey,
		model:      model,
		dims:       dims,
		httpClient: &http.Client{},
	}
}

// Name returns "gemini".
func (e *Embedding) Name() string { return "gemini" }

// Dimensions returns the configured embedding dimensionality.
func (e *Embedding) Dimensions() int { return e.dims }

// Embed embeds each text sequentially.
func (e *Embedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("gemini: api key not set: %w", docmind.ErrServiceUnavailable)
	}
	url := fmt.Sprintf("%s/models/%s:embedContent?key=%s", baseURL, e.model, e.apiKey)

	embeddings := make([][]float32, 0, len(texts))
	for _, text := range texts {
		body := map[string]any{
			"content": map[string]any{
				"parts": []map[string]any{{"text": text}},
			},
		}
		if e.dims > 0 {
			body["outputDimensionality"] = e.dims
		}
		respBody, err := post(ctx, e.httpClient, url, body)
		if err != nil {
			return nil, err
		}

		var parsed embedResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, wrapErr("failed to parse embed response: " + err.Error())
		}
		if parsed.Embedding == nil {
			return nil, wrapErr("missing embedding.values in response")
		}
		vec := make([]float32, len(parsed.Embedding.Values))
		for i, v := range parsed.Embedding.Values {
			vec[i] = float32(v)
		}
		embeddings = append(embeddings, vec)
	}
	return embeddings, nil
}

func post(ctx context.Context, client *http.Client, url string, body map[string]any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, wrapErr("marshal body: " + err.Error())
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, wrapErr("create request: " + err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapErr("failed to read response body: " + err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpErr(resp, string(respBody))
	}
	return respBody, nil
}

func wrapErr(msg string) error {
	return &docmind.ErrLLM{Provider: "gemini", Message: msg}
}

// httpErr creates an ErrHTTP from a response, taking the retry delay from the
// Retry-After header or from a google.rpc.RetryInfo detail in the body.
func httpErr(resp *http.Response, body string) *docmind.ErrHTTP {
	e := docmind.NewErrHTTP(resp, body)
	if e.RetryAfter == 0 {
		e.RetryAfter = parseRetryInfo(body)
	}
	return e
}

// parseRetryInfo returns 0 if no RetryInfo detail is found.
func parseRetryInfo(body string) time.Duration {
	var envelope struct {
		Error struct {
			Details []json.RawMessage `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(body), &envelope) != nil {
		return 0
	}
	for _, raw := range envelope.Error.Details {
		var detail struct {
			Type       string `json:"@type"`
			RetryDelay string `json:"retryDelay"`
		}
		if json.Unmarshal(raw, &detail) != nil {
			continue
		}
		if detail.Type == "type.googleapis.com/google.rpc.RetryInfo" && detail.RetryDelay != "" {
			if d, err := time.ParseDuration(detail.RetryDelay); err == nil {
				return d
			}
		}
	}
	return 0
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata *geminiUsage      `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role"`
}

type geminiPart struct {
	Text    string `json:"text,omitempty"`
	Thought bool   `json:"thought,omitempty"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

type embedResponse struct {
	Embedding *embedValues `json:"embedding"`
}

type embedValues struct {
	Values []float64 `json:"values"`
}

var (
	_ docmind.Provider          = (*Gemini)(nil)
	_ docmind.EmbeddingProvider = (*Embedding)(nil)
)
