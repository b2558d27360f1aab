// Package local implements docmind.LayoutAnalyzer without a remote service.
// It recovers text from PDF, HTML, Markdown and plain text documents, splits
// PDF pages, lifts Markdown tables and scans "Key: Value" lines. It does no
// OCR, so scanned documents yield no text.
package local

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"github.com/nevindra/docmind"
	"github.com/nevindra/docmind/provider/layout"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// Analyzer is a pure-Go layout analyzer.
type Analyzer struct {
	logger *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option { return func(a *Analyzer) { a.logger = l } }

// New creates a local Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{logger: docmind.NopLogger()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns "local".
func (a *Analyzer) Name() string { return "local" }

// Analyze sniffs the content type and extracts text accordingly. Binary
// content other than PDF fails with docmind.ErrUnsupportedFormat.
func (a *Analyzer) Analyze(ctx context.Context, content []byte) (docmind.Layout, error) {
	if err := ctx.Err(); err != nil {
		return docmind.Layout{}, err
	}
	if len(content) == 0 {
		return docmind.Layout{}, fmt.Errorf("local: empty document")
	}

	var (
		l   docmind.Layout
		err error
	)
	kind := sniff(content)
	switch kind {
	case "pdf":
		l, err = extractPDF(content)
	case "html":
		l = docmind.Layout{Content: extractHTML(decodeText(content))}
	case "text":
		l = extractMarkdown(decodeText(content))
	default:
		return docmind.Layout{}, fmt.Errorf("local: %s content: %w", kind, docmind.ErrUnsupportedFormat)
	}
	if err != nil {
		return docmind.Layout{}, err
	}

	l.Content = norm.NFC.String(l.Content)
	l.KeyValuePairs = layout.KeyValuesFromText(l.Content)
	a.logger.Debug("local: analyzed", "kind", kind, "chars", len(l.Content),
		"pages", len(l.Pages), "tables", len(l.Tables))
	return l, nil
}

// sniff returns "pdf", "html", "text" or the detected MIME type.
func sniff(content []byte) string {
	if bytes.HasPrefix(content, []byte("%PDF-")) {
		return "pdf"
	}
	ct := http.DetectContentType(content)
	switch {
	case strings.HasPrefix(ct, "text/html"):
		return "html"
	case strings.HasPrefix(ct, "text/"):
		return "text"
	}
	return ct
}

// decodeText returns UTF-8 text, falling back to ISO-8859-1.
func decodeText(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(content)
	if err != nil {
		return strings.ToValidUTF8(string(content), "")
	}
	return string(s)
}

func extractPDF(content []byte) (docmind.Layout, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return docmind.Layout{}, fmt.Errorf("local: open pdf: %w", err)
	}

	var l docmind.Layout
	var text strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue // unreadable page
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(pageText)
		l.Pages = append(l.Pages, docmind.LayoutPage{Number: i, Text: pageText})
	}
	l.Content = text.String()
	return l, nil
}

func extractHTML(html string) string {
	article, err := readability.FromReader(strings.NewReader(html), &url.URL{})
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return strings.TrimSpace(article.TextContent)
	}
	return stripTags(html)
}
