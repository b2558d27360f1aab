package local

import (
	"context"
	"testing"

	"github.com/nevindra/docmind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_Markdown(t *testing.T) {
	src := "# Invoice\n\nCustomer: ACME\nTotal: $12.50\n\n- first item\n- second item\n\n| Item | Qty |\n|------|-----|\n| bolt | 4 |\n| nut | 9 |\n"
	l, err := New().Analyze(context.Background(), []byte(src))
	require.NoError(t, err)

	assert.Equal(t, "Invoice\n\nCustomer: ACME\nTotal: $12.50\n\nfirst item\nsecond item\n\nItem\tQty\nbolt\t4\nnut\t9", l.Content)

	require.Len(t, l.Tables, 1)
	tbl := l.Tables[0]
	assert.Equal(t, 3, tbl.RowCount)
	assert.Equal(t, 2, tbl.ColumnCount)
	assert.Contains(t, tbl.Cells, docmind.LayoutCell{Row: 2, Column: 1, Content: "9"})

	assert.Contains(t, l.KeyValuePairs, docmind.KeyValue{Key: "Total", Value: "$12.50", Confidence: 0.5})
}

func TestAnalyze_HTML(t *testing.T) {
	l, err := New().Analyze(context.Background(), []byte("<html><head><style>p{}</style><script>x()</script></head><body><p>Total: &euro;5</p></body></html>"))
	require.NoError(t, err)
	assert.Contains(t, l.Content, "Total: €5")
	assert.NotContains(t, l.Content, "x()")
}

func TestAnalyze_Latin1(t *testing.T) {
	l, err := New().Analyze(context.Background(), []byte("Caf\xe9 receipt"))
	require.NoError(t, err)
	assert.Equal(t, "Café receipt", l.Content)
}

func TestAnalyze_Binary(t *testing.T) {
	_, err := New().Analyze(context.Background(), []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0})
	assert.ErrorIs(t, err, docmind.ErrUnsupportedFormat)
}

func TestAnalyze_BadPDF(t *testing.T) {
	_, err := New().Analyze(context.Background(), []byte("%PDF-1.4 truncated"))
	assert.ErrorContains(t, err, "open pdf")
}

func TestAnalyze_Empty(t *testing.T) {
	_, err := New().Analyze(context.Background(), nil)
	assert.Error(t, err)
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "Title\n\nBody &text", stripTags("<h1>Title</h1>\n<div></div><p>Body &amp;text</p>"))
}
