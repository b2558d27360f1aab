package classify

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nevindra/docmind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Cascade(t *testing.T) {
	tests := []struct {
		name     string
		content  []byte
		filename string
		want     docmind.StreamTag
	}{
		{"csv extension", []byte("dummy content"), "data.csv", docmind.StreamA},
		{"xlsx uppercase extension", []byte("x"), "REPORT.XLSX", docmind.StreamA},
		{"json extension", []byte("{}"), "rows.json", docmind.StreamA},
		{"xml extension", []byte("<a/>"), "feed.xml", docmind.StreamA},
		{"tax keyword", []byte("This is a Form 1040 document."), "document.pdf", docmind.StreamB},
		{"w-2 keyword", []byte("Employer W-2 summary"), "scan.png", docmind.StreamB},
		{"dense prose", append(bytes.Repeat([]byte("A"), 1601), bytes.Repeat([]byte(" "), 399)...), "legal.txt", docmind.StreamD},
		{"short text defaults", []byte("Small text block"), "image.jpg", docmind.StreamC},
		{"empty content", nil, "empty.pdf", docmind.StreamC},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.content, tt.filename))
		})
	}
}

func TestClassify_ExtensionBeatsKeywords(t *testing.T) {
	assert.Equal(t, docmind.StreamA, Classify([]byte("IRS Form 1040"), "taxes.csv"))
}

func TestClassify_KeywordBeatsDensity(t *testing.T) {
	content := "IRS" + strings.Repeat("x", 1997)
	assert.Equal(t, docmind.StreamB, Classify([]byte(content), "dense.pdf"))
}

func TestClassify_KeywordsAreCaseSensitive(t *testing.T) {
	assert.Equal(t, docmind.StreamC, Classify([]byte("the irs office"), "memo.pdf"))
}

func TestClassify_KeywordOutsideWindowIgnored(t *testing.T) {
	content := strings.Repeat(" ", WindowSize) + "Form 1040"
	assert.Equal(t, docmind.StreamC, Classify([]byte(content), "late.pdf"))
}

func TestClassify_DensityBoundary(t *testing.T) {
	exact := strings.Repeat("a", 1600) + strings.Repeat(" ", 400)
	assert.Equal(t, docmind.StreamC, Classify([]byte(exact), "edge.txt"), "0.8 is not above the threshold")

	over := strings.Repeat("a", 1601) + strings.Repeat(" ", 399)
	assert.Equal(t, docmind.StreamD, Classify([]byte(over), "edge.txt"))
}

func TestClassify_ShortDenseTextIsNotDense(t *testing.T) {
	// 1,000 non-whitespace chars over the fixed 2,000 denominator is 0.5.
	assert.Equal(t, docmind.StreamC, Classify(bytes.Repeat([]byte("z"), 1000), "short.txt"))
}

func TestClassify_InvalidUTF8Ignored(t *testing.T) {
	content := append([]byte{0xff, 0xfe}, []byte("Tax Return 2023")...)
	assert.Equal(t, docmind.StreamB, Classify(content, "scan.bin"))
}

func TestClassify_Deterministic(t *testing.T) {
	content := []byte(strings.Repeat("lorem ipsum ", 300))
	first := Classify(content, "a.pdf")
	for range 10 {
		assert.Equal(t, first, Classify(content, "a.pdf"))
	}
}

func TestDensity(t *testing.T) {
	assert.InDelta(t, 0.0, Density(""), 1e-9)
	assert.InDelta(t, 0.5, Density(strings.Repeat("x", 1000)), 1e-9)
	assert.InDelta(t, 0.0, Density("\t\n  \r"), 1e-9)
}

func TestCascade_WithKeywordsReplacesDefaults(t *testing.T) {
	c := New(WithKeywords("INVOICE"))
	assert.Equal(t, docmind.StreamB, c.Classify([]byte("INVOICE #42"), "inv.pdf"))
	assert.Equal(t, docmind.StreamC, c.Classify([]byte("Form 1040"), "f.pdf"))
}

func TestCascade_WithProfileRoutesToPreferredStream(t *testing.T) {
	c := New(WithProfile(Legal), WithProfile(Healthcare))
	assert.Equal(t, docmind.StreamD, c.Classify([]byte("This Agreement is made"), "nda.pdf"))
	assert.Equal(t, docmind.StreamC, c.Classify([]byte("Patient: Jane"), "chart.pdf"))
	assert.Equal(t, docmind.StreamB, c.Classify([]byte("IRS notice"), "n.pdf"), "defaults still checked first")
}

func TestLookupProfile(t *testing.T) {
	p, err := LookupProfile("Legal")
	require.NoError(t, err)
	assert.Equal(t, docmind.StreamD, p.Stream)

	_, err = LookupProfile("astronomy")
	assert.ErrorContains(t, err, "healthcare, legal, tax")
}
