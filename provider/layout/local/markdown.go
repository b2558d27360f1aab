package local

import (
	"strings"

	"github.com/nevindra/docmind"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough))

// extractMarkdown renders Markdown (or plain text, which parses as
// paragraphs) to plain text with one blank line between blocks, and lifts
// GFM tables into layout tables.
func extractMarkdown(src string) docmind.Layout {
	source := []byte(src)
	doc := md.Parser().Parse(text.NewReader(source))

	var (
		out    strings.Builder
		tables []docmind.LayoutTable
		cur    *docmind.LayoutTable
		row    int
		col    int
		cell   strings.Builder
	)
	endBlock := func() {
		s := strings.TrimRight(out.String(), "\n ")
		out.Reset()
		out.WriteString(s)
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *extast.Table:
			if entering {
				tables = append(tables, docmind.LayoutTable{})
				cur = &tables[len(tables)-1]
				row = 0
			} else {
				cur.RowCount = row
				cur = nil
				endBlock()
			}
		case *extast.TableHeader, *extast.TableRow:
			if entering {
				col = 0
			} else {
				if cur != nil && col > cur.ColumnCount {
					cur.ColumnCount = col
				}
				row++
				out.WriteByte('\n')
			}
		case *extast.TableCell:
			if entering {
				cell.Reset()
			} else {
				content := strings.TrimSpace(cell.String())
				if cur != nil {
					cur.Cells = append(cur.Cells, docmind.LayoutCell{Row: row, Column: col, Content: content})
				}
				if col > 0 {
					out.WriteString("\t")
				}
				out.WriteString(content)
				col++
			}
		case *ast.Text:
			if !entering {
				break
			}
			w := &out
			if cur != nil {
				w = &cell
			}
			w.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				w.WriteByte('\n')
			}
		case *ast.String:
			if entering {
				if cur != nil {
					cell.Write(node.Value)
				} else {
					out.Write(node.Value)
				}
			}
		case *ast.AutoLink:
			if entering {
				out.Write(node.URL(source))
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					out.Write(seg.Value(source))
				}
				endBlock()
			}
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.Heading, *ast.TextBlock:
			if !entering {
				endBlock()
			}
		case *ast.ListItem:
			if !entering {
				s := strings.TrimRight(out.String(), "\n ")
				out.Reset()
				out.WriteString(s)
				out.WriteByte('\n')
			}
		case *ast.List, *ast.Blockquote:
			if !entering {
				endBlock()
			}
		}
		return ast.WalkContinue, nil
	})

	return docmind.Layout{
		Content: strings.TrimSpace(out.String()),
		Tables:  tables,
	}
}
