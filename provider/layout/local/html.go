package local

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"
)

// stripTags removes tags, script and style bodies, breaks lines at block
// tags and decodes entities. Used when readability finds no article.
func stripTags(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	var (
		inTag, skip   bool
		tagName       strings.Builder
		collectingTag bool
	)
	for i := 0; i < len(content); {
		r, size := utf8.DecodeRuneInString(content[i:])
		i += size

		if r == '<' {
			inTag = true
			collectingTag = true
			tagName.Reset()
			continue
		}
		if inTag {
			if collectingTag {
				if unicode.IsSpace(r) || r == '>' || (r == '/' && tagName.Len() > 0) {
					collectingTag = false
					name := strings.ToLower(tagName.String())
					switch name {
					case "script", "style":
						skip = true
					case "/script", "/style":
						skip = false
					}
					if isBlockTag(name) {
						out.WriteByte('\n')
					}
				} else {
					tagName.WriteRune(r)
				}
			}
			if r == '>' {
				inTag = false
			}
			continue
		}
		if !skip {
			out.WriteRune(r)
		}
	}
	return collapseBlankLines(html.UnescapeString(out.String()))
}

func isBlockTag(tag string) bool {
	switch strings.TrimPrefix(tag, "/") {
	case "p", "div", "br", "hr", "h1", "h2", "h3", "h4", "h5", "h6",
		"li", "ul", "ol", "table", "tr", "blockquote", "pre",
		"section", "article", "header", "footer", "nav", "main":
		return true
	}
	return false
}

// collapseBlankLines trims every line and keeps at most one empty line in a row.
func collapseBlankLines(s string) string {
	var out []string
	blank := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
