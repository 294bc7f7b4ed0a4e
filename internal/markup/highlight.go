package markup

import (
	"bytes"
	"strings"
	"sync"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
)

const (
	lightStyle = "github"
	darkStyle  = "monokai"
)

var (
	highlightCSSOnce sync.Once
	highlightCSS     string
)

// HighlightCSS returns the stylesheet for highlighted code blocks, switching palettes
// with the user's colour scheme.
func HighlightCSS() string {
	highlightCSSOnce.Do(func() {
		highlightCSS = buildHighlightCSS()
	})

	return highlightCSS
}

func buildHighlightCSS() string {
	var out strings.Builder

	if css := styleCSS(lightStyle); css != "" {
		out.WriteString("@media (prefers-color-scheme: light) {\n")
		out.WriteString(css)
		out.WriteString("}\n")
	}
	if css := styleCSS(darkStyle); css != "" {
		out.WriteString("@media (prefers-color-scheme: dark) {\n")
		out.WriteString(css)
		out.WriteString("}\n")
	}

	return out.String()
}

func styleCSS(name string) string {
	style := styles.Get(name)
	if style == nil {
		style = styles.Fallback
	}

	formatter := chromahtml.New(chromahtml.WithClasses(true))
	var buffer bytes.Buffer
	if err := formatter.WriteCSS(&buffer, style); err != nil {
		return ""
	}

	return buffer.String()
}
