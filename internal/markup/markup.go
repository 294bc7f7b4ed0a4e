// Package markup converts page source text to HTML fragments.
//
// Page contents are Markdown. Raw HTML in the source is dropped, links are only
// emitted for safe targets, and fenced code blocks are highlighted with chroma using
// CSS classes (see HighlightCSS).
package markup

import (
	stdhtml "html"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	md "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

const parserExtensions = parser.CommonExtensions | parser.AutoHeadingIDs

// ToHTML renders markup to an HTML fragment. It has no side effects; an empty or
// whitespace-only source yields an empty fragment.
func ToHTML(source string) string {
	if strings.TrimSpace(source) == "" {
		return ""
	}

	// Parsers keep per-document state, so one is built per call.
	p := parser.NewWithExtensions(parserExtensions)
	doc := p.Parse([]byte(normalizeNewlines(source)))

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags:          mdhtml.CommonFlags | mdhtml.SkipHTML | mdhtml.Safelink,
		RenderNodeHook: renderNodeHook,
	})

	return string(md.Render(doc, renderer))
}

// Browsers submit textarea contents with CRLF line endings. The parser only closes a
// setext heading underline that is followed by a newline.
func normalizeNewlines(source string) string {
	source = strings.ReplaceAll(source, "\r\n", "\n")
	source = strings.ReplaceAll(source, "\r", "\n")
	if !strings.HasSuffix(source, "\n") {
		source += "\n"
	}
	return source
}

func renderNodeHook(writer io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	if !entering {
		return ast.GoToNext, false
	}

	switch typedNode := node.(type) {
	case *ast.CodeBlock:
		renderCodeBlock(writer, typedNode)
		return ast.SkipChildren, true
	case *ast.Code:
		renderInlineCode(writer, typedNode)
		return ast.SkipChildren, true
	default:
		return ast.GoToNext, false
	}
}

func renderCodeBlock(writer io.Writer, block *ast.CodeBlock) {
	code := string(block.Literal)
	lexer := pickLexer(codeLanguage(block.Info), code)
	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		renderPlainCodeBlock(writer, code)
		return
	}

	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.Format(writer, styles.Fallback, iterator); err != nil {
		renderPlainCodeBlock(writer, code)
	}
}

func renderInlineCode(writer io.Writer, code *ast.Code) {
	_, _ = io.WriteString(writer, `<code class="inline-code">`)
	_, _ = io.WriteString(writer, stdhtml.EscapeString(string(code.Literal)))
	_, _ = io.WriteString(writer, `</code>`)
}

func renderPlainCodeBlock(writer io.Writer, code string) {
	_, _ = io.WriteString(writer, `<pre class="chroma"><code>`)
	_, _ = io.WriteString(writer, stdhtml.EscapeString(code))
	_, _ = io.WriteString(writer, `</code></pre>`)
}

func pickLexer(language string, code string) chroma.Lexer {
	if language != "" {
		if lexer := lexers.Get(language); lexer != nil {
			return lexer
		}
	}

	if lexer := lexers.Analyse(code); lexer != nil {
		return lexer
	}

	return lexers.Fallback
}

func codeLanguage(info []byte) string {
	fields := strings.Fields(string(info))
	if len(fields) == 0 {
		return ""
	}

	return strings.ToLower(fields[0])
}
