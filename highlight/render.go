package highlight

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/russross/blackfriday/v2"
)

const styleName = "github"

var htmlFormatter = html.New(
	html.WithLineNumbers(true),
	html.WithClasses(false),
	html.TabWidth(4),
)

func lexerFor(language string) chroma.Lexer {
	l := lexers.Get(language)
	if l == nil {
		l = lexers.Fallback
	}
	return chroma.Coalesce(l)
}

func format(w io.Writer, f chroma.Formatter, language, source string) error {
	it, err := lexerFor(language).Tokenise(nil, source)
	if err != nil {
		return fmt.Errorf("tokenising %s: %w", language, err)
	}
	return f.Format(w, styles.Get(styleName), it)
}

// HTML renders source as a highlighted HTML fragment.
func HTML(language, source string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := format(&buf, htmlFormatter, language, source); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// Terminal writes source highlighted with 256-colour escape sequences.
func Terminal(w io.Writer, language, source string) error {
	return format(w, formatters.Get("terminal256"), language, source)
}

// Markdown renders a markdown document to HTML. Raw HTML in the document is
// dropped and only safe link schemes are kept.
func Markdown(source string) template.HTML {
	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.CommonHTMLFlags | blackfriday.SkipHTML | blackfriday.Safelink,
	})
	out := blackfriday.Run([]byte(source), blackfriday.WithRenderer(renderer))
	return template.HTML(out)
}
