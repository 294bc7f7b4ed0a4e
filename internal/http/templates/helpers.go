package templates

import (
	"context"
	"io"
	"time"

	"github.com/a-h/templ"
)

const timestampLayout = "2006-01-02 15:04 MST"

// RawHTML returns a templ component that writes the provided HTML without escaping.
func RawHTML(html string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, err := io.WriteString(w, html)
		return err
	})
}

func formatTimestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// textareaValue prefixes the contents with the newline HTML parsers drop after a
// textarea start tag, so contents starting with a newline survive a round trip.
func textareaValue(contents string) string {
	return "\n" + contents
}
