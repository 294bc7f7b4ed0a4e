package http

import (
	"bytes"
	"context"

	"github.com/a-h/templ"
	"github.com/rotisserie/eris"

	"tinywiki/app/internal/http/templates"
	"tinywiki/app/internal/markup"
	"tinywiki/app/internal/wiki"
)

func renderComponent(ctx context.Context, component templ.Component) ([]byte, error) {
	var buf bytes.Buffer
	if err := component.Render(ctx, &buf); err != nil {
		return nil, eris.Wrap(err, "rendering component")
	}
	return buf.Bytes(), nil
}

// renderView renders a stored page with its markup converted to HTML.
func renderView(ctx context.Context, page *wiki.Page, edit string) ([]byte, error) {
	return renderComponent(ctx, templates.ViewPage(templates.ViewPageData{
		Name:    page.Name,
		HTML:    markup.ToHTML(page.Contents),
		EditURL: edit,
		Created: page.Created,
		Edited:  page.Edited,
	}))
}

// renderEditForm renders the edit form for name. page is nil when it does not exist yet.
func renderEditForm(ctx context.Context, name string, page *wiki.Page) ([]byte, error) {
	data := templates.EditPageData{
		Name:      name,
		ActionURL: editURL(name),
		ViewURL:   pageURL(name),
	}
	if page != nil {
		data.Contents = page.Contents
		data.Exists = true
	}

	return renderComponent(ctx, templates.EditPage(data))
}
