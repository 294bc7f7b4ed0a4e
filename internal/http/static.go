package http

import (
	"embed"
	"io/fs"
	stdhttp "net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/rotisserie/eris"

	"tinywiki/app/internal/markup"
)

//go:embed static
var staticFiles embed.FS

// staticTrees are the asset directories served below the site root.
var staticTrees = []string{"js", "css", "img"}

// staticAssets returns the asset filesystem: dir when set, the embedded assets otherwise.
func staticAssets(dir string) (fs.FS, error) {
	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, eris.Wrapf(err, "reading static directory: %s", dir)
		}
		if !info.IsDir() {
			return nil, eris.Errorf("static path is not a directory: %s", dir)
		}
		return os.DirFS(dir), nil
	}

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, eris.Wrap(err, "preparing static assets filesystem")
	}
	return assets, nil
}

func (s *Server) registerStaticRoutes() {
	for _, tree := range staticTrees {
		// The trailing slash keeps names such as "cssTips" routed to pages.
		s.echo.StaticFS("/"+tree+"/", echo.MustSubFS(s.assets, tree))
	}

	s.echo.GET("/css/highlight.css", highlightCSSHandler)
}

func highlightCSSHandler(c echo.Context) error {
	return c.Blob(stdhttp.StatusOK, "text/css; charset=utf-8", []byte(markup.HighlightCSS()))
}
