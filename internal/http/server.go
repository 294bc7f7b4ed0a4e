package http

import (
	"io/fs"
	stdhttp "net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	appdb "tinywiki/app/internal/db"
	"tinywiki/app/internal/wiki"
)

// Options configures the HTTP server wiring.
type Options struct {
	WikiService wiki.Service
	Transactor  appdb.Transactor
	Database    *gorm.DB
	Logger      *logrus.Logger
	SentryHub   *sentry.Hub
	RateLimiter RateLimiterSettings
	// StaticDir overrides the embedded assets when set.
	StaticDir string
	// FrontPage is the page the site root redirects to.
	FrontPage string
}

// RateLimiterSettings configures the HTTP rate limiter behaviour.
type RateLimiterSettings struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

// Server wires the HTTP transport layer: an echo router carrying the Huma page API,
// static assets and HTML error pages.
type Server struct {
	echo        *echo.Echo
	api         huma.API
	wiki        wiki.Service
	transactor  appdb.Transactor
	logger      *logrus.Logger
	sentry      *sentry.Hub
	db          *gorm.DB
	rateLimiter *RateLimiter
	assets      fs.FS
	frontPage   string
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.WikiService == nil {
		return nil, eris.New("wiki service is required")
	}
	if opts.Transactor == nil {
		return nil, eris.New("transactor is required")
	}
	if opts.Database == nil {
		return nil, eris.New("database is required")
	}

	frontPage := opts.FrontPage
	if frontPage == "" {
		frontPage = wiki.DefaultFrontPage
	}
	if err := wiki.ValidatePageName(frontPage); err != nil {
		return nil, eris.Wrap(err, "validating front page name")
	}

	settings := opts.RateLimiter
	if settings.Burst <= 0 {
		return nil, eris.New("rate limiter burst must be greater than zero")
	}
	if settings.RequestsPerSecond <= 0 {
		return nil, eris.New("rate limiter requests per second must be greater than zero")
	}
	if settings.ClientTTL <= 0 {
		return nil, eris.New("rate limiter client TTL must be greater than zero")
	}

	assets, err := staticAssets(opts.StaticDir)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	config := huma.DefaultConfig("tinywiki", "1.0.0")
	// Every single-segment path is a page name, so the generated docs routes stay off.
	config.DocsPath = ""
	config.OpenAPIPath = ""
	config.SchemasPath = ""
	config.CreateHooks = nil

	srv := &Server{
		echo:        e,
		wiki:        opts.WikiService,
		transactor:  opts.Transactor,
		logger:      opts.Logger,
		sentry:      opts.SentryHub,
		db:          opts.Database,
		rateLimiter: NewRateLimiter(settings.Burst, settings.RequestsPerSecond, settings.ClientTTL),
		assets:      assets,
		frontPage:   frontPage,
	}

	srv.registerRouterMiddlewares()
	srv.api = humaecho.New(e, config)
	srv.registerMiddlewares()
	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the underlying HTTP handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.echo
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.rateLimitMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	s.registerStaticRoutes()

	s.echo.GET("/", s.rootHandler)

	s.registerHealthRoute()
	s.registerViewRoute()
	s.registerEditRoutes()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.echo.ServeHTTP(w, r)
}
