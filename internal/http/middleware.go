package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const (
	rateLimitMessage  = "You're sending requests a bit too quickly. Please wait a moment and try again."
	bodyLimit         = "1M"
	sentryFlushPeriod = 2 * time.Second
)

// registerRouterMiddlewares installs the echo middleware that runs for every request,
// including static assets and unmatched paths.
func (s *Server) registerRouterMiddlewares() {
	e := s.echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = s.httpErrorHandler

	e.Pre(decodedPathMiddleware)

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, requestID string) {
			ctx := context.WithValue(c.Request().Context(), requestIDContextKey, requestID)
			c.SetRequest(c.Request().WithContext(ctx))
		},
	}))

	e.Use(clientIPMiddleware)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:     true,
		LogURI:        true,
		LogMethod:     true,
		LogLatency:    true,
		LogRemoteIP:   true,
		LogRoutePath:  true,
		LogRequestID:  true,
		HandleError:   true,
		LogValuesFunc: s.logRequest,
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; img-src 'self' data:; style-src 'self'; script-src 'self'",
	}))

	e.Use(middleware.BodyLimit(bodyLimit))
}

// decodedPathMiddleware routes on the decoded path so page names reach handlers unescaped.
// An encoded slash therefore never ends up inside a page name.
func decodedPathMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Request().URL.RawPath = ""
		return next(c)
	}
}

func clientIPMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := context.WithValue(c.Request().Context(), clientIPContextKey, c.RealIP())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func (s *Server) logRequest(c echo.Context, v middleware.RequestLoggerValues) error {
	if s.logger == nil {
		return nil
	}

	fields := logrus.Fields{
		"method":      v.Method,
		"path":        v.URI,
		"route":       v.RoutePath,
		"status":      v.Status,
		"duration_ms": float64(v.Latency.Microseconds()) / 1000,
		"remote_addr": v.RemoteIP,
	}
	if v.RequestID != "" {
		fields["request_id"] = v.RequestID
	}

	entry := s.logger.WithFields(fields)
	if v.Status >= stdhttp.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Info("request completed")
	}
	return nil
}

// httpErrorHandler renders router-level failures (unknown paths, oversized bodies,
// missing assets) with the HTML error page.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := stdhttp.StatusInternalServerError
	message := errorFallbackMessage

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
	}

	switch status {
	case stdhttp.StatusNotFound:
		message = "There is nothing at this address."
	case stdhttp.StatusMethodNotAllowed:
		message = "That request method is not supported here."
	case stdhttp.StatusRequestEntityTooLarge:
		message = "The submitted page is too large to be saved."
	}

	ctx := c.Request().Context()
	if status >= stdhttp.StatusInternalServerError {
		s.recordError(ctx, err, "request failed", logrus.Fields{"path": c.Request().URL.Path})
	}

	body, renderErr := renderErrorPage(ctx, status, message)
	if renderErr != nil {
		s.recordError(ctx, renderErr, "rendering error page", logrus.Fields{"status": status})
		_ = c.String(status, statusLabel(status))
		return
	}

	_ = c.HTMLBlob(status, body)
}

func (s *Server) rateLimitMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.rateLimiter == nil {
			next(ctx)
			return
		}

		ip := ClientIPFromContext(ctx.Context())
		if s.rateLimiter.Allow(ip) {
			next(ctx)
			return
		}

		if s.logger != nil {
			fields := logrus.Fields{
				"ip":   ip,
				"path": ctx.URL().Path,
			}
			if requestID := RequestIDFromContext(ctx.Context()); requestID != "" {
				fields["request_id"] = requestID
			}
			s.logger.WithError(eris.New("rate limit exceeded")).WithFields(fields).Warn("request rate limited")
		}

		resp, _ := s.renderErrorResponse(ctx.Context(), stdhttp.StatusTooManyRequests, rateLimitMessage)

		ctx.SetHeader("Retry-After", "1")
		ctx.SetHeader("Content-Type", resp.ContentType)
		ctx.SetStatus(stdhttp.StatusTooManyRequests)
		_, _ = ctx.BodyWriter().Write(resp.Body)
	}
}

func (s *Server) recoveryMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		defer func() {
			if rec := recover(); rec != nil {
				var err error
				switch v := rec.(type) {
				case error:
					err = eris.Wrap(v, "panic")
				default:
					err = eris.New(fmt.Sprintf("panic: %v", v))
				}

				if s.logger != nil {
					s.logEntry(ctx.Context(), err, logrus.Fields{"path": ctx.URL().Path}).Error("panic recovered")
				}

				if hub := sentry.GetHubFromContext(ctx.Context()); hub != nil {
					hub.RecoverWithContext(ctx.Context(), rec)
				}

				resp, _ := s.renderErrorResponse(ctx.Context(), stdhttp.StatusInternalServerError, errorFallbackMessage)

				ctx.SetHeader("Content-Type", resp.ContentType)
				ctx.SetStatus(stdhttp.StatusInternalServerError)
				_, _ = ctx.BodyWriter().Write(resp.Body)
			}
		}()

		next(ctx)
	}
}

func (s *Server) sentryMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.sentry == nil {
			next(ctx)
			return
		}

		hub := s.sentry.Clone()
		scope := hub.Scope()
		scope.SetTag("http.method", ctx.Method())
		if op := ctx.Operation(); op != nil {
			scope.SetTag("http.route", op.Path)
		}
		if requestID := RequestIDFromContext(ctx.Context()); requestID != "" {
			scope.SetTag("request_id", requestID)
		}

		goCtx := sentry.SetHubOnContext(ctx.Context(), hub)
		ctx = huma.WithContext(ctx, goCtx)

		defer hub.Flush(sentryFlushPeriod)

		next(ctx)
	}
}
