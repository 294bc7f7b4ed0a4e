package http

import (
	"context"
	"fmt"
	"mime"
	stdhttp "net/http"
	"net/url"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	appdb "tinywiki/app/internal/db"
	"tinywiki/app/internal/http/templates"
	"tinywiki/app/internal/wiki"
)

const (
	htmlContentType      = "text/html; charset=utf-8"
	formContentType      = "application/x-www-form-urlencoded"
	contentsField        = "contents"
	maxFormBytes         = 1 << 20
	errorFallbackMessage = "We couldn't process your request right now."
)

var (
	errMissingContents  = eris.New("form field contents is required")
	errMalformedForm    = eris.New("malformed form body")
	errUnsupportedMedia = eris.New("unsupported form media type")
)

type htmlResponse struct {
	Status      int
	ContentType string `header:"Content-Type"`
	Location    string `header:"Location"`
	Body        []byte
}

type pageInput struct {
	Name string `path:"name"`
}

type savePageInput struct {
	Name        string `path:"name"`
	ContentType string `header:"Content-Type"`
	RawBody     []byte
}

type healthResponse struct {
	Status int
	Body   struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
}

func (s *Server) registerViewRoute() {
	huma.Get(s.api, "/{name}", s.viewHandler, htmlOperation(
		"View a page",
		stdhttp.StatusFound,
		stdhttp.StatusBadRequest,
		stdhttp.StatusInternalServerError,
	))
}

func (s *Server) registerEditRoutes() {
	huma.Get(s.api, "/{name}"+editSuffix, s.editFormHandler, htmlOperation(
		"Render the edit form of a page",
		stdhttp.StatusBadRequest,
		stdhttp.StatusInternalServerError,
	))

	huma.Post(s.api, "/{name}"+editSuffix, s.savePageHandler, htmlOperation(
		"Create or update a page",
		stdhttp.StatusFound,
		stdhttp.StatusBadRequest,
		stdhttp.StatusRequestEntityTooLarge,
		stdhttp.StatusUnsupportedMediaType,
		stdhttp.StatusInternalServerError,
	), func(op *huma.Operation) {
		op.MaxBodyBytes = maxFormBytes
	})
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, "/healthz", s.healthHandler, func(op *huma.Operation) {
		op.Summary = "Health check"
	})
}

func (s *Server) rootHandler(c echo.Context) error {
	return c.Redirect(stdhttp.StatusFound, pageURL(s.frontPage))
}

func (s *Server) viewHandler(ctx context.Context, input *pageInput) (*htmlResponse, error) {
	name := input.Name

	// Reads run as a single autocommit SELECT. An explicit transaction would begin
	// IMMEDIATE and queue behind writers for the write lock.
	page, err := s.wiki.GetPage(ctx, name)
	if err != nil {
		if eris.Is(err, wiki.ErrPageNotFound) {
			return newRedirectResponse(editURL(name)), nil
		}
		return s.handleError(ctx, err, "loading page", logrus.Fields{"name": name})
	}

	body, err := renderView(ctx, page, editURL(name))
	if err != nil {
		s.recordError(ctx, err, "rendering page", logrus.Fields{"name": name})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, "We couldn't render this page.")
	}

	return newHTMLResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) editFormHandler(ctx context.Context, input *pageInput) (*htmlResponse, error) {
	name := input.Name

	page, err := s.wiki.GetPage(ctx, name)
	if eris.Is(err, wiki.ErrPageNotFound) {
		page, err = nil, nil
	}
	if err != nil {
		return s.handleError(ctx, err, "loading page for edit", logrus.Fields{"name": name})
	}

	body, err := renderEditForm(ctx, name, page)
	if err != nil {
		s.recordError(ctx, err, "rendering edit form", logrus.Fields{"name": name})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, "We couldn't render the edit form.")
	}

	return newHTMLResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) savePageHandler(ctx context.Context, input *savePageInput) (*htmlResponse, error) {
	name := input.Name

	contents, err := parseContents(input.ContentType, input.RawBody)
	if err != nil {
		return s.handleError(ctx, err, "parsing edit form", logrus.Fields{"name": name})
	}

	// The transaction commits before the redirect is produced, so a failed commit
	// surfaces as an error page instead of a redirect to stale contents.
	err = s.transactor.Transact(ctx, func(ctx context.Context) error {
		_, saveErr := s.wiki.SavePage(ctx, name, contents)
		return saveErr
	})
	if err != nil {
		return s.handleError(ctx, err, "saving page", logrus.Fields{"name": name})
	}

	return newRedirectResponse(pageURL(name)), nil
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{}
	resp.Status = stdhttp.StatusOK
	resp.Body.Status = "ok"
	resp.Body.Database = "ok"

	sqlDB, err := appdb.SQLDB(s.db)
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		s.recordError(ctx, err, "pinging database", nil)
		resp.Status = stdhttp.StatusServiceUnavailable
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
	}

	return resp, nil
}

// parseContents extracts the contents field from an urlencoded form body.
func parseContents(contentType string, body []byte) (string, error) {
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || mediaType != formContentType {
			return "", eris.Wrapf(errUnsupportedMedia, "%q", contentType)
		}
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return "", eris.Wrap(errMalformedForm, err.Error())
	}

	if _, ok := values[contentsField]; !ok {
		return "", errMissingContents
	}

	return values.Get(contentsField), nil
}

func newHTMLResponse(status int, body []byte) *htmlResponse {
	return &htmlResponse{
		Status:      status,
		ContentType: htmlContentType,
		Body:        body,
	}
}

func newRedirectResponse(location string) *htmlResponse {
	response := newHTMLResponse(stdhttp.StatusFound, nil)
	response.Location = location
	return response
}

func htmlOperation(summary string, statuses ...int) func(op *huma.Operation) {
	return func(op *huma.Operation) {
		if summary != "" {
			op.Summary = summary
		}
		if op.Responses == nil {
			op.Responses = map[string]*huma.Response{}
		}

		statusCodes := append([]int{stdhttp.StatusOK}, statuses...)
		for _, status := range statusCodes {
			code := strconv.Itoa(status)
			op.Responses[code] = &huma.Response{
				Description: stdhttp.StatusText(status),
				Content: map[string]*huma.MediaType{
					htmlContentType: {
						Schema: &huma.Schema{Type: "string"},
					},
				},
			}
		}
	}
}

// classifyError maps a handler error to a status code and a user-facing message.
func classifyError(err error) (int, string) {
	switch {
	case err == nil:
		return stdhttp.StatusInternalServerError, errorFallbackMessage
	case eris.Is(err, wiki.ErrInvalidPageName):
		return stdhttp.StatusBadRequest, "That is not a valid page name. Names cannot contain slashes or control characters, start or end with spaces, or exceed 255 characters."
	case eris.Is(err, wiki.ErrInvalidContents):
		return stdhttp.StatusBadRequest, "The page contents are too long to be saved."
	case eris.Is(err, errMissingContents), eris.Is(err, errMalformedForm):
		return stdhttp.StatusBadRequest, "The edit form submission was incomplete. Please try again."
	case eris.Is(err, errUnsupportedMedia):
		return stdhttp.StatusUnsupportedMediaType, "Pages can only be saved from the edit form."
	default:
		return stdhttp.StatusInternalServerError, errorFallbackMessage
	}
}

func (s *Server) handleError(ctx context.Context, err error, message string, fields logrus.Fields) (*htmlResponse, error) {
	status, userMessage := classifyError(err)
	if status >= stdhttp.StatusInternalServerError {
		s.recordError(ctx, err, message, fields)
	} else {
		s.logWarning(ctx, err, message, fields)
	}
	return s.renderErrorResponse(ctx, status, userMessage)
}

func (s *Server) renderErrorResponse(ctx context.Context, status int, message string) (*htmlResponse, error) {
	body, err := renderErrorPage(ctx, status, message)
	if err != nil {
		s.recordError(ctx, err, "rendering error page", logrus.Fields{"status": status})
		fallback := []byte(fmt.Sprintf("<html><body><h1>%s</h1><p>%s</p></body></html>", statusLabel(status), message))
		return newHTMLResponse(status, fallback), nil
	}

	return newHTMLResponse(status, body), nil
}

func renderErrorPage(ctx context.Context, status int, message string) ([]byte, error) {
	return renderComponent(ctx, templates.ErrorPage(templates.ErrorPageData{
		StatusLabel: statusLabel(status),
		Message:     message,
	}))
}

func statusLabel(status int) string {
	return fmt.Sprintf("%d %s", status, stdhttp.StatusText(status))
}

func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		s.logEntry(ctx, err, fields).Error(message)
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	if s.sentry != nil {
		s.sentry.CaptureException(err)
	}
}

func (s *Server) logWarning(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil || s.logger == nil {
		return
	}
	s.logEntry(ctx, err, fields).Warn(message)
}

func (s *Server) logEntry(ctx context.Context, err error, fields logrus.Fields) *logrus.Entry {
	entry := s.logger.WithField("error", err.Error()).WithField("component", "http")
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}
	return entry
}
