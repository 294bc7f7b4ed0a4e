package http

import (
	"context"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"gorm.io/gorm"

	appdb "tinywiki/app/internal/db"
	"tinywiki/app/internal/wiki"
)

type testEnv struct {
	server *Server
	repo   *wiki.GormRepository
	db     *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithLimits(t, RateLimiterSettings{Burst: 1000, RequestsPerSecond: 1000, ClientTTL: time.Minute})
}

func newTestEnvWithLimits(t *testing.T, limits RateLimiterSettings) *testEnv {
	t.Helper()

	gormDB, err := appdb.Open(appdb.Options{Path: filepath.Join(t.TempDir(), "wiki.db")})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() {
		_ = appdb.Close(gormDB)
	})

	logger := silentLogger()

	if err := wiki.Migrate(context.Background(), gormDB, logger); err != nil {
		t.Fatalf("migrating database: %v", err)
	}

	repo, err := wiki.NewRepository(gormDB, logger)
	if err != nil {
		t.Fatalf("creating repository: %v", err)
	}

	service, err := wiki.NewService(repo, logger, nil)
	if err != nil {
		t.Fatalf("creating service: %v", err)
	}

	transactor, err := appdb.NewTransactor(gormDB)
	if err != nil {
		t.Fatalf("creating transactor: %v", err)
	}

	srv := newServer(t, Options{
		WikiService: service,
		Transactor:  transactor,
		Database:    gormDB,
		Logger:      logger,
		RateLimiter: limits,
	})

	return &testEnv{server: srv, repo: repo, db: gormDB}
}

func newServer(t *testing.T, opts Options) *Server {
	t.Helper()

	srv, err := NewServer(opts)
	if err != nil {
		t.Fatalf("NewServer returned error: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func (e *testEnv) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(stdhttp.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postContents(t *testing.T, target, contents string) *httptest.ResponseRecorder {
	t.Helper()

	form := url.Values{"contents": {contents}}
	return e.postForm(t, target, form.Encode())
}

func (e *testEnv) postForm(t *testing.T, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(stdhttp.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", formContentType)
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) storedContents(t *testing.T, name string) string {
	t.Helper()

	page, err := e.repo.GetByName(context.Background(), name)
	if err != nil {
		t.Fatalf("GetByName returned error: %v", err)
	}
	if page == nil {
		t.Fatalf("expected page %q to be stored", name)
	}
	return page.Contents
}

func expectRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()

	if rec.Code != stdhttp.StatusFound {
		t.Fatalf("expected status 302, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != location {
		t.Fatalf("expected redirect to %q, got %q", location, got)
	}
}

func expectHTML(t *testing.T, rec *httptest.ResponseRecorder, status int) string {
	t.Helper()

	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(strings.ToLower(ct), "text/html") {
		t.Fatalf("expected HTML content type, got %q", ct)
	}
	return rec.Body.String()
}

func TestRootRedirectsToFrontPage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	expectRedirect(t, env.get(t, "/"), "/FrontPage")
}

func TestRootRedirectsToConfiguredFrontPage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	srv := newServer(t, Options{
		WikiService: env.server.wiki,
		Transactor:  env.server.transactor,
		Database:    env.db,
		FrontPage:   "Home Page",
		RateLimiter: RateLimiterSettings{Burst: 10, RequestsPerSecond: 10, ClientTTL: time.Minute},
	})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/", nil))
	expectRedirect(t, rec, "/Home%20Page")
}

func TestViewMissingPageRedirectsToEditForm(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	expectRedirect(t, env.get(t, "/TestPage"), "/TestPage/edit")

	count, err := env.repo.CountPages(context.Background())
	if err != nil {
		t.Fatalf("CountPages returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected viewing to create nothing, got %d pages", count)
	}
}

func TestSeededFrontPageRendersHeading(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	if err := wiki.SeedFrontPage(context.Background(), env.repo, wiki.DefaultFrontPage, silentLogger()); err != nil {
		t.Fatalf("SeedFrontPage returned error: %v", err)
	}

	body := expectHTML(t, env.get(t, "/FrontPage"), stdhttp.StatusOK)
	if !strings.Contains(body, `id="frontpage"`) || !strings.Contains(body, "FrontPage</h1>") {
		t.Fatalf("expected seeded heading to render, got %q", body)
	}
	if strings.Contains(body, "====") {
		t.Fatalf("expected underline to be consumed by the heading, got %q", body)
	}
}

func TestEditFormForMissingPageIsEmpty(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	body := expectHTML(t, env.get(t, "/TestPage/edit"), stdhttp.StatusOK)

	form := parseEditForm(t, body)
	if form.method != "post" {
		t.Fatalf("expected form method post, got %q", form.method)
	}
	if form.action != "/TestPage/edit" {
		t.Fatalf("expected form action /TestPage/edit, got %q", form.action)
	}
	if !form.hasContents {
		t.Fatalf("expected a contents field in %q", body)
	}
	if form.contents != "" {
		t.Fatalf("expected empty contents, got %q", form.contents)
	}
}

func TestSubmittingEditFormCreatesPage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	expectRedirect(t, env.postContents(t, "/TestNewPage/edit", "create new page"), "/TestNewPage")

	if got := env.storedContents(t, "TestNewPage"); got != "create new page" {
		t.Fatalf("expected stored contents %q, got %q", "create new page", got)
	}

	body := expectHTML(t, env.get(t, "/TestNewPage"), stdhttp.StatusOK)
	if !strings.Contains(body, "create new page") {
		t.Fatalf("expected view to contain contents, got %q", body)
	}
}

func TestUpdateReplacesRenderedContents(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	expectRedirect(t, env.postContents(t, "/Journal/edit", "first draft of the journal"), "/Journal")
	expectRedirect(t, env.postContents(t, "/Journal/edit", "revised entry"), "/Journal")

	body := expectHTML(t, env.get(t, "/Journal"), stdhttp.StatusOK)
	if !strings.Contains(body, "revised entry") {
		t.Fatalf("expected updated contents in view, got %q", body)
	}
	if strings.Contains(body, "first draft") {
		t.Fatalf("expected previous contents to be gone, got %q", body)
	}

	page, err := env.repo.GetByName(context.Background(), "Journal")
	if err != nil || page == nil {
		t.Fatalf("expected stored page, got %v, %v", page, err)
	}
	if page.Edited == nil {
		t.Fatalf("expected edited timestamp after update")
	}
	if !strings.Contains(body, "last edited") {
		t.Fatalf("expected view to show the edit timestamp")
	}
}

func TestRepeatedUpdateIsIdempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	for i := 0; i < 2; i++ {
		expectRedirect(t, env.postContents(t, "/Repeat/edit", "same contents"), "/Repeat")
	}

	if got := env.storedContents(t, "Repeat"); got != "same contents" {
		t.Fatalf("expected stored contents %q, got %q", "same contents", got)
	}

	count, err := env.repo.CountPages(context.Background())
	if err != nil {
		t.Fatalf("CountPages returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one page, got %d", count)
	}
}

func TestEditFormShowsExistingContentsEscaped(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	contents := "# Title\n\n</textarea><script>alert(1)</script>"
	expectRedirect(t, env.postContents(t, "/Escaped/edit", contents), "/Escaped")

	body := expectHTML(t, env.get(t, "/Escaped/edit"), stdhttp.StatusOK)
	if strings.Contains(body, "<script>") {
		t.Fatalf("expected contents to be escaped, got %q", body)
	}

	form := parseEditForm(t, body)
	if form.contents != contents {
		t.Fatalf("expected textarea to round-trip contents %q, got %q", contents, form.contents)
	}
}

func TestViewRendersMarkupAndEditLink(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	expectRedirect(t, env.postContents(t, "/Markup/edit", "# Heading\n\nSome *emphasis* here.\n\n<script>alert(1)</script>"), "/Markup")

	body := expectHTML(t, env.get(t, "/Markup"), stdhttp.StatusOK)
	if !strings.Contains(body, "<h1") || !strings.Contains(body, "Heading</h1>") {
		t.Fatalf("expected rendered heading, got %q", body)
	}
	if !strings.Contains(body, "<em>emphasis</em>") {
		t.Fatalf("expected rendered emphasis, got %q", body)
	}
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Fatalf("expected raw HTML to be dropped, got %q", body)
	}
	if href := findEditLink(t, body); href != "/Markup/edit" {
		t.Fatalf("expected edit link /Markup/edit, got %q", href)
	}
}

func TestPageNamesWithSpacesRoundTrip(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	expectRedirect(t, env.get(t, "/Release%20Notes"), "/Release%20Notes/edit")
	expectRedirect(t, env.postContents(t, "/Release%20Notes/edit", "v1.0"), "/Release%20Notes")

	if got := env.storedContents(t, "Release Notes"); got != "v1.0" {
		t.Fatalf("expected stored contents v1.0, got %q", got)
	}
}

func TestInvalidPageNameReturnsBadRequest(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	expectHTML(t, env.get(t, "/%20Padded"), stdhttp.StatusBadRequest)
	expectHTML(t, env.postContents(t, "/healthz/edit", "x"), stdhttp.StatusBadRequest)
	expectHTML(t, env.postContents(t, "/%FF/edit", "x"), stdhttp.StatusBadRequest)
	expectHTML(t, env.get(t, "/%FF"), stdhttp.StatusBadRequest)

	count, err := env.repo.CountPages(context.Background())
	if err != nil {
		t.Fatalf("CountPages returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no pages to be stored, got %d", count)
	}
}

func TestEncodedSlashIsNotAPageName(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	expectHTML(t, env.get(t, "/a%2Fb/edit"), stdhttp.StatusNotFound)
	expectHTML(t, env.postContents(t, "/a%2Fb/edit", "x"), stdhttp.StatusNotFound)
}

func TestUnknownPathRendersNotFoundPage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	body := expectHTML(t, env.get(t, "/one/two/three"), stdhttp.StatusNotFound)
	if !strings.Contains(body, "404 Not Found") {
		t.Fatalf("expected not found label, got %q", body)
	}
}

func TestSaveRequiresContentsField(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	expectHTML(t, env.postForm(t, "/NoField/edit", "other=value"), stdhttp.StatusBadRequest)

	page, err := env.repo.GetByName(context.Background(), "NoField")
	if err != nil {
		t.Fatalf("GetByName returned error: %v", err)
	}
	if page != nil {
		t.Fatalf("expected nothing to be stored, got %+v", page)
	}
}

func TestSaveAcceptsEmptyContents(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	expectRedirect(t, env.postForm(t, "/Blank/edit", "contents="), "/Blank")

	if got := env.storedContents(t, "Blank"); got != "" {
		t.Fatalf("expected empty contents, got %q", got)
	}
}

func TestSaveRejectsUnsupportedMediaType(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	req := httptest.NewRequest(stdhttp.MethodPost, "/Json/edit", strings.NewReader(`{"contents":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	expectHTML(t, rec, stdhttp.StatusUnsupportedMediaType)
}

func TestSaveRejectsOversizedBody(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	body := "contents=" + strings.Repeat("a", maxFormBytes)

	expectHTML(t, env.postForm(t, "/Huge/edit", body), stdhttp.StatusRequestEntityTooLarge)
}

func TestSaveRejectsContentsOverColumnLimit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	contents := strings.Repeat("a", wiki.MaxContentsLength+1)

	expectHTML(t, env.postContents(t, "/Long/edit", contents), stdhttp.StatusBadRequest)
}

func TestConcurrentSavesOfNewPageKeepOneRow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	const writers = 8
	var wg sync.WaitGroup
	codes := make([]int, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = env.postContents(t, "/Contested/edit", "writer").Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		if code != stdhttp.StatusFound {
			t.Fatalf("expected writer %d to be redirected, got %d", i, code)
		}
	}

	count, err := env.repo.CountPages(context.Background())
	if err != nil {
		t.Fatalf("CountPages returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single row, got %d", count)
	}
}

func TestPageReadsDoNotWaitForWriters(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	expectRedirect(t, env.postContents(t, "/Shared/edit", "shared"), "/Shared")

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- env.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec("UPDATE pages SET contents = ? WHERE name = ?", "pending", "Shared").Error; err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()

	select {
	case <-locked:
	case err := <-done:
		t.Fatalf("writer transaction ended early: %v", err)
	}
	defer func() {
		close(release)
		if err := <-done; err != nil {
			t.Errorf("writer transaction returned error: %v", err)
		}
	}()

	body := expectHTML(t, env.get(t, "/Shared"), stdhttp.StatusOK)
	if !strings.Contains(body, "shared") {
		t.Fatalf("expected committed contents while a writer holds the lock, got %q", body)
	}
	if strings.Contains(body, "pending") {
		t.Fatalf("expected uncommitted contents to stay hidden, got %q", body)
	}
	expectHTML(t, env.get(t, "/Shared/edit"), stdhttp.StatusOK)
}

func TestStaticAssetsAreServed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	for _, path := range []string{"/css/wiki.css", "/js/wiki.js", "/img/logo.svg"} {
		rec := env.get(t, path)
		if rec.Code != stdhttp.StatusOK {
			t.Fatalf("expected %s to be served, got %d", path, rec.Code)
		}
		if rec.Body.Len() == 0 {
			t.Fatalf("expected %s to have a body", path)
		}
	}

	expectHTML(t, env.get(t, "/js/missing.js"), stdhttp.StatusNotFound)
}

func TestHighlightStylesheetIsServed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.get(t, "/css/highlight.css")

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Fatalf("expected text/css, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), ".chroma") {
		t.Fatalf("expected chroma classes in stylesheet")
	}
}

func TestNamesSharingStaticPrefixArePages(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	expectRedirect(t, env.get(t, "/cssTips"), "/cssTips/edit")
}

func TestHealthEndpointReportsDatabaseState(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.get(t, "/healthz")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var payload struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding health payload: %v", err)
	}
	if payload.Status != "ok" || payload.Database != "ok" {
		t.Fatalf("unexpected health payload: %+v", payload)
	}

	if err := appdb.Close(env.db); err != nil {
		t.Fatalf("closing database: %v", err)
	}

	rec = env.get(t, "/healthz")
	if rec.Code != stdhttp.StatusServiceUnavailable {
		t.Fatalf("expected status 503 after closing the database, got %d", rec.Code)
	}
}

func TestRateLimitReturnsTooManyRequests(t *testing.T) {
	t.Parallel()

	env := newTestEnvWithLimits(t, RateLimiterSettings{Burst: 1, RequestsPerSecond: 0.001, ClientTTL: time.Minute})

	expectRedirect(t, env.get(t, "/Limited"), "/Limited/edit")

	rec := env.get(t, "/Limited")
	body := expectHTML(t, rec, stdhttp.StatusTooManyRequests)
	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("expected Retry-After 1, got %q", got)
	}
	if !strings.Contains(body, "sending requests a bit too quickly") {
		t.Fatalf("expected rate limit message, got %q", body)
	}

	health := expectHTML(t, env.get(t, "/healthz"), stdhttp.StatusTooManyRequests)
	if strings.Contains(health, "editing") {
		t.Fatalf("expected a request-neutral message on /healthz, got %q", health)
	}

	req := httptest.NewRequest(stdhttp.MethodGet, "/Limited", nil)
	req.RemoteAddr = "203.0.113.7:4000"
	other := httptest.NewRecorder()
	env.server.ServeHTTP(other, req)
	expectRedirect(t, other, "/Limited/edit")
}

func TestResponsesCarryRequestID(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.get(t, "/Anything")

	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header")
	}
}

func TestServiceFailureRendersServerError(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	srv := newServer(t, Options{
		WikiService: &stubWikiService{err: eris.New("database is locked")},
		Transactor:  env.server.transactor,
		Database:    env.db,
		Logger:      silentLogger(),
		RateLimiter: RateLimiterSettings{Burst: 10, RequestsPerSecond: 10, ClientTTL: time.Minute},
	})

	for _, req := range []*stdhttp.Request{
		httptest.NewRequest(stdhttp.MethodGet, "/Broken", nil),
		formRequest("/Broken/edit", "contents=x"),
	} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		body := expectHTML(t, rec, stdhttp.StatusInternalServerError)
		if strings.Contains(body, "database is locked") {
			t.Fatalf("expected internal error details to stay private, got %q", body)
		}
	}
}

func TestFailedSaveRollsBackTransaction(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	service := &stubWikiService{
		save: func(ctx context.Context, name, contents string) (*wiki.Page, error) {
			if _, err := env.repo.CreateOrUpdate(ctx, name, contents); err != nil {
				return nil, err
			}
			return nil, eris.New("failing after write")
		},
	}
	srv := newServer(t, Options{
		WikiService: service,
		Transactor:  env.server.transactor,
		Database:    env.db,
		Logger:      silentLogger(),
		RateLimiter: RateLimiterSettings{Burst: 10, RequestsPerSecond: 10, ClientTTL: time.Minute},
	})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, formRequest("/Rollback/edit", "contents=lost"))
	expectHTML(t, rec, stdhttp.StatusInternalServerError)

	page, err := env.repo.GetByName(context.Background(), "Rollback")
	if err != nil {
		t.Fatalf("GetByName returned error: %v", err)
	}
	if page != nil {
		t.Fatalf("expected the write to be rolled back, found %+v", page)
	}
}

func TestPanicIsRecoveredAsServerError(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	srv := newServer(t, Options{
		WikiService: &stubWikiService{panicWith: "boom"},
		Transactor:  env.server.transactor,
		Database:    env.db,
		Logger:      silentLogger(),
		RateLimiter: RateLimiterSettings{Burst: 10, RequestsPerSecond: 10, ClientTTL: time.Minute},
	})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/Explodes", nil))
	expectHTML(t, rec, stdhttp.StatusInternalServerError)
}

func TestNewServerValidatesOptions(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	limits := RateLimiterSettings{Burst: 1, RequestsPerSecond: 1, ClientTTL: time.Minute}

	cases := map[string]Options{
		"missing service":    {Transactor: env.server.transactor, Database: env.db, RateLimiter: limits},
		"missing transactor": {WikiService: env.server.wiki, Database: env.db, RateLimiter: limits},
		"missing database":   {WikiService: env.server.wiki, Transactor: env.server.transactor, RateLimiter: limits},
		"invalid front page": {WikiService: env.server.wiki, Transactor: env.server.transactor, Database: env.db, RateLimiter: limits, FrontPage: "a/b"},
		"zero burst":         {WikiService: env.server.wiki, Transactor: env.server.transactor, Database: env.db},
		"missing static dir": {WikiService: env.server.wiki, Transactor: env.server.transactor, Database: env.db, RateLimiter: limits, StaticDir: filepath.Join(t.TempDir(), "absent")},
	}

	for name, opts := range cases {
		if _, err := NewServer(opts); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func formRequest(target, body string) *stdhttp.Request {
	req := httptest.NewRequest(stdhttp.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", formContentType)
	return req
}

type stubWikiService struct {
	err       error
	panicWith string
	save      func(ctx context.Context, name, contents string) (*wiki.Page, error)
}

func (s *stubWikiService) GetPage(context.Context, string) (*wiki.Page, error) {
	if s.panicWith != "" {
		panic(s.panicWith)
	}
	return nil, s.err
}

func (s *stubWikiService) SavePage(ctx context.Context, name, contents string) (*wiki.Page, error) {
	if s.save != nil {
		return s.save(ctx, name, contents)
	}
	return nil, s.err
}

type editForm struct {
	method      string
	action      string
	hasContents bool
	contents    string
}

func parseEditForm(t *testing.T, body string) editForm {
	t.Helper()

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parsing HTML: %v", err)
	}

	var form editForm
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "form":
				form.method = strings.ToLower(attr(n, "method"))
				form.action = attr(n, "action")
			case "textarea":
				if attr(n, "name") == "contents" {
					form.hasContents = true
					form.contents = textContent(n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return form
}

func findEditLink(t *testing.T, body string) string {
	t.Helper()

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parsing HTML: %v", err)
	}

	var href string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" && attr(n, "class") == "edit-link" {
			href = attr(n, "href")
			return
		}
		for c := n.FirstChild; c != nil && href == ""; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return href
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
