package main

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"tinywiki/app/internal/config"
	appdb "tinywiki/app/internal/db"
	apphttp "tinywiki/app/internal/http"
	applog "tinywiki/app/internal/log"
	"tinywiki/app/internal/wiki"
)

const readHeaderTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "failure loading configuration")
	}

	logger, err := applog.NewLogger(cfg.LogLevel)
	if err != nil {
		return eris.Wrap(err, "failure initialising logger")
	}

	sentryHub, flush, err := applog.InitSentry(logger, applog.SentrySettings{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
	})
	if err != nil {
		return eris.Wrap(err, "failure initialising sentry")
	}
	defer flush()

	dbConn, err := appdb.Open(appdb.Options{
		Path:   cfg.DBPath,
		Logger: appdb.NewGormLogger(logger, cfg.DBLogSQL),
	})
	if err != nil {
		return eris.Wrap(err, "opening database")
	}
	defer func() {
		if closeErr := appdb.Close(dbConn); closeErr != nil {
			logger.WithError(closeErr).Error("closing database")
		}
	}()

	if err := wiki.Migrate(ctx, dbConn, logger); err != nil {
		return eris.Wrap(err, "running migrations")
	}

	repository, err := wiki.NewRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building wiki repository")
	}

	if err := wiki.SeedFrontPage(ctx, repository, cfg.FrontPage, logger); err != nil {
		return eris.Wrap(err, "seeding front page")
	}

	pageCount, err := repository.CountPages(ctx)
	if err != nil {
		return eris.Wrap(err, "counting pages")
	}

	wikiService, err := wiki.NewService(repository, logger, sentryHub)
	if err != nil {
		return eris.Wrap(err, "creating wiki service")
	}

	transactor, err := appdb.NewTransactor(dbConn)
	if err != nil {
		return eris.Wrap(err, "creating transactor")
	}

	transport, err := apphttp.NewServer(apphttp.Options{
		WikiService: wikiService,
		Transactor:  transactor,
		Database:    dbConn,
		Logger:      logger,
		SentryHub:   sentryHub,
		RateLimiter: apphttp.RateLimiterSettings{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			ClientTTL:         cfg.RateLimit.ClientTTL,
		},
		StaticDir: cfg.StaticDir,
		FrontPage: cfg.FrontPage,
	})
	if err != nil {
		return eris.Wrap(err, "initialising http transport")
	}
	defer transport.Close()

	httpServer := &stdhttp.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", cfg.ServerPort),
		Handler:           transport.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	mainLog := applog.Component(logger, "main")
	mainLog.WithFields(logrus.Fields{
		"addr":       httpServer.Addr,
		"db_path":    cfg.DBPath,
		"front_page": cfg.FrontPage,
		"pages":      pageCount,
	}).Info("starting http server")

	serverErrCh := make(chan error, 1)
	go func() {
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	select {
	case <-ctx.Done():
		mainLog.Info("shutdown signal received")
	case err := <-serverErrCh:
		if err != nil {
			return eris.Wrap(err, "http server error")
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "shutting down http server")
	}

	mainLog.Info("http server shut down cleanly")
	return nil
}
