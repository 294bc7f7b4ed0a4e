package wiki

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// Service defines the page operations exposed to the transport layer.
type Service interface {
	GetPage(ctx context.Context, name string) (*Page, error)
	SavePage(ctx context.Context, name, contents string) (*Page, error)
}

type service struct {
	repo      Repository
	logger    *logrus.Logger
	sentryHub *sentry.Hub
}

var _ Service = (*service)(nil)

// NewService wires the wiki service with its dependencies.
func NewService(repo Repository, logger *logrus.Logger, hub *sentry.Hub) (Service, error) {
	if repo == nil {
		return nil, eris.New("wiki repository is required")
	}

	return &service{
		repo:      repo,
		logger:    logger,
		sentryHub: hub,
	}, nil
}

// GetPage returns the named page, or an error wrapping ErrPageNotFound when it is missing.
func (s *service) GetPage(ctx context.Context, name string) (*Page, error) {
	if err := ValidatePageName(name); err != nil {
		return nil, err
	}

	page, err := s.repo.GetByName(ctx, name)
	if err != nil {
		s.recordError(logrus.Fields{"name": name}, err, "retrieving page from repository")
		return nil, eris.Wrapf(err, "retrieving page: %s", name)
	}

	if page == nil {
		return nil, eris.Wrapf(ErrPageNotFound, "retrieving page: %s", name)
	}

	return page, nil
}

// SavePage creates or updates the named page with the submitted contents.
func (s *service) SavePage(ctx context.Context, name, contents string) (*Page, error) {
	if err := ValidatePageName(name); err != nil {
		return nil, err
	}
	if err := ValidateContents(contents); err != nil {
		return nil, err
	}

	page, err := s.repo.CreateOrUpdate(ctx, name, contents)
	if err != nil {
		s.recordError(logrus.Fields{"name": name}, err, "saving page to repository")
		return nil, eris.Wrapf(err, "saving page: %s", name)
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"component": "wiki.service",
			"name":      name,
			"page_id":   page.ID,
			"created":   page.Edited == nil,
		}).Info("page saved")
	}

	return page, nil
}

func (s *service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error()).WithField("component", "wiki.service")
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}
