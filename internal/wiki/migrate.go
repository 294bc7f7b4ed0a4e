package wiki

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultFrontPage is the page the site root redirects to.
const DefaultFrontPage = "FrontPage"

// Migrate applies the wiki schema using Gorm's AutoMigrate and logs progress.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if db == nil {
		return eris.New("gorm DB is required")
	}

	logFields := logrus.Fields{"component": "wiki.migrate"}
	if logger != nil {
		logger.WithFields(logFields).Info("applying wiki schema")
	}

	if err := db.WithContext(ctx).AutoMigrate(&Page{}); err != nil {
		if logger != nil {
			logger.WithFields(logFields).WithField("error", err.Error()).Error("wiki schema migration failed")
		}
		return eris.Wrap(err, "auto migrating wiki schema")
	}

	if logger != nil {
		logger.WithFields(logFields).Info("wiki schema migration complete")
	}

	return nil
}

// SeedFrontPage creates the front page with a heading when it does not exist yet.
// An existing page is left untouched.
func SeedFrontPage(ctx context.Context, repo Repository, name string, logger *logrus.Logger) error {
	if repo == nil {
		return eris.New("wiki repository is required")
	}
	if name == "" {
		name = DefaultFrontPage
	}
	if err := ValidatePageName(name); err != nil {
		return eris.Wrap(err, "validating front page name")
	}

	contents := name + "\n" + "===================="

	_, err := repo.Create(ctx, name, contents)
	switch {
	case err == nil:
		if logger != nil {
			logger.WithFields(logrus.Fields{"component": "wiki.migrate", "name": name}).Info("seeded front page")
		}
		return nil
	case eris.Is(err, ErrPageExists):
		return nil
	default:
		return eris.Wrapf(err, "seeding front page: %s", name)
	}
}
