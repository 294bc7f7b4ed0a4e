package wiki

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	appdb "tinywiki/app/internal/db"
)

// Repository defines persistence operations for wiki pages. Implementations use the
// transaction carried by ctx when there is one.
type Repository interface {
	GetByName(ctx context.Context, name string) (*Page, error)
	Create(ctx context.Context, name, contents string) (*Page, error)
	CreateOrUpdate(ctx context.Context, name, contents string) (*Page, error)
	CountPages(ctx context.Context) (int64, error)
}

// GormRepository persists pages using a Gorm database connection.
type GormRepository struct {
	db         *gorm.DB
	transactor appdb.Transactor
	logger     *logrus.Logger
	now        func() time.Time
}

// NewRepository constructs a Gorm-backed repository implementation.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	transactor, err := appdb.NewTransactor(db)
	if err != nil {
		return nil, eris.Wrap(err, "creating repository transactor")
	}

	return &GormRepository{
		db:         db,
		transactor: transactor,
		logger:     logger,
		now:        time.Now,
	}, nil
}

var _ Repository = (*GormRepository)(nil)

// GetByName returns the page stored under name or nil when not found.
func (r *GormRepository) GetByName(ctx context.Context, name string) (*Page, error) {
	if name == "" {
		return nil, eris.New("page name is required")
	}

	return r.findByName(appdb.Conn(ctx, r.db), name)
}

// Create inserts a new page. A name collision rolls back to the savepoint taken before
// the insert, leaving the surrounding transaction usable, and returns ErrPageExists.
func (r *GormRepository) Create(ctx context.Context, name, contents string) (*Page, error) {
	if name == "" {
		return nil, eris.New("page name is required")
	}

	page := &Page{Name: name, Contents: contents, Created: r.now()}

	err := r.transactor.Transact(ctx, func(ctx context.Context) error {
		return appdb.Conn(ctx, r.db).Transaction(func(sp *gorm.DB) error {
			return sp.Create(page).Error
		})
	})
	if err != nil {
		if isDuplicate(err) {
			return nil, eris.Wrapf(ErrPageExists, "creating page: %s", name)
		}
		r.logError(logrus.Fields{"name": name}, err, "creating page")
		return nil, eris.Wrapf(err, "creating page: %s", name)
	}

	return page, nil
}

// CreateOrUpdate inserts the page when absent and otherwise replaces its contents and
// stamps the edit time. Concurrent writers are last-write-wins; losing an insert race to
// another writer is retried once as an update.
func (r *GormRepository) CreateOrUpdate(ctx context.Context, name, contents string) (*Page, error) {
	if name == "" {
		return nil, eris.New("page name is required")
	}

	var saved *Page
	err := r.transactor.Transact(ctx, func(ctx context.Context) error {
		conn := appdb.Conn(ctx, r.db)

		page, err := r.findByName(conn, name)
		if err != nil {
			return err
		}

		if page == nil {
			created, createErr := r.Create(ctx, name, contents)
			if createErr == nil {
				saved = created
				return nil
			}
			if !eris.Is(createErr, ErrPageExists) {
				return createErr
			}

			if r.logger != nil {
				r.logger.WithFields(logrus.Fields{"component": "wiki.repository", "name": name}).
					Warn("concurrent insert detected, retrying as update")
			}

			page, err = r.findByName(conn, name)
			if err != nil {
				return err
			}
			if page == nil {
				return eris.Wrapf(createErr, "page missing after duplicate insert: %s", name)
			}
		}

		edited := r.now()
		result := conn.Model(&Page{}).
			Where("id = ?", page.ID).
			Updates(map[string]any{"contents": contents, "edited": edited})
		if result.Error != nil {
			r.logError(logrus.Fields{"name": name}, result.Error, "updating page")
			return eris.Wrapf(result.Error, "updating page: %s", name)
		}

		page.Contents = contents
		page.Edited = &edited
		saved = page
		return nil
	})
	if err != nil {
		return nil, err
	}

	return saved, nil
}

// CountPages returns the total number of persisted pages.
func (r *GormRepository) CountPages(ctx context.Context) (int64, error) {
	var count int64

	if err := appdb.Conn(ctx, r.db).Model(&Page{}).Count(&count).Error; err != nil {
		r.logError(nil, err, "counting pages")
		return 0, eris.Wrap(err, "counting pages")
	}

	return count, nil
}

func (r *GormRepository) findByName(conn *gorm.DB, name string) (*Page, error) {
	var page Page
	err := conn.Where("name = ?", name).Take(&page).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"name": name}, err, "fetching page by name")
		return nil, eris.Wrapf(err, "fetching page by name: %s", name)
	}

	return &page, nil
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

func (r *GormRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil || err == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error()).WithField("component", "wiki.repository")
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
