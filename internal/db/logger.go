package db

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// NewGormLogger routes Gorm's statement logging through logrus. With logSQL every
// statement is logged; otherwise only warnings, errors and slow queries are.
func NewGormLogger(log *logrus.Logger, logSQL bool) logger.Interface {
	if log == nil {
		return logger.Default.LogMode(logger.Warn)
	}

	level := logger.Warn
	if logSQL {
		level = logger.Info
	}

	return logger.New(log.WithField("component", "gorm"), logger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
