package fango

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Alp4ka/fango/config"
)

const slowQueryThreshold = 200 * time.Millisecond

// OpenDB connects to the database named by DATABASE_DRIVER and
// DATABASE_DSN. Driver errors are translated into gorm errors.
func OpenDB(s *config.Settings) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch s.DatabaseDriver {
	case "postgres", "postgresql":
		dialector = postgres.Open(s.DatabaseDSN)
	case "mysql":
		dialector = mysql.Open(s.DatabaseDSN)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(s.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", s.DatabaseDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(s.Debug),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", s.DatabaseDriver, err)
	}
	return db, nil
}

// newGormLogger routes gorm output through logrus. SQL statements are only
// logged in debug mode.
func newGormLogger(debug bool) logger.Interface {
	level := logger.Warn
	if debug {
		level = logger.Info
	}

	return logger.New(logrus.StandardLogger(), logger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
