package repository

import (
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/internal/models/dbmodel"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Printer is satisfied by the application logger.
type Printer interface {
	Printf(format string, args ...interface{})
}

// Open connects to the configured database and pings it.
func Open(driver, dsn string, logger Printer) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, errors.Errorf("unsupported database driver %q", driver)
	}

	cfg := &gorm.Config{}
	if logger != nil {
		cfg.Logger = gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	} else {
		cfg.Logger = gormlogger.Discard
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get sql database")
	}
	if driver == DriverSQLite {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}
	return db, nil
}

// Migrate creates or updates every table the bot uses.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&dbmodel.Calendars{},
		&dbmodel.ReminderSettings{},
		&dbmodel.DigestSettings{},
		&dbmodel.ReminderSent{},
		&dbmodel.Rsvps{},
		&dbmodel.RsvpTargets{},
		&dbmodel.Levels{},
	); err != nil {
		return errors.Wrap(err, "failed to migrate")
	}
	// at most one active calendar per (user, provider)
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_calendars_one_active
		ON calendars (discord_user_id, provider) WHERE is_active`).Error; err != nil {
		return errors.Wrap(err, "failed to create active calendar index")
	}
	return nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
