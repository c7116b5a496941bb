package db

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type options struct {
	logLevel logger.LogLevel
	tracing  bool
	log      logrus.FieldLogger
}

type Option func(*options)

func WithLogLevel(l logger.LogLevel) Option { return func(o *options) { o.logLevel = l } }

// WithTracing installs the otelgorm plugin.
func WithTracing(on bool) Option { return func(o *options) { o.tracing = on } }

func WithLogger(l logrus.FieldLogger) Option { return func(o *options) { o.log = l } }

// Dialector picks the gorm dialect for driver.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverPostgres:
		return postgres.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported DB driver %q", driver)
	}
}

func OpenGorm(driver, dsn string, opts ...Option) (*gorm.DB, error) {
	dial, err := Dialector(driver, dsn)
	if err != nil {
		return nil, err
	}
	gdb, err := OpenGormWithDialector(dial, opts...)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// one connection keeps in-memory databases and write locks sane
		sqlDB, _ := gdb.DB()
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
	}
	return gdb, nil
}

// OpenGormWithDialector opens, tunes the pool and pings once.
func OpenGormWithDialector(dial gorm.Dialector, opts ...Option) (*gorm.DB, error) {
	o := options{logLevel: logger.Warn, log: logrus.StandardLogger()}
	for _, fn := range opts {
		fn(&o)
	}

	cfg := &gorm.Config{
		Logger:               logger.Default.LogMode(o.logLevel),
		DisableAutomaticPing: true,
	}
	db, err := gorm.Open(dial, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	if o.tracing {
		if err := db.Use(otelgorm.NewPlugin()); err != nil {
			o.log.WithError(err).Warn("gorm: failed to install otelgorm plugin")
		}
	}
	o.log.WithField("dialect", dial.Name()).Info("gorm: connected")
	return db, nil
}

// ParseLogLevel maps silent/error/warn/info onto gorm log levels.
func ParseLogLevel(s string) logger.LogLevel {
	switch s {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
