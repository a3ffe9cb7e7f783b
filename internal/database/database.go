package database

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nnh1125/jumboboxd/internal/config"
	"github.com/nnh1125/jumboboxd/internal/logging"
)

// Connect opens the configured database and verifies it with a ping.
func Connect(cfg config.DatabaseConfig, logger *log.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN())
		logger.Info("connecting to database", "driver", cfg.Driver, "path", cfg.Path)
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN())
		logger.Info("connecting to database", "driver", cfg.Driver, "host", cfg.Host, "db", cfg.Name, "user", cfg.User, "port", cfg.Port, "sslmode", cfg.SSLMode)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	slow := cfg.SlowThreshold()
	if slow <= 0 {
		slow = time.Second
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logging.Gorm(logger, slow),
	})
	if err != nil {
		return nil, fmt.Errorf("gorm open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db.DB(): %w", err)
	}
	if cfg.Driver == config.DriverSQLite {
		// sqlite serialises writers; one connection also keeps :memory: databases shared.
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}

	logger.Info("database connection established")
	return db, nil
}

func Migrate(db *gorm.DB, logger *log.Logger, models ...any) error {
	if db == nil {
		return fmt.Errorf("database not connected")
	}
	logger.Info("running AutoMigrate", "models", len(models))
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info("migrations complete")
	return nil
}

func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
