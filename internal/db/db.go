package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	types "github.com/minischools/academy-backend/internal/domain"
	"github.com/minischools/academy-backend/internal/platform/envutil"
	"github.com/minischools/academy-backend/internal/platform/logger"
)

type Config struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
}

func ConfigFromEnv() Config {
	return Config{
		Driver:     strings.ToLower(envutil.String("DB_DRIVER", "postgres")),
		Host:       envutil.String("POSTGRES_HOST", "localhost"),
		Port:       envutil.String("POSTGRES_PORT", "5432"),
		User:       envutil.String("POSTGRES_USER", "postgres"),
		Password:   envutil.String("POSTGRES_PASSWORD", ""),
		Name:       envutil.String("POSTGRES_NAME", "academy"),
		SSLMode:    envutil.String("POSTGRES_SSLMODE", "disable"),
		SQLitePath: envutil.String("SQLITE_PATH", "academy.db"),
	}
}

func (c Config) dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case "postgres", "":
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(c.SQLitePath), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", c.Driver)
	}
}

// Open connects using cfg and runs migrations.
func Open(log *logger.Logger, cfg Config) (*gorm.DB, error) {
	log = log.With("service", "Database")
	dialector, err := cfg.dialector()
	if err != nil {
		return nil, err
	}
	log.Info("Connecting to database...", "driver", cfg.Driver)
	gdb, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if cfg.Driver == "sqlite" {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	if err := AutoMigrate(gdb); err != nil {
		log.Error("Auto migration failed", "error", err)
		return nil, err
	}
	log.Info("Database ready")
	return gdb, nil
}

func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&types.ContentItem{},
		&types.Chapter{},
		&types.JobRun{},
	)
}
