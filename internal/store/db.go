// Package store holds the durable-state adapters: the GORM-backed audit
// trail/device registry database, and the atomic JSON snapshot persistence
// for profiles and model versions described in spec.md §6.
package store

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBConfig mirrors the teacher's DatabaseConfig: a database type selector
// plus either a full DSN/URL or individual connection components.
type DBConfig struct {
	Type     string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	URL      string
}

// DBConfigFromEnv reads the database configuration from environment
// variables, following the teacher's DATABASE_URL-first precedence.
func DBConfigFromEnv() DBConfig {
	if url := getEnv("DATABASE_URL", ""); url != "" {
		return DBConfig{Type: "postgres", URL: url}
	}

	return DBConfig{
		Type:     getEnv("DB_TYPE", "sqlite"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "authrisk"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", "authrisk.db"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

// Open connects to the configured database, choosing the postgres or
// sqlite dialector, and configures the connection pool.
func Open(cfg DBConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Type {
	case "postgres":
		dsn := cfg.URL
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
				cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode)
		}
		dialector = postgres.Open(dsn)
	case "sqlite":
		dbPath := cfg.DBName
		if dbPath == "" {
			dbPath = "authrisk.db"
		}
		dialector = sqlite.Open(dbPath)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	gormLogger := logger.Default.LogMode(logger.Info)
	if os.Getenv("GIN_MODE") == "release" {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("✅ Database initialized successfully")
	return db, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
