// File: internal/platform/database/gorm.go
package database

import (
	"context"
	"fmt"
	"time"

	"student_portal_backend/internal/config"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewGORM opens the database named by DB_DRIVER and checks it answers.
func NewGORM(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DBSQLitePath)
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:      newGormLogger(logger, cfg.LogLevel),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// sqlite serializes writers anyway; pool tuning only applies to postgres.
	if cfg.DBDriver != "sqlite" {
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
		sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	}

	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database", zap.String("driver", driverName(cfg)))
	return db, nil
}

func driverName(cfg *config.Config) string {
	if cfg.DBDriver == "" {
		return "postgres"
	}
	return cfg.DBDriver
}

// NewSQLiteInMemory opens a private in-memory sqlite database. Used by tests.
func NewSQLiteInMemory() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Every new connection to :memory: is a fresh database.
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Migrate creates or updates the tables for the given models.
func Migrate(db *gorm.DB, models ...interface{}) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Ping checks that the database answers within the context deadline.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CloseGORMDB closes the pool behind db.
func CloseGORMDB(db *gorm.DB, logger *zap.Logger) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Cannot reach sql.DB to close it", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("Error closing database connection", zap.Error(err))
		return
	}
	logger.Info("Database connection closed")
}

// newGormLogger routes gorm's query log through zap at a level derived from LOG_LEVEL.
func newGormLogger(logger *zap.Logger, level string) gormlogger.Interface {
	var gormLogLevel gormlogger.LogLevel
	switch level {
	case "silent", "fatal", "panic":
		gormLogLevel = gormlogger.Silent
	case "error":
		gormLogLevel = gormlogger.Error
	case "info", "debug":
		gormLogLevel = gormlogger.Info
	default:
		gormLogLevel = gormlogger.Warn
	}

	return gormlogger.New(
		zap.NewStdLog(logger.Named("gorm")),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogLevel,
			IgnoreRecordNotFoundError: true,
		},
	)
}
