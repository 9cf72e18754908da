package database

import (
	"context"
	"fmt"
	"strings"

	"taskmanager/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var defaultTags = []models.Tag{
	{Name: "bug", Color: "#e74c3c"},
	{Name: "feature", Color: "#2ecc71"},
	{Name: "improvement", Color: models.DefaultTagColor},
}

// Open connects to dsn, migrates the schema and seeds the default tags.
// A "sqlite:" prefix or a ".db" suffix selects SQLite; anything else is
// handed to the postgres driver.
func Open(dsn, logLevel string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(parseLogLevel(logLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if db.Dialector.Name() == "sqlite" {
		// Concurrent writers on SQLite need a single connection and FK enforcement.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	if err := seedDefaultTags(db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func dialector(dsn string) gorm.Dialector {
	if rest, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		return sqlite.Open(rest)
	}
	if strings.HasSuffix(dsn, ".db") {
		return sqlite.Open(dsn)
	}
	return postgres.Open(dsn)
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
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

func Migrate(db *gorm.DB) error {
	joins := []struct {
		model any
		field string
		join  any
	}{
		{&models.Project{}, "Members", &models.ProjectMember{}},
		{&models.Task{}, "Assignees", &models.TaskAssignee{}},
		{&models.Task{}, "Tags", &models.TaskTag{}},
	}
	for _, j := range joins {
		if err := db.SetupJoinTable(j.model, j.field, j.join); err != nil {
			return fmt.Errorf("join table %s: %w", j.field, err)
		}
	}

	err := db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Tag{},
		&models.Task{},
		&models.Comment{},
		&models.TaskAttachment{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func seedDefaultTags(db *gorm.DB, log *zap.Logger) error {
	var count int64
	if err := db.Model(&models.Tag{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tags := make([]models.Tag, len(defaultTags))
	copy(tags, defaultTags)
	if err := db.Create(&tags).Error; err != nil {
		return fmt.Errorf("seed tags: %w", err)
	}

	log.Info("default tags created", zap.Int("count", len(tags)))
	return nil
}

// Ping checks the connection is usable; it backs the health endpoint.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
