// Package store persists completed evacuation runs to PostgreSQL via GORM.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/evacsim/evacuation-core/internal/result"
)

// Store wraps a GORM connection dedicated to evacuation results.
type Store struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

// Open connects to url, migrates the result table, and configures the
// connection pool.
func Open(url string) (*Store, error) {
	gormLogger := logger.New(
		log.New(log.Writer(), "\r\n", log.LstdFlags),
		logger.Config{SlowThreshold: time.Millisecond * 500},
	)

	db, err := gorm.Open(postgres.Open(url), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&ResultPG{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{db: db, sqlDB: sqlDB}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s.sqlDB == nil {
		return nil
	}
	log.Println("store: closing PostgreSQL connection")
	return s.sqlDB.Close()
}

// SaveResult upserts a completed run's record.
func (s *Store) SaveResult(ctx context.Context, buildingName string, res *result.EvacuationModelingResult) error {
	row := toPG(buildingName, res)
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("store: save result %s: %w", res.RunID, err)
	}
	return nil
}

// LoadResult fetches a previously persisted run by its UUID string.
func (s *Store) LoadResult(ctx context.Context, runID string) (*ResultPG, error) {
	var row ResultPG
	if err := s.db.WithContext(ctx).First(&row, "run_id = ?", runID).Error; err != nil {
		return nil, fmt.Errorf("store: load result %s: %w", runID, err)
	}
	return &row, nil
}
