package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"fxswap_go/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage is the sqlite-backed swap journal. It records lifecycle milestones
// for audit; nothing reads it back to recover in-flight swaps.
type Storage struct {
	db *gorm.DB
}

// NewStorage creates a new SQLite journal instance. An empty path selects
// the per-user default location.
func NewStorage(path string) (*Storage, error) {
	dbPath := path
	if dbPath == "" {
		var err error
		dbPath, err = getDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
	}

	// Ensure directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&domain.SwapRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "FxSwap", "data", "fxswap.db"), nil
}

// UpsertSwap creates or updates the journal row for one swap lifecycle.
func (s *Storage) UpsertSwap(rec *domain.SwapRecord) error {
	return s.db.Save(rec).Error
}

// GetSwap retrieves the journal row for a correlation context.
func (s *Storage) GetSwap(contextID string) (*domain.SwapRecord, error) {
	var rec domain.SwapRecord
	err := s.db.First(&rec, "context_id = ?", contextID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &rec, err
}

// ListSwaps retrieves all journal rows, newest first.
func (s *Storage) ListSwaps() ([]domain.SwapRecord, error) {
	var recs []domain.SwapRecord
	err := s.db.Order("updated_at desc").Find(&recs).Error
	return recs, err
}

// ListSwapsByState retrieves journal rows in one lifecycle state.
func (s *Storage) ListSwapsByState(state string) ([]domain.SwapRecord, error) {
	var recs []domain.SwapRecord
	err := s.db.Where("state = ?", state).Find(&recs).Error
	return recs, err
}
