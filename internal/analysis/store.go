package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Type tags an analysis record.
type Type string

const (
	TypeCropRecommendation Type = "crop_recommendation"
	TypeCarbonCredits      Type = "carbon_credits"
	TypeEnergyOptimization Type = "energy_optimization"
	TypeFarmRecommendation Type = "farm_recommendation"
	TypeSoilAnalysis       Type = "soil_analysis"
)

// Record is a stored analysis: the farm data it ran on and its result, both
// as JSON.
type Record struct {
	ID        string          `gorm:"primarykey" json:"id"`
	CreatedAt time.Time       `gorm:"index" json:"created_at"`
	FarmID    string          `gorm:"index" json:"farm_id"`
	Type      Type            `gorm:"index" json:"type"`
	Input     json.RawMessage `json:"input"`
	Result    json.RawMessage `json:"result"`
}

// TableName implements gorm's Tabler.
func (Record) TableName() string { return "analysis_records" }

// DefaultListLimit caps Previous when no limit is given.
const DefaultListLimit = 10

// Store persists analysis records.
type Store struct {
	db *gorm.DB
}

// OpenStore opens (and migrates) the record table in the SQLite file at path.
// ":memory:" gives a private in-memory database.
func OpenStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("open analysis store: %w", err)
	}
	if path == ":memory:" {
		// each pooled connection would otherwise see its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate analysis store: %w", err)
	}
	return &Store{db: db}, nil
}

// Save inserts r.
func (s *Store) Save(ctx context.Context, r *Record) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("save analysis record: %w", err)
	}
	return nil
}

// List returns the records of farmID, newest first. An empty typ matches
// every type.
func (s *Store) List(ctx context.Context, farmID string, typ Type, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	db := s.db.WithContext(ctx).Where("farm_id = ?", farmID)
	if typ != "" {
		db = db.Where("type = ?", typ)
	}

	var records []Record
	if err := db.Order("created_at desc").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list analysis records: %w", err)
	}
	return records, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
