package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ThomaseR24/signature-pad-canvas/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// contractRecord is the row layout of the contracts table. The contract is
// kept as a JSON document; id and version are real columns so the
// compare-and-swap can be done in the UPDATE itself.
type contractRecord struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Version   int64     `gorm:"not null"`
	Data      []byte    `gorm:"not null"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (contractRecord) TableName() string { return "contracts" }

// PostgresStore implements RecordStore on PostgreSQL through gorm
type PostgresStore struct {
	db *gorm.DB
}

// OpenPostgresStore connects to dsn and migrates the contracts table
func OpenPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Error),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return NewPostgresStore(db)
}

func NewPostgresStore(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(&contractRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate contracts table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close releases the underlying connection pool
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.Contract, error) {
	var rec contractRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var c model.Contract
	if err := json.Unmarshal(rec.Data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode contract %s: %w", id, err)
	}
	c.Version = rec.Version
	return &c, nil
}

func (s *PostgresStore) Set(ctx context.Context, c *model.Contract) error {
	next := c.Clone()
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	if c.Version == 0 {
		err := db.Create(&contractRecord{
			ID:        c.ID,
			Version:   next.Version,
			Data:      data,
			CreatedAt: c.CreatedAt,
			UpdatedAt: next.UpdatedAt,
		}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s already exists", ErrVersionConflict, c.ID)
		}
		if err != nil {
			return err
		}
	} else {
		res := db.Model(&contractRecord{}).
			Where("id = ? AND version = ?", c.ID, c.Version).
			Updates(map[string]any{
				"version":    next.Version,
				"data":       data,
				"updated_at": next.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := db.Model(&contractRecord{}).Where("id = ?", c.ID).Count(&count).Error; err != nil {
				return err
			}
			return checkVersion(c, count > 0, -1)
		}
	}

	c.Version = next.Version
	c.UpdatedAt = next.UpdatedAt
	return nil
}

// ListIDs returns ids ordered by creation time, newest first
func (s *PostgresStore) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&contractRecord{}).Order("created_at desc").Pluck("id", &ids).Error
	return ids, err
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&contractRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
