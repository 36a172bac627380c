// Package history mirrors interaction records into a sqlite database.
package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zhouzirui/ochat/internal/model/record"
)

// Entry is the table row for one record.
type Entry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	RecordID  string    `gorm:"size:36;uniqueIndex"`
	SessionID string    `gorm:"size:36;index"`
	Mode      string    `gorm:"size:16;index"`
	Model     string    `gorm:"size:128"`
	Input     string    `gorm:"type:text"`
	Output    string    `gorm:"type:text"`
	RawOutput string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}

// TableName keeps the table name stable across struct renames.
func (Entry) TableName() string {
	return "interaction_records"
}

// Store appends and queries records through gorm.
type Store struct {
	db *gorm.DB
}

// Open connects to the sqlite file at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Append inserts rec.
func (s *Store) Append(ctx context.Context, rec record.Record) error {
	entry := Entry{
		RecordID:  rec.ID,
		SessionID: rec.SessionID,
		Mode:      string(rec.Mode),
		Model:     rec.Model,
		Input:     rec.Input,
		Output:    rec.Output,
		RawOutput: rec.RawOutput,
		CreatedAt: rec.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("history: insert record %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to limit records, oldest first. An empty mode matches all.
func (s *Store) Recent(ctx context.Context, mode record.Mode, limit int) ([]record.Record, error) {
	if limit <= 0 {
		limit = 20
	}

	q := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit)
	if mode != "" {
		q = q.Where("mode = ?", string(mode))
	}

	var entries []Entry
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}

	out := make([]record.Record, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		out = append(out, record.Record{
			ID:        e.RecordID,
			SessionID: e.SessionID,
			Timestamp: e.CreatedAt,
			Mode:      record.Mode(e.Mode),
			Model:     e.Model,
			Input:     e.Input,
			Output:    e.Output,
			RawOutput: e.RawOutput,
		})
	}
	return out, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
