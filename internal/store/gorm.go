package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// record is the single backing table: one row per (collection, key).
type record struct {
	Collection string `gorm:"primaryKey;size:64"`
	Key        string `gorm:"primaryKey;size:64"`
	Value      []byte `gorm:"not null"`
	UpdatedAt  int64  `gorm:"autoUpdateTime:milli"`
}

func (record) TableName() string { return "records" }

// GormStore persists collections in an embedded SQLite file. SQLite commits
// synchronously, which gives the durable-before-return guarantee the Store
// contract requires.
type GormStore struct {
	db *gorm.DB
}

// Open opens (or creates) the database file and migrates the schema.
func Open(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("migrate local store: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Get(ctx context.Context, collection, key string) (json.RawMessage, error) {
	var rec record
	err := s.db.WithContext(ctx).
		Where("collection = ? AND key = ?", collection, key).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(rec.Value), nil
}

func (s *GormStore) Put(ctx context.Context, collection, key string, value json.RawMessage) error {
	rec := record{Collection: collection, Key: key, Value: value}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&rec).Error
}

func (s *GormStore) Delete(ctx context.Context, collection, key string) error {
	return s.db.WithContext(ctx).
		Where("collection = ? AND key = ?", collection, key).
		Delete(&record{}).Error
}

func (s *GormStore) Keys(ctx context.Context, collection string) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).Model(&record{}).
		Where("collection = ?", collection).
		Pluck("key", &keys).Error
	return keys, err
}

func (s *GormStore) Scan(ctx context.Context, collection string) ([]Record, error) {
	var recs []record
	err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		out = append(out, Record{Key: r.Key, Value: json.RawMessage(r.Value)})
	}
	return out, nil
}

var _ Store = (*GormStore)(nil)
