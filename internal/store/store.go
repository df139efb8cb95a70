package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront-backend/internal/model"
)

// ErrNotFound is returned when no subscription exists for a user.
var ErrNotFound = errors.New("push subscription not found")

// Store defines the persistence operations for push subscriptions.
// At most one subscription exists per user id.
type Store interface {
	UpsertPushSubscription(ctx context.Context, userID string, subscription json.RawMessage) error
	GetPushSubscription(ctx context.Context, userID string) (*model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, userID string) error
	Close() error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// UpsertPushSubscription creates the user's subscription or overwrites the existing one.
func (s *gormStore) UpsertPushSubscription(ctx context.Context, userID string, subscription json.RawMessage) error {
	now := time.Now().UTC()
	record := model.PushSubscription{
		UserID:       userID,
		Subscription: datatypes.JSON(subscription),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"subscription", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("upsert push subscription for %s: %w", userID, err)
	}
	return nil
}

func (s *gormStore) GetPushSubscription(ctx context.Context, userID string) (*model.PushSubscription, error) {
	var record model.PushSubscription
	err := s.db.WithContext(ctx).First(&record, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription for %s: %w", userID, err)
	}
	return &record, nil
}

func (s *gormStore) DeletePushSubscription(ctx context.Context, userID string) error {
	if err := s.db.WithContext(ctx).Delete(&model.PushSubscription{}, "user_id = ?", userID).Error; err != nil {
		return fmt.Errorf("delete push subscription for %s: %w", userID, err)
	}
	return nil
}

func (s *gormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
