package tokenstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/pharmacy_portal/internal/models"
)

type GormKV struct {
	DB *gorm.DB
}

func NewGormKV(db *gorm.DB) *GormKV {
	return &GormKV{DB: db}
}

func (g *GormKV) Get(ctx context.Context, clientID, key string) (string, bool, error) {
	var e models.StorageEntry
	err := g.DB.WithContext(ctx).
		Where("client_id = ? AND entry_key = ? AND expires_at > ?", clientID, key, time.Now().UTC()).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return e.Value, true, nil
}

func (g *GormKV) Set(ctx context.Context, clientID string, values map[string]string, ttl time.Duration) error {
	if len(values) == 0 {
		return nil
	}
	exp := time.Now().UTC().Add(ttl)
	rows := make([]models.StorageEntry, 0, len(values))
	for k, v := range values {
		rows = append(rows, models.StorageEntry{ClientID: clientID, Key: k, Value: v, ExpiresAt: exp})
	}
	return g.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_id"}, {Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&rows).Error
}

func (g *GormKV) Delete(ctx context.Context, clientID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return g.DB.WithContext(ctx).
		Where("client_id = ? AND entry_key IN ?", clientID, keys).
		Delete(&models.StorageEntry{}).Error
}

// Sweep removes expired rows and reports how many were deleted.
func (g *GormKV) Sweep(ctx context.Context) (int64, error) {
	res := g.DB.WithContext(ctx).
		Where("expires_at <= ?", time.Now().UTC()).
		Delete(&models.StorageEntry{})
	return res.RowsAffected, res.Error
}
