package models

import "time"

// StorageEntry is one key of a browser-scoped persistent store.
type StorageEntry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"            json:"id"`
	ClientID  string    `gorm:"not null;uniqueIndex:idx_client_key" json:"client_id"`
	Key       string    `gorm:"column:entry_key;not null;uniqueIndex:idx_client_key" json:"key"`
	Value     string    `gorm:"not null"                            json:"value"`
	ExpiresAt time.Time `gorm:"index;not null"                      json:"expires_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
