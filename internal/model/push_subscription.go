package model

import (
	"time"

	"gorm.io/datatypes"
)

// PushSubscription holds the browser push registration of one account.
// Subscription is the client's registration payload, stored as-is.
type PushSubscription struct {
	UserID       string         `gorm:"primaryKey;size:128" json:"userId"`
	Subscription datatypes.JSON `gorm:"not null" json:"subscription"`
	CreatedAt    time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updatedAt"`
}
