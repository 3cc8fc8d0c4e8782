package models

import (
	"gorm.io/gorm"
)

// WebhookEvent records every provider delivery this system has already acted
// on. The unique DedupKey turns the providers' at-least-once delivery into
// at-most-once internal effects: a second insert with the same key is a
// conflict and the delivery is dropped.
type WebhookEvent struct {
	gorm.Model
	DedupKey string `gorm:"uniqueIndex;not null"`
	Provider string `gorm:"not null"`
}
