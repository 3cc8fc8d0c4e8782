package models

import (
	"gorm.io/gorm"
)

// ActivityEntry is a free-form audit line attached to a claim, written for
// render jobs that asked for one.
type ActivityEntry struct {
	gorm.Model
	ClaimID string `gorm:"index;not null"`
	Kind    string `gorm:"not null"`
	Detail  string
}
