package models

import (
	"gorm.io/gorm"
)

// ClaimProgress is the append-only status history of a claim. Order is
// strictly monotone per claim and entries are never mutated after creation;
// the uniqueness of (claim_id, order) backs the evaluator's atomic append.
type ClaimProgress struct {
	gorm.Model
	ClaimID string      `gorm:"index:idx_claim_order,unique;not null"`
	Order   int         `gorm:"column:entry_order;index:idx_claim_order,unique;not null"`
	Status  ClaimStatus `gorm:"not null"`
}
