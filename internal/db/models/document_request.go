package models

import (
	"gorm.io/gorm"
)

type DocumentRequestStatus string

const (
	RequestActive   DocumentRequestStatus = "ACTIVE"
	RequestInactive DocumentRequestStatus = "INACTIVE"
)

// DocumentRequest is an operator's explicit ask for missing or corrected
// documents. While one is ACTIVE the completeness evaluator holds the claim
// back, except when the claim is already in document remediation.
type DocumentRequest struct {
	gorm.Model
	ClaimID string                `gorm:"index;not null"`
	Status  DocumentRequestStatus `gorm:"not null;default:'ACTIVE'"`
	Reason  string
}
