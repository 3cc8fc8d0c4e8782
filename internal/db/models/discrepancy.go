package models

import (
	"gorm.io/gorm"
)

type DiscrepancyKind string

const (
	DiscrepancyGivenNames     DiscrepancyKind = "GIVEN_NAMES"
	DiscrepancySurname        DiscrepancyKind = "SURNAME"
	DiscrepancySignatureMatch DiscrepancyKind = "SIGNATURE_MATCH"
)

type DiscrepancyStatus string

const (
	DiscrepancyActive   DiscrepancyStatus = "ACTIVE"
	DiscrepancyInactive DiscrepancyStatus = "INACTIVE"
)

// Discrepancy flags a mismatch between data extracted from a stored document
// and the canonical passenger record, or a signature-similarity score.
// Rows are flipped INACTIVE when their source document goes away; a manual
// refresh recomputes ExtractedValue in place.
type Discrepancy struct {
	gorm.Model
	ClaimID        string            `gorm:"index;not null"`
	PassengerID    string            `gorm:"index;not null"`
	DocumentID     string            `gorm:"index;not null"`
	Kind           DiscrepancyKind   `gorm:"not null"`
	ExtractedValue string
	Status         DiscrepancyStatus `gorm:"not null;default:'ACTIVE'"`
}
