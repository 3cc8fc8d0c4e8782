package models

import (
	"time"

	"gorm.io/gorm"
)

type DocumentType string

const (
	TypePassport        DocumentType = "PASSPORT"
	TypeIDCard          DocumentType = "ID_CARD"
	TypeResidencePermit DocumentType = "RESIDENCE_PERMIT"
	TypeETicket         DocumentType = "ETICKET"
	TypeBoardingPass    DocumentType = "BOARDING_PASS"
	TypeAssignment      DocumentType = "ASSIGNMENT"
	TypeOther           DocumentType = "OTHER"
)

// IdentityTypes are the document types that satisfy the identity requirement
// group. Any one of them is enough for a passenger.
var IdentityTypes = []DocumentType{TypePassport, TypeIDCard, TypeResidencePermit}

// Document is a stored artifact tied to exactly one (claim, passenger) pair.
// Rows are never updated in place: a changed artifact is a new row plus a
// soft delete of the old one. gorm's DeletedAt keeps soft-deleted rows out of
// every default query.
type Document struct {
	gorm.Model
	ID          string       `gorm:"primaryKey"`
	ClaimID     string       `gorm:"index;not null"`
	PassengerID string       `gorm:"index;not null"`
	Type        DocumentType `gorm:"not null"`
	StorageKey  string       `gorm:"not null"`
	Mimetype    string
}

// PublicDocument is the external-facing projection; it never exposes the
// storage key.
type PublicDocument struct {
	ID          string       `json:"id"`
	ClaimID     string       `json:"claimId"`
	PassengerID string       `json:"passengerId"`
	Type        DocumentType `json:"type"`
	Mimetype    string       `json:"mimetype"`
	CreatedAt   time.Time    `json:"createdAt"`
}

func (d *Document) Public() PublicDocument {
	return PublicDocument{
		ID:          d.ID,
		ClaimID:     d.ClaimID,
		PassengerID: d.PassengerID,
		Type:        d.Type,
		Mimetype:    d.Mimetype,
		CreatedAt:   d.CreatedAt,
	}
}
