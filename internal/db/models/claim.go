package models

import (
	"time"

	"gorm.io/gorm"
)

type ClaimStatus string

const (
	StatusAwaitingDocuments  ClaimStatus = "AWAITING_DOCUMENTS"
	StatusDocumentsRequested ClaimStatus = "DOCUMENTS_REQUESTED"
	StatusInProgress         ClaimStatus = "IN_PROGRESS"
	StatusLegalProcess       ClaimStatus = "LEGAL_PROCESS"
	StatusCompleted          ClaimStatus = "COMPLETED"
	StatusRejected           ClaimStatus = "REJECTED"
)

// AdvanceableStatuses are the only states the completeness evaluator may move
// a claim out of. Legal and terminal states are owned elsewhere.
var AdvanceableStatuses = []ClaimStatus{
	StatusAwaitingDocuments,
	StatusDocumentsRequested,
}

func (s ClaimStatus) Advanceable() bool {
	for _, a := range AdvanceableStatuses {
		if s == a {
			return true
		}
	}
	return false
}

type Claim struct {
	gorm.Model
	ID           string      `gorm:"primaryKey"`
	AirlineName  string      `gorm:"not null"`
	FlightNumber string      `gorm:"not null"`
	FlightDate   time.Time
	Status       ClaimStatus `gorm:"not null;default:'AWAITING_DOCUMENTS'"`
	Passengers   []Passenger `gorm:"foreignKey:ClaimID"`
}

// Customer returns the primary passenger, the person the claim belongs to.
func (c *Claim) Customer() *Passenger {
	for i := range c.Passengers {
		if c.Passengers[i].IsCustomer {
			return &c.Passengers[i]
		}
	}
	return nil
}
