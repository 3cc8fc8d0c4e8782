package models

import (
	"gorm.io/gorm"
)

type Passenger struct {
	gorm.Model
	ID         string `gorm:"primaryKey"`
	ClaimID    string `gorm:"index;not null"`
	FirstName  string `gorm:"not null"`
	LastName   string `gorm:"not null"`
	Address    string
	City       string
	Country    string
	Email      string
	IsCustomer bool `gorm:"not null;default:false"`
	IsMinor    bool `gorm:"not null;default:false"`
	// Parent identity is required only for minors who are not the customer;
	// the parent signs the assignment on the minor's behalf.
	ParentFirstName string
	ParentLastName  string
	IsSigned        bool `gorm:"not null;default:false"`
}

func (p *Passenger) FullName() string {
	return p.FirstName + " " + p.LastName
}

// NeedsParentalSignature reports whether the parental assignment template
// applies to this passenger.
func (p *Passenger) NeedsParentalSignature() bool {
	return p.IsMinor && !p.IsCustomer
}
