package models

import (
	"gorm.io/gorm"
)

type ScenarioType string

const (
	ScenarioPrimary        ScenarioType = "PRIMARY"
	ScenarioExternal       ScenarioType = "EXTERNAL"
	ScenarioOtherPassenger ScenarioType = "OTHER_PASSENGER"
)

// SigningScenario correlates an external e-signature request with the
// internal signing flow it was issued for. A row is written before the user
// is redirected to the provider and is consumed exactly once by the matching
// completion webhook.
type SigningScenario struct {
	gorm.Model
	ID                string       `gorm:"primaryKey"`
	ExternalRequestID string       `gorm:"uniqueIndex;not null"`
	Type              ScenarioType `gorm:"not null"`
	Provider          string       `gorm:"not null"`
	ClaimID           string       `gorm:"index;not null"`
	PassengerID       string
}
