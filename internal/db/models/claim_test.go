package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaimStatusAdvanceable(t *testing.T) {
	assert.True(t, StatusAwaitingDocuments.Advanceable())
	assert.True(t, StatusDocumentsRequested.Advanceable())

	for _, s := range []ClaimStatus{StatusInProgress, StatusLegalProcess, StatusCompleted, StatusRejected} {
		assert.False(t, s.Advanceable(), "status %s must not be advanceable", s)
	}
}

func TestClaimCustomer(t *testing.T) {
	claim := &Claim{
		Passengers: []Passenger{
			{ID: "p1"},
			{ID: "p2", IsCustomer: true},
		},
	}
	assert.Equal(t, "p2", claim.Customer().ID)

	assert.Nil(t, (&Claim{}).Customer())
}

func TestPassengerNeedsParentalSignature(t *testing.T) {
	assert.True(t, (&Passenger{IsMinor: true}).NeedsParentalSignature())
	assert.False(t, (&Passenger{IsMinor: true, IsCustomer: true}).NeedsParentalSignature())
	assert.False(t, (&Passenger{}).NeedsParentalSignature())
}

func TestPassengerFullName(t *testing.T) {
	p := &Passenger{FirstName: "Anna", LastName: "Kovacs"}
	assert.Equal(t, "Anna Kovacs", p.FullName())
}
