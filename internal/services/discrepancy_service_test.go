package services

import (
	"context"
	"testing"

	"github.com/Nikita3549/SkyHelp-sub000/internal/db/models"
	"github.com/Nikita3549/SkyHelp-sub000/internal/extraction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) discrepanciesFor(t *testing.T, claimID string) []models.Discrepancy {
	t.Helper()

	discs, err := e.discrepancies.ListByClaim(context.Background(), claimID)
	require.NoError(t, err)
	return discs
}

func TestPassportMatchProducesNoDiscrepancy(t *testing.T) {
	env := newTestEnv(t)

	claim := env.seedClaim(t, 0)
	customer := claim.Passengers[0]
	env.extractor.passport = &extraction.PassportData{GivenNames: "Anna", Surname: "Kovacs"}

	env.saveDoc(t, claim.ID, customer.ID, models.TypePassport)

	assert.Empty(t, env.discrepanciesFor(t, claim.ID))
}

func TestPassportMismatchRecordsPerField(t *testing.T) {
	env := newTestEnv(t)

	claim := env.seedClaim(t, 0)
	customer := claim.Passengers[0]
	env.extractor.passport = &extraction.PassportData{GivenNames: "Ana", Surname: "Kovacs"}

	doc := env.saveDoc(t, claim.ID, customer.ID, models.TypePassport)

	discs := env.discrepanciesFor(t, claim.ID)
	require.Len(t, discs, 1)
	assert.Equal(t, models.DiscrepancyGivenNames, discs[0].Kind)
	assert.Equal(t, "Ana", discs[0].ExtractedValue)
	assert.Equal(t, models.DiscrepancyActive, discs[0].Status)
	assert.Equal(t, doc.ID, discs[0].DocumentID)
}

func TestPassportComparisonIgnoresCaseAndWhitespace(t *testing.T) {
	env := newTestEnv(t)

	claim := env.seedClaim(t, 0)
	customer := claim.Passengers[0]
	env.extractor.passport = &extraction.PassportData{GivenNames: "  ANNA ", Surname: "kovacs"}

	env.saveDoc(t, claim.ID, customer.ID, models.TypePassport)

	assert.Empty(t, env.discrepanciesFor(t, claim.ID))
}

func TestPassportBothFieldsMismatch(t *testing.T) {
	env := newTestEnv(t)

	claim := env.seedClaim(t, 0)
	customer := claim.Passengers[0]
	env.extractor.passport = &extraction.PassportData{GivenNames: "Ana", Surname: "Kovac"}

	env.saveDoc(t, claim.ID, customer.ID, models.TypePassport)

	discs := env.discrepanciesFor(t, claim.ID)
	require.Len(t, discs, 2)
	kinds := map[models.DiscrepancyKind]bool{}
	for _, d := range discs {
		kinds[d.Kind] = true
	}
	assert.True(t, kinds[models.DiscrepancyGivenNames])
	assert.True(t, kinds[models.DiscrepancySurname])
}

func TestExtractionFailureProducesNoRecordAndNoError(t *testing.T) {
	env := newTestEnv(t)

	claim := env.seedClaim(t, 0)
	customer := claim.Passengers[0]
	env.extractor.err = errExternalDown

	// The save itself must not surface the extraction failure.
	doc, err := env.documents.Save(context.Background(), []byte("scan"), claim.ID, customer.ID, models.TypePassport, "image/png")
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Empty(t, env.discrepanciesFor(t, claim.ID))
}

func TestAssignmentWithoutPassportIsSkipped(t *testing.T) {
	env := newTestEnv(t)

	claim := env.seedClaim(t, 0)
	customer := claim.Passengers[0]
	env.saveDoc(t, claim.ID, customer.ID, models.TypeAssignment)

	assert.Empty(t, env.discrepanciesFor(t, claim.ID))
	assert.Zero(t, env.extractor.calls, "no passport on file means no external call")
}

func TestAssignmentSignatureScoreAlwaysRecorded(t *testing.T) {
	env := newTestEnv(t)

	claim := env.seedClaim(t, 0)
	customer := claim.Passengers[0]
	env.extractor.passport = &extraction.PassportData{GivenNames: "Anna", Surname: "Kovacs"}
	env.extractor.score = 0.97

	env.saveDoc(t, claim.ID, customer.ID, models.TypePassport)
	env.saveDoc(t, claim.ID, customer.ID, models.TypeAssignment)

	discs := env.discrepanciesFor(t, claim.ID)
	require.Len(t, discs, 1)
	assert.Equal(t, models.DiscrepancySignatureMatch, discs[0].Kind)
	assert.Equal(t, "0.9700", discs[0].ExtractedValue)
	assert.Equal(t, models.DiscrepancyActive, discs[0].Status)
}

func TestSoftDeleteDeactivatesDiscrepancies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	claim := env.seedClaim(t, 0)
	customer := claim.Passengers[0]
	env.extractor.passport = &extraction.PassportData{GivenNames: "Ana", Surname: "Kovac"}

	doc := env.saveDoc(t, claim.ID, customer.ID, models.TypePassport)
	require.Len(t, env.discrepanciesFor(t, claim.ID), 2)

	require.NoError(t, env.documents.SoftDelete(ctx, doc.ID))

	for _, d := range env.discrepanciesFor(t, claim.ID) {
		assert.Equal(t, models.DiscrepancyInactive, d.Status)
	}
}

func TestRefreshFlipsInactiveWhenRecordNowMatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	claim := env.seedClaim(t, 0)
	customer := claim.Passengers[0]
	env.extractor.passport = &extraction.PassportData{GivenNames: "Ana", Surname: "Kovacs"}

	env.saveDoc(t, claim.ID, customer.ID, models.TypePassport)
	discs := env.discrepanciesFor(t, claim.ID)
	require.Len(t, discs, 1)

	// An operator fixes the passenger record to match the passport.
	require.NoError(t, env.db.Model(&models.Passenger{}).Where("id = ?", customer.ID).Update("first_name", "Ana").Error)

	require.NoError(t, env.discrepancies.Refresh(ctx, discs[0].ID))

	discs = env.discrepanciesFor(t, claim.ID)
	require.Len(t, discs, 1)
	assert.Equal(t, models.DiscrepancyInactive, discs[0].Status)
	assert.Equal(t, "Ana", discs[0].ExtractedValue)
}

func TestRefreshKeepsActiveOnContinuedMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	claim := env.seedClaim(t, 0)
	customer := claim.Passengers[0]
	env.extractor.passport = &extraction.PassportData{GivenNames: "Ana", Surname: "Kovacs"}

	env.saveDoc(t, claim.ID, customer.ID, models.TypePassport)
	discs := env.discrepanciesFor(t, claim.ID)
	require.Len(t, discs, 1)

	require.NoError(t, env.discrepancies.Refresh(ctx, discs[0].ID))

	discs = env.discrepanciesFor(t, claim.ID)
	require.Len(t, discs, 1, "refresh recomputes in place, never duplicates")
	assert.Equal(t, models.DiscrepancyActive, discs[0].Status)
}

func TestRefreshDeactivatesWhenDocumentGone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	claim := env.seedClaim(t, 0)
	customer := claim.Passengers[0]
	env.extractor.passport = &extraction.PassportData{GivenNames: "Ana", Surname: "Kovacs"}

	doc := env.saveDoc(t, claim.ID, customer.ID, models.TypePassport)
	discs := env.discrepanciesFor(t, claim.ID)
	require.Len(t, discs, 1)

	// Hard-delete underneath the refresh to simulate a purged document.
	require.NoError(t, env.db.Unscoped().Delete(&models.Document{}, "id = ?", doc.ID).Error)

	require.NoError(t, env.discrepancies.Refresh(ctx, discs[0].ID))

	discs = env.discrepanciesFor(t, claim.ID)
	require.Len(t, discs, 1)
	assert.Equal(t, models.DiscrepancyInactive, discs[0].Status)
}

func TestRefreshUnknownID(t *testing.T) {
	env := newTestEnv(t)

	err := env.discrepancies.Refresh(context.Background(), 424242)
	assert.ErrorIs(t, err, ErrDiscrepancyNotFound)
}
