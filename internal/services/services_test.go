package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Nikita3549/SkyHelp-sub000/internal/db"
	"github.com/Nikita3549/SkyHelp-sub000/internal/db/models"
	"github.com/Nikita3549/SkyHelp-sub000/internal/extraction"
	"github.com/Nikita3549/SkyHelp-sub000/internal/storage"
	"github.com/Nikita3549/SkyHelp-sub000/pkg/metrics"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// stubExtractor is a canned extraction API.
type stubExtractor struct {
	passport *extraction.PassportData
	score    float64
	err      error
	calls    int
}

func (s *stubExtractor) ExtractPassport(ctx context.Context, content []byte) (*extraction.PassportData, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.passport, nil
}

func (s *stubExtractor) VerifySignature(ctx context.Context, passport, signature []byte) (*extraction.MatchResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &extraction.MatchResult{Score: s.score}, nil
}

type testEnv struct {
	db            *gorm.DB
	store         *storage.MemoryStorage
	extractor     *stubExtractor
	completeness  *CompletenessService
	discrepancies *DiscrepancyService
	documents     *DocumentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// A fresh connection would see a fresh in-memory database; pin the pool
	// to one connection so every query shares the schema.
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.RunMigrations(database))

	logger := zap.NewNop()
	collector := metrics.NewMetricsCollector()
	store := storage.NewMemoryStorage()
	extractor := &stubExtractor{passport: &extraction.PassportData{}}

	completeness := NewCompletenessService(database, logger, collector)
	discrepancies := NewDiscrepancyService(database, store, extractor, logger, collector)
	documents := NewDocumentService(database, store, completeness, discrepancies, logger, collector)
	// Run the side channel inline so tests can assert on its effects.
	documents.dispatch = func(fn func()) { fn() }

	return &testEnv{
		db:            database,
		store:         store,
		extractor:     extractor,
		completeness:  completeness,
		discrepancies: discrepancies,
		documents:     documents,
	}
}

// seedClaim creates a claim with a customer and n additional passengers.
func (e *testEnv) seedClaim(t *testing.T, extraPassengers int) *models.Claim {
	t.Helper()

	claim := &models.Claim{
		ID:           uuid.New().String(),
		AirlineName:  "Volare Air",
		FlightNumber: "VA1234",
		Status:       models.StatusAwaitingDocuments,
	}
	require.NoError(t, e.db.Create(claim).Error)

	customer := &models.Passenger{
		ID:         uuid.New().String(),
		ClaimID:    claim.ID,
		FirstName:  "Anna",
		LastName:   "Kovacs",
		Address:    "1 Main St",
		City:       "Budapest",
		Country:    "Hungary",
		Email:      "anna@example.com",
		IsCustomer: true,
	}
	require.NoError(t, e.db.Create(customer).Error)
	claim.Passengers = append(claim.Passengers, *customer)

	for i := 0; i < extraPassengers; i++ {
		p := &models.Passenger{
			ID:        uuid.New().String(),
			ClaimID:   claim.ID,
			FirstName: "Pass",
			LastName:  "Enger",
		}
		require.NoError(t, e.db.Create(p).Error)
		claim.Passengers = append(claim.Passengers, *p)
	}
	return claim
}

// saveDoc persists a document without exercising upload plumbing.
func (e *testEnv) saveDoc(t *testing.T, claimID, passengerID string, docType models.DocumentType) *models.Document {
	t.Helper()

	doc, err := e.documents.Save(context.Background(), []byte("content-"+string(docType)), claimID, passengerID, docType, "application/pdf")
	require.NoError(t, err)
	return doc
}

func (e *testEnv) claimStatus(t *testing.T, claimID string) models.ClaimStatus {
	t.Helper()

	var claim models.Claim
	require.NoError(t, e.db.First(&claim, "id = ?", claimID).Error)
	return claim.Status
}

func (e *testEnv) progressEntries(t *testing.T, claimID string) []models.ClaimProgress {
	t.Helper()

	var entries []models.ClaimProgress
	require.NoError(t, e.db.Where("claim_id = ?", claimID).Order("entry_order ASC").Find(&entries).Error)
	return entries
}

var errExternalDown = errors.New("external service unavailable")
