package render

import (
	"context"
	"testing"

	"github.com/Nikita3549/SkyHelp-sub000/internal/db"
	"github.com/Nikita3549/SkyHelp-sub000/internal/db/models"
	"github.com/Nikita3549/SkyHelp-sub000/internal/storage"
	"github.com/Nikita3549/SkyHelp-sub000/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeStore struct {
	calls int
}

func (f *fakeStore) ReplaceAssignment(ctx context.Context, claimID, passengerID string, content []byte, checkCompleteness bool) (*models.Document, error) {
	f.calls++
	return &models.Document{ID: "doc-1", ClaimID: claimID, PassengerID: passengerID}, nil
}

func newTestWorker(t *testing.T) (*Worker, *fakeStore) {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.RunMigrations(database))

	store := &fakeStore{}
	renderer := NewRenderer(t.TempDir(), "missing.ttf", storage.NewMemoryStorage(), zap.NewNop())
	worker := NewWorker(renderer, store, database, zap.NewNop(), metrics.NewMetricsCollector())
	return worker, store
}

func TestHandleRejectsUndecodablePayload(t *testing.T) {
	worker, store := newTestWorker(t)

	err := worker.Handle(context.Background(), []byte("{corrupt"))
	assert.Error(t, err, "an unreadable payload goes back to the queue for retry accounting")
	assert.Zero(t, store.calls)
}

func TestHandleDropsJobWithInvalidSignatureSource(t *testing.T) {
	worker, store := newTestWorker(t)

	// Marshal refuses such jobs, so build the payload by hand.
	payload := []byte(`{"claimSnapshot":{"id":"c1"},"passengerSnapshot":{"id":"p1"},"options":{},"signature":{}}`)

	err := worker.Handle(context.Background(), payload)
	assert.NoError(t, err, "a job that can never succeed is dropped, not retried")
	assert.Zero(t, store.calls)
}

func TestHandleSurfacesRenderFailure(t *testing.T) {
	worker, store := newTestWorker(t)

	// Valid source but no template on disk; the error goes to the queue.
	payload := []byte(`{"claimSnapshot":{"id":"c1"},"passengerSnapshot":{"id":"p1"},"options":{},"signature":{"imageData":"cG5n"}}`)

	err := worker.Handle(context.Background(), payload)
	assert.Error(t, err)
	assert.Zero(t, store.calls)
}
