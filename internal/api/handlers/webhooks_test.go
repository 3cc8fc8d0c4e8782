package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Nikita3549/SkyHelp-sub000/internal/config"
	"github.com/Nikita3549/SkyHelp-sub000/internal/db"
	"github.com/Nikita3549/SkyHelp-sub000/internal/db/models"
	"github.com/Nikita3549/SkyHelp-sub000/internal/esign"
	"github.com/Nikita3549/SkyHelp-sub000/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const webhookSecret = "wh-test-secret"

// nullSink satisfies the pipeline without persisting anything.
type nullSink struct {
	calls int
}

func (n *nullSink) ReplaceAssignment(ctx context.Context, claimID, passengerID string, content []byte, checkCompleteness bool) (*models.Document, error) {
	n.calls++
	return &models.Document{ID: uuid.New().String(), ClaimID: claimID, PassengerID: passengerID}, nil
}

// staticDocProvider is a signwell-shaped provider whose document fetch is
// served from memory.
type staticDocProvider struct {
	*esign.SignWell
	document []byte
}

func (p *staticDocProvider) FetchDocument(ctx context.Context, documentRef string) ([]byte, error) {
	return p.document, nil
}

func newWebhookRouter(t *testing.T) (*gin.Engine, *gorm.DB, *nullSink) {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.RunMigrations(database))

	sink := &nullSink{}
	pipeline := esign.NewPipeline(database, sink, zap.NewNop(), metrics.NewMetricsCollector())

	providers := map[string]esign.Provider{
		"signwell": &staticDocProvider{
			SignWell: esign.NewSignWell(config.ProviderConfig{WebhookSecret: webhookSecret}),
			document: []byte("signed pdf"),
		},
	}
	handler := NewWebhookHandler(pipeline, providers, zap.NewNop())

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/webhooks/:provider", handler.Receive)
	return engine, database, sink
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(engine *gin.Engine, path string, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(esign.SignWellHeader, signature)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestReceiveUnknownProvider(t *testing.T) {
	engine, _, _ := newWebhookRouter(t)

	rec := postWebhook(engine, "/webhooks/pandadoc", []byte(`{}`), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReceiveRejectsBadSignature(t *testing.T) {
	engine, _, sink := newWebhookRouter(t)

	body := []byte(`{"event":"document_completed","data":{"id":"req-1","status":"completed"}}`)
	rec := postWebhook(engine, "/webhooks/signwell", body, "deadbeef")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, sink.calls)

	rec = postWebhook(engine, "/webhooks/signwell", body, "")
	assert.Equal(t, http.StatusForbidden, rec.Code, "missing signature header is a rejection too")
}

func TestReceiveProcessesAuthenticCompletion(t *testing.T) {
	engine, database, sink := newWebhookRouter(t)

	passenger := &models.Passenger{ID: uuid.New().String(), ClaimID: "claim-1", FirstName: "Anna", LastName: "Kovacs", IsCustomer: true}
	require.NoError(t, database.Create(passenger).Error)
	scenario := &models.SigningScenario{
		ID:                uuid.New().String(),
		ExternalRequestID: "req-77",
		Type:              models.ScenarioPrimary,
		Provider:          "signwell",
		ClaimID:           "claim-1",
		PassengerID:       passenger.ID,
	}
	require.NoError(t, database.Create(scenario).Error)

	body := []byte(`{"event":"document_completed","data":{"id":"req-77","status":"completed","document_url":"https://signwell.example/d/req-77.pdf"}}`)
	rec := postWebhook(engine, "/webhooks/signwell", body, signBody(body))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, sink.calls)

	// Replays are answered 200 so the provider stops, but nothing runs twice.
	rec = postWebhook(engine, "/webhooks/signwell", body, signBody(body))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, sink.calls)
}

func TestReceiveIgnoresUnknownRequestID(t *testing.T) {
	engine, _, sink := newWebhookRouter(t)

	body := []byte(`{"event":"document_completed","data":{"id":"never-registered","status":"completed"}}`)
	rec := postWebhook(engine, "/webhooks/signwell", body, signBody(body))
	assert.Equal(t, http.StatusOK, rec.Code, "unknown correlations are acknowledged, not errored")
	assert.Zero(t, sink.calls)
}
