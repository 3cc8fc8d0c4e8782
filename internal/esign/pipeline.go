package esign

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nikita3549/SkyHelp-sub000/internal/db/models"
	"github.com/Nikita3549/SkyHelp-sub000/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const statusCompleted = "completed"

// DocumentSink persists a fetched signed document, replacing any prior
// assignment for the passenger and triggering the completeness check.
type DocumentSink interface {
	ReplaceAssignment(ctx context.Context, claimID, passengerID string, content []byte, checkCompleteness bool) (*models.Document, error)
}

// Outcome says what the pipeline did with a delivery; every case other than
// Rejected is answered 200 so providers stop retrying.
type Outcome string

const (
	OutcomeRejected  Outcome = "rejected"  // HMAC mismatch, 403
	OutcomeDuplicate Outcome = "duplicate" // already processed
	OutcomeIgnored   Outcome = "ignored"   // unknown correlation or not completed
	OutcomeProcessed Outcome = "processed"
)

// sideEffect is the per-scenario hook run after the document is on file.
type sideEffect func(ctx context.Context, tx *gorm.DB, scenario *models.SigningScenario) error

// Pipeline is the single webhook ingestion path both providers share.
type Pipeline struct {
	db      *gorm.DB
	docs    DocumentSink
	logger  *zap.Logger
	metrics *metrics.MetricsCollector

	effects map[models.ScenarioType]sideEffect
}

func NewPipeline(db *gorm.DB, docs DocumentSink, logger *zap.Logger, collector *metrics.MetricsCollector) *Pipeline {
	p := &Pipeline{
		db:      db,
		docs:    docs,
		logger:  logger.With(zap.String("service", "webhook_pipeline")),
		metrics: collector,
	}
	p.effects = map[models.ScenarioType]sideEffect{
		models.ScenarioPrimary:        p.markPassengerSigned,
		models.ScenarioExternal:       p.markPassengerSigned,
		models.ScenarioOtherPassenger: p.markPassengerSigned,
	}
	return p
}

// Process ingests one raw webhook delivery.
//
// Order matters: authenticity first (before any lookup), then idempotency,
// then correlation, then the completion gate, and only then the provider
// fetch and persistence.
func (p *Pipeline) Process(ctx context.Context, provider Provider, rawBody []byte, signatureHeader string) (Outcome, error) {
	log := p.logger.With(zap.String("provider", provider.Name()))

	if len(rawBody) == 0 || !provider.VerifySignature(rawBody, signatureHeader) {
		p.metrics.IncrementCounter("webhooks_rejected", map[string]string{"provider": provider.Name()})
		log.Warn("webhook rejected, signature mismatch")
		return OutcomeRejected, ErrBadSignature
	}

	completion, err := provider.ParseCompletion(rawBody)
	if err != nil {
		return OutcomeIgnored, err
	}
	if completion.RequestID == "" {
		return OutcomeIgnored, nil
	}

	// At-least-once delivery in, at-most-once effects out: the unique
	// dedup key insert is the gate.
	dedupKey := fmt.Sprintf("%s:%s:%s", provider.Name(), completion.RequestID, completion.Status)
	inserted, err := p.recordDelivery(ctx, provider.Name(), dedupKey)
	if err != nil {
		return OutcomeIgnored, err
	}
	if !inserted {
		log.Info("duplicate webhook delivery dropped", zap.String("dedup_key", dedupKey))
		return OutcomeDuplicate, nil
	}

	// From here on a failure must release the dedup key, otherwise the
	// provider's retry would be dropped as a duplicate and the delivery
	// lost for good.
	var scenario models.SigningScenario
	err = p.db.WithContext(ctx).
		First(&scenario, "external_request_id = ?", completion.RequestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Not ours, or already fully consumed. Silently ignore.
		log.Info("webhook for unknown signing request ignored",
			zap.String("request_id", completion.RequestID))
		return OutcomeIgnored, nil
	}
	if err != nil {
		p.releaseDelivery(ctx, dedupKey)
		return OutcomeIgnored, err
	}

	if completion.Status != statusCompleted {
		log.Info("webhook ignored, signing not completed",
			zap.String("request_id", completion.RequestID),
			zap.String("status", completion.Status))
		return OutcomeIgnored, nil
	}

	content, err := provider.FetchDocument(ctx, completion.DocumentRef)
	if err != nil {
		p.releaseDelivery(ctx, dedupKey)
		return OutcomeIgnored, fmt.Errorf("fetch signed document: %w", err)
	}

	if _, err := p.docs.ReplaceAssignment(ctx, scenario.ClaimID, scenario.PassengerID, content, true); err != nil {
		p.releaseDelivery(ctx, dedupKey)
		return OutcomeIgnored, fmt.Errorf("persist signed document: %w", err)
	}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if effect, ok := p.effects[scenario.Type]; ok {
			if err := effect(ctx, tx, &scenario); err != nil {
				return err
			}
		}
		// Consume the correlation entry; a replay of the same request id
		// now falls into the unknown-correlation no-op path.
		return tx.Unscoped().Delete(&scenario).Error
	})
	if err != nil {
		// ReplaceAssignment is safe to re-run; let the retry redo the tail.
		p.releaseDelivery(ctx, dedupKey)
		return OutcomeIgnored, err
	}

	p.metrics.IncrementCounter("webhooks_processed", map[string]string{"provider": provider.Name()})
	log.Info("signed document ingested",
		zap.String("request_id", completion.RequestID),
		zap.String("claim_id", scenario.ClaimID),
		zap.String("scenario", string(scenario.Type)))
	return OutcomeProcessed, nil
}

func (p *Pipeline) releaseDelivery(ctx context.Context, dedupKey string) {
	if err := p.db.WithContext(ctx).Unscoped().
		Where("dedup_key = ?", dedupKey).
		Delete(&models.WebhookEvent{}).Error; err != nil {
		p.logger.Error("failed to release dedup key", zap.Error(err), zap.String("dedup_key", dedupKey))
	}
}

// recordDelivery inserts the dedup key, reporting false when it was already
// seen. ON CONFLICT DO NOTHING makes the insert the atomic arbiter.
func (p *Pipeline) recordDelivery(ctx context.Context, providerName, dedupKey string) (bool, error) {
	event := &models.WebhookEvent{DedupKey: dedupKey, Provider: providerName}
	res := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (p *Pipeline) markPassengerSigned(ctx context.Context, tx *gorm.DB, scenario *models.SigningScenario) error {
	if scenario.PassengerID == "" {
		return nil
	}
	return tx.Model(&models.Passenger{}).
		Where("id = ?", scenario.PassengerID).
		Update("is_signed", true).Error
}
