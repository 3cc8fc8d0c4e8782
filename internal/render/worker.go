package render

import (
	"context"
	"fmt"

	"github.com/Nikita3549/SkyHelp-sub000/internal/db/models"
	"github.com/Nikita3549/SkyHelp-sub000/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AssignmentStore persists a rendered assignment, replacing any prior one
// for the passenger.
type AssignmentStore interface {
	ReplaceAssignment(ctx context.Context, claimID, passengerID string, content []byte, checkCompleteness bool) (*models.Document, error)
}

// Worker turns queued render jobs into stored assignment documents. Errors
// are returned to the queue, whose backoff policy owns retries; they never
// reach the caller that enqueued the job.
type Worker struct {
	renderer *Renderer
	docs     AssignmentStore
	db       *gorm.DB
	logger   *zap.Logger
	metrics  *metrics.MetricsCollector
}

func NewWorker(renderer *Renderer, docs AssignmentStore, db *gorm.DB, logger *zap.Logger, collector *metrics.MetricsCollector) *Worker {
	return &Worker{
		renderer: renderer,
		docs:     docs,
		db:       db,
		logger:   logger.With(zap.String("service", "render_worker")),
		metrics:  collector,
	}
}

// Handle processes one queued job: render, persist, flag the passenger as
// signed, and optionally write an activity entry.
func (w *Worker) Handle(ctx context.Context, raw []byte) error {
	job, err := UnmarshalJob(raw)
	if err != nil {
		return fmt.Errorf("decode render job: %w", err)
	}
	if err := job.Signature.Validate(); err != nil {
		// A malformed job can never succeed; log it and drop it rather
		// than burn retries.
		w.logger.Error("invalid render job", zap.Error(err), zap.String("claim_id", job.Claim.ID))
		return nil
	}

	content, err := w.renderer.Render(ctx, job)
	if err != nil {
		return fmt.Errorf("render assignment for claim %s: %w", job.Claim.ID, err)
	}

	doc, err := w.docs.ReplaceAssignment(ctx, job.Claim.ID, job.Passenger.ID, content, job.Options.CheckCompleteness)
	if err != nil {
		return fmt.Errorf("persist assignment for claim %s: %w", job.Claim.ID, err)
	}

	if err := w.db.WithContext(ctx).Model(&models.Passenger{}).
		Where("id = ?", job.Passenger.ID).
		Update("is_signed", true).Error; err != nil {
		return fmt.Errorf("flag passenger signed: %w", err)
	}

	if job.Options.SaveActivityRecord {
		entry := &models.ActivityEntry{
			ClaimID: job.Claim.ID,
			Kind:    "assignment_generated",
			Detail:  fmt.Sprintf("assignment %s generated for passenger %s", doc.ID, job.Passenger.ID),
		}
		if err := w.db.WithContext(ctx).Create(entry).Error; err != nil {
			w.logger.Warn("failed to save activity entry", zap.Error(err), zap.String("claim_id", job.Claim.ID))
		}
	}

	w.metrics.IncrementCounter("assignments_rendered", nil)
	w.metrics.ObserveSize("assignment_size", float64(len(content)))
	w.logger.Info("Assignment rendered",
		zap.String("claim_id", job.Claim.ID),
		zap.String("passenger_id", job.Passenger.ID),
		zap.String("document_id", doc.ID))
	return nil
}
