package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Nikita3549/SkyHelp-sub000/internal/db/models"
	"github.com/Nikita3549/SkyHelp-sub000/internal/storage"
	"github.com/Nikita3549/SkyHelp-sub000/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrDocumentNotFound = errors.New("document not found")

const inspectTimeout = 60 * time.Second

// DocumentService is the durable, append-mostly record of uploaded and
// generated files. Content is never updated in place: replacing an artifact
// is a new row plus a soft delete of the old one, and soft deletes never
// remove bytes from storage.
type DocumentService struct {
	db            *gorm.DB
	storage       storage.ObjectStorage
	completeness  *CompletenessService
	discrepancies *DiscrepancyService
	logger        *zap.Logger
	metrics       *metrics.MetricsCollector

	// dispatch runs the discrepancy side channel; tests swap it for a
	// synchronous version.
	dispatch func(fn func())
}

func NewDocumentService(
	db *gorm.DB,
	store storage.ObjectStorage,
	completeness *CompletenessService,
	discrepancies *DiscrepancyService,
	logger *zap.Logger,
	collector *metrics.MetricsCollector,
) *DocumentService {
	return &DocumentService{
		db:            db,
		storage:       store,
		completeness:  completeness,
		discrepancies: discrepancies,
		logger:        logger.With(zap.String("service", "document_service")),
		metrics:       collector,
		dispatch:      func(fn func()) { go fn() },
	}
}

// Save stores content and records the document, then re-evaluates claim
// completeness and kicks off discrepancy detection. The detector runs
// fire-and-forget and can never block or fail the save.
func (ds *DocumentService) Save(ctx context.Context, content []byte, claimID, passengerID string, docType models.DocumentType, mimetype string) (*models.Document, error) {
	return ds.save(ctx, content, claimID, passengerID, docType, mimetype, true)
}

func (ds *DocumentService) save(ctx context.Context, content []byte, claimID, passengerID string, docType models.DocumentType, mimetype string, checkCompleteness bool) (*models.Document, error) {
	start := time.Now()

	key := storage.BuildKey(claimID, mimetype, time.Now())
	if err := ds.storage.Put(ctx, key, content, mimetype); err != nil {
		return nil, fmt.Errorf("store document content: %w", err)
	}

	doc := &models.Document{
		ID:          uuid.New().String(),
		ClaimID:     claimID,
		PassengerID: passengerID,
		Type:        docType,
		StorageKey:  key,
		Mimetype:    mimetype,
	}
	if err := ds.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, fmt.Errorf("record document: %w", err)
	}

	ds.metrics.IncrementCounter("documents_saved", map[string]string{"type": string(docType)})
	ds.metrics.ObserveSize("document_size", float64(len(content)))
	ds.metrics.ObserveLatency("document_save", time.Since(start))
	ds.logger.Info("Document saved",
		zap.String("doc_id", doc.ID),
		zap.String("claim_id", claimID),
		zap.String("type", string(docType)))

	if checkCompleteness {
		if err := ds.completeness.Run(ctx, claimID); err != nil {
			ds.logger.Error("completeness check failed", zap.Error(err), zap.String("claim_id", claimID))
		}
	}

	if docType == models.TypePassport || docType == models.TypeAssignment {
		docCopy := *doc
		contentCopy := make([]byte, len(content))
		copy(contentCopy, content)
		ds.dispatch(func() {
			inspectCtx, cancel := context.WithTimeout(context.Background(), inspectTimeout)
			defer cancel()
			ds.discrepancies.Inspect(inspectCtx, &docCopy, contentCopy)
		})
	}

	return doc, nil
}

// ReplaceAssignment persists a freshly rendered assignment and soft-deletes
// any prior assignment the passenger had, so the passenger always carries at
// most one live assignment document.
func (ds *DocumentService) ReplaceAssignment(ctx context.Context, claimID, passengerID string, content []byte, checkCompleteness bool) (*models.Document, error) {
	var previous []models.Document
	if err := ds.db.WithContext(ctx).
		Where("claim_id = ? AND passenger_id = ? AND type = ?", claimID, passengerID, models.TypeAssignment).
		Find(&previous).Error; err != nil {
		return nil, err
	}

	doc, err := ds.save(ctx, content, claimID, passengerID, models.TypeAssignment, "application/pdf", checkCompleteness)
	if err != nil {
		return nil, err
	}

	for _, old := range previous {
		if err := ds.SoftDelete(ctx, old.ID); err != nil {
			ds.logger.Error("failed to soft-delete superseded assignment",
				zap.Error(err), zap.String("doc_id", old.ID))
		}
	}

	return doc, nil
}

// SoftDelete flags the document deleted, deactivates discrepancies that
// reference it and re-evaluates its claim. Bytes stay in storage.
func (ds *DocumentService) SoftDelete(ctx context.Context, id string) error {
	var doc models.Document
	if err := ds.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}

	if err := ds.db.WithContext(ctx).Delete(&doc).Error; err != nil {
		return err
	}

	if err := ds.discrepancies.DeactivateForDocument(ctx, doc.ID); err != nil {
		ds.logger.Error("failed to deactivate discrepancies", zap.Error(err), zap.String("doc_id", doc.ID))
	}

	ds.metrics.IncrementCounter("documents_soft_deleted", nil)
	ds.logger.Info("Document soft-deleted", zap.String("doc_id", doc.ID), zap.String("claim_id", doc.ClaimID))

	if err := ds.completeness.Run(ctx, doc.ClaimID); err != nil {
		ds.logger.Error("completeness check failed", zap.Error(err), zap.String("claim_id", doc.ClaimID))
	}
	return nil
}

func (ds *DocumentService) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	if err := ds.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// ListByClaim returns the claim's live documents; soft-deleted rows are
// filtered by gorm's DeletedAt handling.
func (ds *DocumentService) ListByClaim(ctx context.Context, claimID string) ([]models.Document, error) {
	var docs []models.Document
	if err := ds.db.WithContext(ctx).
		Where("claim_id = ?", claimID).
		Order("created_at DESC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (ds *DocumentService) ListByPassenger(ctx context.Context, passengerID string) ([]models.Document, error) {
	var docs []models.Document
	if err := ds.db.WithContext(ctx).
		Where("passenger_id = ?", passengerID).
		Order("created_at DESC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// ListPublicByClaim is the external-facing projection; storage keys are
// never exposed.
func (ds *DocumentService) ListPublicByClaim(ctx context.Context, claimID string) ([]models.PublicDocument, error) {
	docs, err := ds.ListByClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	public := make([]models.PublicDocument, len(docs))
	for i, d := range docs {
		public[i] = d.Public()
	}
	return public, nil
}

func (ds *DocumentService) Content(ctx context.Context, doc *models.Document) ([]byte, error) {
	return ds.storage.Get(ctx, doc.StorageKey)
}

func (ds *DocumentService) SignedURL(ctx context.Context, id string, disposition storage.Disposition, ttl time.Duration) (string, error) {
	doc, err := ds.GetDocument(ctx, id)
	if err != nil {
		return "", err
	}
	return ds.storage.SignedURL(ctx, doc.StorageKey, disposition, ttl)
}
