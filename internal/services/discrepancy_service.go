package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/Nikita3549/SkyHelp-sub000/internal/db/models"
	"github.com/Nikita3549/SkyHelp-sub000/internal/extraction"
	"github.com/Nikita3549/SkyHelp-sub000/internal/storage"
	"github.com/Nikita3549/SkyHelp-sub000/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrDiscrepancyNotFound = errors.New("discrepancy not found")

// Extractor is the slice of the extraction API the detector needs; tests
// substitute a stub.
type Extractor interface {
	ExtractPassport(ctx context.Context, content []byte) (*extraction.PassportData, error)
	VerifySignature(ctx context.Context, passport, signature []byte) (*extraction.MatchResult, error)
}

// DiscrepancyService is the best-effort side channel comparing extracted
// document data against canonical passenger records. External failures are
// logged and swallowed; the triggering save never notices.
type DiscrepancyService struct {
	db        *gorm.DB
	storage   storage.ObjectStorage
	extractor Extractor
	logger    *zap.Logger
	metrics   *metrics.MetricsCollector
}

func NewDiscrepancyService(db *gorm.DB, store storage.ObjectStorage, extractor Extractor, logger *zap.Logger, collector *metrics.MetricsCollector) *DiscrepancyService {
	return &DiscrepancyService{
		db:        db,
		storage:   store,
		extractor: extractor,
		logger:    logger.With(zap.String("service", "discrepancy_service")),
		metrics:   collector,
	}
}

// Inspect runs detection for a newly persisted document. Only PASSPORT and
// ASSIGNMENT documents are inspected.
func (ds *DiscrepancyService) Inspect(ctx context.Context, doc *models.Document, content []byte) {
	var err error
	switch doc.Type {
	case models.TypePassport:
		err = ds.inspectPassport(ctx, doc, content)
	case models.TypeAssignment:
		err = ds.inspectAssignment(ctx, doc, content)
	default:
		return
	}
	if err != nil {
		// Best effort: a timed-out or failed external call produces no
		// record.
		ds.metrics.IncrementCounter("discrepancy_inspect_failures", nil)
		ds.logger.Warn("discrepancy inspection failed",
			zap.Error(err),
			zap.String("doc_id", doc.ID),
			zap.String("type", string(doc.Type)))
	}
}

func (ds *DiscrepancyService) inspectPassport(ctx context.Context, doc *models.Document, content []byte) error {
	extracted, err := ds.extractor.ExtractPassport(ctx, content)
	if err != nil {
		return err
	}

	var passenger models.Passenger
	if err := ds.db.WithContext(ctx).First(&passenger, "id = ?", doc.PassengerID).Error; err != nil {
		return err
	}

	if !namesEqual(extracted.GivenNames, passenger.FirstName) {
		if err := ds.record(ctx, doc, models.DiscrepancyGivenNames, extracted.GivenNames); err != nil {
			return err
		}
	}
	if !namesEqual(extracted.Surname, passenger.LastName) {
		if err := ds.record(ctx, doc, models.DiscrepancySurname, extracted.Surname); err != nil {
			return err
		}
	}
	return nil
}

func (ds *DiscrepancyService) inspectAssignment(ctx context.Context, doc *models.Document, content []byte) error {
	var passport models.Document
	err := ds.db.WithContext(ctx).
		Where("passenger_id = ? AND type = ?", doc.PassengerID, models.TypePassport).
		Order("created_at DESC").
		First(&passport).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// No passport on file yet; nothing to compare against.
		return nil
	}
	if err != nil {
		return err
	}

	passportBytes, err := ds.storage.Get(ctx, passport.StorageKey)
	if err != nil {
		return err
	}

	result, err := ds.extractor.VerifySignature(ctx, passportBytes, content)
	if err != nil {
		return err
	}

	// The score is always recorded; consumers decide what it means.
	return ds.record(ctx, doc, models.DiscrepancySignatureMatch, formatScore(result.Score))
}

func (ds *DiscrepancyService) record(ctx context.Context, doc *models.Document, kind models.DiscrepancyKind, value string) error {
	disc := &models.Discrepancy{
		ClaimID:        doc.ClaimID,
		PassengerID:    doc.PassengerID,
		DocumentID:     doc.ID,
		Kind:           kind,
		ExtractedValue: value,
		Status:         models.DiscrepancyActive,
	}
	if err := ds.db.WithContext(ctx).Create(disc).Error; err != nil {
		return err
	}
	ds.metrics.IncrementCounter("discrepancies_created", map[string]string{"kind": string(kind)})
	ds.logger.Info("Discrepancy recorded",
		zap.String("doc_id", doc.ID),
		zap.String("kind", string(kind)),
		zap.String("value", value))
	return nil
}

// DeactivateForDocument flips every discrepancy referencing the document to
// INACTIVE; called when its source document is soft-deleted or superseded.
func (ds *DiscrepancyService) DeactivateForDocument(ctx context.Context, documentID string) error {
	return ds.db.WithContext(ctx).Model(&models.Discrepancy{}).
		Where("document_id = ?", documentID).
		Update("status", models.DiscrepancyInactive).Error
}

// ListByClaim returns all discrepancies for a claim, active first.
func (ds *DiscrepancyService) ListByClaim(ctx context.Context, claimID string) ([]models.Discrepancy, error) {
	var discs []models.Discrepancy
	if err := ds.db.WithContext(ctx).
		Where("claim_id = ?", claimID).
		Order("status ASC, created_at DESC").
		Find(&discs).Error; err != nil {
		return nil, err
	}
	return discs, nil
}

// Refresh recomputes one discrepancy in place. The row keeps its identity;
// the extracted value is overwritten and the status follows the new
// comparison, so a manual refresh never duplicates a record.
func (ds *DiscrepancyService) Refresh(ctx context.Context, id uint) error {
	var disc models.Discrepancy
	if err := ds.db.WithContext(ctx).First(&disc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDiscrepancyNotFound
		}
		return err
	}

	var doc models.Document
	if err := ds.db.WithContext(ctx).First(&doc, "id = ?", disc.DocumentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ds.db.WithContext(ctx).Model(&disc).
				Update("status", models.DiscrepancyInactive).Error
		}
		return err
	}

	content, err := ds.storage.Get(ctx, doc.StorageKey)
	if err != nil {
		return err
	}

	var passenger models.Passenger
	if err := ds.db.WithContext(ctx).First(&passenger, "id = ?", disc.PassengerID).Error; err != nil {
		return err
	}

	var value string
	var matches bool
	switch disc.Kind {
	case models.DiscrepancyGivenNames, models.DiscrepancySurname:
		extracted, err := ds.extractor.ExtractPassport(ctx, content)
		if err != nil {
			return err
		}
		if disc.Kind == models.DiscrepancyGivenNames {
			value = extracted.GivenNames
			matches = namesEqual(value, passenger.FirstName)
		} else {
			value = extracted.Surname
			matches = namesEqual(value, passenger.LastName)
		}
	case models.DiscrepancySignatureMatch:
		var passport models.Document
		err := ds.db.WithContext(ctx).
			Where("passenger_id = ? AND type = ?", disc.PassengerID, models.TypePassport).
			Order("created_at DESC").
			First(&passport).Error
		if err != nil {
			return err
		}
		passportBytes, err := ds.storage.Get(ctx, passport.StorageKey)
		if err != nil {
			return err
		}
		result, err := ds.extractor.VerifySignature(ctx, passportBytes, content)
		if err != nil {
			return err
		}
		value = formatScore(result.Score)
		matches = false
	}

	status := models.DiscrepancyActive
	if matches {
		status = models.DiscrepancyInactive
	}
	return ds.db.WithContext(ctx).Model(&disc).
		Updates(map[string]interface{}{"extracted_value": value, "status": status}).Error
}

func namesEqual(extracted, canonical string) bool {
	return strings.EqualFold(strings.TrimSpace(extracted), strings.TrimSpace(canonical))
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 4, 64)
}
