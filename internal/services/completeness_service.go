package services

import (
	"context"

	"github.com/Nikita3549/SkyHelp-sub000/internal/db"
	"github.com/Nikita3549/SkyHelp-sub000/internal/db/models"
	"github.com/Nikita3549/SkyHelp-sub000/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// requirementGroup names a set of document types of which a passenger needs
// at least one live document.
type requirementGroup struct {
	name        string
	satisfiedBy []models.DocumentType
}

var passengerRequirements = []requirementGroup{
	{name: "identity", satisfiedBy: models.IdentityTypes},
	{name: "assignment", satisfiedBy: []models.DocumentType{models.TypeAssignment}},
}

// CompletenessService decides when a claim's document set satisfies the
// advancement policy and owns the append-only progress history.
type CompletenessService struct {
	db      *gorm.DB
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
}

func NewCompletenessService(db *gorm.DB, logger *zap.Logger, collector *metrics.MetricsCollector) *CompletenessService {
	return &CompletenessService{
		db:      db,
		logger:  logger.With(zap.String("service", "completeness_service")),
		metrics: collector,
	}
}

// Evaluate reports whether every passenger on the claim satisfies every
// requirement group with non-deleted documents.
func (cs *CompletenessService) Evaluate(ctx context.Context, claimID string) (bool, error) {
	return cs.evaluate(cs.db.WithContext(ctx), claimID)
}

func (cs *CompletenessService) evaluate(tx *gorm.DB, claimID string) (bool, error) {
	var passengers []models.Passenger
	if err := tx.Where("claim_id = ?", claimID).Find(&passengers).Error; err != nil {
		return false, err
	}
	if len(passengers) == 0 {
		return false, nil
	}

	var docs []models.Document
	if err := tx.Where("claim_id = ?", claimID).Find(&docs).Error; err != nil {
		return false, err
	}

	byPassenger := make(map[string]map[models.DocumentType]bool)
	for _, d := range docs {
		if byPassenger[d.PassengerID] == nil {
			byPassenger[d.PassengerID] = make(map[models.DocumentType]bool)
		}
		byPassenger[d.PassengerID][d.Type] = true
	}

	for _, p := range passengers {
		have := byPassenger[p.ID]
		for _, group := range passengerRequirements {
			if !groupSatisfied(group, have) {
				return false, nil
			}
		}
	}
	return true, nil
}

func groupSatisfied(group requirementGroup, have map[models.DocumentType]bool) bool {
	for _, t := range group.satisfiedBy {
		if have[t] {
			return true
		}
	}
	return false
}

// Run re-evaluates the claim after a document mutation and advances it when
// the policy is satisfied. The status check, progress append and status
// update happen in one transaction with the claim row locked, so concurrent
// document saves can neither duplicate a progress order nor skip a
// transition, and re-running against an advanced claim is a no-op.
func (cs *CompletenessService) Run(ctx context.Context, claimID string) error {
	advanced := false
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimQuery := tx.Model(&models.Claim{})
		if db.SupportsRowLocks(tx) {
			claimQuery = claimQuery.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var claim models.Claim
		if err := claimQuery.First(&claim, "id = ?", claimID).Error; err != nil {
			return err
		}

		// Already advanced, or in a legal/terminal state this evaluator
		// must never override.
		if !claim.Status.Advanceable() {
			return nil
		}

		// An operator asking for documents holds the claim back, unless
		// the claim is already in document remediation.
		if claim.Status != models.StatusDocumentsRequested {
			var activeRequests int64
			if err := tx.Model(&models.DocumentRequest{}).
				Where("claim_id = ? AND status = ?", claimID, models.RequestActive).
				Count(&activeRequests).Error; err != nil {
				return err
			}
			if activeRequests > 0 {
				return nil
			}
		}

		complete, err := cs.evaluate(tx, claimID)
		if err != nil {
			return err
		}
		if !complete {
			return nil
		}

		var maxOrder int
		if err := tx.Model(&models.ClaimProgress{}).
			Where("claim_id = ?", claimID).
			Select("COALESCE(MAX(entry_order), 0)").
			Scan(&maxOrder).Error; err != nil {
			return err
		}

		progress := &models.ClaimProgress{
			ClaimID: claimID,
			Order:   maxOrder + 1,
			Status:  models.StatusInProgress,
		}
		if err := tx.Create(progress).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Claim{}).
			Where("id = ?", claimID).
			Update("status", models.StatusInProgress).Error; err != nil {
			return err
		}

		advanced = true
		return nil
	})
	if err != nil {
		return err
	}

	if advanced {
		cs.metrics.IncrementCounter("claims_advanced", nil)
		cs.logger.Info("Claim advanced, all required documents on file", zap.String("claim_id", claimID))
	}
	return nil
}
