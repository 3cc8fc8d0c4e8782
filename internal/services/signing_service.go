package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Nikita3549/SkyHelp-sub000/internal/config"
	"github.com/Nikita3549/SkyHelp-sub000/internal/db/models"
	"github.com/Nikita3549/SkyHelp-sub000/internal/esign"
	"github.com/Nikita3549/SkyHelp-sub000/internal/queue"
	"github.com/Nikita3549/SkyHelp-sub000/internal/render"
	"github.com/Nikita3549/SkyHelp-sub000/pkg/metrics"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrClaimNotFound      = errors.New("claim not found")
	ErrPassengerNotFound  = errors.New("passenger not found")
	ErrAlreadySigned      = errors.New("passenger has already signed")
	ErrInvalidToken       = errors.New("invalid signing token")
	ErrUnknownProvider    = errors.New("unknown e-signature provider")
	ErrSessionsSuppressed = errors.New("provider sessions are disabled outside production")
)

// SigningService owns the three internal signing scenarios, the provider
// correlation registry, and the hand-off to the render queue.
type SigningService struct {
	db        *gorm.DB
	queue     *queue.Queue
	providers map[string]esign.Provider
	cfg       *config.Configuration
	logger    *zap.Logger
	metrics   *metrics.MetricsCollector
}

func NewSigningService(
	db *gorm.DB,
	q *queue.Queue,
	providers map[string]esign.Provider,
	cfg *config.Configuration,
	logger *zap.Logger,
	collector *metrics.MetricsCollector,
) *SigningService {
	return &SigningService{
		db:        db,
		queue:     q,
		providers: providers,
		cfg:       cfg,
		logger:    logger.With(zap.String("service", "signing_service")),
		metrics:   collector,
	}
}

// IssueToken mints the claim-scoped token that authorizes the primary
// signing flow. It is embedded in the signing link sent to the customer.
func (ss *SigningService) IssueToken(claimID string) (string, error) {
	claims := jwt.MapClaims{
		"claimId": claimID,
		"scope":   "sign",
		"exp":     time.Now().Add(ss.cfg.Signing.TokenTTL).Unix(),
		"iat":     time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(ss.cfg.Signing.TokenSecret))
}

func (ss *SigningService) parseToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return []byte(ss.cfg.Signing.TokenSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	claimID, _ := claims["claimId"].(string)
	scope, _ := claims["scope"].(string)
	if claimID == "" || scope != "sign" {
		return "", ErrInvalidToken
	}
	return claimID, nil
}

// SignPrimary handles the primary customer signing with a captured signature
// image, authorized by the claim-scoped token.
func (ss *SigningService) SignPrimary(ctx context.Context, token string, imageData []byte) error {
	claimID, err := ss.parseToken(token)
	if err != nil {
		return err
	}

	claim, err := ss.loadClaim(ctx, claimID)
	if err != nil {
		return err
	}
	customer := claim.Customer()
	if customer == nil {
		return ErrPassengerNotFound
	}
	if customer.IsSigned {
		return ErrAlreadySigned
	}

	return ss.enqueueAssignment(ctx, claim, customer, render.SignatureSource{ImageData: imageData})
}

// SignExternal handles the side-channel flow where the customer completes
// signing identified by their passenger record.
func (ss *SigningService) SignExternal(ctx context.Context, claimID, customerID string, imageData []byte) error {
	claim, err := ss.loadClaim(ctx, claimID)
	if err != nil {
		return err
	}
	customer := claim.Customer()
	if customer == nil || customer.ID != customerID {
		return ErrPassengerNotFound
	}
	if customer.IsSigned {
		return ErrAlreadySigned
	}

	return ss.enqueueAssignment(ctx, claim, customer, render.SignatureSource{ImageData: imageData})
}

// SignOtherPassenger handles a co-passenger's signature.
func (ss *SigningService) SignOtherPassenger(ctx context.Context, claimID, passengerID string, imageData []byte) error {
	claim, err := ss.loadClaim(ctx, claimID)
	if err != nil {
		return err
	}

	var passenger *models.Passenger
	for i := range claim.Passengers {
		if claim.Passengers[i].ID == passengerID {
			passenger = &claim.Passengers[i]
			break
		}
	}
	if passenger == nil {
		return ErrPassengerNotFound
	}
	if passenger.IsSigned {
		return ErrAlreadySigned
	}

	return ss.enqueueAssignment(ctx, claim, passenger, render.SignatureSource{ImageData: imageData})
}

// SignFromDocumentRegion enqueues an assignment that reuses a signature
// captured inside a previously stored PDF, without re-encoding it.
func (ss *SigningService) SignFromDocumentRegion(ctx context.Context, claimID, passengerID string, ref render.PageRegionRef) error {
	claim, err := ss.loadClaim(ctx, claimID)
	if err != nil {
		return err
	}

	var passenger *models.Passenger
	for i := range claim.Passengers {
		if claim.Passengers[i].ID == passengerID {
			passenger = &claim.Passengers[i]
			break
		}
	}
	if passenger == nil {
		return ErrPassengerNotFound
	}
	if passenger.IsSigned {
		return ErrAlreadySigned
	}

	return ss.enqueueAssignment(ctx, claim, passenger, render.SignatureSource{SourceRef: &ref})
}

// StartProviderSession registers a hosted signing session with an external
// provider and writes the correlation entry before handing out the redirect
// URL, so the completion webhook can always be resolved.
func (ss *SigningService) StartProviderSession(ctx context.Context, claimID, passengerID, providerName string) (string, error) {
	provider, ok := ss.providers[providerName]
	if !ok {
		return "", ErrUnknownProvider
	}

	providerCfg := ss.cfg.Providers[providerName]
	if !ss.cfg.IsProduction() && !providerCfg.AllowOutsideProduction {
		ss.logger.Info("provider session suppressed outside production",
			zap.String("provider", providerName), zap.String("claim_id", claimID))
		return "", ErrSessionsSuppressed
	}

	claim, err := ss.loadClaim(ctx, claimID)
	if err != nil {
		return "", err
	}

	var passenger *models.Passenger
	for i := range claim.Passengers {
		if claim.Passengers[i].ID == passengerID {
			passenger = &claim.Passengers[i]
			break
		}
	}
	if passenger == nil {
		return "", ErrPassengerNotFound
	}
	if passenger.IsSigned {
		return "", ErrAlreadySigned
	}

	session, err := provider.CreateSigningSession(ctx, esign.SessionRequest{
		ClaimID:      claim.ID,
		SignerName:   passenger.FullName(),
		SignerEmail:  passenger.Email,
		AirlineName:  claim.AirlineName,
		FlightNumber: claim.FlightNumber,
	})
	if err != nil {
		return "", fmt.Errorf("create %s session: %w", providerName, err)
	}

	scenarioType := models.ScenarioOtherPassenger
	if passenger.IsCustomer {
		scenarioType = models.ScenarioPrimary
	}
	scenario := &models.SigningScenario{
		ID:                uuid.New().String(),
		ExternalRequestID: session.RequestID,
		Type:              scenarioType,
		Provider:          providerName,
		ClaimID:           claim.ID,
		PassengerID:       passenger.ID,
	}
	if err := ss.db.WithContext(ctx).Create(scenario).Error; err != nil {
		return "", fmt.Errorf("register signing scenario: %w", err)
	}

	ss.metrics.IncrementCounter("provider_sessions_created", map[string]string{"provider": providerName})
	ss.logger.Info("Provider signing session created",
		zap.String("provider", providerName),
		zap.String("claim_id", claim.ID),
		zap.String("request_id", session.RequestID))
	return session.SignURL, nil
}

func (ss *SigningService) loadClaim(ctx context.Context, claimID string) (*models.Claim, error) {
	var claim models.Claim
	err := ss.db.WithContext(ctx).
		Preload("Passengers").
		First(&claim, "id = ?", claimID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrClaimNotFound
	}
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// enqueueAssignment validates the signature source and hands the job to the
// durable render queue. Rendering never happens in the request path.
func (ss *SigningService) enqueueAssignment(ctx context.Context, claim *models.Claim, passenger *models.Passenger, sig render.SignatureSource) error {
	job := &render.Job{
		Claim: render.ClaimSnapshot{
			ID:           claim.ID,
			AirlineName:  claim.AirlineName,
			FlightNumber: claim.FlightNumber,
			FlightDate:   claim.FlightDate,
		},
		Passenger: render.PassengerSnapshot{
			ID:              passenger.ID,
			FirstName:       passenger.FirstName,
			LastName:        passenger.LastName,
			Address:         passenger.Address,
			City:            passenger.City,
			Country:         passenger.Country,
			ParentFirstName: passenger.ParentFirstName,
			ParentLastName:  passenger.ParentLastName,
		},
		Options: render.Options{
			IsParental:         passenger.NeedsParentalSignature(),
			SaveActivityRecord: true,
			CheckCompleteness:  true,
		},
		Signature: sig,
	}

	payload, err := job.Marshal()
	if err != nil {
		return err
	}
	if _, err := ss.queue.Enqueue(ctx, payload); err != nil {
		return fmt.Errorf("enqueue render job: %w", err)
	}

	ss.metrics.IncrementCounter("assignments_enqueued", nil)
	return nil
}
