package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/Nikita3549/SkyHelp-sub000/internal/render"
	"github.com/Nikita3549/SkyHelp-sub000/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SigningHandler struct {
	signingService *services.SigningService
	logger         *zap.Logger
}

func NewSigningHandler(signingService *services.SigningService, logger *zap.Logger) *SigningHandler {
	return &SigningHandler{
		signingService: signingService,
		logger:         logger.With(zap.String("handler", "signing")),
	}
}

func (h *SigningHandler) readSignatureImage(c *gin.Context) ([]byte, bool) {
	fileHeader, err := c.FormFile("signature")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature image is required"})
		return nil, false
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read signature"})
		return nil, false
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read signature"})
		return nil, false
	}
	return content, true
}

func (h *SigningHandler) respond(c *gin.Context, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
	case errors.Is(err, services.ErrAlreadySigned):
		c.JSON(http.StatusConflict, gin.H{"error": "already signed"})
	case errors.Is(err, services.ErrClaimNotFound), errors.Is(err, services.ErrPassengerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signing token"})
	case errors.Is(err, render.ErrInvalidSignatureSource):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("signing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signing failed"})
	}
}

// SignPrimary is the customer's own signing flow, authorized by the
// claim-scoped token from the signing link.
func (h *SigningHandler) SignPrimary(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signing token is required"})
		return
	}

	image, ok := h.readSignatureImage(c)
	if !ok {
		return
	}

	h.respond(c, h.signingService.SignPrimary(c.Request.Context(), token, image))
}

// SignExternal completes signing through the side channel keyed by the
// customer's id.
func (h *SigningHandler) SignExternal(c *gin.Context) {
	image, ok := h.readSignatureImage(c)
	if !ok {
		return
	}

	err := h.signingService.SignExternal(c.Request.Context(), c.Param("claimId"), c.Param("customerId"), image)
	h.respond(c, err)
}

// SignOtherPassenger captures a co-passenger's signature.
func (h *SigningHandler) SignOtherPassenger(c *gin.Context) {
	image, ok := h.readSignatureImage(c)
	if !ok {
		return
	}

	err := h.signingService.SignOtherPassenger(c.Request.Context(), c.Param("claimId"), c.Param("passengerId"), image)
	h.respond(c, err)
}

// regionRequest coordinates are in PDF user space: points, origin at the
// bottom-left of the page, exactly as they appear inside the source PDF.
type regionRequest struct {
	PassengerID string  `json:"passengerId" binding:"required"`
	StorageKey  string  `json:"storageKey" binding:"required"`
	Page        int     `json:"page" binding:"required"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	W           float64 `json:"w" binding:"required"`
	H           float64 `json:"h" binding:"required"`
}

// SignFromRegion reuses a signature from a region of a stored PDF.
func (h *SigningHandler) SignFromRegion(c *gin.Context) {
	var req regionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ref := render.PageRegionRef{
		StorageKey: req.StorageKey,
		Page:       req.Page,
		Rect:       render.Rect{X: req.X, Y: req.Y, W: req.W, H: req.H},
	}
	err := h.signingService.SignFromDocumentRegion(c.Request.Context(), c.Param("claimId"), req.PassengerID, ref)
	h.respond(c, err)
}

// StartProviderSession creates a provider-hosted signing session and returns
// the redirect URL.
func (h *SigningHandler) StartProviderSession(c *gin.Context) {
	claimID := c.Param("claimId")
	providerName := c.Param("provider")

	var req struct {
		PassengerID string `json:"passengerId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	signURL, err := h.signingService.StartProviderSession(c.Request.Context(), claimID, req.PassengerID, providerName)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"signUrl": signURL})
	case errors.Is(err, services.ErrUnknownProvider):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
	case errors.Is(err, services.ErrSessionsSuppressed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "provider signing is not available in this environment"})
	case errors.Is(err, services.ErrAlreadySigned):
		c.JSON(http.StatusConflict, gin.H{"error": "already signed"})
	case errors.Is(err, services.ErrClaimNotFound), errors.Is(err, services.ErrPassengerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("provider session failed", zap.Error(err), zap.String("provider", providerName))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start signing session"})
	}
}
