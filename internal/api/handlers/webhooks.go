package handlers

import (
	"net/http"

	"github.com/Nikita3549/SkyHelp-sub000/internal/esign"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var signatureHeaders = map[string]string{
	"signwell": esign.SignWellHeader,
	"docuseal": esign.DocuSealHeader,
}

type WebhookHandler struct {
	pipeline  *esign.Pipeline
	providers map[string]esign.Provider
	logger    *zap.Logger
}

func NewWebhookHandler(pipeline *esign.Pipeline, providers map[string]esign.Provider, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		pipeline:  pipeline,
		providers: providers,
		logger:    logger.With(zap.String("handler", "webhook")),
	}
}

// Receive ingests one provider callback. The body is read raw, exactly as
// delivered, because the HMAC covers the bytes on the wire; any parsed or
// re-encoded form would break verification.
func (h *WebhookHandler) Receive(c *gin.Context) {
	providerName := c.Param("provider")
	provider, ok := h.providers[providerName]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}

	rawBody, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
		return
	}

	signature := c.GetHeader(signatureHeaders[providerName])

	outcome, err := h.pipeline.Process(c.Request.Context(), provider, rawBody, signature)
	switch outcome {
	case esign.OutcomeRejected:
		c.JSON(http.StatusForbidden, gin.H{"error": "signature mismatch"})
	case esign.OutcomeProcessed, esign.OutcomeDuplicate, esign.OutcomeIgnored:
		if err != nil {
			// The delivery was authentic but processing failed; answer 500
			// so the provider retries.
			h.logger.Error("webhook processing failed",
				zap.Error(err), zap.String("provider", providerName))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": string(outcome)})
	}
}
