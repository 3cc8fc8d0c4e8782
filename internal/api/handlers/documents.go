package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Nikita3549/SkyHelp-sub000/internal/db/models"
	"github.com/Nikita3549/SkyHelp-sub000/internal/services"
	"github.com/Nikita3549/SkyHelp-sub000/internal/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxUploadBytes = 20 << 20

var allowedUploadTypes = map[models.DocumentType]bool{
	models.TypePassport:        true,
	models.TypeIDCard:          true,
	models.TypeResidencePermit: true,
	models.TypeETicket:         true,
	models.TypeBoardingPass:    true,
	models.TypeOther:           true,
}

const downloadURLTTL = 5 * time.Minute

type DocumentHandler struct {
	documentService    *services.DocumentService
	discrepancyService *services.DiscrepancyService
	logger             *zap.Logger
}

func NewDocumentHandler(
	documentService *services.DocumentService,
	discrepancyService *services.DiscrepancyService,
	logger *zap.Logger,
) *DocumentHandler {
	return &DocumentHandler{
		documentService:    documentService,
		discrepancyService: discrepancyService,
		logger:             logger.With(zap.String("handler", "document")),
	}
}

// Upload stores one document for a claim passenger. ASSIGNMENT documents are
// generated, never uploaded.
func (h *DocumentHandler) Upload(c *gin.Context) {
	claimID := c.Param("claimId")
	passengerID := c.PostForm("passengerId")
	docType := models.DocumentType(c.PostForm("type"))

	if passengerID == "" || !allowedUploadTypes[docType] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "passengerId and a valid document type are required"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "please choose a file to upload"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read upload"})
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		h.logger.Error("read uploaded file failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read upload"})
		return
	}

	mimetype := fileHeader.Header.Get("Content-Type")
	if mimetype == "" {
		mimetype = "application/octet-stream"
	}

	doc, err := h.documentService.Save(c.Request.Context(), content, claimID, passengerID, docType, mimetype)
	if err != nil {
		h.logger.Error("save document failed", zap.Error(err), zap.String("claim_id", claimID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save document"})
		return
	}

	c.JSON(http.StatusCreated, doc.Public())
}

// List returns the public projection of a claim's live documents.
func (h *DocumentHandler) List(c *gin.Context) {
	claimID := c.Param("claimId")

	docs, err := h.documentService.ListPublicByClaim(c.Request.Context(), claimID)
	if err != nil {
		h.logger.Error("list documents failed", zap.Error(err), zap.String("claim_id", claimID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list documents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// DownloadURL hands out a short-lived signed URL for the raw file.
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	id := c.Param("id")

	disposition := storage.DispositionInline
	if c.Query("disposition") == string(storage.DispositionAttachment) {
		disposition = storage.DispositionAttachment
	}

	url, err := h.documentService.SignedURL(c.Request.Context(), id, disposition, downloadURLTTL)
	if err != nil {
		if errors.Is(err, services.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		h.logger.Error("signed url failed", zap.Error(err), zap.String("doc_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not build download url"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Delete soft-deletes a document; bytes stay in storage.
func (h *DocumentHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if err := h.documentService.SoftDelete(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		h.logger.Error("soft delete failed", zap.Error(err), zap.String("doc_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete document"})
		return
	}

	c.Status(http.StatusNoContent)
}

// Discrepancies lists a claim's discrepancy records.
func (h *DocumentHandler) Discrepancies(c *gin.Context) {
	claimID := c.Param("claimId")

	discs, err := h.discrepancyService.ListByClaim(c.Request.Context(), claimID)
	if err != nil {
		h.logger.Error("list discrepancies failed", zap.Error(err), zap.String("claim_id", claimID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list discrepancies"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"discrepancies": discs})
}

// RefreshDiscrepancy recomputes one discrepancy in place.
func (h *DocumentHandler) RefreshDiscrepancy(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid discrepancy id"})
		return
	}

	if err := h.discrepancyService.Refresh(c.Request.Context(), uint(id)); err != nil {
		if errors.Is(err, services.ErrDiscrepancyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "discrepancy not found"})
			return
		}
		h.logger.Error("refresh discrepancy failed", zap.Error(err), zap.Uint64("id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not refresh discrepancy"})
		return
	}

	c.Status(http.StatusNoContent)
}
