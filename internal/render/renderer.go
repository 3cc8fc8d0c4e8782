// Package render produces signed assignment PDFs by compositing a captured
// signature onto a legal template.
package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Nikita3549/SkyHelp-sub000/internal/storage"
	"github.com/signintech/gopdf"
	"go.uber.org/zap"
)

const (
	fontName = "assignment"
	fontSize = 10

	// Template coordinates, in points from the top-left of the A4 page.
	// They match the fixed layout of the assignment templates in
	// assets/templates.
	nameX, nameY          = 105.0, 182.0
	addressX, addressY    = 105.0, 205.0
	cityX, cityY          = 105.0, 228.0
	claimIDX, claimIDY    = 375.0, 182.0
	airlineX, airlineY    = 375.0, 205.0
	flightX, flightY      = 375.0, 228.0
	dateX, dateY          = 105.0, 690.0
	signatureX            = 330.0
	signatureY            = 655.0
	signatureW            = 170.0
	signatureH            = 60.0
	parentNameX           = 105.0
	parentNameY           = 655.0
)

type templateVariant string

const (
	variantRegular  templateVariant = "regular"
	variantParental templateVariant = "parental"
)

// Renderer composites assignment PDFs. It is safe for concurrent use; every
// call builds its own gopdf document.
type Renderer struct {
	templateDir string
	fontPath    string
	storage     storage.ObjectStorage
	logger      *zap.Logger
}

func NewRenderer(templateDir, fontPath string, store storage.ObjectStorage, logger *zap.Logger) *Renderer {
	return &Renderer{
		templateDir: templateDir,
		fontPath:    fontPath,
		storage:     store,
		logger:      logger.With(zap.String("service", "renderer")),
	}
}

// Render produces the signed assignment PDF for a job. A job with both or
// neither signature source fails with ErrInvalidSignatureSource before
// anything is drawn.
func (r *Renderer) Render(ctx context.Context, job *Job) ([]byte, error) {
	if err := job.Signature.Validate(); err != nil {
		return nil, err
	}

	variant := variantRegular
	if job.Options.IsParental {
		variant = variantParental
	}

	templateBytes, err := os.ReadFile(filepath.Join(r.templateDir, fmt.Sprintf("assignment_%s.pdf", variant)))
	if err != nil {
		return nil, fmt.Errorf("load %s template: %w", variant, err)
	}

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := r.drawTemplate(pdf, templateBytes); err != nil {
		return nil, err
	}

	if err := pdf.AddTTFFont(fontName, r.fontPath); err != nil {
		return nil, fmt.Errorf("embed font: %w", err)
	}
	if err := pdf.SetFont(fontName, "", fontSize); err != nil {
		return nil, err
	}

	r.drawFields(pdf, job, variant)

	if err := r.drawSignature(ctx, pdf, job.Signature); err != nil {
		return nil, err
	}

	return pdf.GetBytesPdf(), nil
}

func (r *Renderer) drawTemplate(pdf *gopdf.GoPdf, templateBytes []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("import template page: %v", rec)
		}
	}()

	var rs io.ReadSeeker = bytes.NewReader(templateBytes)
	tpl := pdf.ImportPageStream(&rs, 1, "/MediaBox")
	pdf.UseImportedTemplate(tpl, 0, 0, gopdf.PageSizeA4.W, gopdf.PageSizeA4.H)
	return nil
}

func (r *Renderer) drawFields(pdf *gopdf.GoPdf, job *Job, variant templateVariant) {
	cell := func(x, y float64, text string) {
		pdf.SetXY(x, y)
		_ = pdf.Cell(nil, text)
	}

	cell(nameX, nameY, job.Passenger.FirstName+" "+job.Passenger.LastName)
	cell(addressX, addressY, job.Passenger.Address)
	cell(cityX, cityY, job.Passenger.City+", "+job.Passenger.Country)
	cell(claimIDX, claimIDY, job.Claim.ID)
	cell(airlineX, airlineY, job.Claim.AirlineName)
	cell(flightX, flightY, job.Claim.FlightNumber)
	cell(dateX, dateY, time.Now().UTC().Format("2006-01-02"))

	if variant == variantParental {
		cell(parentNameX, parentNameY, job.Passenger.ParentFirstName+" "+job.Passenger.ParentLastName)
	}
}

func (r *Renderer) drawSignature(ctx context.Context, pdf *gopdf.GoPdf, sig SignatureSource) error {
	if sig.SourceRef != nil {
		sourceBytes, err := r.storage.Get(ctx, sig.SourceRef.StorageKey)
		if err != nil {
			return fmt.Errorf("load signature source %s: %w", sig.SourceRef.StorageKey, err)
		}
		obj, err := EmbedRegion(sourceBytes, sig.SourceRef.Page, sig.SourceRef.Rect)
		if err != nil {
			return err
		}
		return obj.Draw(pdf, signatureX, signatureY, signatureW, signatureH)
	}

	holder, err := gopdf.ImageHolderByBytes(sig.ImageData)
	if err != nil {
		return fmt.Errorf("decode signature image: %w", err)
	}
	if err := pdf.ImageByHolder(holder, signatureX, signatureY, &gopdf.Rect{W: signatureW, H: signatureH}); err != nil {
		return fmt.Errorf("draw signature image: %w", err)
	}
	return nil
}
