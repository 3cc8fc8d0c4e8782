package render

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/signintech/gopdf"
)

// EmbeddableObject is a page fragment prepared for drawing into a target
// document. The source page is cropped to the requested region and imported
// as a form XObject, so the fragment is reused as vector/raster content
// as-is, without any image re-encoding.
type EmbeddableObject struct {
	cropped []byte
	page    int
}

// EmbedRegion prepares a rectangular region of one page of sourceBytes for
// embedding. The page index is 1-based; the rectangle is in PDF user space
// (points, origin at the bottom-left of the page).
func EmbedRegion(sourceBytes []byte, pageIndex int, region Rect) (*EmbeddableObject, error) {
	if pageIndex < 1 {
		return nil, fmt.Errorf("page index must be >= 1, got %d", pageIndex)
	}
	if region.W <= 0 || region.H <= 0 {
		return nil, fmt.Errorf("region must have positive size, got %gx%g", region.W, region.H)
	}
	if len(sourceBytes) == 0 {
		return nil, fmt.Errorf("empty source document")
	}

	box := &model.Box{
		Rect: types.NewRectangle(region.X, region.Y, region.X+region.W, region.Y+region.H),
	}

	// gofpdi cannot parse object streams or xref streams, so the cropped
	// document must be written in the classic cross-reference format.
	conf := model.NewDefaultConfiguration()
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false

	var cropped bytes.Buffer
	pages := []string{strconv.Itoa(pageIndex)}
	if err := pdfcpu.Crop(bytes.NewReader(sourceBytes), &cropped, pages, box, conf); err != nil {
		return nil, fmt.Errorf("crop source page %d: %w", pageIndex, err)
	}

	return &EmbeddableObject{cropped: cropped.Bytes(), page: pageIndex}, nil
}

// Draw places the fragment into pdf so the cropped region fills the box at
// (x, y) with size (w, h), in gopdf's top-left coordinates.
func (e *EmbeddableObject) Draw(pdf *gopdf.GoPdf, x, y, w, h float64) (err error) {
	// gofpdi panics on malformed PDFs; turn that into an error so the
	// queue's retry policy stays in charge.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("import cropped page %d: %v", e.page, r)
		}
	}()

	var rs io.ReadSeeker = bytes.NewReader(e.cropped)
	tpl := pdf.ImportPageStream(&rs, e.page, "/CropBox")
	pdf.UseImportedTemplate(tpl, x, y, w, h)
	return nil
}
