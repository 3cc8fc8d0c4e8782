package render

import (
	"bytes"
	"testing"

	"github.com/signintech/gopdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sourcePDF builds a one-page A4 document with some vector content inside
// the region the tests cut out.
func sourcePDF(t *testing.T) []byte {
	t.Helper()

	src := &gopdf.GoPdf{}
	src.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	src.AddPage()
	src.SetLineWidth(2)
	src.Line(100, 150, 300, 250)
	src.Line(100, 250, 300, 150)

	out := src.GetBytesPdf()
	require.NotEmpty(t, out)
	return out
}

func TestEmbedRegionDrawRoundTrip(t *testing.T) {
	obj, err := EmbedRegion(sourcePDF(t), 1, Rect{X: 90, Y: 140, W: 220, H: 120})
	require.NoError(t, err)

	target := &gopdf.GoPdf{}
	target.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	target.AddPage()

	// The cropped page must import as a reusable template; this is the
	// whole point of the primitive.
	require.NoError(t, obj.Draw(target, 330, 655, 170, 60))

	result := target.GetBytesPdf()
	require.NotEmpty(t, result)
	assert.True(t, bytes.HasPrefix(result, []byte("%PDF")))
}

func TestEmbedRegionDrawIntoMultipleDocuments(t *testing.T) {
	src := sourcePDF(t)

	// One prepared fragment can be drawn into independent documents.
	for i := 0; i < 2; i++ {
		obj, err := EmbedRegion(src, 1, Rect{X: 90, Y: 140, W: 220, H: 120})
		require.NoError(t, err)

		target := &gopdf.GoPdf{}
		target.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
		target.AddPage()
		require.NoError(t, obj.Draw(target, 100, 100, 170, 60))
		require.NotEmpty(t, target.GetBytesPdf())
	}
}

func TestEmbedRegionRejectsMalformedSource(t *testing.T) {
	_, err := EmbedRegion([]byte("%PDF-1.4 truncated garbage"), 1, Rect{X: 0, Y: 0, W: 100, H: 50})
	assert.Error(t, err)
}
