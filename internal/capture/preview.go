package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// Preview canvas bounds and encoding quality are fixed: the preview is for
// local display only and never uploaded.
const (
	previewMaxWidth  = 640
	previewMaxHeight = 400
	previewQuality   = 60
)

// JPEGPreviewer downsamples a screenshot onto a bounded canvas and encodes
// it as JPEG.
type JPEGPreviewer struct{}

func (JPEGPreviewer) Preview(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}

	b := src.Bounds()
	scale := 1
	for b.Dx()/scale > previewMaxWidth || b.Dy()/scale > previewMaxHeight {
		scale++
	}

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()/scale, b.Dy()/scale))
	for y := 0; y < dst.Rect.Dy(); y++ {
		for x := 0; x < dst.Rect.Dx(); x++ {
			dst.Set(x, y, src.At(b.Min.X+x*scale, b.Min.Y+y*scale))
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: previewQuality}); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
