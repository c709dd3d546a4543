package manhwa

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	// TargetWidth is the page width after scaling. Narrower pages are kept.
	TargetWidth = 800
	// MaxPageHeight is the strip height taller images are split at. A tail
	// shorter than MinStripHeight stays on the previous strip.
	MaxPageHeight = 2400
	// MinStripHeight is the shortest strip emitted on its own.
	MinStripHeight = 240

	jpegQuality = 85
)

// Page is one JPEG-encoded PDF page.
type Page struct {
	JPEG   []byte
	Width  int
	Height int
}

// Normalize decodes a downloaded page image, applies its EXIF orientation,
// scales it down to TargetWidth and slices it into MaxPageHeight strips.
func Normalize(data []byte) ([]Page, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("decode page: empty image")
	}
	if b.Dx() > TargetWidth {
		img = imaging.Resize(img, TargetWidth, 0, imaging.Lanczos)
	}

	b = img.Bounds()
	h := b.Dy()
	pages := make([]Page, 0, (h+MaxPageHeight-1)/MaxPageHeight)
	for y := 0; y < h; {
		end := min(y+MaxPageHeight, h)
		if h-end < MinStripHeight {
			end = h
		}
		strip := imaging.Crop(img, image.Rect(b.Min.X, b.Min.Y+y, b.Max.X, b.Min.Y+end))
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, strip, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
			return nil, fmt.Errorf("encode page: %w", err)
		}
		sb := strip.Bounds()
		pages = append(pages, Page{JPEG: buf.Bytes(), Width: sb.Dx(), Height: sb.Dy()})
		y = end
	}
	return pages, nil
}
