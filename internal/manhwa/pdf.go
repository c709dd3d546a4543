package manhwa

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// BuildPDF lays out one page per strip, each page exactly the strip's pixel
// size with no margins.
func BuildPDF(title string, pages []Page) ([]byte, error) {
	if len(pages) == 0 {
		return nil, errors.New("build pdf: no pages")
	}

	first := fpdf.SizeType{Wd: float64(pages[0].Width), Ht: float64(pages[0].Height)}
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           first,
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(title, true)
	pdf.SetCreator("nimebot", false)

	opts := fpdf.ImageOptions{ImageType: "JPG"}
	for i, p := range pages {
		w, h := float64(p.Width), float64(p.Height)
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
		name := fmt.Sprintf("page-%04d", i)
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(p.JPEG))
		pdf.ImageOptions(name, 0, 0, w, h, false, opts, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("build pdf: %w", err)
	}
	return buf.Bytes(), nil
}
