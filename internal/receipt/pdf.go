package receipt

import (
	"bytes"
	"fmt"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

// RenderPDF lays the receipt out on one A4 page with a QR code of the tag
// number for quick lookup at the desk.
func RenderPDF(r Receipt) ([]byte, error) {
	qrPNG, err := qrcode.Encode(r.TagNumber, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	title := "Luggage Storage Receipt"
	if !r.Final {
		title = "Luggage Storage Claim Slip"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title+" "+r.TagNumber, false)
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, title)
	pdf.Ln(14)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, line := range r.Lines() {
		pdf.SetFont("Arial", "B", 11)
		pdf.Cell(45, 8, tr(line[0]))
		pdf.SetFont("Arial", "", 11)
		pdf.Cell(0, 8, tr(line[1]))
		pdf.Ln(7)
	}

	imageOpts := gofpdf.ImageOptions{
		ImageType: "PNG",
	}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 150, 30, 40, 40, false, imageOpts, 0, "")

	pdf.SetY(-30)
	pdf.SetFont("Arial", "I", 9)
	pdf.Cell(0, 6, fmt.Sprintf("Issued %s", r.IssuedAt.Format(timeLayout)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}
