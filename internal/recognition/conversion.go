package recognition

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

const mimePDF = "application/pdf"

// normalizeMIME lowercases and trims a content type, defaulting to JPEG
func normalizeMIME(contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return mimeType
}

// renderPDF renders the first page of a PDF (receipts are almost always one page)
func renderPDF(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// decodeImage turns any supported receipt upload into an image.Image
func decodeImage(img Image) (image.Image, error) {
	if len(img.Data) == 0 {
		return nil, ErrEmptyImage
	}
	mimeType := normalizeMIME(img.ContentType)

	switch {
	case mimeType == mimePDF:
		return renderPDF(img.Data)
	case isHEICFormat(img.Data) || isHEICMimeType(mimeType):
		decoded, err := heic.Decode(bytes.NewReader(img.Data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return decoded, nil
	}

	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
			return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return decoded, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks for an ftyp box with a HEIC-family brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// prepareImageData returns PNG bytes for the image, converting PDFs, HEIC and
// other raster formats. PNG input is passed through untouched.
func prepareImageData(img Image) ([]byte, error) {
	if len(img.Data) == 0 {
		return nil, ErrEmptyImage
	}
	mimeType := normalizeMIME(img.ContentType)
	if mimeType == "image/png" && !isHEICFormat(img.Data) {
		return img.Data, nil
	}

	decoded, err := decodeImage(img)
	if err != nil {
		return nil, err
	}
	return encodePNG(decoded)
}
