package recognition

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// minOCRHeight is the height receipts are upscaled to before OCR; thermal
// receipt text gets lost below roughly this size.
const minOCRHeight = 1200

// Tesseract implements Recognizer with a local Tesseract install. A fresh
// client is created for every call since gosseract clients are not safe for
// concurrent use.
type Tesseract struct {
	language string
}

// NewTesseract creates a new Tesseract recognizer
func NewTesseract(language string) *Tesseract {
	if language == "" {
		language = "eng"
	}
	return &Tesseract{language: language}
}

// preprocess converts to grayscale and upscales short images
func preprocess(img image.Image) image.Image {
	gray := imaging.Grayscale(img)
	if gray.Bounds().Dy() < minOCRHeight {
		return imaging.Resize(gray, 0, minOCRHeight, imaging.Lanczos)
	}
	return gray
}

// Recognize runs Tesseract line-level recognition
func (t *Tesseract) Recognize(ctx context.Context, img Image) (*Recognition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	decoded, err := decodeImage(img)
	if err != nil {
		return nil, err
	}
	prepared := preprocess(decoded)
	bounds := prepared.Bounds()

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, prepared, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding preprocessed image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return nil, fmt.Errorf("setting tesseract language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("setting image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	lines := linesFromBoxes(boxes, bounds.Dx(), bounds.Dy())
	if len(lines) == 0 {
		return nil, ErrNoText
	}
	return NewRecognition(lines), nil
}

// linesFromBoxes converts Tesseract text-line boxes (pixel space, confidence
// 0-100) into unit-space lines.
func linesFromBoxes(boxes []gosseract.BoundingBox, width, height int) []Line {
	lines := make([]Line, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		var box Rect
		if width > 0 && height > 0 {
			box = Rect{
				X:      clamp01(float64(b.Box.Min.X) / float64(width)),
				Y:      clamp01(float64(b.Box.Min.Y) / float64(height)),
				Width:  clamp01(float64(b.Box.Dx()) / float64(width)),
				Height: clamp01(float64(b.Box.Dy()) / float64(height)),
			}
		}
		lines = append(lines, Line{
			Text:        text,
			BoundingBox: box,
			Confidence:  clamp01(b.Confidence / 100),
		})
	}
	return lines
}

// Close is a no-op; clients are per call
func (t *Tesseract) Close() error {
	return nil
}
