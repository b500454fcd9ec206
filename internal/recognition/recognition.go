package recognition

import (
	"context"
	"errors"
	"strings"
)

// DefaultConfidenceFloor is the per-line confidence below which recognized
// lines are discarded before extraction.
const DefaultConfidenceFloor = 0.5

// readingOrderTolerance is how far (in unit image space) a line's vertical
// centre may sit above the previous line before the order counts as broken.
const readingOrderTolerance = 0.02

var (
	// ErrEmptyImage is returned when a recognizer is handed no image data.
	ErrEmptyImage = errors.New("empty image")
	// ErrNoText is returned when the engine processed the image but found no text at all.
	ErrNoText = errors.New("no text found in image")
)

// Image is a receipt image as handed over by the caller
type Image struct {
	Data        []byte
	ContentType string
}

// Rect is a bounding box in unit image space (0..1 on both axes) with the
// origin at the top-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero reports whether the box carries no geometry
func (r Rect) IsZero() bool {
	return r.Width == 0 && r.Height == 0
}

// MidY returns the vertical centre of the box
func (r Rect) MidY() float64 {
	return r.Y + r.Height/2
}

// Line is a single line of recognized text
type Line struct {
	Text        string  `json:"text"`
	BoundingBox Rect    `json:"bounding_box"`
	Confidence  float64 `json:"confidence"`
}

// Recognition is the output of one OCR call
type Recognition struct {
	Lines    []Line `json:"lines"`
	FullText string `json:"full_text"`
}

// Recognizer wraps an OCR engine.
//
// Implementations must return lines in top-to-bottom reading order. Field
// extraction depends on that order (vendor and date near the top, totals near
// the bottom) and does not re-sort; see InReadingOrder.
type Recognizer interface {
	// Recognize runs text recognition on a single image
	Recognize(ctx context.Context, img Image) (*Recognition, error)
	// Close releases engine resources
	Close() error
}

// NewRecognition builds a Recognition from lines, deriving FullText
func NewRecognition(lines []Line) *Recognition {
	texts := make([]string, 0, len(lines))
	for _, l := range lines {
		texts = append(texts, l.Text)
	}
	return &Recognition{
		Lines:    lines,
		FullText: strings.Join(texts, "\n"),
	}
}

// Filter drops lines whose confidence is below floor and returns a new
// Recognition along with the number of dropped lines.
func Filter(rec *Recognition, floor float64) (*Recognition, int) {
	if rec == nil {
		return NewRecognition(nil), 0
	}
	kept := make([]Line, 0, len(rec.Lines))
	for _, l := range rec.Lines {
		if l.Confidence < floor {
			continue
		}
		kept = append(kept, l)
	}
	return NewRecognition(kept), len(rec.Lines) - len(kept)
}

// InReadingOrder reports whether the lines run top to bottom. Lines without
// geometry are ignored.
func InReadingOrder(lines []Line) bool {
	prev := -1.0
	for _, l := range lines {
		if l.BoundingBox.IsZero() {
			continue
		}
		mid := l.BoundingBox.MidY()
		if prev >= 0 && mid < prev-readingOrderTolerance {
			return false
		}
		prev = mid
	}
	return true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
