package scoring

import "github.com/zombor/receipt-ocr/internal/recognition"

// Weights of the overall confidence score
const (
	WeightOCR        = 0.4
	WeightExtraction = 0.6

	WeightVendor = 0.2
	WeightTotal  = 0.25
	WeightDate   = 0.15
	WeightTax    = 0.1
	WeightItems  = 0.3
)

// Completeness records which parts of a receipt were recovered
type Completeness struct {
	Vendor bool
	Total  bool
	Date   bool
	Tax    bool
	Items  bool
}

// ExtractionScore is the weighted sum of recovered parts, in [0, 1]
func (c Completeness) ExtractionScore() float64 {
	score := 0.0
	if c.Vendor {
		score += WeightVendor
	}
	if c.Total {
		score += WeightTotal
	}
	if c.Date {
		score += WeightDate
	}
	if c.Tax {
		score += WeightTax
	}
	if c.Items {
		score += WeightItems
	}
	return score
}

// Score combines the mean OCR confidence with extraction completeness. The
// result is always within [0, 1].
func Score(ocrMean float64, c Completeness) float64 {
	ocrMean = max(0, min(ocrMean, 1))
	return max(0, min(WeightOCR*ocrMean+WeightExtraction*c.ExtractionScore(), 1))
}

// MeanConfidence averages line confidences; no lines give 0
func MeanConfidence(lines []recognition.Line) float64 {
	if len(lines) == 0 {
		return 0
	}
	sum := 0.0
	for _, l := range lines {
		sum += l.Confidence
	}
	return sum / float64(len(lines))
}
