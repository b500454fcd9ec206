package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/receipt-ocr/internal/classify"
	"github.com/zombor/receipt-ocr/internal/extraction"
	"github.com/zombor/receipt-ocr/internal/recognition"
	"github.com/zombor/receipt-ocr/internal/scoring"
)

// PatternItems is the Metadata.PatternsMatched key for line items
const PatternItems = "items"

// Result is the structured outcome of processing one receipt
type Result struct {
	Vendor        *string               `json:"vendor,omitempty"`
	Total         *decimal.Decimal      `json:"total,omitempty"`
	Tax           *decimal.Decimal      `json:"tax,omitempty"`
	Date          *time.Time            `json:"date,omitempty"`
	Items         []extraction.LineItem `json:"items"`
	Categories    []string              `json:"categories"`
	Confidence    float64               `json:"confidence"`
	RawText       string                `json:"raw_text"`
	BoundingBoxes []recognition.Rect    `json:"bounding_boxes"`
	Metadata      Metadata              `json:"metadata"`
}

// Metadata describes how a Result was produced
type Metadata struct {
	PatternsMatched     map[string]bool          `json:"patterns_matched"`
	ModelClassifierUsed bool                     `json:"model_classifier_used"`
	CategoryScores      []classify.CategoryMatch `json:"category_scores"`
	LinesDropped        int                      `json:"lines_dropped"`
	OCRConfidence       float64                  `json:"ocr_confidence"`
	Duration            time.Duration            `json:"duration"`
}

// Pipeline turns receipt images into Results. It keeps no state between
// calls, so one Pipeline can process many receipts concurrently.
type Pipeline struct {
	recognizer recognition.Recognizer
	classifier *classify.Classifier
	floor      float64
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithConfidenceFloor sets the per-line confidence below which lines are dropped
func WithConfidenceFloor(floor float64) Option {
	return func(p *Pipeline) {
		p.floor = floor
	}
}

// WithClassifier replaces the default rules-only classifier
func WithClassifier(c *classify.Classifier) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.classifier = c
		}
	}
}

// New creates a new Pipeline
func New(recognizer recognition.Recognizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		recognizer: recognizer,
		classifier: classify.New(),
		floor:      recognition.DefaultConfidenceFloor,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process recognizes and interprets a single receipt image. Only recognition
// failures are returned as errors; fields that cannot be found are left empty
// and lower the confidence instead.
func (p *Pipeline) Process(ctx context.Context, img recognition.Image) (*Result, error) {
	start := time.Now()

	rec, err := p.recognizer.Recognize(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("recognizing receipt: %w", err)
	}

	ocrMean := scoring.MeanConfidence(rec.Lines)
	filtered, dropped := recognition.Filter(rec, p.floor)
	if !recognition.InReadingOrder(filtered.Lines) {
		slog.Warn("recognized lines are not in reading order, extraction may degrade", "lines", len(filtered.Lines))
	}

	texts := make([]string, 0, len(filtered.Lines))
	boxes := make([]recognition.Rect, 0, len(filtered.Lines))
	for _, l := range filtered.Lines {
		texts = append(texts, l.Text)
		boxes = append(boxes, l.BoundingBox)
	}

	fields := extraction.ExtractFields(texts)
	items := extraction.ExtractItems(texts)

	itemNames := make([]string, 0, len(items))
	for _, it := range items {
		itemNames = append(itemNames, it.Name)
	}
	vendor := ""
	if fields.Vendor != nil {
		vendor = *fields.Vendor
	}
	classification := p.classifier.Classify(ctx, vendor, itemNames, filtered.FullText)

	confidence := scoring.Score(ocrMean, scoring.Completeness{
		Vendor: fields.Vendor != nil,
		Total:  fields.Total != nil,
		Date:   fields.Date != nil,
		Tax:    fields.Tax != nil,
		Items:  len(items) > 0,
	})

	patterns := make(map[string]bool, len(fields.Matched)+1)
	for k, v := range fields.Matched {
		patterns[k] = v
	}
	patterns[PatternItems] = len(items) > 0

	result := &Result{
		Vendor:        fields.Vendor,
		Total:         fields.Total,
		Tax:           fields.Tax,
		Date:          fields.Date,
		Items:         items,
		Categories:    classify.Categories(classification.Matches),
		Confidence:    confidence,
		RawText:       filtered.FullText,
		BoundingBoxes: boxes,
		Metadata: Metadata{
			PatternsMatched:     patterns,
			ModelClassifierUsed: classification.ModelUsed,
			CategoryScores:      classification.Scores,
			LinesDropped:        dropped,
			OCRConfidence:       ocrMean,
			Duration:            time.Since(start),
		},
	}

	slog.Info("processed receipt",
		"lines", len(filtered.Lines),
		"dropped", dropped,
		"items", len(items),
		"categories", result.Categories,
		"confidence", confidence,
		"duration", result.Metadata.Duration,
	)
	return result, nil
}

// ProcessAll processes images in parallel with at most limit receipts in
// flight (no limit when limit <= 0). Results are in input order. The first
// failure cancels the remaining work and is returned.
func (p *Pipeline) ProcessAll(ctx context.Context, images []recognition.Image, limit int) ([]*Result, error) {
	results := make([]*Result, len(images))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, img := range images {
		g.Go(func() error {
			res, err := p.Process(ctx, img)
			if err != nil {
				return fmt.Errorf("receipt %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
