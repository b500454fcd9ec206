package classify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const geminiModelTimeout = 20 * time.Second

// GeminiModel implements Model by asking a Gemini text model for a
// "category:confidence,..." prediction.
type GeminiModel struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiModel creates a new Gemini category model
func NewGeminiModel(apiKey string, modelName string) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	temperature := float32(0)
	model.Temperature = &temperature
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(predictionPrompt())},
	}

	return &GeminiModel{client: client, model: model}, nil
}

func predictionPrompt() string {
	return fmt.Sprintf(`You classify shop receipts into spending categories.
Allowed categories: %s.
Reply with a single line in the form category:confidence,category:confidence
where confidence is between 0 and 1. List at most three categories. Reply with nothing else.`,
		strings.Join(AllCategories, ", "))
}

// Predict classifies the receipt text
func (g *GeminiModel) Predict(ctx context.Context, text string) ([]CategoryMatch, error) {
	ctx, cancel := context.WithTimeout(ctx, geminiModelTimeout)
	defer cancel()

	resp, err := g.model.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("generating prediction: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no response from gemini")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			out.WriteString(string(t))
		}
	}
	return ParsePrediction(out.String()), nil
}

// Close closes the Gemini client
func (g *GeminiModel) Close() error {
	return g.client.Close()
}

// ParsePrediction parses "category:confidence,..." output. Unknown categories
// and malformed entries are skipped; confidences are clamped to [0, 1].
func ParsePrediction(prediction string) []CategoryMatch {
	var matches []CategoryMatch
	for _, part := range strings.Split(prediction, ",") {
		name, conf, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		category, known := canonicalCategory(strings.TrimSpace(name))
		if !known {
			continue
		}
		c, err := strconv.ParseFloat(strings.TrimSpace(conf), 64)
		if err != nil {
			continue
		}
		matches = append(matches, CategoryMatch{Category: category, Confidence: clamp01(c)})
	}
	return matches
}

func canonicalCategory(name string) (string, bool) {
	for _, c := range AllCategories {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}
