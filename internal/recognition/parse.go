package recognition

import (
	"encoding/json"
	"fmt"
	"strings"
)

// linesPrompt is shared by the LLM-backed recognizers. It asks for plain
// transcription only; all interpretation happens in the extraction stage.
const linesPrompt = `You are an OCR engine. Transcribe every line of text printed on this receipt image, exactly as printed, one entry per physical line.

Return ONLY valid JSON in this exact format:
{
  "lines": [
    {"text": "WALMART", "box": [0.10, 0.02, 0.80, 0.03], "confidence": 0.98}
  ]
}

Rules:
- List lines strictly from the top of the receipt to the bottom
- "box" is [x, y, width, height] relative to the image size, each between 0 and 1, origin at the top-left
- "confidence" is your certainty that the text is transcribed correctly, between 0 and 1
- Keep prices, dates and punctuation exactly as printed; do not correct or total anything
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

type linesPayload struct {
	Lines []struct {
		Text       string    `json:"text"`
		Box        []float64 `json:"box"`
		Confidence *float64  `json:"confidence"`
	} `json:"lines"`
}

// parseLinesJSON parses a model response into a Recognition. Missing
// confidences default to 1 so that the confidence floor only removes lines
// the model itself was unsure about.
func parseLinesJSON(text string) (*Recognition, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var payload linesPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	lines := make([]Line, 0, len(payload.Lines))
	for _, l := range payload.Lines {
		t := strings.TrimSpace(l.Text)
		if t == "" {
			continue
		}
		conf := 1.0
		if l.Confidence != nil {
			conf = clamp01(*l.Confidence)
		}
		var box Rect
		if len(l.Box) == 4 {
			box = Rect{
				X:      clamp01(l.Box[0]),
				Y:      clamp01(l.Box[1]),
				Width:  clamp01(l.Box[2]),
				Height: clamp01(l.Box[3]),
			}
		}
		lines = append(lines, Line{Text: t, BoundingBox: box, Confidence: conf})
	}
	if len(lines) == 0 {
		return nil, ErrNoText
	}
	return NewRecognition(lines), nil
}
