package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/iuslabs/intake-cli/internal/model"
	"github.com/iuslabs/intake-cli/internal/normalize"
	"github.com/iuslabs/intake-cli/pkg/anthropic"
)

// extractText concatenates all text blocks from a response.
func extractText(resp *anthropic.MessageResponse) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// cleanJSON strips markdown fences and surrounding prose from a model
// response, leaving the outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// cfRaw is the tolerant wire shape of a {value, confidence} pair. Models
// occasionally emit a bare scalar instead of the wrapped object; both decode.
type cfRaw struct {
	Value      json.RawMessage `json:"value"`
	Confidence float64         `json:"confidence"`
}

func (c *cfRaw) UnmarshalJSON(data []byte) error {
	type alias cfRaw
	var a alias
	if err := json.Unmarshal(data, &a); err == nil && (a.Value != nil || a.Confidence != 0) {
		*c = cfRaw(a)
		return nil
	}
	// Bare scalar: take it as the value with zero confidence.
	c.Value = json.RawMessage(data)
	c.Confidence = 0
	return nil
}

// stringField decodes a tolerant string field. Numbers are stringified.
func stringField(c cfRaw) model.ConfidenceField[string] {
	out := model.ConfidenceField[string]{Confidence: c.Confidence}
	if len(c.Value) == 0 || string(c.Value) == "null" {
		return out
	}
	var s string
	if err := json.Unmarshal(c.Value, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			out.Value = &s
		}
		return out
	}
	var f float64
	if err := json.Unmarshal(c.Value, &f); err == nil {
		s := strings.TrimSpace(string(c.Value))
		out.Value = &s
	}
	return out
}

// floatField decodes a tolerant numeric field. Spanish-formatted strings
// ("1.234,56") are coerced; unparseable values stay nil rather than zero.
func floatField(c cfRaw) model.ConfidenceField[float64] {
	out := model.ConfidenceField[float64]{Confidence: c.Confidence}
	if v := flexFloat(c.Value); v != nil {
		out.Value = v
	}
	return out
}

// flexFloat decodes a JSON value that should be a number but may arrive as a
// formatted string.
func flexFloat(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return normalize.ParseDecimal(s)
	}
	return nil
}

// flexInt decodes an int that may arrive as a float or string.
func flexInt(raw json.RawMessage) *int {
	f := flexFloat(raw)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}
