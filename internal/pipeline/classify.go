package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/iuslabs/intake-cli/internal/model"
	"github.com/iuslabs/intake-cli/pkg/anthropic"
)

const classificationPrompt = `Eres un sistema experto de clasificación documental para un despacho jurídico español.

Analiza el documento adjunto y clasifícalo en UNA de estas categorías:
- "factura": facturas comerciales, tickets de compra, recibos
- "escritura_herencia": escrituras de aceptación o adjudicación de herencia, testamentos, declaraciones de herederos
- "dni": documentos de identidad (DNI, NIE, pasaporte)
- "extracto_bancario": extractos bancarios, listados de movimientos de cuenta
- "otro": cualquier otro tipo de documento

Responde ÚNICAMENTE con un JSON válido con esta estructura exacta:
{"document_type": "<categoría>", "confidence": <número entre 0 y 1>, "reasoning": "<explicación breve en una frase>"}`

// classify runs the cheap classification pass over the attached document.
func (p *Processor) classify(ctx context.Context, att anthropic.Attachment) (*model.Classification, error) {
	resp, err := p.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.cfg.Anthropic.ClassifyModel,
		MaxTokens: p.cfg.Pipeline.ClassifyMaxToks,
		System:    p.systemBlocks(classificationPrompt),
		Messages: []anthropic.Message{{
			Role:       "user",
			Content:    "Clasifica el documento adjunto.",
			Attachment: &att,
		}},
		Temperature: model.Ptr(p.cfg.Anthropic.Temperature),
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: classify")
	}
	resp.Usage.LogCost(p.cfg.Anthropic.ClassifyModel, "classify")

	return parseClassification(extractText(resp)), nil
}

// parseClassification decodes the classifier's verdict. Anything the parser
// cannot trust collapses to "otro" with zero confidence; the document then
// lands in the review queue instead of taking a wrong extraction path.
func parseClassification(text string) *model.Classification {
	var raw struct {
		DocumentType string  `json:"document_type"`
		Confidence   float64 `json:"confidence"`
		Reasoning    string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(text)), &raw); err != nil {
		zap.L().Warn("pipeline: unparseable classification", zap.Error(err))
		return &model.Classification{DocumentType: model.DocTypeOtro}
	}

	verdict := model.DocumentType(strings.ToLower(strings.TrimSpace(raw.DocumentType)))
	valid := false
	for _, dt := range model.AllDocumentTypes() {
		if verdict == dt {
			valid = true
			break
		}
	}
	if !valid {
		zap.L().Warn("pipeline: unknown document type", zap.String("document_type", raw.DocumentType))
		return &model.Classification{DocumentType: model.DocTypeOtro, Reasoning: raw.Reasoning}
	}

	return &model.Classification{
		DocumentType: verdict,
		Confidence:   clamp01(raw.Confidence),
		Reasoning:    raw.Reasoning,
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
