package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/iuslabs/intake-cli/internal/model"
	"github.com/iuslabs/intake-cli/pkg/anthropic"
)

const deedPrompt = `Eres un sistema experto en extracción de datos de escrituras de herencia españolas para un despacho jurídico.

El documento adjunto es una escritura notarial relacionada con una herencia (aceptación, adjudicación, declaración de herederos o testamento).

Extrae estos campos, cada uno como objeto {"value": <valor o null>, "confidence": <número entre 0 y 1>}:
- "causante": nombre completo de la persona fallecida
- "fecha_fallecimiento": fecha de fallecimiento en formato YYYY-MM-DD
- "notario": nombre completo del notario autorizante
- "protocolo": número de protocolo de la escritura
- "fecha_escritura": fecha de otorgamiento en formato YYYY-MM-DD

Además:
- "herederos": array con cada heredero o beneficiario:
  {"nombre": <string>, "rol": <"heredero_universal"|"legatario"|"usufructuario"|"nudo_propietario"|null>, "dni": <string o null>, "porcentaje": <número o null>}
- "bienes_inmuebles": array con cada bien inmueble mencionado:
  {"descripcion": <string>, "referencia_catastral": <string o null>, "valor_declarado": <número o null>}

REGLAS CRÍTICAS:
- La referencia catastral es un código alfanumérico de 20 caracteres. Si el código que aparece es ambiguo o incompleto, devuélvelo tal cual aparece: no lo completes ni lo inventes.
- Números decimales con punto y sin símbolo de moneda: 150000.00.
- Si un campo no aparece en el documento, usa value null y confidence 0. Nunca adivines.

Responde ÚNICAMENTE con un JSON válido con la estructura descrita.`

type deedWire struct {
	Causante           cfRaw          `json:"causante"`
	FechaFallecimiento cfRaw          `json:"fecha_fallecimiento"`
	Notario            cfRaw          `json:"notario"`
	Protocolo          cfRaw          `json:"protocolo"`
	FechaEscritura     cfRaw          `json:"fecha_escritura"`
	Herederos          []heirWire     `json:"herederos"`
	BienesInmuebles    []propertyWire `json:"bienes_inmuebles"`
}

type heirWire struct {
	Nombre     string          `json:"nombre"`
	Rol        *string         `json:"rol"`
	DNI        *string         `json:"dni"`
	Porcentaje json.RawMessage `json:"porcentaje"`
}

type propertyWire struct {
	Descripcion         string          `json:"descripcion"`
	ReferenciaCatastral *string         `json:"referencia_catastral"`
	ValorDeclarado      json.RawMessage `json:"valor_declarado"`
}

// extractDeed runs the extraction pass for an escritura_herencia document.
func (p *Processor) extractDeed(ctx context.Context, att anthropic.Attachment) (*model.DeedExtraction, error) {
	resp, err := p.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.cfg.Anthropic.ExtractModel,
		MaxTokens: p.cfg.Anthropic.MaxTokens,
		System:    p.systemBlocks(deedPrompt),
		Messages: []anthropic.Message{{
			Role:       "user",
			Content:    "Extrae los datos de la escritura adjunta.",
			Attachment: &att,
		}},
		Temperature: model.Ptr(p.cfg.Anthropic.Temperature),
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: extract deed")
	}
	resp.Usage.LogCost(p.cfg.Anthropic.ExtractModel, "extract_deed")

	return parseDeed(extractText(resp))
}

func parseDeed(text string) (*model.DeedExtraction, error) {
	var w deedWire
	if err := json.Unmarshal([]byte(cleanJSON(text)), &w); err != nil {
		return nil, eris.Wrap(err, "pipeline: parse deed")
	}

	ext := &model.DeedExtraction{
		Causante:           stringField(w.Causante),
		FechaFallecimiento: stringField(w.FechaFallecimiento),
		Notario:            stringField(w.Notario),
		Protocolo:          stringField(w.Protocolo),
		FechaEscritura:     stringField(w.FechaEscritura),
	}
	for _, h := range w.Herederos {
		if strings.TrimSpace(h.Nombre) == "" {
			continue
		}
		ext.Herederos = append(ext.Herederos, model.HeirExtraction{
			Nombre:     h.Nombre,
			Rol:        h.Rol,
			DNI:        h.DNI,
			Porcentaje: flexFloat(h.Porcentaje),
		})
	}
	for _, b := range w.BienesInmuebles {
		ext.BienesInmuebles = append(ext.BienesInmuebles, model.PropertyExtraction{
			Descripcion:         b.Descripcion,
			ReferenciaCatastral: b.ReferenciaCatastral,
			ValorDeclarado:      flexFloat(b.ValorDeclarado),
		})
	}
	return ext, nil
}
