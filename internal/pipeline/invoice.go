package pipeline

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/iuslabs/intake-cli/internal/model"
	"github.com/iuslabs/intake-cli/pkg/anthropic"
)

const invoicesPrompt = `Eres un sistema experto en extracción de datos de facturas españolas para un despacho jurídico.

El documento adjunto puede contener UNA o VARIAS facturas (por ejemplo, un PDF con varias facturas escaneadas seguidas). Extrae TODAS las facturas que encuentres.

Para cada factura extrae estos campos, cada uno como objeto {"value": <valor o null>, "confidence": <número entre 0 y 1>}:
- "emisor": nombre o razón social del emisor
- "cif": CIF/NIF del emisor
- "numero_factura": número de factura
- "fecha": fecha de emisión en formato YYYY-MM-DD
- "base_imponible": base imponible en euros
- "total": importe total en euros
- "concepto": descripción general de la factura

Además, por factura:
- "tipos_iva": array de {"porcentaje": <número>, "importe": <número>} con cada tipo de IVA aplicado
- "items": array con el desglose de líneas; cada línea con estos campos como {"value", "confidence"}: "descripcion", "cantidad", "unidad", "precio_unitario", "importe"
- "page_number": número de página (empezando en 1) donde comienza la factura, o null si no se puede determinar

REGLAS CRÍTICAS:
- NUNCA inventes líneas de desglose. Si la factura no tiene un desglose legible, devuelve "items": [].
- Las líneas de combustible (gasóleo, gasolina, carburante) son críticas para la deducción fiscal: extráelas con el máximo cuidado.
- Números decimales con punto y sin símbolo de moneda: 1234.56.
- Si un campo no aparece en el documento, usa value null y confidence 0. Nunca adivines.

Responde ÚNICAMENTE con un JSON válido:
{"facturas": [<factura>, ...]}`

// invoiceWire mirrors the extractor's JSON for one invoice, with every field
// decoded tolerantly.
type invoiceWire struct {
	Emisor        cfRaw           `json:"emisor"`
	CIF           cfRaw           `json:"cif"`
	NumeroFactura cfRaw           `json:"numero_factura"`
	Fecha         cfRaw           `json:"fecha"`
	BaseImponible cfRaw           `json:"base_imponible"`
	TiposIVA      []ivaWire       `json:"tipos_iva"`
	Total         cfRaw           `json:"total"`
	Concepto      cfRaw           `json:"concepto"`
	Items         []lineItemWire  `json:"items"`
	PageNumber    json.RawMessage `json:"page_number"`
}

type ivaWire struct {
	Porcentaje json.RawMessage `json:"porcentaje"`
	Importe    json.RawMessage `json:"importe"`
}

type lineItemWire struct {
	Descripcion    cfRaw `json:"descripcion"`
	Cantidad       cfRaw `json:"cantidad"`
	Unidad         cfRaw `json:"unidad"`
	PrecioUnitario cfRaw `json:"precio_unitario"`
	Importe        cfRaw `json:"importe"`
}

// extractInvoices runs the extraction pass for a factura document.
func (p *Processor) extractInvoices(ctx context.Context, att anthropic.Attachment) ([]model.InvoiceExtraction, error) {
	resp, err := p.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.cfg.Anthropic.ExtractModel,
		MaxTokens: p.cfg.Anthropic.MaxTokens,
		System:    p.systemBlocks(invoicesPrompt),
		Messages: []anthropic.Message{{
			Role:       "user",
			Content:    "Extrae todas las facturas del documento adjunto.",
			Attachment: &att,
		}},
		Temperature: model.Ptr(p.cfg.Anthropic.Temperature),
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: extract invoices")
	}
	resp.Usage.LogCost(p.cfg.Anthropic.ExtractModel, "extract_invoices")

	return parseInvoices(extractText(resp))
}

func parseInvoices(text string) ([]model.InvoiceExtraction, error) {
	var raw struct {
		Facturas []invoiceWire `json:"facturas"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(text)), &raw); err != nil {
		return nil, eris.Wrap(err, "pipeline: parse invoices")
	}

	out := make([]model.InvoiceExtraction, 0, len(raw.Facturas))
	for _, w := range raw.Facturas {
		out = append(out, model.InvoiceExtraction{
			Emisor:        stringField(w.Emisor),
			CIF:           stringField(w.CIF),
			NumeroFactura: stringField(w.NumeroFactura),
			Fecha:         stringField(w.Fecha),
			BaseImponible: floatField(w.BaseImponible),
			TiposIVA:      parseIVA(w.TiposIVA),
			Total:         floatField(w.Total),
			Concepto:      stringField(w.Concepto),
			Items:         parseLineItems(w.Items),
			PageNumber:    flexInt(w.PageNumber),
		})
	}
	return out, nil
}

func parseIVA(entries []ivaWire) []model.IvaEntry {
	out := make([]model.IvaEntry, 0, len(entries))
	for _, e := range entries {
		pct, imp := flexFloat(e.Porcentaje), flexFloat(e.Importe)
		if pct == nil && imp == nil {
			continue
		}
		entry := model.IvaEntry{}
		if pct != nil {
			entry.Porcentaje = *pct
		}
		if imp != nil {
			entry.Importe = *imp
		}
		out = append(out, entry)
	}
	return out
}

func parseLineItems(items []lineItemWire) []model.InvoiceLineItem {
	out := make([]model.InvoiceLineItem, 0, len(items))
	for _, it := range items {
		out = append(out, model.InvoiceLineItem{
			Descripcion:    stringField(it.Descripcion),
			Cantidad:       floatField(it.Cantidad),
			Unidad:         stringField(it.Unidad),
			PrecioUnitario: floatField(it.PrecioUnitario),
			Importe:        floatField(it.Importe),
		})
	}
	return out
}
