package model

import "time"

// IvaEntry is one VAT rate applied on an invoice. Aggregate numbers, not
// confidence-wrapped.
type IvaEntry struct {
	Porcentaje float64 `json:"porcentaje"`
	Importe    float64 `json:"importe"`
}

// InvoiceLineItem is one line of an invoice breakdown, every field paired
// with the extractor's confidence. A document without a discernible
// breakdown is represented as an empty items slice, never as blank items.
type InvoiceLineItem struct {
	Descripcion    ConfidenceField[string]  `json:"descripcion"`
	Cantidad       ConfidenceField[float64] `json:"cantidad"`
	Unidad         ConfidenceField[string]  `json:"unidad"`
	PrecioUnitario ConfidenceField[float64] `json:"precio_unitario"`
	Importe        ConfidenceField[float64] `json:"importe"`
}

// Confidences returns the five field confidences of the line item.
func (it InvoiceLineItem) Confidences() []float64 {
	return []float64{
		it.Descripcion.Confidence,
		it.Cantidad.Confidence,
		it.Unidad.Confidence,
		it.PrecioUnitario.Confidence,
		it.Importe.Confidence,
	}
}

// RowConfidence is the minimum over all five field confidences (0 for a
// zero-value item).
func (it InvoiceLineItem) RowConfidence() float64 {
	return MinConfidence(it.Confidences())
}

// InvoiceExtraction is the extractor's output for a single invoice. One
// source document may yield several (multi-invoice or multi-page
// statements). PageNumber is 1-indexed and nil until resolved; the
// persistence normalizer falls back to the invoice's position.
type InvoiceExtraction struct {
	Emisor        ConfidenceField[string]  `json:"emisor"`
	CIF           ConfidenceField[string]  `json:"cif"`
	NumeroFactura ConfidenceField[string]  `json:"numero_factura"`
	Fecha         ConfidenceField[string]  `json:"fecha"`
	BaseImponible ConfidenceField[float64] `json:"base_imponible"`
	TiposIVA      []IvaEntry               `json:"tipos_iva"`
	Total         ConfidenceField[float64] `json:"total"`
	Concepto      ConfidenceField[string]  `json:"concepto"`
	Items         []InvoiceLineItem        `json:"items"`
	PageNumber    *int                     `json:"page_number,omitempty"`
}

// Invoice is a persisted, flattened invoice extraction. Created once at
// extraction time, updated by human validation or edits, never deleted by
// the pipeline.
type Invoice struct {
	ID               string             `json:"id"`
	DocumentID       string             `json:"document_id"`
	Emisor           *string            `json:"emisor,omitempty"`
	CIF              *string            `json:"cif,omitempty"`
	NumeroFactura    *string            `json:"numero_factura,omitempty"`
	Fecha            *string            `json:"fecha,omitempty"`
	BaseImponible    *float64           `json:"base_imponible,omitempty"`
	TiposIVA         []IvaEntry         `json:"tipos_iva"`
	Total            *float64           `json:"total,omitempty"`
	Concepto         *string            `json:"concepto,omitempty"`
	Items            []InvoiceLineItem  `json:"items"`
	PageNumber       *int               `json:"page_number,omitempty"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
	Validated        bool               `json:"validated"`
	ValidatedAt      *time.Time         `json:"validated_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// InvoiceEdit carries human-corrected field values to write over a persisted
// invoice before validation. Nil pointers leave the corresponding column
// untouched; only the fields the reviewer actually changed are written.
// ClearBaseImponible and ClearTotal null the column instead, for input that
// could not be read as a number.
// Confidence scores are intentionally not part of an edit: they record
// machine-extraction trust and are immutable once written.
type InvoiceEdit struct {
	Emisor        *string
	CIF           *string
	NumeroFactura *string
	Fecha         *string
	BaseImponible *float64
	Total         *float64
	Concepto      *string

	ClearBaseImponible bool
	ClearTotal         bool
}
