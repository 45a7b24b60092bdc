package normalize

import (
	"math"

	"github.com/iuslabs/intake-cli/internal/model"
)

// BuildInvoices flattens extractor output into persistable invoice rows.
//
// A factura document that yields zero invoices still produces a single
// all-nil row with zero confidences: the validation queue surfaces it for
// human review instead of the document silently vanishing from the flow.
func BuildInvoices(documentID string, extractions []model.InvoiceExtraction) []*model.Invoice {
	if len(extractions) == 0 {
		return []*model.Invoice{placeholderInvoice(documentID)}
	}

	out := make([]*model.Invoice, 0, len(extractions))
	for i, ext := range extractions {
		page := ext.PageNumber
		if page == nil {
			p := i + 1
			page = &p
		}
		items := ext.Items
		if items == nil {
			items = []model.InvoiceLineItem{}
		}
		out = append(out, &model.Invoice{
			DocumentID:       documentID,
			Emisor:           ext.Emisor.Value,
			CIF:              ext.CIF.Value,
			NumeroFactura:    ext.NumeroFactura.Value,
			Fecha:            ext.Fecha.Value,
			BaseImponible:    ext.BaseImponible.Value,
			TiposIVA:         sanitizeIVA(ext.TiposIVA),
			Total:            ext.Total.Value,
			Concepto:         ext.Concepto.Value,
			Items:            items,
			PageNumber:       page,
			ConfidenceScores: invoiceScores(ext),
		})
	}
	return out
}

func placeholderInvoice(documentID string) *model.Invoice {
	return &model.Invoice{
		DocumentID:       documentID,
		TiposIVA:         []model.IvaEntry{},
		Items:            []model.InvoiceLineItem{},
		ConfidenceScores: invoiceScores(model.InvoiceExtraction{}),
	}
}

func invoiceScores(ext model.InvoiceExtraction) map[string]float64 {
	rows := make([]float64, 0, len(ext.Items))
	for _, it := range ext.Items {
		rows = append(rows, it.RowConfidence())
	}
	return map[string]float64{
		"emisor":               ext.Emisor.Confidence,
		"cif":                  ext.CIF.Confidence,
		"numero_factura":       ext.NumeroFactura.Confidence,
		"fecha":                ext.Fecha.Confidence,
		"base_imponible":       ext.BaseImponible.Confidence,
		"total":                ext.Total.Confidence,
		"concepto":             ext.Concepto.Confidence,
		"items_min_confidence": model.MinConfidence(rows),
	}
}

// sanitizeIVA drops entries carrying non-finite numbers. Zero-rate entries
// stay: 0% IVA is a legitimate exempt rate.
func sanitizeIVA(entries []model.IvaEntry) []model.IvaEntry {
	out := make([]model.IvaEntry, 0, len(entries))
	for _, e := range entries {
		if math.IsNaN(e.Porcentaje) || math.IsInf(e.Porcentaje, 0) ||
			math.IsNaN(e.Importe) || math.IsInf(e.Importe, 0) {
			continue
		}
		out = append(out, e)
	}
	return out
}
