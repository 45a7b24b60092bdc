package validation

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/iuslabs/intake-cli/internal/model"
	"github.com/iuslabs/intake-cli/internal/normalize"
	"github.com/iuslabs/intake-cli/internal/resilience"
)

// Editable invoice fields, as accepted by ParseDraft.
var draftFields = map[string]bool{
	"emisor":         true,
	"cif":            true,
	"numero_factura": true,
	"fecha":          true,
	"base_imponible": true,
	"total":          true,
	"concepto":       true,
}

var draftNumericFields = map[string]bool{
	"base_imponible": true,
	"total":          true,
}

// NewDraft renders an invoice's editable fields as strings for a correction
// form. Missing values render empty.
func NewDraft(inv *model.Invoice) map[string]string {
	fmtFloat := func(f *float64) string {
		if f == nil {
			return ""
		}
		return strconv.FormatFloat(*f, 'f', -1, 64)
	}
	fmtStr := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	return map[string]string{
		"emisor":         fmtStr(inv.Emisor),
		"cif":            fmtStr(inv.CIF),
		"numero_factura": fmtStr(inv.NumeroFactura),
		"fecha":          fmtStr(inv.Fecha),
		"base_imponible": fmtFloat(inv.BaseImponible),
		"total":          fmtFloat(inv.Total),
		"concepto":       fmtStr(inv.Concepto),
	}
}

// ParseDraft converts raw form values into an invoice edit. Numeric fields
// accept Spanish and English formatting; a value that cannot be parsed nulls
// the column, never a silent zero. Empty values leave the column untouched,
// so round-tripping an unedited form is a no-op.
func ParseDraft(fields map[string]string) (*model.InvoiceEdit, error) {
	edit := &model.InvoiceEdit{}
	for field, raw := range fields {
		if !draftFields[field] {
			return nil, resilience.NewValidationError("campo desconocido: " + field)
		}
		if raw == "" {
			continue
		}
		if draftNumericFields[field] {
			parsed := normalize.ParseDecimal(raw)
			switch field {
			case "base_imponible":
				edit.BaseImponible = parsed
				edit.ClearBaseImponible = parsed == nil
			case "total":
				edit.Total = parsed
				edit.ClearTotal = parsed == nil
			}
			continue
		}
		v := raw
		switch field {
		case "emisor":
			edit.Emisor = &v
		case "cif":
			edit.CIF = &v
		case "numero_factura":
			edit.NumeroFactura = &v
		case "fecha":
			edit.Fecha = &v
		case "concepto":
			edit.Concepto = &v
		}
	}
	return edit, nil
}

// SaveAndValidate applies a human correction and validates the invoice in
// one step, the common path when a reviewer fixes a field and approves.
// Confidence scores are left exactly as extraction wrote them.
func (s *Service) SaveAndValidate(ctx context.Context, invoiceID string, edit model.InvoiceEdit) error {
	if err := s.store.UpdateInvoiceFields(ctx, invoiceID, edit); err != nil {
		return eris.Wrap(err, "validation: save draft")
	}
	return s.ValidateInvoice(ctx, invoiceID)
}
