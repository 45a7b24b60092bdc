package model

import "time"

// DocumentStatus represents the intake state of an uploaded document.
// Transitions move forward only (pending → processing → extracted →
// validated) except for the explicit error path, which is terminal until a
// manual re-submit.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusExtracted  DocumentStatus = "extracted"
	DocumentStatusValidated  DocumentStatus = "validated"
	DocumentStatusError      DocumentStatus = "error"
)

// DocumentType is the classifier's verdict for a document.
type DocumentType string

const (
	DocTypeFactura           DocumentType = "factura"
	DocTypeEscrituraHerencia DocumentType = "escritura_herencia"
	DocTypeDNI               DocumentType = "dni"
	DocTypeExtractoBancario  DocumentType = "extracto_bancario"
	DocTypeOtro              DocumentType = "otro"
)

// AllDocumentTypes returns the closed set of classifier categories.
func AllDocumentTypes() []DocumentType {
	return []DocumentType{
		DocTypeFactura,
		DocTypeEscrituraHerencia,
		DocTypeDNI,
		DocTypeExtractoBancario,
		DocTypeOtro,
	}
}

// Classification is the classifier's output for a document.
type Classification struct {
	DocumentType DocumentType `json:"document_type"`
	Confidence   float64      `json:"confidence"`
	Reasoning    string       `json:"reasoning"`
}

// Document is an uploaded file tracked through the intake pipeline. A
// document owns zero-or-more invoices XOR one deed, depending on DocType.
type Document struct {
	ID                       string         `json:"id"`
	ExpedienteID             *string        `json:"expediente_id,omitempty"`
	FileName                 string         `json:"file_name"`
	FilePath                 string         `json:"file_path"`
	FileType                 *string        `json:"file_type,omitempty"`
	FileSize                 *int64         `json:"file_size,omitempty"`
	DocType                  *DocumentType  `json:"doc_type,omitempty"`
	ClassificationConfidence *float64       `json:"classification_confidence,omitempty"`
	Status                   DocumentStatus `json:"status"`
	ErrorMessage             *string        `json:"error_message,omitempty"`
	CreatedAt                time.Time      `json:"created_at"`
	UpdatedAt                time.Time      `json:"updated_at"`
}

// DocumentDetail is the read-side view of a document with its extraction
// rows. The invoice/deed branches are mutually exclusive by DocType; the
// tagged-union shape keeps that exclusivity in the type rather than in two
// always-present nullable collections.
type DocumentDetail struct {
	Document  Document    `json:"document"`
	FileURL   string      `json:"file_url,omitempty"`
	Facturas  []Invoice   `json:"facturas,omitempty"`
	Escritura *DeedDetail `json:"escritura,omitempty"`
}

// DeedDetail bundles a persisted deed with its heirs and properties.
type DeedDetail struct {
	Deed      InheritanceDeed `json:"deed"`
	Herederos []Heir          `json:"herederos"`
	Inmuebles []Property      `json:"inmuebles"`
}
