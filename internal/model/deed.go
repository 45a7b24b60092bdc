package model

import "time"

// HeirExtraction is one heir as extracted from a deed.
type HeirExtraction struct {
	Nombre     string   `json:"nombre"`
	Rol        *string  `json:"rol"`
	DNI        *string  `json:"dni"`
	Porcentaje *float64 `json:"porcentaje"`
}

// PropertyExtraction is one real-estate asset as extracted from a deed.
// The referencia catastral is expected to be a 20-character alphanumeric
// code; the extractor flags low confidence rather than guessing when the
// code is ambiguous.
type PropertyExtraction struct {
	Descripcion         string   `json:"descripcion"`
	ReferenciaCatastral *string  `json:"referencia_catastral"`
	ValorDeclarado      *float64 `json:"valor_declarado"`
}

// DeedExtraction is the extractor's output for an inheritance deed. Exactly
// one per source document.
type DeedExtraction struct {
	Causante           ConfidenceField[string] `json:"causante"`
	FechaFallecimiento ConfidenceField[string] `json:"fecha_fallecimiento"`
	Notario            ConfidenceField[string] `json:"notario"`
	Protocolo          ConfidenceField[string] `json:"protocolo"`
	FechaEscritura     ConfidenceField[string] `json:"fecha_escritura"`
	Herederos          []HeirExtraction        `json:"herederos"`
	BienesInmuebles    []PropertyExtraction    `json:"bienes_inmuebles"`
}

// InheritanceDeed is a persisted deed extraction.
type InheritanceDeed struct {
	ID                 string             `json:"id"`
	DocumentID         string             `json:"document_id"`
	Causante           *string            `json:"causante,omitempty"`
	FechaFallecimiento *string            `json:"fecha_fallecimiento,omitempty"`
	Notario            *string            `json:"notario,omitempty"`
	Protocolo          *string            `json:"protocolo,omitempty"`
	FechaEscritura     *string            `json:"fecha_escritura,omitempty"`
	ConfidenceScores   map[string]float64 `json:"confidence_scores"`
	Validated          bool               `json:"validated"`
	ValidatedAt        *time.Time         `json:"validated_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

// Heir is a persisted heir row.
type Heir struct {
	ID         string   `json:"id"`
	DeedID     string   `json:"deed_id"`
	Nombre     string   `json:"nombre"`
	Rol        *string  `json:"rol,omitempty"`
	DNI        *string  `json:"dni,omitempty"`
	Porcentaje *float64 `json:"porcentaje,omitempty"`
}

// Property is a persisted real-estate asset. Cadastral fields are nil/false
// until the first successful registry query, which overwrites the whole
// cadastral snapshot in one update. Re-querying is allowed and last write
// wins.
type Property struct {
	ID                       string         `json:"id"`
	DeedID                   string         `json:"deed_id"`
	Descripcion              *string        `json:"descripcion,omitempty"`
	ReferenciaCatastral      *string        `json:"referencia_catastral,omitempty"`
	ValorDeclarado           *float64       `json:"valor_declarado,omitempty"`
	CatastroDireccion        *string        `json:"catastro_direccion,omitempty"`
	CatastroProvincia        *string        `json:"catastro_provincia,omitempty"`
	CatastroMunicipio        *string        `json:"catastro_municipio,omitempty"`
	CatastroSuperficie       *float64       `json:"catastro_superficie,omitempty"`
	CatastroUso              *string        `json:"catastro_uso,omitempty"`
	CatastroAnioConstruccion *int           `json:"catastro_anio_construccion,omitempty"`
	CatastroRawData          map[string]any `json:"catastro_raw_data,omitempty"`
	ValorReferencia          *float64       `json:"valor_referencia,omitempty"`
	DesviacionFiscal         *float64       `json:"desviacion_fiscal,omitempty"`
	AlertaFiscal             bool           `json:"alerta_fiscal"`
	CatastroConsultado       bool           `json:"catastro_consultado"`
	CreatedAt                time.Time      `json:"created_at"`
}

// CatastroUpdate is the single atomic update applied to a property after a
// successful registry query. DesviacionFiscal carries the clamped,
// storage-safe percentage; the unclamped value travels inside RawData under
// "desviacion_fiscal_real" for audit.
type CatastroUpdate struct {
	Direccion        *string
	Provincia        *string
	Municipio        *string
	Superficie       *float64
	Uso              *string
	AnioConstruccion *int
	RawData          map[string]any
	ValorReferencia  *float64
	DesviacionFiscal *float64
	AlertaFiscal     bool
}
