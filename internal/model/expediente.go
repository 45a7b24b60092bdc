package model

import "time"

// ExpedienteEstado is the lifecycle state of a case file.
type ExpedienteEstado string

const (
	ExpedienteAbierto   ExpedienteEstado = "abierto"
	ExpedienteEnProceso ExpedienteEstado = "en_proceso"
	ExpedienteCerrado   ExpedienteEstado = "cerrado"
	ExpedienteArchivado ExpedienteEstado = "archivado"
)

// TipoCausa classifies the legal matter of a case file.
type TipoCausa string

const (
	CausaHerencia     TipoCausa = "herencia"
	CausaFacturacion  TipoCausa = "facturacion"
	CausaLitigioCivil TipoCausa = "litigio_civil"
	CausaOtro         TipoCausa = "otro"
)

// TipoPersona distinguishes natural from legal persons.
type TipoPersona string

const (
	PersonaFisica   TipoPersona = "fisica"
	PersonaJuridica TipoPersona = "juridica"
)

// RolProcesal is a subject's role within a case file.
type RolProcesal string

const (
	RolCausante RolProcesal = "causante"
	RolHeredero RolProcesal = "heredero"
	RolAcreedor RolProcesal = "acreedor"
	RolDeudor   RolProcesal = "deudor"
	RolNotario  RolProcesal = "notario"
	RolTestigo  RolProcesal = "testigo"
	RolEmisor   RolProcesal = "emisor"
	RolOtro     RolProcesal = "otro"
)

// TipoEvento classifies timeline events.
type TipoEvento string

const (
	EventoDocumentoSubido    TipoEvento = "documento_subido"
	EventoFechaFallecimiento TipoEvento = "fecha_fallecimiento"
	EventoFechaEscritura     TipoEvento = "fecha_escritura"
	EventoFechaFactura       TipoEvento = "fecha_factura"
	EventoVencimiento        TipoEvento = "vencimiento"
	EventoHitoManual         TipoEvento = "hito_manual"
)

// Expediente is a case file grouping documents, subjects and timeline
// events.
type Expediente struct {
	ID               string           `json:"id"`
	NumeroExpediente string           `json:"numero_expediente"`
	Titulo           string           `json:"titulo"`
	Cliente          *string          `json:"cliente,omitempty"`
	TipoCausa        TipoCausa        `json:"tipo_causa"`
	Estado           ExpedienteEstado `json:"estado"`
	Descripcion      *string          `json:"descripcion,omitempty"`
	Notas            *string          `json:"notas,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Sujeto is a person or entity involved in a case file. Derived sujetos
// (invoice emisores, deed causante/herederos/notario) are auto-created by
// the persistence normalizer's post-commit hooks.
type Sujeto struct {
	ID               string         `json:"id"`
	ExpedienteID     string         `json:"expediente_id"`
	NombreCompleto   string         `json:"nombre_completo"`
	TipoPersona      TipoPersona    `json:"tipo_persona"`
	DNICIF           *string        `json:"dni_cif,omitempty"`
	RolProcesal      RolProcesal    `json:"rol_procesal"`
	ContactoEmail    *string        `json:"contacto_email,omitempty"`
	ContactoTelefono *string        `json:"contacto_telefono,omitempty"`
	Direccion        *string        `json:"direccion,omitempty"`
	DatosExtra       map[string]any `json:"datos_extra,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// TimelineEvent is a dated milestone in a case file, keyed by extracted or
// manual dates.
type TimelineEvent struct {
	ID           string     `json:"id"`
	ExpedienteID string     `json:"expediente_id"`
	DocumentID   *string    `json:"document_id,omitempty"`
	Fecha        string     `json:"fecha"`
	Titulo       string     `json:"titulo"`
	Descripcion  *string    `json:"descripcion,omitempty"`
	TipoEvento   TipoEvento `json:"tipo_evento"`
	CreatedAt    time.Time  `json:"created_at"`
}
