package store

import (
	"context"

	"github.com/iuslabs/intake-cli/internal/model"
)

// DocumentFilter specifies criteria for listing documents.
type DocumentFilter struct {
	Status       model.DocumentStatus `json:"status,omitempty"`
	ExpedienteID string               `json:"expediente_id,omitempty"`
	DocType      model.DocumentType   `json:"doc_type,omitempty"`
	Limit        int                  `json:"limit,omitempty"`
	Offset       int                  `json:"offset,omitempty"`
}

// InvoiceFilter specifies criteria for listing invoices.
type InvoiceFilter struct {
	DocumentIDs []string `json:"document_ids,omitempty"`
	Validated   *bool    `json:"validated,omitempty"`
}

// DeedFilter specifies criteria for listing deeds.
type DeedFilter struct {
	DocumentIDs []string `json:"document_ids,omitempty"`
	Validated   *bool    `json:"validated,omitempty"`
}

// Store defines the persistence interface for the intake pipeline.
type Store interface {
	// Documents
	CreateDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status model.DocumentStatus, errorMessage *string) error
	UpdateDocumentClassification(ctx context.Context, id string, c model.Classification) error

	// Invoices
	InsertInvoice(ctx context.Context, inv *model.Invoice) error
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
	UpdateInvoiceFields(ctx context.Context, id string, edit model.InvoiceEdit) error
	MarkInvoiceValidated(ctx context.Context, id string) error
	CountUnvalidatedInvoices(ctx context.Context, documentID string) (int, error)

	// Deeds, heirs, properties
	InsertDeed(ctx context.Context, deed *model.InheritanceDeed) error
	GetDeed(ctx context.Context, id string) (*model.InheritanceDeed, error)
	ListDeeds(ctx context.Context, filter DeedFilter) ([]model.InheritanceDeed, error)
	MarkDeedValidated(ctx context.Context, id string) error
	InsertHeir(ctx context.Context, heir *model.Heir) error
	ListHeirs(ctx context.Context, deedID string) ([]model.Heir, error)
	InsertProperty(ctx context.Context, prop *model.Property) error
	GetProperty(ctx context.Context, id string) (*model.Property, error)
	ListProperties(ctx context.Context, deedID string) ([]model.Property, error)
	ListPendingCatastro(ctx context.Context) ([]model.Property, error)
	UpdatePropertyCatastro(ctx context.Context, id string, upd model.CatastroUpdate) error

	// Expedientes
	CreateExpediente(ctx context.Context, exp *model.Expediente) error
	GetExpediente(ctx context.Context, id string) (*model.Expediente, error)
	ListExpedientes(ctx context.Context) ([]model.Expediente, error)
	CountExpedientes(ctx context.Context, year int) (int, error)
	UpsertSujeto(ctx context.Context, s *model.Sujeto) error
	ListSujetos(ctx context.Context, expedienteID string) ([]model.Sujeto, error)
	InsertTimelineEvent(ctx context.Context, ev *model.TimelineEvent) error
	ListTimeline(ctx context.Context, expedienteID string) ([]model.TimelineEvent, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
