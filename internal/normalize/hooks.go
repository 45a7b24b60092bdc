package normalize

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iuslabs/intake-cli/internal/model"
	"github.com/iuslabs/intake-cli/internal/store"
)

// Hooks derives expediente-level records (sujetos, timeline events) from
// freshly persisted extractions. All hooks are best-effort: a failed derived
// write logs a warning and never fails the extraction that triggered it.
type Hooks struct {
	store store.Store
}

func NewHooks(st store.Store) *Hooks {
	return &Hooks{store: st}
}

// AfterInvoices registers invoice emisores as sujetos and invoice dates as
// timeline events. No-op for documents outside an expediente.
func (h *Hooks) AfterInvoices(ctx context.Context, doc *model.Document, invoices []*model.Invoice) {
	if doc.ExpedienteID == nil {
		return
	}
	expID := *doc.ExpedienteID

	seen := make(map[string]bool)
	for _, inv := range invoices {
		if inv.Emisor != nil {
			key := valueOr(inv.CIF, "") + "|" + *inv.Emisor
			if !seen[key] {
				seen[key] = true
				h.upsertSujeto(ctx, &model.Sujeto{
					ExpedienteID:   expID,
					NombreCompleto: *inv.Emisor,
					TipoPersona:    model.PersonaJuridica,
					DNICIF:         inv.CIF,
					RolProcesal:    model.RolEmisor,
					DatosExtra:     map[string]any{"origen": "factura", "document_id": doc.ID},
				})
			}
		}
		if inv.Fecha != nil {
			h.insertEvent(ctx, &model.TimelineEvent{
				ExpedienteID: expID,
				DocumentID:   &doc.ID,
				Fecha:        *inv.Fecha,
				Titulo:       invoiceEventTitle(inv),
				TipoEvento:   model.EventoFechaFactura,
			})
		}
	}
}

// AfterDeed registers the causante, heirs and notary as sujetos, and the
// death and deed dates as timeline events.
func (h *Hooks) AfterDeed(ctx context.Context, doc *model.Document, deed *model.InheritanceDeed, heirs []*model.Heir) {
	if doc.ExpedienteID == nil {
		return
	}
	expID := *doc.ExpedienteID

	if deed.Causante != nil {
		h.upsertSujeto(ctx, &model.Sujeto{
			ExpedienteID:   expID,
			NombreCompleto: *deed.Causante,
			TipoPersona:    model.PersonaFisica,
			RolProcesal:    model.RolCausante,
			DatosExtra:     map[string]any{"origen": "escritura", "document_id": doc.ID},
		})
	}
	for _, heir := range heirs {
		extra := map[string]any{"origen": "escritura", "document_id": doc.ID}
		if heir.Rol != nil {
			extra["rol_herencia"] = *heir.Rol
		}
		if heir.Porcentaje != nil {
			extra["porcentaje"] = *heir.Porcentaje
		}
		h.upsertSujeto(ctx, &model.Sujeto{
			ExpedienteID:   expID,
			NombreCompleto: heir.Nombre,
			TipoPersona:    model.PersonaFisica,
			DNICIF:         heir.DNI,
			RolProcesal:    model.RolHeredero,
			DatosExtra:     extra,
		})
	}
	if deed.Notario != nil {
		h.upsertSujeto(ctx, &model.Sujeto{
			ExpedienteID:   expID,
			NombreCompleto: *deed.Notario,
			TipoPersona:    model.PersonaFisica,
			RolProcesal:    model.RolNotario,
			DatosExtra:     map[string]any{"origen": "escritura", "document_id": doc.ID},
		})
	}

	if deed.FechaFallecimiento != nil {
		titulo := "Fallecimiento"
		if deed.Causante != nil {
			titulo = "Fallecimiento de " + *deed.Causante
		}
		h.insertEvent(ctx, &model.TimelineEvent{
			ExpedienteID: expID,
			DocumentID:   &doc.ID,
			Fecha:        *deed.FechaFallecimiento,
			Titulo:       titulo,
			TipoEvento:   model.EventoFechaFallecimiento,
		})
	}
	if deed.FechaEscritura != nil {
		titulo := "Otorgamiento de escritura"
		if deed.Protocolo != nil {
			titulo = fmt.Sprintf("Otorgamiento de escritura (protocolo %s)", *deed.Protocolo)
		}
		h.insertEvent(ctx, &model.TimelineEvent{
			ExpedienteID: expID,
			DocumentID:   &doc.ID,
			Fecha:        *deed.FechaEscritura,
			Titulo:       titulo,
			TipoEvento:   model.EventoFechaEscritura,
		})
	}
}

func (h *Hooks) upsertSujeto(ctx context.Context, s *model.Sujeto) {
	if err := h.store.UpsertSujeto(ctx, s); err != nil {
		zap.L().Warn("normalize: sujeto upsert failed",
			zap.String("expediente_id", s.ExpedienteID),
			zap.String("nombre", s.NombreCompleto),
			zap.Error(err))
	}
}

func (h *Hooks) insertEvent(ctx context.Context, ev *model.TimelineEvent) {
	if strings.TrimSpace(ev.Fecha) == "" {
		return
	}
	if err := h.store.InsertTimelineEvent(ctx, ev); err != nil {
		zap.L().Warn("normalize: timeline event insert failed",
			zap.String("expediente_id", ev.ExpedienteID),
			zap.String("titulo", ev.Titulo),
			zap.Error(err))
	}
}

func invoiceEventTitle(inv *model.Invoice) string {
	switch {
	case inv.NumeroFactura != nil:
		return "Factura " + *inv.NumeroFactura
	case inv.Emisor != nil:
		return "Factura de " + *inv.Emisor
	default:
		return "Factura"
	}
}

func valueOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}
