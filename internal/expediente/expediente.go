// Package expediente manages case files: sequential numbering, manual
// timeline milestones and the aggregated case overview.
package expediente

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/iuslabs/intake-cli/internal/model"
	"github.com/iuslabs/intake-cli/internal/resilience"
	"github.com/iuslabs/intake-cli/internal/store"
)

// Service creates and reads case files.
type Service struct {
	store store.Store
	now   func() time.Time
}

func NewService(st store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

// Create opens a new case file with the next sequential number for the
// current year, EXP-YYYY-NNNN.
func (s *Service) Create(ctx context.Context, titulo string, cliente *string, tipo model.TipoCausa, descripcion *string) (*model.Expediente, error) {
	titulo = strings.TrimSpace(titulo)
	if titulo == "" {
		return nil, resilience.NewValidationError("el título del expediente es obligatorio")
	}
	if tipo == "" {
		tipo = model.CausaOtro
	}

	year := s.now().Year()
	n, err := s.store.CountExpedientes(ctx, year)
	if err != nil {
		return nil, err
	}

	exp := &model.Expediente{
		NumeroExpediente: fmt.Sprintf("EXP-%d-%04d", year, n+1),
		Titulo:           titulo,
		Cliente:          cliente,
		TipoCausa:        tipo,
		Estado:           model.ExpedienteAbierto,
		Descripcion:      descripcion,
	}
	if err := s.store.CreateExpediente(ctx, exp); err != nil {
		return nil, eris.Wrap(err, "expediente: create")
	}
	return exp, nil
}

// AddMilestone records a manual dated milestone on the case timeline.
func (s *Service) AddMilestone(ctx context.Context, expedienteID, fecha, titulo string, descripcion *string) (*model.TimelineEvent, error) {
	if strings.TrimSpace(fecha) == "" || strings.TrimSpace(titulo) == "" {
		return nil, resilience.NewValidationError("fecha y título son obligatorios")
	}
	if _, err := time.Parse("2006-01-02", fecha); err != nil {
		return nil, resilience.NewValidationError("fecha inválida, se espera YYYY-MM-DD: " + fecha)
	}
	if _, err := s.store.GetExpediente(ctx, expedienteID); err != nil {
		return nil, err
	}

	ev := &model.TimelineEvent{
		ExpedienteID: expedienteID,
		Fecha:        fecha,
		Titulo:       titulo,
		Descripcion:  descripcion,
		TipoEvento:   model.EventoHitoManual,
	}
	if err := s.store.InsertTimelineEvent(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Overview is the aggregated read-side view of one case file.
type Overview struct {
	Expediente model.Expediente      `json:"expediente"`
	Documentos []model.Document      `json:"documentos"`
	Sujetos    []model.Sujeto        `json:"sujetos"`
	Timeline   []model.TimelineEvent `json:"timeline"`
}

// Get loads a case file with its documents, subjects and timeline.
func (s *Service) Get(ctx context.Context, id string) (*Overview, error) {
	exp, err := s.store.GetExpediente(ctx, id)
	if err != nil {
		return nil, err
	}

	ov := &Overview{Expediente: *exp}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := s.store.ListDocuments(gctx, store.DocumentFilter{ExpedienteID: id})
		ov.Documentos = docs
		return err
	})
	g.Go(func() error {
		sujetos, err := s.store.ListSujetos(gctx, id)
		ov.Sujetos = sujetos
		return err
	})
	g.Go(func() error {
		timeline, err := s.store.ListTimeline(gctx, id)
		ov.Timeline = timeline
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "expediente: overview")
	}
	return ov, nil
}
