package expediente

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iuslabs/intake-cli/internal/model"
	"github.com/iuslabs/intake-cli/internal/resilience"
	"github.com/iuslabs/intake-cli/internal/store"
)

func newFixture(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	svc := NewService(st)
	svc.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	return svc, st
}

func TestCreate_SequentialNumbering(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "Herencia García", model.Ptr("Ana García"), model.CausaHerencia, nil)
	require.NoError(t, err)
	assert.Equal(t, "EXP-2026-0001", first.NumeroExpediente)
	assert.Equal(t, model.ExpedienteAbierto, first.Estado)

	second, err := svc.Create(ctx, "Facturación taller", nil, model.CausaFacturacion, nil)
	require.NoError(t, err)
	assert.Equal(t, "EXP-2026-0002", second.NumeroExpediente)
}

func TestCreate_YearRollsSequenceOver(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "Caso 2026", nil, model.CausaOtro, nil)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Date(2027, 1, 2, 9, 0, 0, 0, time.UTC) }
	next, err := svc.Create(ctx, "Caso 2027", nil, model.CausaOtro, nil)
	require.NoError(t, err)
	assert.Equal(t, "EXP-2027-0001", next.NumeroExpediente)
}

func TestCreate_RequiresTitle(t *testing.T) {
	svc, _ := newFixture(t)
	_, err := svc.Create(context.Background(), "   ", nil, model.CausaOtro, nil)
	require.Error(t, err)
	assert.True(t, resilience.IsValidation(err))
}

func TestCreate_EmptyTipoDefaultsToOtro(t *testing.T) {
	svc, _ := newFixture(t)
	exp, err := svc.Create(context.Background(), "Caso", nil, "", nil)
	require.NoError(t, err)
	assert.Equal(t, model.CausaOtro, exp.TipoCausa)
}

func TestAddMilestone(t *testing.T) {
	svc, st := newFixture(t)
	ctx := context.Background()

	exp, err := svc.Create(ctx, "Herencia García", nil, model.CausaHerencia, nil)
	require.NoError(t, err)

	ev, err := svc.AddMilestone(ctx, exp.ID, "2026-09-15", "Cita en notaría", model.Ptr("llevar DNI"))
	require.NoError(t, err)
	assert.Equal(t, model.EventoHitoManual, ev.TipoEvento)

	timeline, err := st.ListTimeline(ctx, exp.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	assert.Equal(t, "Cita en notaría", timeline[0].Titulo)
}

func TestAddMilestone_RejectsBadDate(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()
	exp, err := svc.Create(ctx, "Caso", nil, model.CausaOtro, nil)
	require.NoError(t, err)

	_, err = svc.AddMilestone(ctx, exp.ID, "15/09/2026", "Cita", nil)
	require.Error(t, err)
	assert.True(t, resilience.IsValidation(err))
}

func TestAddMilestone_UnknownExpediente(t *testing.T) {
	svc, _ := newFixture(t)
	_, err := svc.AddMilestone(context.Background(), "no-such-id", "2026-09-15", "Cita", nil)
	require.Error(t, err)
}

func TestGet_Overview(t *testing.T) {
	svc, st := newFixture(t)
	ctx := context.Background()

	exp, err := svc.Create(ctx, "Herencia García", nil, model.CausaHerencia, nil)
	require.NoError(t, err)

	doc := &model.Document{ExpedienteID: &exp.ID, FileName: "e.pdf", FilePath: "docs/e.pdf"}
	require.NoError(t, st.CreateDocument(ctx, doc))
	require.NoError(t, st.UpsertSujeto(ctx, &model.Sujeto{
		ExpedienteID:   exp.ID,
		NombreCompleto: "Juan García",
		TipoPersona:    model.PersonaFisica,
		RolProcesal:    model.RolCausante,
	}))
	_, err = svc.AddMilestone(ctx, exp.ID, "2026-09-15", "Cita en notaría", nil)
	require.NoError(t, err)

	ov, err := svc.Get(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, exp.NumeroExpediente, ov.Expediente.NumeroExpediente)
	assert.Len(t, ov.Documentos, 1)
	assert.Len(t, ov.Sujetos, 1)
	assert.Len(t, ov.Timeline, 1)
}
