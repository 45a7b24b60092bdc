package catastro

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iuslabs/intake-cli/internal/model"
	"github.com/iuslabs/intake-cli/internal/resilience"
	"github.com/iuslabs/intake-cli/internal/store"
)

// mockRegistry is a testify mock for the Registry interface.
type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) Query(ctx context.Context, rc string) (*PropertyRecord, error) {
	args := m.Called(ctx, rc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PropertyRecord), args.Error(1)
}

func newReconcilerFixture(t *testing.T) (*Reconciler, *mockRegistry, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	registry := &mockRegistry{}
	r := NewReconciler(registry, st)
	r.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	return r, registry, st
}

func seedProperty(t *testing.T, st store.Store, rc *string, declared *float64) *model.Property {
	t.Helper()
	ctx := context.Background()
	doc := &model.Document{FileName: "e.pdf", FilePath: "docs/e.pdf"}
	require.NoError(t, st.CreateDocument(ctx, doc))
	deed := &model.InheritanceDeed{DocumentID: doc.ID, ConfidenceScores: map[string]float64{}}
	require.NoError(t, st.InsertDeed(ctx, deed))
	prop := &model.Property{DeedID: deed.ID, ReferenciaCatastral: rc, ValorDeclarado: declared}
	require.NoError(t, st.InsertProperty(ctx, prop))
	return prop
}

func TestReconcile_ShortReferenceRejectedBeforeRegistryCall(t *testing.T) {
	r, registry, st := newReconcilerFixture(t)
	prop := seedProperty(t, st, model.Ptr("1234567AB"), model.Ptr(100000.0))

	_, err := r.Reconcile(context.Background(), prop.ID)
	require.Error(t, err)
	assert.True(t, resilience.IsValidation(err))
	assert.Contains(t, err.Error(), "mínimo 14 caracteres")
	registry.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)

	// The property row is untouched.
	fetched, err := st.GetProperty(context.Background(), prop.ID)
	require.NoError(t, err)
	assert.False(t, fetched.CatastroConsultado)
}

func TestReconcile_NilReferenceRejected(t *testing.T) {
	r, registry, st := newReconcilerFixture(t)
	prop := seedProperty(t, st, nil, model.Ptr(100000.0))

	_, err := r.Reconcile(context.Background(), prop.ID)
	require.Error(t, err)
	assert.True(t, resilience.IsValidation(err))
	registry.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
}

func TestReconcile_ComputesDeviationAndAlert(t *testing.T) {
	r, registry, st := newReconcilerFixture(t)
	prop := seedProperty(t, st, model.Ptr("1234567AB1234C0001DE"), model.Ptr(80000.0))

	registry.On("Query", mock.Anything, "1234567AB1234C0001DE").Return(&PropertyRecord{
		ReferenciaCatastral: "1234567AB1234C0001DE",
		Direccion:           "CL MAYOR 5",
		Provincia:           "MADRID",
		Municipio:           "MADRID",
		Superficie:          model.Ptr(100.0),
		Uso:                 model.Ptr("Residencial"),
		AnioConstruccion:    model.Ptr(2006), // 20 years → factor 0.9
		RawData:             map[string]any{"source": "ovc.catastro.meh.es"},
	}, nil)

	got, err := r.Reconcile(context.Background(), prop.ID)
	require.NoError(t, err)

	// estimate = round(100 * 1200 * 0.9) = 108000; deviation = 35%
	require.NotNil(t, got.ValorReferencia)
	assert.Equal(t, 108000.0, *got.ValorReferencia)
	require.NotNil(t, got.DesviacionFiscal)
	assert.Equal(t, 35.0, *got.DesviacionFiscal)
	assert.True(t, got.AlertaFiscal)
	assert.True(t, got.CatastroConsultado)
	assert.Equal(t, 35.0, got.CatastroRawData["desviacion_fiscal_real"])
	registry.AssertNumberOfCalls(t, "Query", 1)
}

func TestReconcile_NoDeclaredValue_NoDeviation(t *testing.T) {
	r, registry, st := newReconcilerFixture(t)
	prop := seedProperty(t, st, model.Ptr("1234567AB1234C0001DE"), nil)

	registry.On("Query", mock.Anything, mock.Anything).Return(&PropertyRecord{
		Superficie: model.Ptr(100.0),
		Uso:        model.Ptr("Residencial"),
		RawData:    map[string]any{},
	}, nil)

	got, err := r.Reconcile(context.Background(), prop.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.ValorReferencia)
	assert.Nil(t, got.DesviacionFiscal)
	assert.False(t, got.AlertaFiscal)
	assert.True(t, got.CatastroConsultado)
}

func TestReconcile_NoSurface_NoEstimate(t *testing.T) {
	r, registry, st := newReconcilerFixture(t)
	prop := seedProperty(t, st, model.Ptr("1234567AB1234C0001DE"), model.Ptr(50000.0))

	// Rústico records often carry no built surface.
	registry.On("Query", mock.Anything, mock.Anything).Return(&PropertyRecord{
		Provincia: "LUGO",
		Municipio: "SARRIA",
		TipoBien:  model.Ptr("RU"),
		RawData:   map[string]any{"tipo_bien": "RU"},
	}, nil)

	got, err := r.Reconcile(context.Background(), prop.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ValorReferencia)
	assert.Nil(t, got.DesviacionFiscal)
	assert.True(t, got.CatastroConsultado)
}

func TestReconcile_RegistryFailureLeavesRowUntouched(t *testing.T) {
	r, registry, st := newReconcilerFixture(t)
	prop := seedProperty(t, st, model.Ptr("1234567AB1234C0001DE"), model.Ptr(50000.0))

	registry.On("Query", mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransientError(assert.AnError, 503))

	_, err := r.Reconcile(context.Background(), prop.ID)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))

	fetched, err := st.GetProperty(context.Background(), prop.ID)
	require.NoError(t, err)
	assert.False(t, fetched.CatastroConsultado)
	assert.Nil(t, fetched.ValorReferencia)
}

func TestClampDeviation_TruncatesTowardZero(t *testing.T) {
	assert.Equal(t, -99.99, clampDeviation(-99.999))
	assert.Equal(t, 99.99, clampDeviation(99.999))
	assert.Equal(t, 999.99, clampDeviation(15000.0))
	assert.Equal(t, -999.99, clampDeviation(-15000.0))
	assert.Equal(t, 35.0, clampDeviation(35.0))
	assert.Equal(t, 12.34, clampDeviation(12.349))
}

func TestReconcile_ClampPreservesRawDeviation(t *testing.T) {
	r, registry, st := newReconcilerFixture(t)
	// Declared 1000 vs estimated 108000 → raw deviation 10700%.
	prop := seedProperty(t, st, model.Ptr("1234567AB1234C0001DE"), model.Ptr(1000.0))

	registry.On("Query", mock.Anything, mock.Anything).Return(&PropertyRecord{
		Superficie:       model.Ptr(100.0),
		Uso:              model.Ptr("Residencial"),
		AnioConstruccion: model.Ptr(2006),
		RawData:          map[string]any{},
	}, nil)

	got, err := r.Reconcile(context.Background(), prop.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DesviacionFiscal)
	assert.Equal(t, 999.99, *got.DesviacionFiscal)
	assert.Equal(t, 10700.0, got.CatastroRawData["desviacion_fiscal_real"])
	assert.True(t, got.AlertaFiscal)
}
