package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/iuslabs/intake-cli/internal/model"
	"github.com/iuslabs/intake-cli/internal/store"
)

func newExportFixture(t *testing.T) (*Exporter, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return NewExporter(st), st
}

// seedExportData seeds one validated factura document and one validated
// escritura document, the shape a completed review session leaves behind.
func seedExportData(t *testing.T, st store.Store) (*model.Invoice, *model.InheritanceDeed) {
	t.Helper()
	ctx := context.Background()

	facturaDoc := &model.Document{FileName: "factura.pdf", FilePath: "docs/factura.pdf"}
	require.NoError(t, st.CreateDocument(ctx, facturaDoc))
	inv := &model.Invoice{
		DocumentID:    facturaDoc.ID,
		Emisor:        model.Ptr("Gasolinera Sol SL"),
		NumeroFactura: model.Ptr("F-001"),
		Total:         model.Ptr(121.0),
		TiposIVA:      []model.IvaEntry{{Porcentaje: 21, Importe: 21}},
		Items: []model.InvoiceLineItem{{
			Descripcion: model.ConfidenceField[string]{Value: model.Ptr("Gasóleo A"), Confidence: 0.9},
			Importe:     model.ConfidenceField[float64]{Value: model.Ptr(60.0), Confidence: 0.95},
		}},
		ConfidenceScores: map[string]float64{"emisor": 0.95},
	}
	require.NoError(t, st.InsertInvoice(ctx, inv))
	require.NoError(t, st.MarkInvoiceValidated(ctx, inv.ID))
	require.NoError(t, st.UpdateDocumentStatus(ctx, facturaDoc.ID, model.DocumentStatusValidated, nil))

	deedDoc := &model.Document{FileName: "escritura.pdf", FilePath: "docs/escritura.pdf"}
	require.NoError(t, st.CreateDocument(ctx, deedDoc))
	deed := &model.InheritanceDeed{
		DocumentID:       deedDoc.ID,
		Causante:         model.Ptr("Juan García Pérez"),
		ConfidenceScores: map[string]float64{"causante": 0.97},
	}
	require.NoError(t, st.InsertDeed(ctx, deed))
	require.NoError(t, st.InsertHeir(ctx, &model.Heir{
		DeedID: deed.ID, Nombre: "Ana García", Porcentaje: model.Ptr(100.0),
	}))
	require.NoError(t, st.InsertProperty(ctx, &model.Property{
		DeedID:              deed.ID,
		Descripcion:         model.Ptr("Vivienda en Madrid"),
		ReferenciaCatastral: model.Ptr("1234567AB1234C0001DE"),
		ValorDeclarado:      model.Ptr(150000.0),
	}))
	require.NoError(t, st.MarkDeedValidated(ctx, deed.ID))
	require.NoError(t, st.UpdateDocumentStatus(ctx, deedDoc.ID, model.DocumentStatusValidated, nil))

	return inv, deed
}

func TestBuild_AssemblesEverything(t *testing.T) {
	e, st := newExportFixture(t)
	inv, deed := seedExportData(t, st)

	data, err := e.Build(context.Background(), Options{})
	require.NoError(t, err)

	assert.Len(t, data.Documentos, 2)
	require.Len(t, data.Facturas, 1)
	assert.Equal(t, inv.ID, data.Facturas[0].ID)
	require.Len(t, data.Escrituras, 1)
	assert.Equal(t, deed.ID, data.Escrituras[0].ID)
	assert.Len(t, data.Escrituras[0].Herederos, 1)
	assert.Len(t, data.Escrituras[0].Inmuebles, 1)
}

func TestBuild_ExcludesUnvalidated(t *testing.T) {
	e, st := newExportFixture(t)
	ctx := context.Background()
	inv, _ := seedExportData(t, st)

	// A document still awaiting review, with its extraction.
	pendingDoc := &model.Document{FileName: "pendiente.pdf", FilePath: "docs/pendiente.pdf"}
	require.NoError(t, st.CreateDocument(ctx, pendingDoc))
	require.NoError(t, st.UpdateDocumentStatus(ctx, pendingDoc.ID, model.DocumentStatusExtracted, nil))
	pendingInv := &model.Invoice{
		DocumentID:       pendingDoc.ID,
		Emisor:           model.Ptr("Pendiente SL"),
		TiposIVA:         []model.IvaEntry{},
		Items:            []model.InvoiceLineItem{},
		ConfidenceScores: map[string]float64{"emisor": 0.3},
	}
	require.NoError(t, st.InsertInvoice(ctx, pendingInv))

	data, err := e.Build(ctx, Options{})
	require.NoError(t, err)

	assert.Len(t, data.Documentos, 2, "unreviewed document stays out")
	for _, d := range data.Documentos {
		assert.Equal(t, model.DocumentStatusValidated, d.Status)
	}
	require.Len(t, data.Facturas, 1)
	assert.Equal(t, inv.ID, data.Facturas[0].ID)
	assert.True(t, data.Facturas[0].Validated)
}

func TestBuild_EmptyStore(t *testing.T) {
	e, _ := newExportFixture(t)
	data, err := e.Build(context.Background(), Options{})
	require.NoError(t, err)
	assert.Empty(t, data.Documentos)
	assert.NotNil(t, data.Facturas)
	assert.NotNil(t, data.Escrituras)
}

func TestWriteJSON(t *testing.T) {
	e, st := newExportFixture(t)
	seedExportData(t, st)

	data, err := e.Build(context.Background(), Options{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "export.json")
	require.NoError(t, WriteJSON(data, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded Data
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Len(t, decoded.Facturas, 1)
	assert.Equal(t, "Gasolinera Sol SL", *decoded.Facturas[0].Emisor)
}

func TestWriteXLSX(t *testing.T) {
	e, st := newExportFixture(t)
	seedExportData(t, st)

	data, err := e.Build(context.Background(), Options{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "export.xlsx")
	require.NoError(t, WriteXLSX(data, path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 5)
	assert.Equal(t, "Facturas", f.Sheets[0].Name)
	assert.Equal(t, "ItemsFactura", f.Sheets[1].Name)
	assert.Equal(t, "Escrituras", f.Sheets[2].Name)
	assert.Equal(t, "Herederos", f.Sheets[3].Name)
	assert.Equal(t, "Inmuebles", f.Sheets[4].Name)

	// Header plus one invoice row.
	require.Len(t, f.Sheets[0].Rows, 2)
	assert.Equal(t, "Gasolinera Sol SL", f.Sheets[0].Rows[1].Cells[2].String())

	// One line item under the invoice.
	require.Len(t, f.Sheets[1].Rows, 2)
	assert.Equal(t, "Gasóleo A", f.Sheets[1].Rows[1].Cells[2].String())
}

func TestFileName(t *testing.T) {
	now := time.Date(2026, 8, 30, 15, 4, 5, 0, time.UTC)
	assert.Equal(t,
		filepath.Join("exports", "intake-export-20260830-150405.xlsx"),
		FileName("exports", "xlsx", now))
}
