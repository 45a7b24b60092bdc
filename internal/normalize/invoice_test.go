package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iuslabs/intake-cli/internal/model"
)

func cf[T any](v T, conf float64) model.ConfidenceField[T] {
	return model.ConfidenceField[T]{Value: &v, Confidence: conf}
}

func TestBuildInvoices_EmptyExtractionYieldsPlaceholder(t *testing.T) {
	got := BuildInvoices("doc-1", nil)
	require.Len(t, got, 1)

	inv := got[0]
	assert.Equal(t, "doc-1", inv.DocumentID)
	assert.Nil(t, inv.Emisor)
	assert.Nil(t, inv.Total)
	assert.NotNil(t, inv.TiposIVA)
	assert.Empty(t, inv.TiposIVA)
	assert.NotNil(t, inv.Items)
	assert.Empty(t, inv.Items)
	for key, score := range inv.ConfidenceScores {
		assert.Zero(t, score, "placeholder score %s", key)
	}
	assert.Len(t, inv.ConfidenceScores, 8)
}

func TestBuildInvoices_FlattensFieldsAndScores(t *testing.T) {
	ext := model.InvoiceExtraction{
		Emisor:        cf("Gasolinera Sol SL", 0.95),
		CIF:           cf("B12345678", 0.9),
		NumeroFactura: cf("F-2026-001", 0.99),
		Fecha:         cf("2026-03-15", 0.97),
		BaseImponible: cf(100.0, 0.92),
		TiposIVA:      []model.IvaEntry{{Porcentaje: 21, Importe: 21}},
		Total:         cf(121.0, 0.96),
		Concepto:      cf("Combustible", 0.8),
		Items: []model.InvoiceLineItem{
			{
				Descripcion:    cf("Gasóleo A", 0.9),
				Cantidad:       cf(40.0, 0.85),
				Unidad:         cf("L", 0.7),
				PrecioUnitario: cf(1.5, 0.9),
				Importe:        cf(60.0, 0.95),
			},
		},
	}

	got := BuildInvoices("doc-1", []model.InvoiceExtraction{ext})
	require.Len(t, got, 1)

	inv := got[0]
	assert.Equal(t, "Gasolinera Sol SL", *inv.Emisor)
	assert.Equal(t, 121.0, *inv.Total)
	require.NotNil(t, inv.PageNumber)
	assert.Equal(t, 1, *inv.PageNumber)
	assert.Equal(t, 0.95, inv.ConfidenceScores["emisor"])
	assert.Equal(t, 0.8, inv.ConfidenceScores["concepto"])
	// Minimum across the single row's five fields.
	assert.Equal(t, 0.7, inv.ConfidenceScores["items_min_confidence"])
}

func TestBuildInvoices_PageNumberFallsBackToPosition(t *testing.T) {
	five := 5
	got := BuildInvoices("doc-1", []model.InvoiceExtraction{
		{Emisor: cf("A", 0.9)},
		{Emisor: cf("B", 0.9), PageNumber: &five},
		{Emisor: cf("C", 0.9)},
	})
	require.Len(t, got, 3)
	assert.Equal(t, 1, *got[0].PageNumber)
	assert.Equal(t, 5, *got[1].PageNumber)
	assert.Equal(t, 3, *got[2].PageNumber)
}

func TestBuildInvoices_NoItemsMeansZeroItemsScore(t *testing.T) {
	got := BuildInvoices("doc-1", []model.InvoiceExtraction{{Emisor: cf("A", 0.9)}})
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Items)
	assert.Zero(t, got[0].ConfidenceScores["items_min_confidence"])
}

func TestSanitizeIVA(t *testing.T) {
	entries := []model.IvaEntry{
		{Porcentaje: 21, Importe: 42},
		{Porcentaje: 0, Importe: 0}, // exempt rate stays
		{Porcentaje: math.NaN(), Importe: 10},
		{Porcentaje: 10, Importe: math.Inf(1)},
	}
	got := sanitizeIVA(entries)
	require.Len(t, got, 2)
	assert.Equal(t, 21.0, got[0].Porcentaje)
	assert.Equal(t, 0.0, got[1].Porcentaje)
}
