package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iuslabs/intake-cli/internal/model"
	"github.com/iuslabs/intake-cli/internal/resilience"
)

func TestNewDraft(t *testing.T) {
	inv := &model.Invoice{
		Emisor:        model.Ptr("Gasolinera Sol SL"),
		Total:         model.Ptr(121.5),
		BaseImponible: model.Ptr(100.0),
	}
	draft := NewDraft(inv)
	assert.Equal(t, "Gasolinera Sol SL", draft["emisor"])
	assert.Equal(t, "121.5", draft["total"])
	assert.Equal(t, "100", draft["base_imponible"])
	assert.Equal(t, "", draft["cif"])
	assert.Len(t, draft, 7)
}

func TestParseDraft(t *testing.T) {
	edit, err := ParseDraft(map[string]string{
		"emisor":         "Talleres Paco SL",
		"total":          "1.234,56",
		"base_imponible": "1020.30",
		"fecha":          "2026-03-15",
	})
	require.NoError(t, err)
	assert.Equal(t, "Talleres Paco SL", *edit.Emisor)
	assert.Equal(t, 1234.56, *edit.Total)
	assert.Equal(t, 1020.30, *edit.BaseImponible)
	assert.Equal(t, "2026-03-15", *edit.Fecha)
	assert.Nil(t, edit.CIF, "untouched fields stay nil")
}

func TestParseDraft_EmptyLeavesFieldUntouched(t *testing.T) {
	edit, err := ParseDraft(map[string]string{"total": ""})
	require.NoError(t, err)
	assert.Nil(t, edit.Total)
	assert.False(t, edit.ClearTotal)
}

func TestParseDraft_BadNumberNullsColumn(t *testing.T) {
	edit, err := ParseDraft(map[string]string{"total": "ciento veinte"})
	require.NoError(t, err)
	assert.Nil(t, edit.Total, "unparseable input never becomes zero")
	assert.True(t, edit.ClearTotal)
	assert.False(t, edit.ClearBaseImponible)
}

func TestParseDraft_UnknownFieldRejected(t *testing.T) {
	_, err := ParseDraft(map[string]string{"validated": "true"})
	require.Error(t, err)
	assert.True(t, resilience.IsValidation(err))
}

func TestSaveAndValidate_EditsFieldsNotScores(t *testing.T) {
	svc, st := newServiceFixture(t)
	ctx := context.Background()

	doc := seedExtractedDocument(t, st, "a.pdf")
	inv := &model.Invoice{
		DocumentID:       doc.ID,
		Emisor:           model.Ptr("Gasolnera Sol"), // typo the reviewer fixes
		CIF:              model.Ptr("B12345678"),
		NumeroFactura:    model.Ptr("F-2026-042"),
		Fecha:            model.Ptr("2026-03-15"),
		BaseImponible:    model.Ptr(100.0),
		Total:            model.Ptr(120.0),
		Concepto:         model.Ptr("Combustible"),
		TiposIVA:         []model.IvaEntry{},
		Items:            []model.InvoiceLineItem{},
		ConfidenceScores: map[string]float64{"emisor": 0.6, "total": 0.9},
	}
	require.NoError(t, st.InsertInvoice(ctx, inv))

	edit, err := ParseDraft(map[string]string{
		"emisor": "Gasolinera Sol SL",
		"total":  "121,00",
	})
	require.NoError(t, err)
	require.NoError(t, svc.SaveAndValidate(ctx, inv.ID, *edit))

	got, err := st.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gasolinera Sol SL", *got.Emisor)
	assert.Equal(t, 121.0, *got.Total)
	assert.True(t, got.Validated)
	// Everything the reviewer did not touch survives the edit.
	require.NotNil(t, got.CIF)
	assert.Equal(t, "B12345678", *got.CIF)
	require.NotNil(t, got.NumeroFactura)
	assert.Equal(t, "F-2026-042", *got.NumeroFactura)
	require.NotNil(t, got.Fecha)
	assert.Equal(t, "2026-03-15", *got.Fecha)
	require.NotNil(t, got.BaseImponible)
	assert.Equal(t, 100.0, *got.BaseImponible)
	require.NotNil(t, got.Concepto)
	assert.Equal(t, "Combustible", *got.Concepto)
	// Machine trust is immutable under human edits.
	assert.Equal(t, 0.6, got.ConfidenceScores["emisor"])
	assert.Equal(t, 0.9, got.ConfidenceScores["total"])

	fetched, err := st.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusValidated, fetched.Status)
}
