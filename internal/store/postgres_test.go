package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iuslabs/intake-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetDocument_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, expediente_id, file_name, .* FROM documents WHERE id = \$1`).
		WithArgs("nonexistent-doc").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetDocument(context.Background(), "nonexistent-doc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateDocumentStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE documents SET status = \$1, error_message = \$2`).
		WithArgs("error", pgxmock.AnyArg(), pgxmock.AnyArg(), "missing-id").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateDocumentStatus(context.Background(), "missing-id", model.DocumentStatusError, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateDocumentClassification(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE documents SET doc_type = \$1, classification_confidence = \$2`).
		WithArgs("factura", 0.92, pgxmock.AnyArg(), "doc-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateDocumentClassification(context.Background(), "doc-1", model.Classification{
		DocumentType: model.DocTypeFactura,
		Confidence:   0.92,
		Reasoning:    "cabecera con número de factura y desglose de IVA",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertInvoice_MarshalsJSONColumns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO invoices`).
		WithArgs(pgxmock.AnyArg(), "doc-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), false, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inv := &model.Invoice{
		DocumentID:       "doc-1",
		Emisor:           model.Ptr("Gasóleos del Norte SL"),
		TiposIVA:         []model.IvaEntry{{Porcentaje: 21, Importe: 42.5}},
		ConfidenceScores: map[string]float64{"emisor": 0.95},
	}
	err := s.InsertInvoice(context.Background(), inv)
	require.NoError(t, err)
	assert.NotEmpty(t, inv.ID, "insert must assign an id")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListInvoices_ByDocumentAndValidated(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{
		"id", "document_id", "emisor", "cif", "numero_factura", "fecha", "base_imponible",
		"tipos_iva", "total", "concepto", "items", "page_number", "confidence_scores",
		"validated", "validated_at", "created_at",
	}).AddRow(
		"inv-1", "doc-1", model.Ptr("Emisor SA"), (*string)(nil), (*string)(nil), (*string)(nil), (*float64)(nil),
		[]byte(`[]`), (*float64)(nil), (*string)(nil), []byte(`[]`), (*int)(nil), []byte(`{"emisor":0.9}`),
		false, (*time.Time)(nil), time.Now().UTC(),
	)

	mock.ExpectQuery(`SELECT .* FROM invoices WHERE true AND document_id = ANY\(\$1\) AND validated = \$2`).
		WithArgs([]string{"doc-1"}, false).
		WillReturnRows(rows)

	validated := false
	invoices, err := s.ListInvoices(context.Background(), InvoiceFilter{
		DocumentIDs: []string{"doc-1"},
		Validated:   &validated,
	})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "inv-1", invoices[0].ID)
	assert.Equal(t, 0.9, invoices[0].ConfidenceScores["emisor"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkInvoiceValidated_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE invoices SET validated = true`).
		WithArgs(pgxmock.AnyArg(), "missing-inv").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkInvoiceValidated(context.Background(), "missing-inv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoice not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateInvoiceFields_OnlyEditedColumns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// A single-field edit produces a single-column UPDATE; the regexp
	// rejects any statement touching other columns.
	mock.ExpectExec(`^UPDATE invoices SET total = \$1 WHERE id = \$2$`).
		WithArgs(model.Ptr(121.0), "inv-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateInvoiceFields(context.Background(), "inv-1", model.InvoiceEdit{Total: model.Ptr(121.0)})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateInvoiceFields_EmptyEditIsNoop(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	err := s.UpdateInvoiceFields(context.Background(), "inv-1", model.InvoiceEdit{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountUnvalidatedInvoices(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM invoices WHERE document_id = \$1 AND validated = false`).
		WithArgs("doc-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	n, err := s.CountUnvalidatedInvoices(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdatePropertyCatastro_SingleStatement(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE properties SET catastro_direccion = \$1, .* catastro_consultado = true WHERE id = \$11`).
		WithArgs(
			model.Ptr("CL MAYOR 5"), model.Ptr("MADRID"), model.Ptr("MADRID"),
			model.Ptr(95.0), model.Ptr("Residencial"), model.Ptr(1998),
			pgxmock.AnyArg(), model.Ptr(114000.0), model.Ptr(14.25), false, "prop-1",
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdatePropertyCatastro(context.Background(), "prop-1", model.CatastroUpdate{
		Direccion:        model.Ptr("CL MAYOR 5"),
		Provincia:        model.Ptr("MADRID"),
		Municipio:        model.Ptr("MADRID"),
		Superficie:       model.Ptr(95.0),
		Uso:              model.Ptr("Residencial"),
		AnioConstruccion: model.Ptr(1998),
		RawData:          map[string]any{"desviacion_fiscal_real": 14.25},
		ValorReferencia:  model.Ptr(114000.0),
		DesviacionFiscal: model.Ptr(14.25),
		AlertaFiscal:     false,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountExpedientes_ByYearPrefix(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM expedientes WHERE numero_expediente LIKE \$1`).
		WithArgs("EXP-2026-%").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(41))

	n, err := s.CountExpedientes(context.Background(), 2026)
	require.NoError(t, err)
	assert.Equal(t, 41, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertSujeto_OnConflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs(pgxmock.AnyArg(), "exp-1", "Gasóleos del Norte SL", "juridica", model.Ptr("B12345678"),
			"emisor", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertSujeto(context.Background(), &model.Sujeto{
		ExpedienteID:   "exp-1",
		NombreCompleto: "Gasóleos del Norte SL",
		TipoPersona:    model.PersonaJuridica,
		DNICIF:         model.Ptr("B12345678"),
		RolProcesal:    model.RolEmisor,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
