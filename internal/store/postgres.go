package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/iuslabs/intake-cli/internal/db"
	"github.com/iuslabs/intake-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_document":           `SELECT id, expediente_id, file_name, file_path, file_type, file_size, doc_type, classification_confidence, status, error_message, created_at, updated_at FROM documents WHERE id = $1`,
	"update_document_status": `UPDATE documents SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
	"insert_invoice":         `INSERT INTO invoices (id, document_id, emisor, cif, numero_factura, fecha, base_imponible, tipos_iva, total, concepto, items, page_number, confidence_scores, validated, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
	"count_unvalidated":      `SELECT count(*) FROM invoices WHERE document_id = $1 AND validated = false`,
	"get_property":           `SELECT id, deed_id, descripcion, referencia_catastral, valor_declarado, catastro_direccion, catastro_provincia, catastro_municipio, catastro_superficie, catastro_uso, catastro_anio_construccion, catastro_raw_data, valor_referencia, desviacion_fiscal, alerta_fiscal, catastro_consultado, created_at FROM properties WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS expedientes (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	numero_expediente TEXT NOT NULL UNIQUE,
	titulo            TEXT NOT NULL,
	cliente           TEXT,
	tipo_causa        TEXT NOT NULL DEFAULT 'otro',
	estado            TEXT NOT NULL DEFAULT 'abierto',
	descripcion       TEXT,
	notas             TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS documents (
	id                        TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	expediente_id             TEXT REFERENCES expedientes(id),
	file_name                 TEXT NOT NULL,
	file_path                 TEXT NOT NULL,
	file_type                 TEXT,
	file_size                 BIGINT,
	doc_type                  TEXT,
	classification_confidence DOUBLE PRECISION,
	status                    TEXT NOT NULL DEFAULT 'pending',
	error_message             TEXT,
	created_at                TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at                TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS invoices (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	document_id       TEXT NOT NULL REFERENCES documents(id),
	emisor            TEXT,
	cif               TEXT,
	numero_factura    TEXT,
	fecha             TEXT,
	base_imponible    DOUBLE PRECISION,
	tipos_iva         JSONB NOT NULL DEFAULT '[]',
	total             DOUBLE PRECISION,
	concepto          TEXT,
	items             JSONB NOT NULL DEFAULT '[]',
	page_number       INTEGER,
	confidence_scores JSONB NOT NULL DEFAULT '{}',
	validated         BOOLEAN NOT NULL DEFAULT false,
	validated_at      TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS inheritance_deeds (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	document_id         TEXT NOT NULL REFERENCES documents(id),
	causante            TEXT,
	fecha_fallecimiento TEXT,
	notario             TEXT,
	protocolo           TEXT,
	fecha_escritura     TEXT,
	confidence_scores   JSONB NOT NULL DEFAULT '{}',
	validated           BOOLEAN NOT NULL DEFAULT false,
	validated_at        TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS heirs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	deed_id    TEXT NOT NULL REFERENCES inheritance_deeds(id),
	nombre     TEXT NOT NULL,
	rol        TEXT,
	dni        TEXT,
	porcentaje DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS properties (
	id                         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	deed_id                    TEXT NOT NULL REFERENCES inheritance_deeds(id),
	descripcion                TEXT,
	referencia_catastral       TEXT,
	valor_declarado            DOUBLE PRECISION,
	catastro_direccion         TEXT,
	catastro_provincia         TEXT,
	catastro_municipio         TEXT,
	catastro_superficie        DOUBLE PRECISION,
	catastro_uso               TEXT,
	catastro_anio_construccion INTEGER,
	catastro_raw_data          JSONB,
	valor_referencia           DOUBLE PRECISION,
	desviacion_fiscal          NUMERIC(5,2),
	alerta_fiscal              BOOLEAN NOT NULL DEFAULT false,
	catastro_consultado        BOOLEAN NOT NULL DEFAULT false,
	created_at                 TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sujetos (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	expediente_id     TEXT NOT NULL REFERENCES expedientes(id),
	nombre_completo   TEXT NOT NULL,
	tipo_persona      TEXT NOT NULL DEFAULT 'fisica',
	dni_cif           TEXT,
	rol_procesal      TEXT NOT NULL DEFAULT 'otro',
	contacto_email    TEXT,
	contacto_telefono TEXT,
	direccion         TEXT,
	datos_extra       JSONB,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS timeline_events (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	expediente_id TEXT NOT NULL REFERENCES expedientes(id),
	document_id   TEXT REFERENCES documents(id),
	fecha         TEXT NOT NULL,
	titulo        TEXT NOT NULL,
	descripcion   TEXT,
	tipo_evento   TEXT NOT NULL DEFAULT 'hito_manual',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_expediente ON documents(expediente_id);
CREATE INDEX IF NOT EXISTS idx_invoices_document ON invoices(document_id);
CREATE INDEX IF NOT EXISTS idx_invoices_validated ON invoices(document_id, validated);
CREATE INDEX IF NOT EXISTS idx_deeds_document ON inheritance_deeds(document_id);
CREATE INDEX IF NOT EXISTS idx_heirs_deed ON heirs(deed_id);
CREATE INDEX IF NOT EXISTS idx_properties_deed ON properties(deed_id);
CREATE INDEX IF NOT EXISTS idx_properties_pending ON properties(catastro_consultado) WHERE catastro_consultado = false;
CREATE INDEX IF NOT EXISTS idx_sujetos_expediente ON sujetos(expediente_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sujetos_identity ON sujetos(expediente_id, nombre_completo, coalesce(dni_cif, ''));
CREATE INDEX IF NOT EXISTS idx_timeline_expediente ON timeline_events(expediente_id, fecha);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Documents ---

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = model.DocumentStatusPending
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, expediente_id, file_name, file_path, file_type, file_size, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID, doc.ExpedienteID, doc.FileName, doc.FilePath, doc.FileType, doc.FileSize, string(doc.Status), now, now,
	)
	return eris.Wrap(err, "postgres: insert document")
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var d model.Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, expediente_id, file_name, file_path, file_type, file_size, doc_type, classification_confidence, status, error_message, created_at, updated_at FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.ExpedienteID, &d.FileName, &d.FilePath, &d.FileType, &d.FileSize, &d.DocType, &d.ClassificationConfidence, &d.Status, &d.ErrorMessage, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("document not found: %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get document %s", id)
	}
	return &d, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error) {
	query := `SELECT id, expediente_id, file_name, file_path, file_type, file_size, doc_type, classification_confidence, status, error_message, created_at, updated_at FROM documents WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.ExpedienteID != "" {
		query += fmt.Sprintf(` AND expediente_id = $%d`, argIdx)
		args = append(args, filter.ExpedienteID)
		argIdx++
	}
	if filter.DocType != "" {
		query += fmt.Sprintf(` AND doc_type = $%d`, argIdx)
		args = append(args, string(filter.DocType))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.ExpedienteID, &d.FileName, &d.FilePath, &d.FileType, &d.FileSize, &d.DocType, &d.ClassificationConfidence, &d.Status, &d.ErrorMessage, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, id string, status model.DocumentStatus, errorMessage *string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		string(status), errorMessage, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update document status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("document not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) UpdateDocumentClassification(ctx context.Context, id string, c model.Classification) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET doc_type = $1, classification_confidence = $2, updated_at = $3 WHERE id = $4`,
		string(c.DocumentType), c.Confidence, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update document classification %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("document not found: %s", id)
	}
	return nil
}

// --- Invoices ---

func (s *PostgresStore) InsertInvoice(ctx context.Context, inv *model.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	inv.CreatedAt = time.Now().UTC()

	tiposJSON, err := json.Marshal(inv.TiposIVA)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal tipos_iva")
	}
	itemsJSON, err := json.Marshal(inv.Items)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal items")
	}
	scoresJSON, err := json.Marshal(inv.ConfidenceScores)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal confidence_scores")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO invoices (id, document_id, emisor, cif, numero_factura, fecha, base_imponible, tipos_iva, total, concepto, items, page_number, confidence_scores, validated, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		inv.ID, inv.DocumentID, inv.Emisor, inv.CIF, inv.NumeroFactura, inv.Fecha, inv.BaseImponible, tiposJSON, inv.Total, inv.Concepto, itemsJSON, inv.PageNumber, scoresJSON, inv.Validated, inv.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert invoice")
}

const invoiceColumns = `id, document_id, emisor, cif, numero_factura, fecha, base_imponible, tipos_iva, total, concepto, items, page_number, confidence_scores, validated, validated_at, created_at`

func scanInvoice(row pgx.Row) (*model.Invoice, error) {
	var inv model.Invoice
	var tiposJSON, itemsJSON, scoresJSON []byte

	err := row.Scan(&inv.ID, &inv.DocumentID, &inv.Emisor, &inv.CIF, &inv.NumeroFactura, &inv.Fecha, &inv.BaseImponible, &tiposJSON, &inv.Total, &inv.Concepto, &itemsJSON, &inv.PageNumber, &scoresJSON, &inv.Validated, &inv.ValidatedAt, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tiposJSON, &inv.TiposIVA); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal tipos_iva")
	}
	if err := json.Unmarshal(itemsJSON, &inv.Items); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal items")
	}
	if err := json.Unmarshal(scoresJSON, &inv.ConfidenceScores); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal confidence_scores")
	}
	return &inv, nil
}

func (s *PostgresStore) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	inv, err := scanInvoice(s.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("invoice not found: %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get invoice %s", id)
	}
	return inv, nil
}

func (s *PostgresStore) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE true`
	args := []any{}
	argIdx := 1

	if len(filter.DocumentIDs) > 0 {
		query += fmt.Sprintf(` AND document_id = ANY($%d)`, argIdx)
		args = append(args, filter.DocumentIDs)
		argIdx++
	}
	if filter.Validated != nil {
		query += fmt.Sprintf(` AND validated = $%d`, argIdx)
		args = append(args, *filter.Validated)
		argIdx++
	}
	query += ` ORDER BY created_at ASC, page_number ASC NULLS LAST`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list invoices")
	}
	defer rows.Close()

	var invoices []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan invoice")
		}
		invoices = append(invoices, *inv)
	}
	return invoices, eris.Wrap(rows.Err(), "postgres: list invoices iterate")
}

// UpdateInvoiceFields writes only the columns the edit carries; everything
// the reviewer left alone keeps its extracted value.
func (s *PostgresStore) UpdateInvoiceFields(ctx context.Context, id string, edit model.InvoiceEdit) error {
	var sets []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if edit.Emisor != nil {
		set("emisor", *edit.Emisor)
	}
	if edit.CIF != nil {
		set("cif", *edit.CIF)
	}
	if edit.NumeroFactura != nil {
		set("numero_factura", *edit.NumeroFactura)
	}
	if edit.Fecha != nil {
		set("fecha", *edit.Fecha)
	}
	if edit.BaseImponible != nil || edit.ClearBaseImponible {
		set("base_imponible", edit.BaseImponible)
	}
	if edit.Total != nil || edit.ClearTotal {
		set("total", edit.Total)
	}
	if edit.Concepto != nil {
		set("concepto", *edit.Concepto)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE invoices SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update invoice %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("invoice not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) MarkInvoiceValidated(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE invoices SET validated = true, validated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: validate invoice %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("invoice not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) CountUnvalidatedInvoices(ctx context.Context, documentID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM invoices WHERE document_id = $1 AND validated = false`,
		documentID,
	).Scan(&n)
	return n, eris.Wrapf(err, "postgres: count unvalidated invoices %s", documentID)
}

// --- Deeds, heirs, properties ---

func (s *PostgresStore) InsertDeed(ctx context.Context, deed *model.InheritanceDeed) error {
	if deed.ID == "" {
		deed.ID = uuid.New().String()
	}
	deed.CreatedAt = time.Now().UTC()

	scoresJSON, err := json.Marshal(deed.ConfidenceScores)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal confidence_scores")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO inheritance_deeds (id, document_id, causante, fecha_fallecimiento, notario, protocolo, fecha_escritura, confidence_scores, validated, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		deed.ID, deed.DocumentID, deed.Causante, deed.FechaFallecimiento, deed.Notario, deed.Protocolo, deed.FechaEscritura, scoresJSON, deed.Validated, deed.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert deed")
}

func (s *PostgresStore) GetDeed(ctx context.Context, id string) (*model.InheritanceDeed, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, document_id, causante, fecha_fallecimiento, notario, protocolo, fecha_escritura, confidence_scores, validated, validated_at, created_at FROM inheritance_deeds WHERE id = $1`,
		id,
	)

	var d model.InheritanceDeed
	var scoresJSON []byte
	if err := row.Scan(&d.ID, &d.DocumentID, &d.Causante, &d.FechaFallecimiento, &d.Notario, &d.Protocolo, &d.FechaEscritura, &scoresJSON, &d.Validated, &d.ValidatedAt, &d.CreatedAt); err != nil {
		return nil, eris.Wrapf(err, "postgres: get deed %s", id)
	}
	if err := json.Unmarshal(scoresJSON, &d.ConfidenceScores); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal confidence_scores")
	}
	return &d, nil
}

func (s *PostgresStore) ListDeeds(ctx context.Context, filter DeedFilter) ([]model.InheritanceDeed, error) {
	query := `SELECT id, document_id, causante, fecha_fallecimiento, notario, protocolo, fecha_escritura, confidence_scores, validated, validated_at, created_at FROM inheritance_deeds WHERE true`
	args := []any{}
	argIdx := 1

	if len(filter.DocumentIDs) > 0 {
		query += fmt.Sprintf(` AND document_id = ANY($%d)`, argIdx)
		args = append(args, filter.DocumentIDs)
		argIdx++
	}
	if filter.Validated != nil {
		query += fmt.Sprintf(` AND validated = $%d`, argIdx)
		args = append(args, *filter.Validated)
		argIdx++
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list deeds")
	}
	defer rows.Close()

	var deeds []model.InheritanceDeed
	for rows.Next() {
		var d model.InheritanceDeed
		var scoresJSON []byte
		if err := rows.Scan(&d.ID, &d.DocumentID, &d.Causante, &d.FechaFallecimiento, &d.Notario, &d.Protocolo, &d.FechaEscritura, &scoresJSON, &d.Validated, &d.ValidatedAt, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan deed")
		}
		if err := json.Unmarshal(scoresJSON, &d.ConfidenceScores); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal confidence_scores")
		}
		deeds = append(deeds, d)
	}
	return deeds, eris.Wrap(rows.Err(), "postgres: list deeds iterate")
}

func (s *PostgresStore) MarkDeedValidated(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE inheritance_deeds SET validated = true, validated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: validate deed %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("deed not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) InsertHeir(ctx context.Context, heir *model.Heir) error {
	if heir.ID == "" {
		heir.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO heirs (id, deed_id, nombre, rol, dni, porcentaje) VALUES ($1, $2, $3, $4, $5, $6)`,
		heir.ID, heir.DeedID, heir.Nombre, heir.Rol, heir.DNI, heir.Porcentaje,
	)
	return eris.Wrap(err, "postgres: insert heir")
}

func (s *PostgresStore) ListHeirs(ctx context.Context, deedID string) ([]model.Heir, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, deed_id, nombre, rol, dni, porcentaje FROM heirs WHERE deed_id = $1 ORDER BY nombre ASC`,
		deedID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list heirs")
	}
	defer rows.Close()

	var heirs []model.Heir
	for rows.Next() {
		var h model.Heir
		if err := rows.Scan(&h.ID, &h.DeedID, &h.Nombre, &h.Rol, &h.DNI, &h.Porcentaje); err != nil {
			return nil, eris.Wrap(err, "postgres: scan heir")
		}
		heirs = append(heirs, h)
	}
	return heirs, eris.Wrap(rows.Err(), "postgres: list heirs iterate")
}

func (s *PostgresStore) InsertProperty(ctx context.Context, prop *model.Property) error {
	if prop.ID == "" {
		prop.ID = uuid.New().String()
	}
	prop.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO properties (id, deed_id, descripcion, referencia_catastral, valor_declarado, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		prop.ID, prop.DeedID, prop.Descripcion, prop.ReferenciaCatastral, prop.ValorDeclarado, prop.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert property")
}

const propertyColumns = `id, deed_id, descripcion, referencia_catastral, valor_declarado, catastro_direccion, catastro_provincia, catastro_municipio, catastro_superficie, catastro_uso, catastro_anio_construccion, catastro_raw_data, valor_referencia, desviacion_fiscal, alerta_fiscal, catastro_consultado, created_at`

func scanProperty(row pgx.Row) (*model.Property, error) {
	var p model.Property
	var rawJSON []byte

	err := row.Scan(&p.ID, &p.DeedID, &p.Descripcion, &p.ReferenciaCatastral, &p.ValorDeclarado, &p.CatastroDireccion, &p.CatastroProvincia, &p.CatastroMunicipio, &p.CatastroSuperficie, &p.CatastroUso, &p.CatastroAnioConstruccion, &rawJSON, &p.ValorReferencia, &p.DesviacionFiscal, &p.AlertaFiscal, &p.CatastroConsultado, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if rawJSON != nil {
		if err := json.Unmarshal(rawJSON, &p.CatastroRawData); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal catastro_raw_data")
		}
	}
	return &p, nil
}

func (s *PostgresStore) GetProperty(ctx context.Context, id string) (*model.Property, error) {
	p, err := scanProperty(s.pool.QueryRow(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("property not found: %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get property %s", id)
	}
	return p, nil
}

func (s *PostgresStore) ListProperties(ctx context.Context, deedID string) ([]model.Property, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE deed_id = $1 ORDER BY created_at ASC`,
		deedID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list properties")
	}
	defer rows.Close()

	var props []model.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan property")
		}
		props = append(props, *p)
	}
	return props, eris.Wrap(rows.Err(), "postgres: list properties iterate")
}

func (s *PostgresStore) ListPendingCatastro(ctx context.Context) ([]model.Property, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE referencia_catastral IS NOT NULL AND catastro_consultado = false ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending catastro")
	}
	defer rows.Close()

	var props []model.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan property")
		}
		props = append(props, *p)
	}
	return props, eris.Wrap(rows.Err(), "postgres: list pending catastro iterate")
}

// UpdatePropertyCatastro applies the whole cadastral snapshot in a single
// statement so a property is never half-updated.
func (s *PostgresStore) UpdatePropertyCatastro(ctx context.Context, id string, upd model.CatastroUpdate) error {
	rawJSON, err := json.Marshal(upd.RawData)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal catastro_raw_data")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE properties SET catastro_direccion = $1, catastro_provincia = $2, catastro_municipio = $3, catastro_superficie = $4, catastro_uso = $5, catastro_anio_construccion = $6, catastro_raw_data = $7, valor_referencia = $8, desviacion_fiscal = $9, alerta_fiscal = $10, catastro_consultado = true WHERE id = $11`,
		upd.Direccion, upd.Provincia, upd.Municipio, upd.Superficie, upd.Uso, upd.AnioConstruccion, rawJSON, upd.ValorReferencia, upd.DesviacionFiscal, upd.AlertaFiscal, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update property catastro %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("property not found: %s", id)
	}
	return nil
}

// --- Expedientes ---

func (s *PostgresStore) CreateExpediente(ctx context.Context, exp *model.Expediente) error {
	if exp.ID == "" {
		exp.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	exp.CreatedAt = now
	exp.UpdatedAt = now
	if exp.Estado == "" {
		exp.Estado = model.ExpedienteAbierto
	}
	if exp.TipoCausa == "" {
		exp.TipoCausa = model.CausaOtro
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO expedientes (id, numero_expediente, titulo, cliente, tipo_causa, estado, descripcion, notas, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		exp.ID, exp.NumeroExpediente, exp.Titulo, exp.Cliente, string(exp.TipoCausa), string(exp.Estado), exp.Descripcion, exp.Notas, now, now,
	)
	return eris.Wrap(err, "postgres: insert expediente")
}

func (s *PostgresStore) GetExpediente(ctx context.Context, id string) (*model.Expediente, error) {
	var e model.Expediente
	err := s.pool.QueryRow(ctx,
		`SELECT id, numero_expediente, titulo, cliente, tipo_causa, estado, descripcion, notas, created_at, updated_at FROM expedientes WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.NumeroExpediente, &e.Titulo, &e.Cliente, &e.TipoCausa, &e.Estado, &e.Descripcion, &e.Notas, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("expediente not found: %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get expediente %s", id)
	}
	return &e, nil
}

func (s *PostgresStore) ListExpedientes(ctx context.Context) ([]model.Expediente, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, numero_expediente, titulo, cliente, tipo_causa, estado, descripcion, notas, created_at, updated_at FROM expedientes ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list expedientes")
	}
	defer rows.Close()

	var exps []model.Expediente
	for rows.Next() {
		var e model.Expediente
		if err := rows.Scan(&e.ID, &e.NumeroExpediente, &e.Titulo, &e.Cliente, &e.TipoCausa, &e.Estado, &e.Descripcion, &e.Notas, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan expediente")
		}
		exps = append(exps, e)
	}
	return exps, eris.Wrap(rows.Err(), "postgres: list expedientes iterate")
}

func (s *PostgresStore) CountExpedientes(ctx context.Context, year int) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM expedientes WHERE numero_expediente LIKE $1`,
		fmt.Sprintf("EXP-%d-%%", year),
	).Scan(&n)
	return n, eris.Wrapf(err, "postgres: count expedientes %d", year)
}

func (s *PostgresStore) UpsertSujeto(ctx context.Context, sj *model.Sujeto) error {
	if sj.ID == "" {
		sj.ID = uuid.New().String()
	}
	sj.CreatedAt = time.Now().UTC()

	var extraJSON []byte
	if sj.DatosExtra != nil {
		var err error
		extraJSON, err = json.Marshal(sj.DatosExtra)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal datos_extra")
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO sujetos (id, expediente_id, nombre_completo, tipo_persona, dni_cif, rol_procesal, contacto_email, contacto_telefono, direccion, datos_extra, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (expediente_id, nombre_completo, coalesce(dni_cif, '')) DO UPDATE SET rol_procesal = $6, datos_extra = $10`,
		sj.ID, sj.ExpedienteID, sj.NombreCompleto, string(sj.TipoPersona), sj.DNICIF, string(sj.RolProcesal), sj.ContactoEmail, sj.ContactoTelefono, sj.Direccion, extraJSON, sj.CreatedAt,
	)
	return eris.Wrap(err, "postgres: upsert sujeto")
}

func (s *PostgresStore) ListSujetos(ctx context.Context, expedienteID string) ([]model.Sujeto, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, expediente_id, nombre_completo, tipo_persona, dni_cif, rol_procesal, contacto_email, contacto_telefono, direccion, datos_extra, created_at FROM sujetos WHERE expediente_id = $1 ORDER BY nombre_completo ASC`,
		expedienteID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sujetos")
	}
	defer rows.Close()

	var sujetos []model.Sujeto
	for rows.Next() {
		var sj model.Sujeto
		var extraJSON []byte
		if err := rows.Scan(&sj.ID, &sj.ExpedienteID, &sj.NombreCompleto, &sj.TipoPersona, &sj.DNICIF, &sj.RolProcesal, &sj.ContactoEmail, &sj.ContactoTelefono, &sj.Direccion, &extraJSON, &sj.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sujeto")
		}
		if extraJSON != nil {
			if err := json.Unmarshal(extraJSON, &sj.DatosExtra); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal datos_extra")
			}
		}
		sujetos = append(sujetos, sj)
	}
	return sujetos, eris.Wrap(rows.Err(), "postgres: list sujetos iterate")
}

func (s *PostgresStore) InsertTimelineEvent(ctx context.Context, ev *model.TimelineEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	ev.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO timeline_events (id, expediente_id, document_id, fecha, titulo, descripcion, tipo_evento, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.ExpedienteID, ev.DocumentID, ev.Fecha, ev.Titulo, ev.Descripcion, string(ev.TipoEvento), ev.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert timeline event")
}

func (s *PostgresStore) ListTimeline(ctx context.Context, expedienteID string) ([]model.TimelineEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, expediente_id, document_id, fecha, titulo, descripcion, tipo_evento, created_at FROM timeline_events WHERE expediente_id = $1 ORDER BY fecha ASC, created_at ASC`,
		expedienteID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list timeline")
	}
	defer rows.Close()

	var events []model.TimelineEvent
	for rows.Next() {
		var ev model.TimelineEvent
		if err := rows.Scan(&ev.ID, &ev.ExpedienteID, &ev.DocumentID, &ev.Fecha, &ev.Titulo, &ev.Descripcion, &ev.TipoEvento, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan timeline event")
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list timeline iterate")
}
