package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/iuslabs/intake-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the
// single-file alternative for offline use and demos; Postgres is the
// production backend.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS expedientes (
	id                TEXT PRIMARY KEY,
	numero_expediente TEXT NOT NULL UNIQUE,
	titulo            TEXT NOT NULL,
	cliente           TEXT,
	tipo_causa        TEXT NOT NULL DEFAULT 'otro',
	estado            TEXT NOT NULL DEFAULT 'abierto',
	descripcion       TEXT,
	notas             TEXT,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS documents (
	id                        TEXT PRIMARY KEY,
	expediente_id             TEXT REFERENCES expedientes(id),
	file_name                 TEXT NOT NULL,
	file_path                 TEXT NOT NULL,
	file_type                 TEXT,
	file_size                 INTEGER,
	doc_type                  TEXT,
	classification_confidence REAL,
	status                    TEXT NOT NULL DEFAULT 'pending',
	error_message             TEXT,
	created_at                DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at                DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS invoices (
	id                TEXT PRIMARY KEY,
	document_id       TEXT NOT NULL REFERENCES documents(id),
	emisor            TEXT,
	cif               TEXT,
	numero_factura    TEXT,
	fecha             TEXT,
	base_imponible    REAL,
	tipos_iva         TEXT NOT NULL DEFAULT '[]',
	total             REAL,
	concepto          TEXT,
	items             TEXT NOT NULL DEFAULT '[]',
	page_number       INTEGER,
	confidence_scores TEXT NOT NULL DEFAULT '{}',
	validated         INTEGER NOT NULL DEFAULT 0,
	validated_at      DATETIME,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS inheritance_deeds (
	id                  TEXT PRIMARY KEY,
	document_id         TEXT NOT NULL REFERENCES documents(id),
	causante            TEXT,
	fecha_fallecimiento TEXT,
	notario             TEXT,
	protocolo           TEXT,
	fecha_escritura     TEXT,
	confidence_scores   TEXT NOT NULL DEFAULT '{}',
	validated           INTEGER NOT NULL DEFAULT 0,
	validated_at        DATETIME,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS heirs (
	id         TEXT PRIMARY KEY,
	deed_id    TEXT NOT NULL REFERENCES inheritance_deeds(id),
	nombre     TEXT NOT NULL,
	rol        TEXT,
	dni        TEXT,
	porcentaje REAL
);

CREATE TABLE IF NOT EXISTS properties (
	id                         TEXT PRIMARY KEY,
	deed_id                    TEXT NOT NULL REFERENCES inheritance_deeds(id),
	descripcion                TEXT,
	referencia_catastral       TEXT,
	valor_declarado            REAL,
	catastro_direccion         TEXT,
	catastro_provincia         TEXT,
	catastro_municipio         TEXT,
	catastro_superficie        REAL,
	catastro_uso               TEXT,
	catastro_anio_construccion INTEGER,
	catastro_raw_data          TEXT,
	valor_referencia           REAL,
	desviacion_fiscal          REAL,
	alerta_fiscal              INTEGER NOT NULL DEFAULT 0,
	catastro_consultado        INTEGER NOT NULL DEFAULT 0,
	created_at                 DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sujetos (
	id                TEXT PRIMARY KEY,
	expediente_id     TEXT NOT NULL REFERENCES expedientes(id),
	nombre_completo   TEXT NOT NULL,
	tipo_persona      TEXT NOT NULL DEFAULT 'fisica',
	dni_cif           TEXT,
	rol_procesal      TEXT NOT NULL DEFAULT 'otro',
	contacto_email    TEXT,
	contacto_telefono TEXT,
	direccion         TEXT,
	datos_extra       TEXT,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS timeline_events (
	id            TEXT PRIMARY KEY,
	expediente_id TEXT NOT NULL REFERENCES expedientes(id),
	document_id   TEXT REFERENCES documents(id),
	fecha         TEXT NOT NULL,
	titulo        TEXT NOT NULL,
	descripcion   TEXT,
	tipo_evento   TEXT NOT NULL DEFAULT 'hito_manual',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_expediente ON documents(expediente_id);
CREATE INDEX IF NOT EXISTS idx_invoices_document ON invoices(document_id);
CREATE INDEX IF NOT EXISTS idx_deeds_document ON inheritance_deeds(document_id);
CREATE INDEX IF NOT EXISTS idx_heirs_deed ON heirs(deed_id);
CREATE INDEX IF NOT EXISTS idx_properties_deed ON properties(deed_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sujetos_identity ON sujetos(expediente_id, nombre_completo, coalesce(dni_cif, ''));
CREATE INDEX IF NOT EXISTS idx_timeline_expediente ON timeline_events(expediente_id, fecha);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Documents ---

func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = model.DocumentStatusPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, expediente_id, file_name, file_path, file_type, file_size, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.ExpedienteID, doc.FileName, doc.FilePath, doc.FileType, doc.FileSize, string(doc.Status), now, now,
	)
	return eris.Wrap(err, "sqlite: insert document")
}

const sqliteDocumentColumns = `id, expediente_id, file_name, file_path, file_type, file_size, doc_type, classification_confidence, status, error_message, created_at, updated_at`

func scanDocument(row scannable) (*model.Document, error) {
	var d model.Document
	err := row.Scan(&d.ID, &d.ExpedienteID, &d.FileName, &d.FilePath, &d.FileType, &d.FileSize, &d.DocType, &d.ClassificationConfidence, &d.Status, &d.ErrorMessage, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteDocumentColumns+` FROM documents WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("document not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get document %s", id)
	}
	return d, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error) {
	query := `SELECT ` + sqliteDocumentColumns + ` FROM documents WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.ExpedienteID != "" {
		query += ` AND expediente_id = ?`
		args = append(args, filter.ExpedienteID)
	}
	if filter.DocType != "" {
		query += ` AND doc_type = ?`
		args = append(args, string(filter.DocType))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		docs = append(docs, *d)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

func (s *SQLiteStore) UpdateDocumentStatus(ctx context.Context, id string, status model.DocumentStatus, errorMessage *string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(status), errorMessage, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update document status %s", id)
	}
	return checkRowsAffected(res, "document", id)
}

func (s *SQLiteStore) UpdateDocumentClassification(ctx context.Context, id string, c model.Classification) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET doc_type = ?, classification_confidence = ?, updated_at = ? WHERE id = ?`,
		string(c.DocumentType), c.Confidence, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update document classification %s", id)
	}
	return checkRowsAffected(res, "document", id)
}

// --- Invoices ---

func (s *SQLiteStore) InsertInvoice(ctx context.Context, inv *model.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	inv.CreatedAt = time.Now().UTC()

	tiposJSON, err := json.Marshal(inv.TiposIVA)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal tipos_iva")
	}
	itemsJSON, err := json.Marshal(inv.Items)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal items")
	}
	scoresJSON, err := json.Marshal(inv.ConfidenceScores)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal confidence_scores")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO invoices (id, document_id, emisor, cif, numero_factura, fecha, base_imponible, tipos_iva, total, concepto, items, page_number, confidence_scores, validated, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.DocumentID, inv.Emisor, inv.CIF, inv.NumeroFactura, inv.Fecha, inv.BaseImponible, string(tiposJSON), inv.Total, inv.Concepto, string(itemsJSON), inv.PageNumber, string(scoresJSON), inv.Validated, inv.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert invoice")
}

func scanSQLiteInvoice(row scannable) (*model.Invoice, error) {
	var inv model.Invoice
	var tiposJSON, itemsJSON, scoresJSON string

	err := row.Scan(&inv.ID, &inv.DocumentID, &inv.Emisor, &inv.CIF, &inv.NumeroFactura, &inv.Fecha, &inv.BaseImponible, &tiposJSON, &inv.Total, &inv.Concepto, &itemsJSON, &inv.PageNumber, &scoresJSON, &inv.Validated, &inv.ValidatedAt, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tiposJSON), &inv.TiposIVA); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal tipos_iva")
	}
	if err := json.Unmarshal([]byte(itemsJSON), &inv.Items); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal items")
	}
	if err := json.Unmarshal([]byte(scoresJSON), &inv.ConfidenceScores); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal confidence_scores")
	}
	return &inv, nil
}

func (s *SQLiteStore) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	inv, err := scanSQLiteInvoice(s.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("invoice not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get invoice %s", id)
	}
	return inv, nil
}

func (s *SQLiteStore) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
	var args []any

	if len(filter.DocumentIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.DocumentIDs)), ",")
		query += fmt.Sprintf(` AND document_id IN (%s)`, placeholders)
		for _, id := range filter.DocumentIDs {
			args = append(args, id)
		}
	}
	if filter.Validated != nil {
		query += ` AND validated = ?`
		args = append(args, *filter.Validated)
	}
	query += ` ORDER BY created_at ASC, page_number ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list invoices")
	}
	defer rows.Close()

	var invoices []model.Invoice
	for rows.Next() {
		inv, err := scanSQLiteInvoice(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan invoice")
		}
		invoices = append(invoices, *inv)
	}
	return invoices, eris.Wrap(rows.Err(), "sqlite: list invoices iterate")
}

// UpdateInvoiceFields writes only the columns the edit carries; everything
// the reviewer left alone keeps its extracted value.
func (s *SQLiteStore) UpdateInvoiceFields(ctx context.Context, id string, edit model.InvoiceEdit) error {
	var sets []string
	var args []any
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
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
	res, err := s.db.ExecContext(ctx,
		`UPDATE invoices SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update invoice %s", id)
	}
	return checkRowsAffected(res, "invoice", id)
}

func (s *SQLiteStore) MarkInvoiceValidated(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE invoices SET validated = 1, validated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: validate invoice %s", id)
	}
	return checkRowsAffected(res, "invoice", id)
}

func (s *SQLiteStore) CountUnvalidatedInvoices(ctx context.Context, documentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM invoices WHERE document_id = ? AND validated = 0`,
		documentID,
	).Scan(&n)
	return n, eris.Wrapf(err, "sqlite: count unvalidated invoices %s", documentID)
}

// --- Deeds, heirs, properties ---

func (s *SQLiteStore) InsertDeed(ctx context.Context, deed *model.InheritanceDeed) error {
	if deed.ID == "" {
		deed.ID = uuid.New().String()
	}
	deed.CreatedAt = time.Now().UTC()

	scoresJSON, err := json.Marshal(deed.ConfidenceScores)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal confidence_scores")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO inheritance_deeds (id, document_id, causante, fecha_fallecimiento, notario, protocolo, fecha_escritura, confidence_scores, validated, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		deed.ID, deed.DocumentID, deed.Causante, deed.FechaFallecimiento, deed.Notario, deed.Protocolo, deed.FechaEscritura, string(scoresJSON), deed.Validated, deed.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert deed")
}

func (s *SQLiteStore) GetDeed(ctx context.Context, id string) (*model.InheritanceDeed, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, causante, fecha_fallecimiento, notario, protocolo, fecha_escritura, confidence_scores, validated, validated_at, created_at FROM inheritance_deeds WHERE id = ?`,
		id,
	)

	var d model.InheritanceDeed
	var scoresJSON string
	if err := row.Scan(&d.ID, &d.DocumentID, &d.Causante, &d.FechaFallecimiento, &d.Notario, &d.Protocolo, &d.FechaEscritura, &scoresJSON, &d.Validated, &d.ValidatedAt, &d.CreatedAt); err != nil {
		return nil, eris.Wrapf(err, "sqlite: get deed %s", id)
	}
	if err := json.Unmarshal([]byte(scoresJSON), &d.ConfidenceScores); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal confidence_scores")
	}
	return &d, nil
}

func (s *SQLiteStore) ListDeeds(ctx context.Context, filter DeedFilter) ([]model.InheritanceDeed, error) {
	query := `SELECT id, document_id, causante, fecha_fallecimiento, notario, protocolo, fecha_escritura, confidence_scores, validated, validated_at, created_at FROM inheritance_deeds WHERE 1=1`
	var args []any

	if len(filter.DocumentIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.DocumentIDs)), ",")
		query += fmt.Sprintf(` AND document_id IN (%s)`, placeholders)
		for _, id := range filter.DocumentIDs {
			args = append(args, id)
		}
	}
	if filter.Validated != nil {
		query += ` AND validated = ?`
		args = append(args, *filter.Validated)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list deeds")
	}
	defer rows.Close()

	var deeds []model.InheritanceDeed
	for rows.Next() {
		var d model.InheritanceDeed
		var scoresJSON string
		if err := rows.Scan(&d.ID, &d.DocumentID, &d.Causante, &d.FechaFallecimiento, &d.Notario, &d.Protocolo, &d.FechaEscritura, &scoresJSON, &d.Validated, &d.ValidatedAt, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan deed")
		}
		if err := json.Unmarshal([]byte(scoresJSON), &d.ConfidenceScores); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal confidence_scores")
		}
		deeds = append(deeds, d)
	}
	return deeds, eris.Wrap(rows.Err(), "sqlite: list deeds iterate")
}

func (s *SQLiteStore) MarkDeedValidated(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE inheritance_deeds SET validated = 1, validated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: validate deed %s", id)
	}
	return checkRowsAffected(res, "deed", id)
}

func (s *SQLiteStore) InsertHeir(ctx context.Context, heir *model.Heir) error {
	if heir.ID == "" {
		heir.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO heirs (id, deed_id, nombre, rol, dni, porcentaje) VALUES (?, ?, ?, ?, ?, ?)`,
		heir.ID, heir.DeedID, heir.Nombre, heir.Rol, heir.DNI, heir.Porcentaje,
	)
	return eris.Wrap(err, "sqlite: insert heir")
}

func (s *SQLiteStore) ListHeirs(ctx context.Context, deedID string) ([]model.Heir, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, deed_id, nombre, rol, dni, porcentaje FROM heirs WHERE deed_id = ? ORDER BY nombre ASC`,
		deedID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list heirs")
	}
	defer rows.Close()

	var heirs []model.Heir
	for rows.Next() {
		var h model.Heir
		if err := rows.Scan(&h.ID, &h.DeedID, &h.Nombre, &h.Rol, &h.DNI, &h.Porcentaje); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan heir")
		}
		heirs = append(heirs, h)
	}
	return heirs, eris.Wrap(rows.Err(), "sqlite: list heirs iterate")
}

func (s *SQLiteStore) InsertProperty(ctx context.Context, prop *model.Property) error {
	if prop.ID == "" {
		prop.ID = uuid.New().String()
	}
	prop.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO properties (id, deed_id, descripcion, referencia_catastral, valor_declarado, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		prop.ID, prop.DeedID, prop.Descripcion, prop.ReferenciaCatastral, prop.ValorDeclarado, prop.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert property")
}

func scanSQLiteProperty(row scannable) (*model.Property, error) {
	var p model.Property
	var rawJSON sql.NullString

	err := row.Scan(&p.ID, &p.DeedID, &p.Descripcion, &p.ReferenciaCatastral, &p.ValorDeclarado, &p.CatastroDireccion, &p.CatastroProvincia, &p.CatastroMunicipio, &p.CatastroSuperficie, &p.CatastroUso, &p.CatastroAnioConstruccion, &rawJSON, &p.ValorReferencia, &p.DesviacionFiscal, &p.AlertaFiscal, &p.CatastroConsultado, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if rawJSON.Valid {
		if err := json.Unmarshal([]byte(rawJSON.String), &p.CatastroRawData); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal catastro_raw_data")
		}
	}
	return &p, nil
}

func (s *SQLiteStore) GetProperty(ctx context.Context, id string) (*model.Property, error) {
	p, err := scanSQLiteProperty(s.db.QueryRowContext(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("property not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get property %s", id)
	}
	return p, nil
}

func (s *SQLiteStore) ListProperties(ctx context.Context, deedID string) ([]model.Property, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE deed_id = ? ORDER BY created_at ASC`,
		deedID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list properties")
	}
	defer rows.Close()

	var props []model.Property
	for rows.Next() {
		p, err := scanSQLiteProperty(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan property")
		}
		props = append(props, *p)
	}
	return props, eris.Wrap(rows.Err(), "sqlite: list properties iterate")
}

func (s *SQLiteStore) ListPendingCatastro(ctx context.Context) ([]model.Property, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE referencia_catastral IS NOT NULL AND catastro_consultado = 0 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending catastro")
	}
	defer rows.Close()

	var props []model.Property
	for rows.Next() {
		p, err := scanSQLiteProperty(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan property")
		}
		props = append(props, *p)
	}
	return props, eris.Wrap(rows.Err(), "sqlite: list pending catastro iterate")
}

func (s *SQLiteStore) UpdatePropertyCatastro(ctx context.Context, id string, upd model.CatastroUpdate) error {
	rawJSON, err := json.Marshal(upd.RawData)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal catastro_raw_data")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE properties SET catastro_direccion = ?, catastro_provincia = ?, catastro_municipio = ?, catastro_superficie = ?, catastro_uso = ?, catastro_anio_construccion = ?, catastro_raw_data = ?, valor_referencia = ?, desviacion_fiscal = ?, alerta_fiscal = ?, catastro_consultado = 1 WHERE id = ?`,
		upd.Direccion, upd.Provincia, upd.Municipio, upd.Superficie, upd.Uso, upd.AnioConstruccion, string(rawJSON), upd.ValorReferencia, upd.DesviacionFiscal, upd.AlertaFiscal, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update property catastro %s", id)
	}
	return checkRowsAffected(res, "property", id)
}

// --- Expedientes ---

func (s *SQLiteStore) CreateExpediente(ctx context.Context, exp *model.Expediente) error {
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expedientes (id, numero_expediente, titulo, cliente, tipo_causa, estado, descripcion, notas, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exp.ID, exp.NumeroExpediente, exp.Titulo, exp.Cliente, string(exp.TipoCausa), string(exp.Estado), exp.Descripcion, exp.Notas, now, now,
	)
	return eris.Wrap(err, "sqlite: insert expediente")
}

func (s *SQLiteStore) GetExpediente(ctx context.Context, id string) (*model.Expediente, error) {
	var e model.Expediente
	err := s.db.QueryRowContext(ctx,
		`SELECT id, numero_expediente, titulo, cliente, tipo_causa, estado, descripcion, notas, created_at, updated_at FROM expedientes WHERE id = ?`,
		id,
	).Scan(&e.ID, &e.NumeroExpediente, &e.Titulo, &e.Cliente, &e.TipoCausa, &e.Estado, &e.Descripcion, &e.Notas, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("expediente not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get expediente %s", id)
	}
	return &e, nil
}

func (s *SQLiteStore) ListExpedientes(ctx context.Context) ([]model.Expediente, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, numero_expediente, titulo, cliente, tipo_causa, estado, descripcion, notas, created_at, updated_at FROM expedientes ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list expedientes")
	}
	defer rows.Close()

	var exps []model.Expediente
	for rows.Next() {
		var e model.Expediente
		if err := rows.Scan(&e.ID, &e.NumeroExpediente, &e.Titulo, &e.Cliente, &e.TipoCausa, &e.Estado, &e.Descripcion, &e.Notas, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan expediente")
		}
		exps = append(exps, e)
	}
	return exps, eris.Wrap(rows.Err(), "sqlite: list expedientes iterate")
}

func (s *SQLiteStore) CountExpedientes(ctx context.Context, year int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM expedientes WHERE numero_expediente LIKE ?`,
		fmt.Sprintf("EXP-%d-%%", year),
	).Scan(&n)
	return n, eris.Wrapf(err, "sqlite: count expedientes %d", year)
}

func (s *SQLiteStore) UpsertSujeto(ctx context.Context, sj *model.Sujeto) error {
	if sj.ID == "" {
		sj.ID = uuid.New().String()
	}
	sj.CreatedAt = time.Now().UTC()

	var extraJSON any
	if sj.DatosExtra != nil {
		b, err := json.Marshal(sj.DatosExtra)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal datos_extra")
		}
		extraJSON = string(b)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sujetos (id, expediente_id, nombre_completo, tipo_persona, dni_cif, rol_procesal, contacto_email, contacto_telefono, direccion, datos_extra, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (expediente_id, nombre_completo, coalesce(dni_cif, '')) DO UPDATE SET rol_procesal = excluded.rol_procesal, datos_extra = excluded.datos_extra`,
		sj.ID, sj.ExpedienteID, sj.NombreCompleto, string(sj.TipoPersona), sj.DNICIF, string(sj.RolProcesal), sj.ContactoEmail, sj.ContactoTelefono, sj.Direccion, extraJSON, sj.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: upsert sujeto")
}

func (s *SQLiteStore) ListSujetos(ctx context.Context, expedienteID string) ([]model.Sujeto, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, expediente_id, nombre_completo, tipo_persona, dni_cif, rol_procesal, contacto_email, contacto_telefono, direccion, datos_extra, created_at FROM sujetos WHERE expediente_id = ? ORDER BY nombre_completo ASC`,
		expedienteID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sujetos")
	}
	defer rows.Close()

	var sujetos []model.Sujeto
	for rows.Next() {
		var sj model.Sujeto
		var extraJSON sql.NullString
		if err := rows.Scan(&sj.ID, &sj.ExpedienteID, &sj.NombreCompleto, &sj.TipoPersona, &sj.DNICIF, &sj.RolProcesal, &sj.ContactoEmail, &sj.ContactoTelefono, &sj.Direccion, &extraJSON, &sj.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sujeto")
		}
		if extraJSON.Valid {
			if err := json.Unmarshal([]byte(extraJSON.String), &sj.DatosExtra); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal datos_extra")
			}
		}
		sujetos = append(sujetos, sj)
	}
	return sujetos, eris.Wrap(rows.Err(), "sqlite: list sujetos iterate")
}

func (s *SQLiteStore) InsertTimelineEvent(ctx context.Context, ev *model.TimelineEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	ev.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO timeline_events (id, expediente_id, document_id, fecha, titulo, descripcion, tipo_evento, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ExpedienteID, ev.DocumentID, ev.Fecha, ev.Titulo, ev.Descripcion, string(ev.TipoEvento), ev.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert timeline event")
}

func (s *SQLiteStore) ListTimeline(ctx context.Context, expedienteID string) ([]model.TimelineEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, expediente_id, document_id, fecha, titulo, descripcion, tipo_evento, created_at FROM timeline_events WHERE expediente_id = ? ORDER BY fecha ASC, created_at ASC`,
		expedienteID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list timeline")
	}
	defer rows.Close()

	var events []model.TimelineEvent
	for rows.Next() {
		var ev model.TimelineEvent
		if err := rows.Scan(&ev.ID, &ev.ExpedienteID, &ev.DocumentID, &ev.Fecha, &ev.Titulo, &ev.Descripcion, &ev.TipoEvento, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan timeline event")
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list timeline iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}
