// Package export assembles validated extractions into portable artifacts:
// a JSON dump for downstream systems and an XLSX workbook for the asesoría.
package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/iuslabs/intake-cli/internal/model"
	"github.com/iuslabs/intake-cli/internal/store"
)

// Options filters what gets exported. Exports always read human-approved
// rows only; there is no switch to include pending extractions.
type Options struct {
	// ExpedienteID restricts the export to one case file.
	ExpedienteID string
}

// DeedExport is a deed with its dependent rows inlined.
type DeedExport struct {
	model.InheritanceDeed
	Herederos []model.Heir     `json:"herederos"`
	Inmuebles []model.Property `json:"inmuebles"`
}

// Data is the full export payload.
type Data struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Documentos  []model.Document `json:"documentos"`
	Facturas    []model.Invoice  `json:"facturas"`
	Escrituras  []DeedExport     `json:"escrituras"`
}

// Exporter reads the store and writes export artifacts.
type Exporter struct {
	store store.Store
}

func NewExporter(st store.Store) *Exporter {
	return &Exporter{store: st}
}

// Build assembles the export payload from validated documents and their
// validated extractions. Invoices and deeds load concurrently; both lists
// are small enough that per-deed children load inline.
func (e *Exporter) Build(ctx context.Context, opts Options) (*Data, error) {
	docs, err := e.store.ListDocuments(ctx, store.DocumentFilter{
		Status:       model.DocumentStatusValidated,
		ExpedienteID: opts.ExpedienteID,
	})
	if err != nil {
		return nil, err
	}

	data := &Data{
		GeneratedAt: time.Now().UTC(),
		Documentos:  docs,
		Facturas:    []model.Invoice{},
		Escrituras:  []DeedExport{},
	}
	if len(docs) == 0 {
		return data, nil
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	v := true
	validated := &v

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		invoices, err := e.store.ListInvoices(gctx, store.InvoiceFilter{DocumentIDs: ids, Validated: validated})
		if err != nil {
			return err
		}
		data.Facturas = invoices
		return nil
	})
	g.Go(func() error {
		deeds, err := e.store.ListDeeds(gctx, store.DeedFilter{DocumentIDs: ids, Validated: validated})
		if err != nil {
			return err
		}
		for _, d := range deeds {
			heirs, err := e.store.ListHeirs(gctx, d.ID)
			if err != nil {
				return err
			}
			props, err := e.store.ListProperties(gctx, d.ID)
			if err != nil {
				return err
			}
			data.Escrituras = append(data.Escrituras, DeedExport{
				InheritanceDeed: d,
				Herederos:       heirs,
				Inmuebles:       props,
			})
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "export: assemble")
	}
	return data, nil
}

// WriteJSON writes the payload as indented JSON.
func WriteJSON(data *Data, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "export: create dir")
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal")
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

// FileName builds a timestamped export file name.
func FileName(dir, ext string, now time.Time) string {
	return filepath.Join(dir, "intake-export-"+now.Format("20060102-150405")+"."+ext)
}
