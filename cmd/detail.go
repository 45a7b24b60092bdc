package main

import (
	"context"

	"github.com/iuslabs/intake-cli/internal/docstore"
	"github.com/iuslabs/intake-cli/internal/model"
	"github.com/iuslabs/intake-cli/internal/store"
)

// loadDocumentDetail assembles a document with whichever extraction rows its
// type owns.
func loadDocumentDetail(ctx context.Context, st store.Store, docs docstore.Service, id string) (*model.DocumentDetail, error) {
	doc, err := st.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &model.DocumentDetail{Document: *doc, FileURL: docs.URL(doc.FilePath)}
	if doc.DocType == nil {
		return detail, nil
	}

	switch *doc.DocType {
	case model.DocTypeFactura:
		invoices, err := st.ListInvoices(ctx, store.InvoiceFilter{DocumentIDs: []string{doc.ID}})
		if err != nil {
			return nil, err
		}
		detail.Facturas = invoices
	case model.DocTypeEscrituraHerencia:
		deeds, err := st.ListDeeds(ctx, store.DeedFilter{DocumentIDs: []string{doc.ID}})
		if err != nil {
			return nil, err
		}
		if len(deeds) == 0 {
			break
		}
		deed := deeds[0]
		heirs, err := st.ListHeirs(ctx, deed.ID)
		if err != nil {
			return nil, err
		}
		props, err := st.ListProperties(ctx, deed.ID)
		if err != nil {
			return nil, err
		}
		detail.Escritura = &model.DeedDetail{Deed: deed, Herederos: heirs, Inmuebles: props}
	}
	return detail, nil
}
