// Package validation implements the human-in-the-loop review flow: a queue
// of extracted records ordered by how little the extractor trusted them, and
// the validate/reject transitions that close the loop.
package validation

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/iuslabs/intake-cli/internal/model"
	"github.com/iuslabs/intake-cli/internal/resilience"
	"github.com/iuslabs/intake-cli/internal/store"
)

// Item kinds in the review queue.
const (
	KindFactura   = "factura"
	KindEscritura = "escritura"
)

// QueueItem is one record awaiting human review. InvoiceIndex and
// InvoiceCount place a factura within its document when a single scan
// produced several invoices (1-based; both zero for escrituras).
type QueueItem struct {
	Kind         string   `json:"kind"`
	ID           string   `json:"id"`
	DocumentID   string   `json:"document_id"`
	FileName     string   `json:"file_name"`
	Score        float64  `json:"score"`
	LowFields    []string `json:"low_fields,omitempty"`
	InvoiceIndex int      `json:"invoice_index,omitempty"`
	InvoiceCount int      `json:"invoice_count,omitempty"`
}

// Service builds the review queue and applies validation decisions.
type Service struct {
	store     store.Store
	threshold float64
}

func NewService(st store.Store, reviewThreshold float64) *Service {
	return &Service{store: st, threshold: reviewThreshold}
}

// BuildQueue lists every unvalidated extraction of every extracted document,
// least-trusted first. The sort is stable so equal scores keep their
// extraction order.
func (s *Service) BuildQueue(ctx context.Context) ([]QueueItem, error) {
	docs, err := s.store.ListDocuments(ctx, store.DocumentFilter{Status: model.DocumentStatusExtracted})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return []QueueItem{}, nil
	}

	names := make(map[string]string, len(docs))
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		names[d.ID] = d.FileName
		ids = append(ids, d.ID)
	}
	// All invoices, validated included, so each pending one can be placed
	// as "factura N de M" within its document.
	items := []QueueItem{}
	invoices, err := s.store.ListInvoices(ctx, store.InvoiceFilter{DocumentIDs: ids})
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(ids))
	for _, inv := range invoices {
		counts[inv.DocumentID]++
	}
	position := make(map[string]int, len(ids))
	for _, inv := range invoices {
		position[inv.DocumentID]++
		if inv.Validated {
			continue
		}
		items = append(items, QueueItem{
			Kind:         KindFactura,
			ID:           inv.ID,
			DocumentID:   inv.DocumentID,
			FileName:     names[inv.DocumentID],
			Score:        model.MinScore(inv.ConfidenceScores),
			LowFields:    s.lowFields(inv.ConfidenceScores),
			InvoiceIndex: position[inv.DocumentID],
			InvoiceCount: counts[inv.DocumentID],
		})
	}

	notValidated := false
	deeds, err := s.store.ListDeeds(ctx, store.DeedFilter{DocumentIDs: ids, Validated: &notValidated})
	if err != nil {
		return nil, err
	}
	for _, d := range deeds {
		items = append(items, QueueItem{
			Kind:       KindEscritura,
			ID:         d.ID,
			DocumentID: d.DocumentID,
			FileName:   names[d.DocumentID],
			Score:      model.MinScore(d.ConfidenceScores),
			LowFields:  s.lowFields(d.ConfidenceScores),
		})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Score < items[j].Score })
	return items, nil
}

// lowFields returns the score keys under the review threshold, sorted for
// stable output.
func (s *Service) lowFields(scores map[string]float64) []string {
	var out []string
	for field, score := range scores {
		if score < s.threshold {
			out = append(out, field)
		}
	}
	sort.Strings(out)
	return out
}

// ValidateInvoice marks one invoice as human-approved. When it was the
// document's last unvalidated invoice, the document itself moves to
// validated.
func (s *Service) ValidateInvoice(ctx context.Context, invoiceID string) error {
	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	if inv.Validated {
		return resilience.NewValidationError("la factura ya está validada")
	}
	if err := s.store.MarkInvoiceValidated(ctx, invoiceID); err != nil {
		return err
	}

	remaining, err := s.store.CountUnvalidatedInvoices(ctx, inv.DocumentID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		if err := s.store.UpdateDocumentStatus(ctx, inv.DocumentID, model.DocumentStatusValidated, nil); err != nil {
			return err
		}
		zap.L().Info("document validated", zap.String("document_id", inv.DocumentID))
	}
	return nil
}

// ValidateDeed marks a deed as human-approved. A document owns at most one
// deed, so the document cascades immediately.
func (s *Service) ValidateDeed(ctx context.Context, deedID string) error {
	deed, err := s.store.GetDeed(ctx, deedID)
	if err != nil {
		return err
	}
	if deed.Validated {
		return resilience.NewValidationError("la escritura ya está validada")
	}
	if err := s.store.MarkDeedValidated(ctx, deedID); err != nil {
		return err
	}
	if err := s.store.UpdateDocumentStatus(ctx, deed.DocumentID, model.DocumentStatusValidated, nil); err != nil {
		return err
	}
	zap.L().Info("document validated", zap.String("document_id", deed.DocumentID))
	return nil
}

// Reject sends a document back to the error state so it can be re-scanned
// or re-submitted. The extraction rows stay for audit.
func (s *Service) Reject(ctx context.Context, documentID string, reason string) error {
	msg := "Rechazado en validación"
	if reason != "" {
		msg += ": " + reason
	}
	return s.store.UpdateDocumentStatus(ctx, documentID, model.DocumentStatusError, &msg)
}
