// Package pipeline runs the document intake flow: classification on a cheap
// model, type-specific field extraction on a stronger one, then persistence
// through the normalizer. Status transitions on the document row make every
// step observable from the dashboard.
package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iuslabs/intake-cli/internal/config"
	"github.com/iuslabs/intake-cli/internal/docstore"
	"github.com/iuslabs/intake-cli/internal/model"
	"github.com/iuslabs/intake-cli/internal/normalize"
	"github.com/iuslabs/intake-cli/internal/resilience"
	"github.com/iuslabs/intake-cli/internal/store"
	"github.com/iuslabs/intake-cli/pkg/anthropic"
)

// Processor drives a document through classification, extraction and
// persistence.
type Processor struct {
	store store.Store
	docs  docstore.Service
	ai    anthropic.Client
	hooks *normalize.Hooks
	cfg   *config.Config
}

func NewProcessor(st store.Store, docs docstore.Service, ai anthropic.Client, cfg *config.Config) *Processor {
	return &Processor{
		store: st,
		docs:  docs,
		ai:    ai,
		hooks: normalize.NewHooks(st),
		cfg:   cfg,
	}
}

// Result summarizes one processed document.
type Result struct {
	Document       *model.Document       `json:"document"`
	Classification *model.Classification `json:"classification"`
	Invoices       int                   `json:"invoices"`
	Heirs          int                   `json:"heirs"`
	Properties     int                   `json:"properties"`
}

// BatchResult summarizes a batch run over pending documents.
type BatchResult struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Process runs the full intake flow for one document. On failure the
// document is moved to the error status with the failure message so it can
// be re-submitted; the error is returned as well.
func (p *Processor) Process(ctx context.Context, documentID string) (*Result, error) {
	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == model.DocumentStatusProcessing {
		return nil, resilience.NewValidationError(fmt.Sprintf("el documento %s ya está en proceso", documentID))
	}

	if err := p.store.UpdateDocumentStatus(ctx, doc.ID, model.DocumentStatusProcessing, nil); err != nil {
		return nil, err
	}

	res, err := p.run(ctx, doc)
	if err != nil {
		msg := err.Error()
		if stErr := p.store.UpdateDocumentStatus(ctx, doc.ID, model.DocumentStatusError, &msg); stErr != nil {
			zap.L().Error("pipeline: error status write failed",
				zap.String("document_id", doc.ID), zap.Error(stErr))
		}
		return nil, err
	}

	if err := p.store.UpdateDocumentStatus(ctx, doc.ID, model.DocumentStatusExtracted, nil); err != nil {
		return nil, err
	}
	res.Document, err = p.store.GetDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Processor) run(ctx context.Context, doc *model.Document) (*Result, error) {
	data, err := p.docs.Load(ctx, doc.FilePath)
	if err != nil {
		return nil, err
	}
	if max := p.cfg.Pipeline.MaxFileSizeMB; max > 0 && len(data) > max<<20 {
		return nil, resilience.NewValidationError(
			fmt.Sprintf("el archivo supera el límite de %d MB", max))
	}

	att := anthropic.Attachment{
		MediaType: mediaTypeFor(doc),
		Data:      base64.StdEncoding.EncodeToString(data),
	}

	cls, err := p.classify(ctx, att)
	if err != nil {
		return nil, err
	}
	if err := p.store.UpdateDocumentClassification(ctx, doc.ID, *cls); err != nil {
		return nil, err
	}
	zap.L().Info("document classified",
		zap.String("document_id", doc.ID),
		zap.String("doc_type", string(cls.DocumentType)),
		zap.Float64("confidence", cls.Confidence))

	res := &Result{Classification: cls}
	switch cls.DocumentType {
	case model.DocTypeFactura:
		if err := p.persistInvoices(ctx, doc, att, res); err != nil {
			return nil, err
		}
	case model.DocTypeEscrituraHerencia:
		if err := p.persistDeed(ctx, doc, att, res); err != nil {
			return nil, err
		}
	default:
		// dni, extracto_bancario and otro carry no structured extraction;
		// the classified document itself is the deliverable.
	}
	return res, nil
}

func (p *Processor) persistInvoices(ctx context.Context, doc *model.Document, att anthropic.Attachment, res *Result) error {
	extractions, err := p.extractInvoices(ctx, att)
	if err != nil {
		return err
	}
	invoices := normalize.BuildInvoices(doc.ID, extractions)
	for _, inv := range invoices {
		if err := p.store.InsertInvoice(ctx, inv); err != nil {
			return err
		}
	}
	res.Invoices = len(invoices)
	p.hooks.AfterInvoices(ctx, doc, invoices)
	return nil
}

func (p *Processor) persistDeed(ctx context.Context, doc *model.Document, att anthropic.Attachment, res *Result) error {
	ext, err := p.extractDeed(ctx, att)
	if err != nil {
		return err
	}
	deed := normalize.BuildDeed(doc.ID, *ext)
	if err := p.store.InsertDeed(ctx, deed); err != nil {
		return err
	}

	heirs := normalize.BuildHeirs(deed.ID, ext.Herederos)
	for _, h := range heirs {
		if err := p.store.InsertHeir(ctx, h); err != nil {
			return err
		}
	}
	for _, prop := range normalize.BuildProperties(deed.ID, ext.BienesInmuebles) {
		if err := p.store.InsertProperty(ctx, prop); err != nil {
			return err
		}
		res.Properties++
	}
	res.Heirs = len(heirs)
	p.hooks.AfterDeed(ctx, doc, deed, heirs)
	return nil
}

// ProcessPending runs every pending document through the pipeline with
// bounded concurrency. Per-document failures are logged and counted, never
// propagated: one bad scan must not sink the batch.
func (p *Processor) ProcessPending(ctx context.Context) (*BatchResult, error) {
	docs, err := p.store.ListDocuments(ctx, store.DocumentFilter{Status: model.DocumentStatusPending})
	if err != nil {
		return nil, err
	}

	limit := p.cfg.Pipeline.MaxConcurrent
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var mu sync.Mutex
	res := &BatchResult{Total: len(docs)}
	for _, doc := range docs {
		g.Go(func() error {
			_, perr := p.Process(gctx, doc.ID)
			mu.Lock()
			defer mu.Unlock()
			if perr != nil {
				res.Failed++
				zap.L().Warn("pipeline: document failed",
					zap.String("document_id", doc.ID),
					zap.String("file_name", doc.FileName),
					zap.Error(perr))
				return nil
			}
			res.Succeeded++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, eris.Wrap(err, "pipeline: batch")
	}
	return res, nil
}

// systemBlocks wraps a prompt as a cached system block. Prompts repeat
// verbatim across documents, so prompt caching pays for itself from the
// second document on.
func (p *Processor) systemBlocks(prompt string) []anthropic.SystemBlock {
	block := anthropic.SystemBlock{Text: prompt}
	if ttl := p.cfg.Anthropic.CacheSystemTTL; ttl != "" {
		block.CacheControl = &anthropic.CacheControl{TTL: ttl}
	}
	return []anthropic.SystemBlock{block}
}

// mediaTypeFor resolves the attachment media type from the stored file type,
// falling back to the file extension.
func mediaTypeFor(doc *model.Document) string {
	if doc.FileType != nil && *doc.FileType != "" {
		return *doc.FileType
	}
	switch strings.ToLower(filepath.Ext(doc.FileName)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/pdf"
	}
}
