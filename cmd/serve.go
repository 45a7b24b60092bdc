package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iuslabs/intake-cli/internal/catastro"
	"github.com/iuslabs/intake-cli/internal/expediente"
	"github.com/iuslabs/intake-cli/internal/export"
	"github.com/iuslabs/intake-cli/internal/model"
	"github.com/iuslabs/intake-cli/internal/resilience"
	"github.com/iuslabs/intake-cli/internal/store"
	"github.com/iuslabs/intake-cli/internal/validation"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		api := &apiServer{
			env:        env,
			validation: validation.NewService(env.Store, cfg.Pipeline.ReviewThreshold),
			expediente: expediente.NewService(env.Store),
			exporter:   export.NewExporter(env.Store),
			reconciler: catastro.NewReconciler(newRegistry(), env.Store),
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.routes(),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

type apiServer struct {
	env        *env
	validation *validation.Service
	expediente *expediente.Service
	exporter   *export.Exporter
	reconciler *catastro.Reconciler
}

func (a *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/documents", a.listDocuments)
		r.Post("/documents", a.uploadDocument)
		r.Get("/documents/{id}", a.getDocument)
		r.Post("/documents/{id}/process", a.processDocument)
		r.Post("/documents/{id}/reject", a.rejectDocument)

		r.Get("/queue", a.getQueue)
		r.Post("/facturas/{id}/validate", a.validateFactura)
		r.Post("/escrituras/{id}/validate", a.validateEscritura)

		r.Post("/properties/{id}/catastro", a.reconcileProperty)

		r.Get("/expedientes", a.listExpedientes)
		r.Post("/expedientes", a.createExpediente)
		r.Get("/expedientes/{id}", a.getExpediente)
		r.Post("/expedientes/{id}/milestones", a.addMilestone)

		r.Get("/export", a.exportJSON)
	})
	return r
}

func (a *apiServer) listDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	docs, err := a.env.Store.ListDocuments(r.Context(), store.DocumentFilter{
		Status:       model.DocumentStatus(q.Get("status")),
		ExpedienteID: q.Get("expediente_id"),
		DocType:      model.DocumentType(q.Get("doc_type")),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (a *apiServer) uploadDocument(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(cfg.Pipeline.MaxFileSizeMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeError(w, resilience.NewValidationError("invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, resilience.NewValidationError("file part is required"))
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, err)
		return
	}
	if int64(len(data)) > maxBytes {
		writeError(w, resilience.NewValidationError(
			fmt.Sprintf("el archivo supera el límite de %d MB", cfg.Pipeline.MaxFileSizeMB)))
		return
	}

	var expedienteID *string
	if id := r.FormValue("expediente_id"); id != "" {
		if _, err := a.env.Store.GetExpediente(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		expedienteID = &id
	}

	storedPath, err := a.env.Docs.Save(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, err)
		return
	}

	size := int64(len(data))
	doc := &model.Document{
		ExpedienteID: expedienteID,
		FileName:     header.Filename,
		FilePath:     storedPath,
		FileType:     fileTypeFor(header.Filename),
		FileSize:     &size,
	}
	if err := a.env.Store.CreateDocument(r.Context(), doc); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (a *apiServer) getDocument(w http.ResponseWriter, r *http.Request) {
	detail, err := loadDocumentDetail(r.Context(), a.env.Store, a.env.Docs, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *apiServer) processDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.env.Store.GetDocument(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	// Extraction takes tens of seconds; run it detached and let the
	// dashboard poll the document status.
	go func() {
		if _, err := a.env.Processor.Process(context.Background(), id); err != nil {
			zap.L().Error("async processing failed",
				zap.String("document_id", id), zap.Error(err))
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "document_id": id})
}

func (a *apiServer) rejectDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := a.validation.Reject(r.Context(), chi.URLParam(r, "id"), req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

func (a *apiServer) getQueue(w http.ResponseWriter, r *http.Request) {
	items, err := a.validation.BuildQueue(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *apiServer) validateFactura(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Fields map[string]string `json:"fields"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var err error
	if len(req.Fields) > 0 {
		var edit *model.InvoiceEdit
		if edit, err = validation.ParseDraft(req.Fields); err == nil {
			err = a.validation.SaveAndValidate(r.Context(), id, *edit)
		}
	} else {
		err = a.validation.ValidateInvoice(r.Context(), id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "validated"})
}

func (a *apiServer) validateEscritura(w http.ResponseWriter, r *http.Request) {
	if err := a.validation.ValidateDeed(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "validated"})
}

func (a *apiServer) reconcileProperty(w http.ResponseWriter, r *http.Request) {
	prop, err := a.reconciler.Reconcile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prop)
}

func (a *apiServer) listExpedientes(w http.ResponseWriter, r *http.Request) {
	exps, err := a.env.Store.ListExpedientes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exps)
}

func (a *apiServer) createExpediente(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Titulo      string  `json:"titulo"`
		Cliente     *string `json:"cliente"`
		TipoCausa   string  `json:"tipo_causa"`
		Descripcion *string `json:"descripcion"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	exp, err := a.expediente.Create(r.Context(), req.Titulo, req.Cliente, model.TipoCausa(req.TipoCausa), req.Descripcion)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, exp)
}

func (a *apiServer) getExpediente(w http.ResponseWriter, r *http.Request) {
	ov, err := a.expediente.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (a *apiServer) addMilestone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fecha       string  `json:"fecha"`
		Titulo      string  `json:"titulo"`
		Descripcion *string `json:"descripcion"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ev, err := a.expediente.AddMilestone(r.Context(), chi.URLParam(r, "id"), req.Fecha, req.Titulo, req.Descripcion)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (a *apiServer) exportJSON(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data, err := a.exporter.Build(r.Context(), export.Options{
		ExpedienteID: q.Get("expediente_id"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// decodeBody reads an optional JSON request body. An absent or empty body is
// fine; a malformed one is a ValidationError so the caller answers 400
// instead of acting on an empty request.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return resilience.NewValidationError("cuerpo JSON inválido: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case resilience.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, sql.ErrNoRows),
		strings.Contains(err.Error(), "not found"):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
