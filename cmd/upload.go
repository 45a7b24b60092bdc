package main

import (
	"encoding/json"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iuslabs/intake-cli/internal/model"
)

var (
	uploadExpediente string
	uploadProcess    bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Register documents for intake",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var expedienteID *string
		if uploadExpediente != "" {
			if _, err := env.Store.GetExpediente(ctx, uploadExpediente); err != nil {
				return err
			}
			expedienteID = &uploadExpediente
		}

		var docs []*model.Document
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "read %s", path)
			}
			if max := cfg.Pipeline.MaxFileSizeMB; max > 0 && len(data) > max<<20 {
				return eris.Errorf("%s supera el límite de %d MB", path, max)
			}

			fileName := filepath.Base(path)
			storedPath, err := env.Docs.Save(ctx, fileName, data)
			if err != nil {
				return err
			}

			size := int64(len(data))
			doc := &model.Document{
				ExpedienteID: expedienteID,
				FileName:     fileName,
				FilePath:     storedPath,
				FileType:     fileTypeFor(fileName),
				FileSize:     &size,
			}
			if err := env.Store.CreateDocument(ctx, doc); err != nil {
				return err
			}
			if expedienteID != nil {
				if err := env.Store.InsertTimelineEvent(ctx, &model.TimelineEvent{
					ExpedienteID: *expedienteID,
					DocumentID:   &doc.ID,
					Fecha:        time.Now().UTC().Format("2006-01-02"),
					Titulo:       "Documento subido: " + fileName,
					TipoEvento:   model.EventoDocumentoSubido,
				}); err != nil {
					zap.L().Warn("timeline event failed", zap.Error(err))
				}
			}

			zap.L().Info("document registered",
				zap.String("document_id", doc.ID),
				zap.String("file_name", fileName),
				zap.Int64("size", size))
			docs = append(docs, doc)
		}

		if uploadProcess {
			for _, doc := range docs {
				res, err := env.Processor.Process(ctx, doc.ID)
				if err != nil {
					zap.L().Error("processing failed",
						zap.String("document_id", doc.ID), zap.Error(err))
					continue
				}
				printJSON(res)
			}
			return nil
		}

		return printJSON(docs)
	},
}

// fileTypeFor maps a file name to the media type stored on the document row.
func fileTypeFor(fileName string) *string {
	mt := mime.TypeByExtension(filepath.Ext(fileName))
	if mt == "" {
		return nil
	}
	return &mt
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	uploadCmd.Flags().StringVar(&uploadExpediente, "expediente", "", "attach the documents to a case file")
	uploadCmd.Flags().BoolVar(&uploadProcess, "process", false, "run the pipeline immediately after upload")
	rootCmd.AddCommand(uploadCmd)
}
