package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iuslabs/intake-cli/internal/export"
)

var (
	exportFormat     string
	exportOut        string
	exportExpediente string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export validated extractions as JSON or an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := export.NewExporter(env.Store).Build(ctx, export.Options{
			ExpedienteID: exportExpediente,
		})
		if err != nil {
			return err
		}

		dir := exportOut
		if dir == "" {
			dir = cfg.Export.Dir
		}
		path := export.FileName(dir, exportFormat, time.Now())

		switch exportFormat {
		case "json":
			err = export.WriteJSON(data, path)
		case "xlsx":
			err = export.WriteXLSX(data, path)
		default:
			return eris.Errorf("unsupported format: %s (json|xlsx)", exportFormat)
		}
		if err != nil {
			return err
		}

		zap.L().Info("export written",
			zap.String("path", path),
			zap.Int("facturas", len(data.Facturas)),
			zap.Int("escrituras", len(data.Escrituras)))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "xlsx", "output format (json|xlsx)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output directory (default from config)")
	exportCmd.Flags().StringVar(&exportExpediente, "expediente", "", "restrict to one case file")
	rootCmd.AddCommand(exportCmd)
}
