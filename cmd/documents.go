package main

import (
	"github.com/spf13/cobra"

	"github.com/iuslabs/intake-cli/internal/model"
	"github.com/iuslabs/intake-cli/internal/store"
)

var (
	documentsStatus     string
	documentsExpediente string
	documentsType       string
	documentsLimit      int
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List tracked documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		docs, err := env.Store.ListDocuments(ctx, store.DocumentFilter{
			Status:       model.DocumentStatus(documentsStatus),
			ExpedienteID: documentsExpediente,
			DocType:      model.DocumentType(documentsType),
			Limit:        documentsLimit,
		})
		if err != nil {
			return err
		}
		return printJSON(docs)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <document-id>",
	Short: "Show a document with its extraction rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		detail, err := loadDocumentDetail(ctx, env.Store, env.Docs, args[0])
		if err != nil {
			return err
		}
		return printJSON(detail)
	},
}

func init() {
	documentsCmd.Flags().StringVar(&documentsStatus, "status", "", "filter by status (pending|processing|extracted|validated|error)")
	documentsCmd.Flags().StringVar(&documentsExpediente, "expediente", "", "filter by case file")
	documentsCmd.Flags().StringVar(&documentsType, "type", "", "filter by document type")
	documentsCmd.Flags().IntVar(&documentsLimit, "limit", 0, "maximum rows")
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(showCmd)
}
