package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iuslabs/intake-cli/internal/validation"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Approve extracted records",
}

var validateFacturaCmd = &cobra.Command{
	Use:   "factura <invoice-id>",
	Short: "Approve an invoice, optionally correcting fields first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		svc := validation.NewService(env.Store, cfg.Pipeline.ReviewThreshold)

		if len(validateSet) > 0 {
			fields, err := parseSetFlags(validateSet)
			if err != nil {
				return err
			}
			edit, err := validation.ParseDraft(fields)
			if err != nil {
				return err
			}
			if err := svc.SaveAndValidate(ctx, args[0], *edit); err != nil {
				return err
			}
		} else if err := svc.ValidateInvoice(ctx, args[0]); err != nil {
			return err
		}

		zap.L().Info("invoice validated", zap.String("invoice_id", args[0]))
		return nil
	},
}

var validateEscrituraCmd = &cobra.Command{
	Use:   "escritura <deed-id>",
	Short: "Approve an inheritance deed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		svc := validation.NewService(env.Store, cfg.Pipeline.ReviewThreshold)
		if err := svc.ValidateDeed(ctx, args[0]); err != nil {
			return err
		}
		zap.L().Info("deed validated", zap.String("deed_id", args[0]))
		return nil
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <document-id>",
	Short: "Send a document back to the error state for re-submission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		svc := validation.NewService(env.Store, cfg.Pipeline.ReviewThreshold)
		if err := svc.Reject(ctx, args[0], rejectReason); err != nil {
			return err
		}
		zap.L().Info("document rejected", zap.String("document_id", args[0]))
		return nil
	},
}

var (
	validateSet  []string
	rejectReason string
)

// parseSetFlags turns repeated --set campo=valor flags into a field map.
func parseSetFlags(pairs []string) (map[string]string, error) {
	fields := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		field, value, ok := strings.Cut(pair, "=")
		if !ok || field == "" {
			return nil, eris.Errorf("invalid --set %q, expected campo=valor", pair)
		}
		fields[field] = value
	}
	return fields, nil
}

func init() {
	validateFacturaCmd.Flags().StringArrayVar(&validateSet, "set", nil, "correct a field before validating, e.g. --set total=1.234,56 (repeatable)")
	rejectCmd.Flags().StringVar(&rejectReason, "reason", "", "why the extraction was rejected")
	validateCmd.AddCommand(validateFacturaCmd)
	validateCmd.AddCommand(validateEscrituraCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(rejectCmd)
}
