package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iuslabs/intake-cli/internal/expediente"
	"github.com/iuslabs/intake-cli/internal/model"
)

var expedienteCmd = &cobra.Command{
	Use:   "expediente",
	Short: "Manage case files",
}

var (
	expedienteCliente     string
	expedienteTipo        string
	expedienteDescripcion string
)

var expedienteCreateCmd = &cobra.Command{
	Use:   "create <título>",
	Short: "Open a new case file with the next sequential number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		exp, err := expediente.NewService(env.Store).Create(ctx,
			args[0], optStr(expedienteCliente), model.TipoCausa(expedienteTipo), optStr(expedienteDescripcion))
		if err != nil {
			return err
		}
		zap.L().Info("expediente created",
			zap.String("id", exp.ID),
			zap.String("numero", exp.NumeroExpediente))
		return printJSON(exp)
	},
}

var expedienteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List case files",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		exps, err := env.Store.ListExpedientes(ctx)
		if err != nil {
			return err
		}
		return printJSON(exps)
	},
}

var expedienteShowCmd = &cobra.Command{
	Use:   "show <expediente-id>",
	Short: "Show a case file with documents, subjects and timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ov, err := expediente.NewService(env.Store).Get(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(ov)
	},
}

var (
	milestoneFecha       string
	milestoneDescripcion string
)

var expedienteMilestoneCmd = &cobra.Command{
	Use:   "milestone <expediente-id> <título>",
	Short: "Add a manual milestone to the case timeline",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ev, err := expediente.NewService(env.Store).AddMilestone(ctx,
			args[0], milestoneFecha, args[1], optStr(milestoneDescripcion))
		if err != nil {
			return err
		}
		return printJSON(ev)
	},
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func init() {
	expedienteCreateCmd.Flags().StringVar(&expedienteCliente, "cliente", "", "client name")
	expedienteCreateCmd.Flags().StringVar(&expedienteTipo, "tipo", "", "case type (herencia|facturacion|litigio_civil|otro)")
	expedienteCreateCmd.Flags().StringVar(&expedienteDescripcion, "descripcion", "", "free-form description")
	expedienteMilestoneCmd.Flags().StringVar(&milestoneFecha, "fecha", "", "milestone date, YYYY-MM-DD (required)")
	expedienteMilestoneCmd.Flags().StringVar(&milestoneDescripcion, "descripcion", "", "free-form description")
	_ = expedienteMilestoneCmd.MarkFlagRequired("fecha")
	expedienteCmd.AddCommand(expedienteCreateCmd)
	expedienteCmd.AddCommand(expedienteListCmd)
	expedienteCmd.AddCommand(expedienteShowCmd)
	expedienteCmd.AddCommand(expedienteMilestoneCmd)
	rootCmd.AddCommand(expedienteCmd)
}
