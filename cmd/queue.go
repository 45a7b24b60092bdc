package main

import (
	"github.com/spf13/cobra"

	"github.com/iuslabs/intake-cli/internal/validation"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the validation queue, least-trusted extractions first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		svc := validation.NewService(env.Store, cfg.Pipeline.ReviewThreshold)
		items, err := svc.BuildQueue(ctx)
		if err != nil {
			return err
		}
		return printJSON(items)
	},
}

func init() {
	rootCmd.AddCommand(queueCmd)
}
