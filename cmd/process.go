package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var processAll bool

var processCmd = &cobra.Command{
	Use:   "process [document-id]...",
	Short: "Run classification and extraction",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !processAll && len(args) == 0 {
			return eris.New("pass document IDs or --all")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if processAll {
			res, err := env.Processor.ProcessPending(ctx)
			if err != nil {
				return err
			}
			zap.L().Info("batch finished",
				zap.Int("total", res.Total),
				zap.Int("succeeded", res.Succeeded),
				zap.Int("failed", res.Failed))
			return printJSON(res)
		}

		for _, id := range args {
			res, err := env.Processor.Process(ctx, id)
			if err != nil {
				return err
			}
			if err := printJSON(res); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	processCmd.Flags().BoolVar(&processAll, "all", false, "process every pending document")
	rootCmd.AddCommand(processCmd)
}
