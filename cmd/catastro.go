package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iuslabs/intake-cli/internal/catastro"
)

var catastroCmd = &cobra.Command{
	Use:   "catastro",
	Short: "Reconcile properties against the Catastro registry",
}

var catastroQueryCmd = &cobra.Command{
	Use:   "query <property-id>",
	Short: "Query the registry for one property and store the reconciliation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := catastro.NewReconciler(newRegistry(), env.Store)
		prop, err := r.Reconcile(ctx, args[0])
		if err != nil {
			return err
		}
		if prop.ReferenciaCatastral != nil {
			zap.L().Info("property reconciled",
				zap.String("property_id", prop.ID),
				zap.String("sede_url", catastro.PropertyURL(*prop.ReferenciaCatastral)))
		}
		return printJSON(prop)
	},
}

var catastroSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile every property not yet checked against the registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := catastro.NewReconciler(newRegistry(), env.Store)
		syncer := catastro.NewSyncer(r, env.Store, time.Duration(cfg.Catastro.SyncDelayMS)*time.Millisecond)

		res, err := syncer.SyncPending(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("catastro sync finished",
			zap.Int("total", res.Total),
			zap.Int("succeeded", res.Succeeded),
			zap.Int("failed", res.Failed))
		return printJSON(res)
	},
}

func newRegistry() catastro.Registry {
	return catastro.NewOVCClient(cfg.Catastro.BaseURL, time.Duration(cfg.Catastro.TimeoutSecs)*time.Second)
}

func init() {
	catastroCmd.AddCommand(catastroQueryCmd)
	catastroCmd.AddCommand(catastroSyncCmd)
	rootCmd.AddCommand(catastroCmd)
}
