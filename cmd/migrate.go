package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ttms/app"
	"github.com/kilianp07/ttms/infra/logger"
	infrefdata "github.com/kilianp07/ttms/infra/refdata"
)

var seedFile string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the store schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := app.OpenStore(cmd.Context(), cfg.Store, logger.New("store"))
		if err != nil {
			return err
		}
		defer st.Close()
		printOK(cmd.OutOrStdout(), "%s schema is up to date", cfg.Store.Driver)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load trains, stations and routes from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			ds, err := infrefdata.Seed(ctx, svc.Store, seedFile)
			if err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "seeded %d train types, %d stations, %d trains, %d routes",
				len(ds.TrainTypes), len(ds.Stations), len(ds.Trains), len(ds.Routes))
			return nil
		})
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "refdata.yaml", "reference data file")
	rootCmd.AddCommand(migrateCmd, seedCmd)
}
