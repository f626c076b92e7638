package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vodfetch/internal/adapters/listing"
	"vodfetch/internal/adapters/sqlite"
	"vodfetch/internal/app"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Refresh the local catalog from the provider listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			db, err := ctx.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			svc := app.NewSyncService(
				ctx.log(),
				listing.NewClient(cfg.Provider.ListingURL),
				sqlite.NewCatalogRepository(db.SQL),
			)
			stats, err := svc.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced %d movies, %d series (%d episodes), %d series skipped\n",
				stats.Movies, stats.Series, stats.Episodes, stats.Skipped)
			return nil
		},
	}
}
