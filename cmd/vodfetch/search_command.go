package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vodfetch/internal/adapters/sqlite"
	"vodfetch/internal/domain"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the synced catalog by title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			db, err := ctx.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			titles, err := sqlite.NewCatalogRepository(db.SQL).Search(cmd.Context(), query, limit)
			if err != nil {
				return err
			}
			if len(titles) == 0 {
				return &domain.NotFoundError{Query: query}
			}
			for _, t := range titles {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-8s %s\n", t.ID, t.Kind, t.Name)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum results")
	return cmd
}
