package main

import (
	"fmt"

	"aerorelay-service/internal/infrastructure/persistence"

	"github.com/spf13/cobra"
)

func newMigrateCmd(tc *toolContext) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <up|status>",
		Short:     "Apply or list the embedded database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := persistence.NewPostgresDB(cmd.Context(), tc.cfg.PostgresURI)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			switch args[0] {
			case "up":
				if err := persistence.RunMigrations(cmd.Context(), db); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
				return nil
			default:
				return persistence.MigrationStatus(cmd.Context(), db)
			}
		},
	}
}
