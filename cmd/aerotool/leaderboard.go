package main

import (
	"encoding/json"
	"fmt"
	"os"

	"aerorelay-service/internal/infrastructure/persistence"
	repo "aerorelay-service/internal/interface/repository"
	"aerorelay-service/internal/usecase"

	"github.com/spf13/cobra"
)

func newLeaderboardCmd(tc *toolContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Manage airline leaderboard snapshots",
	}

	var (
		csvPath string
		opts    usecase.IngestOptions
	)
	ingest := &cobra.Command{
		Use:   "ingest",
		Short: "Load a leaderboard CSV as a new active snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(csvPath)
			if err != nil {
				return fmt.Errorf("failed to open csv: %w", err)
			}
			defer f.Close()

			db, err := persistence.NewPostgresDB(cmd.Context(), tc.cfg.PostgresURI)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			svc := usecase.NewLeaderboardIngest(
				repo.NewGormAirlineRepository(db),
				repo.NewGormLeaderboardRepository(db),
				tc.log,
			)
			report, err := svc.Ingest(cmd.Context(), f, opts)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	ingest.Flags().StringVar(&csvPath, "csv", "", "path to the leaderboard CSV")
	ingest.Flags().StringVar(&opts.Label, "label", "", "snapshot label (default \"<class> upload <timestamp>\")")
	ingest.Flags().StringVar(&opts.TravelClass, "travel-class", "", "travel class of the snapshot when the CSV has none")
	ingest.Flags().StringVar(&opts.ReportingStart, "reporting-start", "", "first day covered, YYYY-MM-DD")
	ingest.Flags().StringVar(&opts.ReportingEnd, "reporting-end", "", "last day covered, YYYY-MM-DD")
	ingest.Flags().StringVar(&opts.Notes, "notes", "", "free-form notes stored with the snapshot")
	ingest.Flags().BoolVar(&opts.DryRun, "dry-run", false, "parse and resolve airlines without writing")
	_ = ingest.MarkFlagRequired("csv")

	cmd.AddCommand(ingest)
	return cmd
}
