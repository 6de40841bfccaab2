package main

import (
	"encoding/json"

	"aerorelay-service/internal/app"
	"aerorelay-service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func newPollCmd(tc *toolContext) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run one flight status batch and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := metrics.NewMetricsWith(prometheus.NewRegistry(), "aerotool")

			services, err := app.Build(cmd.Context(), tc.cfg, tc.log, m)
			if err != nil {
				return err
			}
			defer services.Close()

			report, err := services.Poller.RunBatch(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
