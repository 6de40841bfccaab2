// Command aerotool bundles the operator tasks that run outside the server:
// Apple token handling, leaderboard uploads, one-off poller batches and
// database migrations.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"aerorelay-service/internal/infrastructure/config"
	"aerorelay-service/pkg/logger"

	"github.com/spf13/cobra"
)

type toolContext struct {
	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	tc := &toolContext{}

	root := &cobra.Command{
		Use:           "aerotool",
		Short:         "Operator tools for the AeroRelay service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			tc.cfg = cfg
			tc.log = logger.NewLogger(cfg.LogLevel)
			return nil
		},
	}

	root.AddCommand(
		newAppleJWTCmd(tc),
		newLeaderboardCmd(tc),
		newPollCmd(tc),
		newMigrateCmd(tc),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
