package main

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"netsentinel/pkg/database"
	"netsentinel/pkg/trace"
)

func NewTraceCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Collect hop paths for stored addresses that lack one",
		Long: `Runs traceroute against the most recently seen stored addresses without
a hop path and saves the results. Best effort: unreachable targets are
skipped, not retried.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalCtx()
			defer stop()

			db, err := database.NewClient(ctx, nsConfig.Database, nil)
			if err != nil {
				return err
			}
			defer db.Close()

			tracer := trace.NewTracer(30*time.Second, nil)
			if err := tracer.SweepPending(ctx, db, limit); err != nil {
				return err
			}

			log.Info("trace sweep done")
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of addresses to trace")

	return cmd
}
