package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"netsentinel/pkg/database"
	"netsentinel/pkg/enrich"
	"netsentinel/pkg/parser"
	"netsentinel/pkg/pipeline"
	"netsentinel/pkg/rollup"
)

// buildPipeline wires one run's worth of components from the loaded config.
// The returned cleanup closes the geoip reader and the database client.
func buildPipeline(ctx context.Context) (*pipeline.Pipeline, *database.Client, func(), error) {
	db, err := database.NewClient(ctx, nsConfig.Database, nil)
	if err != nil {
		return nil, nil, nil, err
	}

	var geo enrich.GeoProvider
	var provider *enrich.GeoIPProvider
	provider, err = enrich.NewGeoIPProvider(nsConfig.Enrich.GeoIPPath)
	if err != nil {
		// enrichment is best effort, a missing database only costs us geodata
		log.Warnf("geolocation disabled: %v", err)
		provider = nil
	} else {
		geo = provider
	}

	cleanup := func() {
		if provider != nil {
			if err := provider.Close(); err != nil {
				log.Warnf("closing geoip database: %v", err)
			}
		}
		db.Close()
	}

	enricher := enrich.NewEnricher(
		&enrich.NetResolver{Timeout: nsConfig.Enrich.LookupTimeoutDuration},
		geo,
		enrich.NewCache(nsConfig.Enrich.CacheSize),
		enrich.NewServiceResolver(nsConfig.Enrich.ServicesPath, nil),
		nil,
	)

	lineParser := parser.NewLineParser(
		nsConfig.LogSource.IngressInterface,
		nsConfig.LogSource.EgressInterface,
		parser.NewTimestampResolver(),
		nil,
	)

	return pipeline.New(nsConfig, lineParser, enricher, db, nil), db, cleanup, nil
}

func signalCtx() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func NewRollupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollup",
		Short: "Compact aged log lines into the rollup file",
		Long: `Scans the live log, folds lines older than the configured window into
per-connection groups in the rollup file, and rewrites the live log with
only the recent tail. No database involved.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			lineParser := parser.NewLineParser(
				nsConfig.LogSource.IngressInterface,
				nsConfig.LogSource.EgressInterface,
				parser.NewTimestampResolver(),
				nil,
			)

			engine := rollup.NewEngine(nsConfig.LogSource, lineParser, nil)
			result, err := engine.Run()
			if err != nil {
				return err
			}

			log.Infof("rollup done: %d recent lines kept, %d lines aged into %d groups",
				result.RecentLines, result.AgedLines, result.Groups)
			return nil
		},
	}
}

func NewIngestCmd() *cobra.Command {
	var keepRollup bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one full cycle: rollup, parse, enrich, persist",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalCtx()
			defer stop()

			p, _, cleanup, err := buildPipeline(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			p.KeepRollup = keepRollup
			return p.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&keepRollup, "keep-rollup", false, "do not archive the rollup file after ingesting it")

	return cmd
}
