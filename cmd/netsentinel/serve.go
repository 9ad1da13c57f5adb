package main

import (
	"time"

	"github.com/go-co-op/gocron"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/tomb.v2"

	"netsentinel/pkg/apiserver"
	"netsentinel/pkg/metrics"
	"netsentinel/pkg/trace"
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled pipeline and the dashboard API",
		Long: `Runs ingestion cycles on the configured interval and serves the
dashboard API until interrupted. A cycle that overruns the interval is
never run concurrently with the next one.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalCtx()
			defer stop()

			p, db, cleanup, err := buildPipeline(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			registry := prometheus.NewRegistry()
			metrics.Register(registry)

			tracer := trace.NewTracer(30*time.Second, nil)
			api := apiserver.NewServer(nsConfig.API, db, tracer, registry, nil)

			scheduler := gocron.NewScheduler(time.UTC)
			job, err := scheduler.Every(nsConfig.Schedule.IntervalDuration).Do(func() {
				if err := p.Run(ctx); err != nil {
					log.Errorf("ingestion cycle failed: %v", err)
				}
			})
			if err != nil {
				return err
			}
			job.SingletonMode()
			scheduler.StartAsync()
			defer scheduler.Stop()

			log.Infof("scheduled ingestion every %s", nsConfig.Schedule.IntervalDuration)

			t := tomb.Tomb{}
			t.Go(func() error {
				return api.Run(ctx)
			})
			t.Go(func() error {
				<-ctx.Done()
				return nil
			})

			return t.Wait()
		},
	}
}
