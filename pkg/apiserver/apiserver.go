package apiserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"netsentinel/pkg/csconfig"
	"netsentinel/pkg/database"
	"netsentinel/pkg/trace"
)

// APIServer is the read-only dashboard surface over the persisted store.
// It never writes pipeline state; the one mutation it offers (trace) is the
// interactive best-effort enrichment.
type APIServer struct {
	cfg    *csconfig.APICfg
	db     *database.Client
	tracer *trace.Tracer
	router *gin.Engine
	logger *log.Entry
}

func NewServer(cfg *csconfig.APICfg, db *database.Client, tracer *trace.Tracer, registry *prometheus.Registry, logger *log.Entry) *APIServer {
	if logger == nil {
		logger = log.StandardLogger().WithField("service", "apiserver")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &APIServer{
		cfg:    cfg,
		db:     db,
		tracer: tracer,
		router: router,
		logger: logger,
	}

	router.GET("/health", s.health)
	if registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	api.GET("/map", s.mapData)
	api.GET("/table", s.tableData)
	api.GET("/rankings", s.rankings)
	api.POST("/trace", s.runTrace)

	return s
}

// Router exposes the gin engine for tests.
func (s *APIServer) Router() *gin.Engine {
	return s.router
}

// Run serves until ctx is canceled, then drains with a short grace period.
func (s *APIServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.router,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	s.logger.Infof("dashboard API listening on %s", s.cfg.ListenAddr)

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
