package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"netsentinel/pkg/csconfig"
	"netsentinel/pkg/database"
	"netsentinel/pkg/enrich"
	"netsentinel/pkg/metrics"
	"netsentinel/pkg/parser"
	"netsentinel/pkg/rollup"
	"netsentinel/pkg/types"
)

// Pipeline runs one full ingestion cycle: rollup, then parse+enrich+persist
// of both the recent live log and the rollup file. One Pipeline may be run
// repeatedly (the serve scheduler does); the enricher's run-scoped state is
// reset on every Run.
type Pipeline struct {
	cfg      *csconfig.Config
	parser   *parser.LineParser
	enricher *enrich.Enricher
	db       *database.Client
	engine   *rollup.Engine
	logger   *log.Entry

	// KeepRollup disables archiving after ingest. Only sane during a
	// full-state rebuild; replaying an already-ingested rollup alongside
	// live accumulation double counts.
	KeepRollup bool
}

func New(cfg *csconfig.Config, p *parser.LineParser, e *enrich.Enricher, db *database.Client, logger *log.Entry) *Pipeline {
	if logger == nil {
		logger = log.StandardLogger().WithField("service", "pipeline")
	}
	return &Pipeline{
		cfg:      cfg,
		parser:   p,
		enricher: e,
		db:       db,
		engine:   rollup.NewEngine(cfg.LogSource, p, logger.WithField("service", "rollup")),
		logger:   logger,
	}
}

// Run never aborts on a bad line, lookup or batch; only store-level
// failures surface as errors.
func (p *Pipeline) Run(ctx context.Context) error {
	// lookup memoization and warn-once state belong to a single run
	p.enricher.Reset()

	if _, err := p.engine.Run(); err != nil {
		return fmt.Errorf("rollup: %w", err)
	}

	var events []types.EnrichedEvent

	sources := []struct {
		path  string
		label string
	}{
		{p.cfg.LogSource.LogPath, "live"},
		{p.cfg.LogSource.RollupPath, "rollup"},
	}

	for _, src := range sources {
		batch, err := p.ingestFile(ctx, src.path, src.label)
		if err != nil {
			// either source may legitimately be absent
			p.logger.Warnf("skipping %s source %s: %v", src.label, src.path, err)
			continue
		}
		events = append(events, batch...)
	}

	persisted, err := p.db.UpsertEvents(ctx, events)
	if err != nil {
		return fmt.Errorf("persisted %d of %d events: %w", persisted, len(events), err)
	}

	p.logger.Infof("persisted %d events", persisted)

	if !p.KeepRollup {
		p.archiveRollup()
	}

	return nil
}

func (p *Pipeline) ingestFile(ctx context.Context, path, label string) ([]types.EnrichedEvent, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	var events []types.EnrichedEvent

	scanner := bufio.NewScanner(fd)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		evt, ok := p.parser.Parse(scanner.Text())
		if !ok {
			metrics.LinesRejected.WithLabelValues(label).Inc()
			continue
		}
		metrics.LinesParsed.WithLabelValues(label).Inc()
		events = append(events, p.enricher.Enrich(ctx, evt))
	}
	if err := scanner.Err(); err != nil {
		return events, err
	}

	return events, nil
}

// archiveRollup renames the rollup file out of the way once its counts are
// in the store, so the next scheduled run cannot ingest it again.
func (p *Pipeline) archiveRollup() {
	path := p.cfg.LogSource.RollupPath
	if _, err := os.Stat(path); err != nil {
		return
	}

	archived := fmt.Sprintf("%s.ingested-%d", path, time.Now().Unix())
	if err := os.Rename(path, archived); err != nil {
		p.logger.Warnf("could not archive rollup %s: %v", path, err)
		return
	}
	p.logger.Debugf("archived rollup to %s", archived)
}
