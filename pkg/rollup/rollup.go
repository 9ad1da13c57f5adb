package rollup

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"netsentinel/pkg/csconfig"
	"netsentinel/pkg/metrics"
	"netsentinel/pkg/parser"
	"netsentinel/pkg/types"
)

// Engine bounds the live log's growth: lines older than the window are
// compacted into one hit-counted line per identity key in the rollup file,
// recent lines are kept verbatim, and the live log is replaced atomically.
type Engine struct {
	logPath    string
	rollupPath string
	window     time.Duration
	parser     *parser.LineParser
	logger     *log.Entry
	now        func() time.Time
}

type group struct {
	hits int64
	last time.Time
	raw  string
}

type Result struct {
	RecentLines int
	AgedLines   int
	Groups      int
}

func NewEngine(cfg *csconfig.LogSourceCfg, p *parser.LineParser, logger *log.Entry) *Engine {
	if logger == nil {
		logger = log.StandardLogger().WithField("service", "rollup")
	}
	return &Engine{
		logPath:    cfg.LogPath,
		rollupPath: cfg.RollupPath,
		window:     cfg.WindowDuration,
		parser:     p,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one rollup pass. The rollup file is rewritten first, then
// the live log is swapped for its recent tail; both writes go through a
// temp file and a rename so neither is ever observable half-written.
func (e *Engine) Run() (*Result, error) {
	groups := e.loadExisting()

	fd, err := os.Open(e.logPath)
	if err != nil {
		// a missing live log is a legitimate quiet period, not a failure
		e.logger.Warnf("live log %s not readable, skipping rollup: %v", e.logPath, err)
		return &Result{Groups: len(groups)}, nil
	}

	cutoff := e.now().UTC().Add(-e.window)

	var recent []string
	aged := 0

	scanner := bufio.NewScanner(fd)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		evt, ok := e.parser.Parse(line)
		if !ok {
			// contributed no identity, nothing to merge
			continue
		}
		if evt.OccurredAt.Before(cutoff) {
			fold(groups, evt)
			aged++
		} else {
			recent = append(recent, line)
		}
	}
	if err := scanner.Err(); err != nil {
		fd.Close()
		return nil, fmt.Errorf("reading %s: %w", e.logPath, err)
	}
	fd.Close()

	if err := e.writeRollup(groups); err != nil {
		return nil, err
	}

	if err := e.replaceLive(recent); err != nil {
		return nil, err
	}

	metrics.RollupGroups.Set(float64(len(groups)))
	e.logger.Infof("rollup done: %d recent lines kept, %d aged lines merged into %d groups",
		len(recent), aged, len(groups))

	return &Result{RecentLines: len(recent), AgedLines: aged, Groups: len(groups)}, nil
}

// loadExisting folds the previous rollup file into the grouping so counts
// accumulate across runs instead of being overwritten.
func (e *Engine) loadExisting() map[types.IdentityKey]*group {
	groups := map[types.IdentityKey]*group{}

	fd, err := os.Open(e.rollupPath)
	if err != nil {
		e.logger.Debugf("no previous rollup at %s: %v", e.rollupPath, err)
		return groups
	}
	defer fd.Close()

	scanner := bufio.NewScanner(fd)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		evt, ok := e.parser.Parse(scanner.Text())
		if !ok {
			continue
		}
		fold(groups, evt)
	}
	if err := scanner.Err(); err != nil {
		e.logger.Warnf("reading previous rollup %s: %v", e.rollupPath, err)
	}

	return groups
}

// fold merges one event into the grouping: hit counts add up, the latest
// timestamp wins.
func fold(groups map[types.IdentityKey]*group, evt types.ParsedEvent) {
	g, ok := groups[evt.IdentityKey]
	if !ok {
		groups[evt.IdentityKey] = &group{hits: evt.HitCount, last: evt.OccurredAt, raw: evt.Raw}
		return
	}
	g.hits += evt.HitCount
	if evt.OccurredAt.After(g.last) {
		g.last = evt.OccurredAt
		g.raw = evt.Raw
	}
}

func (e *Engine) writeRollup(groups map[types.IdentityKey]*group) error {
	lines := make([]string, 0, len(groups))
	for _, g := range groups {
		lines = append(lines, fmt.Sprintf("%s HITCOUNT=%d LASTTS=%s",
			g.raw, g.hits, g.last.UTC().Format(time.RFC3339)))
	}
	// map order is random; keep the file diffable between runs
	sort.Strings(lines)

	if err := atomicWriteLines(e.rollupPath, lines); err != nil {
		return fmt.Errorf("writing rollup %s: %w", e.rollupPath, err)
	}
	return nil
}

func (e *Engine) replaceLive(recent []string) error {
	if err := atomicWriteLines(e.logPath, recent); err != nil {
		return fmt.Errorf("replacing live log %s: %w", e.logPath, err)
	}
	return nil
}

// atomicWriteLines writes to a temp file in the target directory and
// renames it over path. The original is either fully replaced or fully
// untouched, never half-written.
func atomicWriteLines(path string, lines []string) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".ns-tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}

	return nil
}
