package trace

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"netsentinel/pkg/database"
	"netsentinel/pkg/enrich"
)

// Tracer collects network hops toward stored addresses by shelling out to
// traceroute. Strictly best-effort: it runs on demand or as a sweep, never
// as part of the steady-state pipeline.
type Tracer struct {
	Timeout time.Duration
	logger  *log.Entry

	// run is swappable for tests
	run func(ctx context.Context, ip string) (string, error)
}

func NewTracer(timeout time.Duration, logger *log.Entry) *Tracer {
	if logger == nil {
		logger = log.StandardLogger().WithField("service", "trace")
	}
	t := &Tracer{Timeout: timeout, logger: logger}
	t.run = t.runTraceroute
	return t
}

// Trace returns the hop addresses toward ip, in order.
func (t *Tracer) Trace(ctx context.Context, ip string) ([]string, error) {
	out, err := t.run(ctx, ip)
	if err != nil {
		return nil, err
	}
	return parseHops(out), nil
}

func (t *Tracer) runTraceroute(ctx context.Context, ip string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "traceroute", "-n", ip).Output()
	if err != nil {
		return "", fmt.Errorf("traceroute %s: %w", ip, err)
	}
	return string(out), nil
}

// parseHops extracts the responding address of each hop line, skipping the
// header and hops that timed out.
func parseHops(out string) []string {
	var hops []string

	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if i == 0 {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[1] == "*" {
			continue
		}
		hops = append(hops, fields[1])
	}

	return hops
}

// SweepPending traces up to limit stored records lacking a hop path.
// Bogon subjects are skipped, failures only logged. A short pause between
// targets keeps us from hammering the network.
func (t *Tracer) SweepPending(ctx context.Context, db *database.Client, limit int) error {
	targets, err := db.PendingTraces(ctx, limit)
	if err != nil {
		return fmt.Errorf("selecting trace targets: %w", err)
	}

	for _, target := range targets {
		if enrich.IsBogon(target.IP) {
			continue
		}

		hops, err := t.Trace(ctx, target.IP)
		if err != nil || len(hops) == 0 {
			t.logger.Warnf("trace of %s failed: %v", target.IP, err)
			continue
		}

		if err := db.SetTracePath(ctx, target.ID, strings.Join(hops, ",")); err != nil {
			return fmt.Errorf("storing trace for %s: %w", target.IP, err)
		}
		t.logger.Infof("stored %d hops for %s", len(hops), target.IP)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}

	return nil
}
