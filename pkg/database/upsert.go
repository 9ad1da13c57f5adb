package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"netsentinel/pkg/metrics"
	"netsentinel/pkg/types"
)

const upsertSQL = `
INSERT INTO events (
	src_ip, dst_ip, src_port, dst_port, protocol, verdict, direction,
	hit_count, first_seen, last_seen,
	src_rdns, dst_rdns, service,
	city, region, country, country_code, latitude, longitude
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(src_ip, dst_ip, src_port, dst_port, protocol, verdict, direction) DO UPDATE SET
	hit_count = hit_count + excluded.hit_count,
	last_seen = MAX(last_seen, excluded.last_seen),
	src_rdns = excluded.src_rdns,
	dst_rdns = excluded.dst_rdns,
	service = excluded.service,
	city = excluded.city,
	region = excluded.region,
	country = excluded.country,
	country_code = excluded.country_code,
	latitude = excluded.latitude,
	longitude = excluded.longitude
`

// UpsertEvents persists a slice of enriched events in fixed-size batches,
// one transaction per batch. Hit counts add up on conflict, everything else
// is overwritten with the incoming values; retrying the same input is safe
// only as part of the archive-after-ingest contract the pipeline enforces.
func (c *Client) UpsertEvents(ctx context.Context, events []types.EnrichedEvent) (int, error) {
	persisted := 0

	for start := 0; start < len(events); start += c.batchSize {
		end := min(start+c.batchSize, len(events))
		batch := events[start:end]

		if err := c.upsertBatchRetry(ctx, batch); err != nil {
			metrics.BatchesFailed.Inc()
			// prior batches are committed and stay valid
			return persisted, fmt.Errorf("upsert batch of %d events: %w", len(batch), err)
		}

		persisted += len(batch)
		metrics.EventsPersisted.Add(float64(len(batch)))
	}

	return persisted, nil
}

// upsertBatchRetry retries transient failures (typically SQLITE_BUSY from a
// concurrent reader holding the file) with capped exponential backoff.
func (c *Client) upsertBatchRetry(ctx context.Context, batch []types.EnrichedEvent) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	operation := func() (struct{}, error) {
		return struct{}{}, c.upsertBatch(ctx, batch)
	}

	onRetry := func(err error, next time.Duration) {
		c.logger.Warnf("batch upsert failed, retrying in %s: %v", next, err)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithNotify(onRetry),
		backoff.WithMaxTries(4),
	)

	return err
}

func (c *Client) upsertBatch(ctx context.Context, batch []types.EnrichedEvent) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, evt := range batch {
		if _, err := stmt.ExecContext(ctx,
			evt.SrcIP, evt.DstIP, evt.SrcPort, evt.DstPort,
			evt.Protocol, evt.Verdict, evt.Direction,
			evt.HitCount, evt.OccurredAt.UTC().Unix(), evt.OccurredAt.UTC().Unix(),
			nullString(evt.SrcRDNS), nullString(evt.DstRDNS), evt.Service,
			geoField(evt.Geo, func(g *types.GeoInfo) string { return g.City }),
			geoField(evt.Geo, func(g *types.GeoInfo) string { return g.Region }),
			geoField(evt.Geo, func(g *types.GeoInfo) string { return g.Country }),
			geoField(evt.Geo, func(g *types.GeoInfo) string { return g.CountryCode }),
			geoFloat(evt.Geo, func(g *types.GeoInfo) float64 { return g.Latitude }),
			geoFloat(evt.Geo, func(g *types.GeoInfo) float64 { return g.Longitude }),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func geoField(g *types.GeoInfo, pick func(*types.GeoInfo) string) sql.NullString {
	if g == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: pick(g), Valid: true}
}

func geoFloat(g *types.GeoInfo, pick func(*types.GeoInfo) float64) sql.NullFloat64 {
	if g == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: pick(g), Valid: true}
}
