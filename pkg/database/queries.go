package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// subjectIP/subjectPort mirror types.IdentityKey: the remote side of the
// conversation, picked per direction.
const (
	subjectIPExpr   = "CASE WHEN direction = 'TX' THEN dst_ip ELSE src_ip END"
	subjectPortExpr = "CASE WHEN direction = 'TX' THEN src_port ELSE dst_port END"
)

// categoryExpr is the read-side service bucketing the dashboard filters on.
// The pipeline itself never computes categories; they are derived from the
// persisted port at query time.
const categoryExpr = `CASE
	WHEN ` + subjectPortExpr + ` IN (80, 443, 8080, 8443) THEN 'web'
	WHEN ` + subjectPortExpr + ` IN (25, 110, 143, 465, 587, 993, 995) THEN 'mail'
	WHEN ` + subjectPortExpr + ` IN (1433, 3306, 5432, 6379, 27017) THEN 'database'
	WHEN ` + subjectPortExpr + ` IN (22, 23, 3389, 5900) THEN 'remote'
	ELSE 'other'
END`

// StoredEvent is the dashboard-facing projection of one persisted row.
type StoredEvent struct {
	ID          int64    `json:"id"`
	SubjectIP   string   `json:"ip"`
	SrcIP       string   `json:"src_ip"`
	DstIP       string   `json:"dst_ip"`
	SubjectPort int      `json:"port"`
	Protocol    string   `json:"protocol"`
	Verdict     string   `json:"verdict"`
	Direction   string   `json:"direction"`
	HitCount    int64    `json:"hit_count"`
	FirstSeen   int64    `json:"first_seen"`
	LastSeen    int64    `json:"last_seen"`
	SrcRDNS     *string  `json:"src_rdns"`
	DstRDNS     *string  `json:"dst_rdns"`
	Service     *string  `json:"service"`
	City        *string  `json:"city"`
	Region      *string  `json:"region"`
	Country     *string  `json:"country"`
	CountryCode *string  `json:"country_code"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	TracePath   *string  `json:"trace_path"`
}

// EventFilter narrows RecentEvents. Zero values mean "no constraint".
type EventFilter struct {
	Since    time.Time
	Until    time.Time
	Verdict  string
	Protocol string
	Address  string // substring match on either side
	Port     int    // 0 means unset (port 0 never reaches the store as a subject)
	Category string
	Limit    int
}

func (f EventFilter) where() (string, []any) {
	var clauses []string
	var args []any

	if !f.Since.IsZero() {
		clauses = append(clauses, "last_seen >= ?")
		args = append(args, f.Since.UTC().Unix())
	}
	if !f.Until.IsZero() {
		clauses = append(clauses, "last_seen < ?")
		args = append(args, f.Until.UTC().Unix())
	}
	if f.Verdict != "" {
		clauses = append(clauses, "verdict = ?")
		args = append(args, f.Verdict)
	}
	if f.Protocol != "" {
		clauses = append(clauses, "protocol = ?")
		args = append(args, f.Protocol)
	}
	if f.Address != "" {
		clauses = append(clauses, "(src_ip LIKE ? OR dst_ip LIKE ?)")
		pattern := "%" + f.Address + "%"
		args = append(args, pattern, pattern)
	}
	if f.Port != 0 {
		clauses = append(clauses, subjectPortExpr+" = ?")
		args = append(args, f.Port)
	}
	if f.Category != "" {
		clauses = append(clauses, categoryExpr+" = ?")
		args = append(args, f.Category)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// RecentEvents returns persisted records matching the filter, newest first.
func (c *Client) RecentEvents(ctx context.Context, f EventFilter) ([]StoredEvent, error) {
	if f.Limit <= 0 {
		f.Limit = 500
	}

	where, args := f.where()
	query := fmt.Sprintf(`SELECT id, %s, src_ip, dst_ip, %s, protocol, verdict, direction,
		hit_count, first_seen, last_seen, src_rdns, dst_rdns, service,
		city, region, country, country_code, latitude, longitude, trace_path
		FROM events%s ORDER BY last_seen DESC LIMIT ?`,
		subjectIPExpr, subjectPortExpr, where)
	args = append(args, f.Limit)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var e StoredEvent
		if err := rows.Scan(
			&e.ID, &e.SubjectIP, &e.SrcIP, &e.DstIP, &e.SubjectPort,
			&e.Protocol, &e.Verdict, &e.Direction,
			&e.HitCount, &e.FirstSeen, &e.LastSeen,
			&e.SrcRDNS, &e.DstRDNS, &e.Service,
			&e.City, &e.Region, &e.Country, &e.CountryCode,
			&e.Latitude, &e.Longitude, &e.TracePath,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}

	return out, rows.Err()
}

// MapPoint is one geolocated record for the dashboard map.
type MapPoint struct {
	IP          string  `json:"ip"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	CountryCode *string `json:"country_code"`
	HitCount    int64   `json:"hit_count"`
	TracePath   *string `json:"trace_path"`
}

func (c *Client) MapPoints(ctx context.Context) ([]MapPoint, error) {
	query := fmt.Sprintf(`SELECT %s, latitude, longitude, country_code, hit_count, trace_path
		FROM events WHERE latitude IS NOT NULL AND longitude IS NOT NULL`, subjectIPExpr)

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MapPoint
	for rows.Next() {
		var p MapPoint
		if err := rows.Scan(&p.IP, &p.Latitude, &p.Longitude, &p.CountryCode, &p.HitCount, &p.TracePath); err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	return out, rows.Err()
}

// CountryRank is one row of the top-countries ranking, by accumulated hits.
type CountryRank struct {
	CountryCode string `json:"country_code"`
	HitCount    int64  `json:"hit_count"`
}

func (c *Client) TopCountries(ctx context.Context, limit int) ([]CountryRank, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT country_code, SUM(hit_count) AS hits
		FROM events WHERE country_code IS NOT NULL
		GROUP BY country_code ORDER BY hits DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CountryRank
	for rows.Next() {
		var r CountryRank
		if err := rows.Scan(&r.CountryCode, &r.HitCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}

	return out, rows.Err()
}

// PortRank is one row of the top-ports ranking.
type PortRank struct {
	Port     int     `json:"port"`
	Service  *string `json:"service"`
	HitCount int64   `json:"hit_count"`
}

func (c *Client) TopPorts(ctx context.Context, limit int) ([]PortRank, error) {
	query := fmt.Sprintf(`SELECT %s AS port, MAX(service), SUM(hit_count) AS hits
		FROM events WHERE %s >= 0
		GROUP BY port ORDER BY hits DESC LIMIT ?`, subjectPortExpr, subjectPortExpr)

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PortRank
	for rows.Next() {
		var r PortRank
		if err := rows.Scan(&r.Port, &r.Service, &r.HitCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}

	return out, rows.Err()
}

// TraceTarget is a record that still lacks a hop path.
type TraceTarget struct {
	ID int64
	IP string
}

// PendingTraces returns the most recently seen records without a trace
// path, skipping bogon subjects is the caller's concern.
func (c *Client) PendingTraces(ctx context.Context, limit int) ([]TraceTarget, error) {
	query := fmt.Sprintf(`SELECT id, %s FROM events
		WHERE trace_path IS NULL ORDER BY last_seen DESC LIMIT ?`, subjectIPExpr)

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TraceTarget
	for rows.Next() {
		var t TraceTarget
		if err := rows.Scan(&t.ID, &t.IP); err != nil {
			return nil, err
		}
		out = append(out, t)
	}

	return out, rows.Err()
}

func (c *Client) SetTracePath(ctx context.Context, id int64, path string) error {
	_, err := c.db.ExecContext(ctx, `UPDATE events SET trace_path = ? WHERE id = ?`,
		sql.NullString{String: path, Valid: path != ""}, id)
	return err
}
