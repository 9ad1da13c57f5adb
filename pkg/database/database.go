package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"

	"netsentinel/pkg/csconfig"
)

// Client wraps the embedded SQLite store. WAL mode keeps concurrent
// dashboard reads safe while one ingestion process writes.
type Client struct {
	db        *sql.DB
	logger    *log.Entry
	batchSize int
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	src_ip TEXT NOT NULL,
	dst_ip TEXT NOT NULL,
	src_port INTEGER NOT NULL,
	dst_port INTEGER NOT NULL,
	protocol TEXT NOT NULL,
	verdict TEXT NOT NULL,
	direction TEXT NOT NULL,
	hit_count INTEGER NOT NULL,
	first_seen INTEGER NOT NULL,
	last_seen INTEGER NOT NULL,
	src_rdns TEXT,
	dst_rdns TEXT,
	service TEXT,
	city TEXT,
	region TEXT,
	country TEXT,
	country_code TEXT,
	latitude REAL,
	longitude REAL,
	trace_path TEXT,
	UNIQUE(src_ip, dst_ip, src_port, dst_port, protocol, verdict, direction)
);
CREATE INDEX IF NOT EXISTS idx_events_last_seen ON events(last_seen);
CREATE INDEX IF NOT EXISTS idx_events_country_code ON events(country_code);
`

// NewClient opens (or creates) the store at cfg.DbPath and initializes the
// schema. An unreachable store is the one genuinely fatal condition of the
// pipeline.
func NewClient(ctx context.Context, cfg *csconfig.DatabaseCfg, logger *log.Entry) (*Client, error) {
	if logger == nil {
		logger = log.StandardLogger().WithField("service", "database")
	}

	db, err := sql.Open("sqlite", buildSQLiteDSN(cfg.DbPath))
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", cfg.DbPath, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema init: %w", err)
	}

	return &Client{db: db, logger: logger, batchSize: cfg.BatchSize}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func buildSQLiteDSN(path string) string {
	p := filepath.ToSlash(path)
	if strings.HasPrefix(p, "//") {
		p = p[1:]
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", p)
}
