package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netsentinel/pkg/csconfig"
	"netsentinel/pkg/database"
)

func TestBuildPipelineCleanupClosesResources(t *testing.T) {
	dir := t.TempDir()

	nsConfig = &csconfig.Config{
		Database: &csconfig.DatabaseCfg{
			DbPath: filepath.Join(dir, "test.db"),
		},
		Enrich: &csconfig.EnrichCfg{
			// no geoip database here, the builder must degrade and the
			// cleanup must still work without one
			GeoIPPath: filepath.Join(dir, "missing.mmdb"),
		},
	}
	require.NoError(t, nsConfig.Load())

	p, db, cleanup, err := buildPipeline(context.Background())
	require.NoError(t, err)
	require.NotNil(t, p)

	_, err = db.RecentEvents(context.Background(), database.EventFilter{})
	require.NoError(t, err)

	cleanup()

	_, err = db.RecentEvents(context.Background(), database.EventFilter{})
	assert.Error(t, err, "cleanup must close the database client")
}
