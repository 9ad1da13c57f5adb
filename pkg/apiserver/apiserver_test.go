package apiserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netsentinel/pkg/csconfig"
	"netsentinel/pkg/database"
	"netsentinel/pkg/trace"
	"netsentinel/pkg/types"
)

func seededServer(t *testing.T) *APIServer {
	t.Helper()

	cfg := &csconfig.DatabaseCfg{
		DbPath:    filepath.Join(t.TempDir(), "api-test.db"),
		BatchSize: 50,
	}
	db, err := database.NewClient(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Now().UTC()
	svcSSH := "SSH"
	svcHTTPS := "HTTPS"
	events := []types.EnrichedEvent{
		{
			ParsedEvent: types.ParsedEvent{
				IdentityKey: types.IdentityKey{
					SrcIP: "1.2.3.4", DstIP: "192.168.1.10",
					SrcPort: 40000, DstPort: 22,
					Protocol: "TCP", Verdict: types.VerdictDrop, Direction: types.DirectionInbound,
				},
				OccurredAt: now.Add(-time.Hour),
				HitCount:   7,
			},
			Service: svcSSH,
			Geo:     &types.GeoInfo{Country: "Germany", CountryCode: "DE", Latitude: 52.5, Longitude: 13.4},
		},
		{
			ParsedEvent: types.ParsedEvent{
				IdentityKey: types.IdentityKey{
					SrcIP: "5.6.7.8", DstIP: "192.168.1.10",
					SrcPort: 50000, DstPort: 443,
					Protocol: "TCP", Verdict: types.VerdictDrop, Direction: types.DirectionInbound,
				},
				OccurredAt: now.Add(-time.Minute),
				HitCount:   2,
			},
			Service: svcHTTPS,
		},
	}

	n, err := db.UpsertEvents(context.Background(), events)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	return NewServer(&csconfig.APICfg{ListenAddr: "127.0.0.1:0", TableLimit: 500},
		db, trace.NewTracer(time.Second, nil), nil, nil)
}

func doGET(t *testing.T, s *APIServer, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := doGET(t, seededServer(t), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTable(t *testing.T) {
	s := seededServer(t)

	w := doGET(t, s, "/api/table")
	require.Equal(t, http.StatusOK, w.Code)

	var events []database.StoredEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 2)
	// newest first
	assert.Equal(t, "5.6.7.8", events[0].SubjectIP)

	w = doGET(t, s, "/api/table?port=22")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "1.2.3.4", events[0].SubjectIP)

	w = doGET(t, s, "/api/table?category=web")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "5.6.7.8", events[0].SubjectIP)

	w = doGET(t, s, "/api/table?since=not-a-time")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doGET(t, s, "/api/table?limit=100000")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRankings(t *testing.T) {
	s := seededServer(t)

	w := doGET(t, s, "/api/rankings")
	require.Equal(t, http.StatusOK, w.Code)

	var countries []database.CountryRank
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &countries))
	require.Len(t, countries, 1)
	assert.Equal(t, "DE", countries[0].CountryCode)
	assert.Equal(t, int64(7), countries[0].HitCount)

	w = doGET(t, s, "/api/rankings?by=port")
	require.Equal(t, http.StatusOK, w.Code)

	var ports []database.PortRank
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ports))
	require.Len(t, ports, 2)
	assert.Equal(t, 22, ports[0].Port)

	w = doGET(t, s, "/api/rankings?by=planet")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMap(t *testing.T) {
	w := doGET(t, seededServer(t), "/api/map")
	require.Equal(t, http.StatusOK, w.Code)

	var points []database.MapPoint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &points))
	// only the geolocated record shows up
	require.Len(t, points, 1)
	assert.Equal(t, "1.2.3.4", points[0].IP)
	assert.Equal(t, int64(7), points[0].HitCount)
}

func TestTraceRejectsBadRequests(t *testing.T) {
	s := seededServer(t)

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/trace", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		s.Router().ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusBadRequest, post(`{}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"ip": "192.168.1.1"}`).Code)
}
