package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netsentinel/pkg/types"
)

type countingRDNS struct {
	calls map[string]int
	names map[string]string
}

func (c *countingRDNS) ReverseLookup(_ context.Context, addr string) (string, error) {
	c.calls[addr]++
	if name, ok := c.names[addr]; ok {
		return name, nil
	}
	return "", errors.New("NXDOMAIN")
}

type countingGeo struct {
	calls map[string]int
	infos map[string]*types.GeoInfo
}

func (c *countingGeo) City(addr string) (*types.GeoInfo, error) {
	c.calls[addr]++
	if info, ok := c.infos[addr]; ok {
		return info, nil
	}
	return nil, nil
}

func newTestEnricher(rdns *countingRDNS, geo *countingGeo) *Enricher {
	return NewEnricher(rdns, geo, NewCache(128), NewServiceResolver("", nil), nil)
}

func inboundDrop(src string, dpt int) types.ParsedEvent {
	return types.ParsedEvent{
		IdentityKey: types.IdentityKey{
			SrcIP:     src,
			DstIP:     "192.168.1.10",
			SrcPort:   44251,
			DstPort:   dpt,
			Protocol:  "TCP",
			Verdict:   types.VerdictDrop,
			Direction: types.DirectionInbound,
		},
		OccurredAt: time.Date(2025, time.June, 14, 8, 0, 0, 0, time.UTC),
		HitCount:   1,
	}
}

func TestEnrichPopulatesFields(t *testing.T) {
	rdns := &countingRDNS{
		calls: map[string]int{},
		names: map[string]string{"8.8.8.8": "dns.google"},
	}
	geo := &countingGeo{
		calls: map[string]int{},
		infos: map[string]*types.GeoInfo{
			"8.8.8.8": {City: "Mountain View", Country: "United States", CountryCode: "US", Latitude: 37.4, Longitude: -122.07},
		},
	}

	e := newTestEnricher(rdns, geo)
	out := e.Enrich(context.Background(), inboundDrop("8.8.8.8", 22))

	require.NotNil(t, out.SrcRDNS)
	assert.Equal(t, "dns.google", *out.SrcRDNS)
	assert.Nil(t, out.DstRDNS) // 192.168.1.10 is private
	require.NotNil(t, out.Geo)
	assert.Equal(t, "US", out.Geo.CountryCode)
	assert.Equal(t, "SSH", out.Service)
}

func TestBogonSuppression(t *testing.T) {
	rdns := &countingRDNS{calls: map[string]int{}, names: map[string]string{}}
	geo := &countingGeo{calls: map[string]int{}, infos: map[string]*types.GeoInfo{}}
	e := newTestEnricher(rdns, geo)

	for _, addr := range []string{"192.168.0.44", "10.1.2.3", "127.0.0.1"} {
		evt := inboundDrop(addr, 443)
		evt.DstIP = "10.0.0.1"
		out := e.Enrich(context.Background(), evt)
		assert.Nil(t, out.SrcRDNS)
		assert.Nil(t, out.Geo)
	}

	assert.Empty(t, rdns.calls, "reverse dns must never be called for bogons")
	assert.Empty(t, geo.calls, "geoip must never be called for bogons")
}

func TestLookupsAreMemoizedPerAddress(t *testing.T) {
	rdns := &countingRDNS{calls: map[string]int{}, names: map[string]string{"8.8.8.8": "dns.google"}}
	geo := &countingGeo{calls: map[string]int{}, infos: map[string]*types.GeoInfo{}}
	e := newTestEnricher(rdns, geo)

	for range 1000 {
		e.Enrich(context.Background(), inboundDrop("8.8.8.8", 22))
	}

	assert.Equal(t, 1, rdns.calls["8.8.8.8"])
	assert.Equal(t, 1, geo.calls["8.8.8.8"])
}

func TestNegativeResultsAreCached(t *testing.T) {
	// 1.2.3.4 has neither a PTR record nor a geo entry; the failed lookups
	// must not be retried within the run
	rdns := &countingRDNS{calls: map[string]int{}, names: map[string]string{}}
	geo := &countingGeo{calls: map[string]int{}, infos: map[string]*types.GeoInfo{}}
	e := newTestEnricher(rdns, geo)

	for range 10 {
		out := e.Enrich(context.Background(), inboundDrop("1.2.3.4", 22))
		assert.Nil(t, out.SrcRDNS)
		assert.Nil(t, out.Geo)
	}

	assert.Equal(t, 1, rdns.calls["1.2.3.4"])
	assert.Equal(t, 1, geo.calls["1.2.3.4"])
}

func TestResetForcesFreshLookups(t *testing.T) {
	rdns := &countingRDNS{calls: map[string]int{}, names: map[string]string{"8.8.8.8": "dns.google"}}
	geo := &countingGeo{calls: map[string]int{}, infos: map[string]*types.GeoInfo{}}
	e := newTestEnricher(rdns, geo)

	e.Enrich(context.Background(), inboundDrop("8.8.8.8", 22))
	e.Enrich(context.Background(), inboundDrop("8.8.8.8", 22))
	require.Equal(t, 1, rdns.calls["8.8.8.8"])

	// a new run must not serve the previous run's results
	e.Reset()
	e.Enrich(context.Background(), inboundDrop("8.8.8.8", 22))
	assert.Equal(t, 2, rdns.calls["8.8.8.8"])
	assert.Equal(t, 2, geo.calls["8.8.8.8"])
}

func TestEnrichWithoutGeoProvider(t *testing.T) {
	rdns := &countingRDNS{calls: map[string]int{}, names: map[string]string{}}
	e := NewEnricher(rdns, nil, NewCache(128), NewServiceResolver("", nil), nil)

	out := e.Enrich(context.Background(), inboundDrop("8.8.8.8", 80))
	assert.Nil(t, out.Geo)
	assert.Equal(t, "HTTP", out.Service)
}
