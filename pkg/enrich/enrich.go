package enrich

import (
	"context"

	log "github.com/sirupsen/logrus"

	"netsentinel/pkg/metrics"
	"netsentinel/pkg/types"
)

// Enricher applies reverse DNS, geolocation and service labels to parsed
// events. The cache it carries is one run's memoization, not persistent
// state; Reset starts a new run.
type Enricher struct {
	rdns     RDNSResolver
	geo      GeoProvider
	cache    *Cache
	services *ServiceResolver
	logger   *log.Entry
}

func NewEnricher(rdns RDNSResolver, geo GeoProvider, cache *Cache, services *ServiceResolver, logger *log.Entry) *Enricher {
	if logger == nil {
		logger = log.StandardLogger().WithField("service", "enrich")
	}
	return &Enricher{
		rdns:     rdns,
		geo:      geo,
		cache:    cache,
		services: services,
		logger:   logger,
	}
}

// Reset clears the run-scoped state: memoized lookup results and the
// unknown-port warn-once set. A long-lived process calls this between runs.
func (e *Enricher) Reset() {
	e.cache.Reset()
	e.services.ResetWarned()
}

// Enrich never fails: lookups that error leave their fields nil and the
// event flows on.
func (e *Enricher) Enrich(ctx context.Context, evt types.ParsedEvent) types.EnrichedEvent {
	out := types.EnrichedEvent{ParsedEvent: evt}

	out.SrcRDNS = e.lookupRDNS(ctx, evt.SrcIP)
	out.DstRDNS = e.lookupRDNS(ctx, evt.DstIP)
	out.Geo = e.lookupGeo(evt.SubjectIP())
	out.Service = e.services.Resolve(evt.SubjectPort())

	return out
}

func (e *Enricher) lookupRDNS(ctx context.Context, addr string) *string {
	if addr == "" || IsBogon(addr) {
		return nil
	}

	if name, ok := e.cache.getRDNS(addr); ok {
		return name
	}

	var entry *string

	name, err := e.rdns.ReverseLookup(ctx, addr)
	if err != nil {
		metrics.LookupFailures.WithLabelValues("rdns").Inc()
		e.logger.Debugf("no reverse dns for %s: %v", addr, err)
	} else {
		entry = &name
	}

	e.cache.setRDNS(addr, entry)

	return entry
}

func (e *Enricher) lookupGeo(addr string) *types.GeoInfo {
	if addr == "" || e.geo == nil || IsBogon(addr) {
		return nil
	}

	if info, ok := e.cache.getGeo(addr); ok {
		return info
	}

	info, err := e.geo.City(addr)
	if err != nil {
		metrics.LookupFailures.WithLabelValues("geo").Inc()
		e.logger.Debugf("no geolocation for %s: %v", addr, err)
		info = nil
	}

	e.cache.setGeo(addr, info)

	return info
}
