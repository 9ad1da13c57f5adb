package enrich

import (
	"github.com/bluele/gcache"

	"netsentinel/pkg/metrics"
	"netsentinel/pkg/types"
)

// Cache memoizes external lookup results for the lifetime of one pipeline
// run, keyed by address. Negative results are cached too: a lookup that
// failed once is not retried within the run.
type Cache struct {
	rdns gcache.Cache
	geo  gcache.Cache
}

type rdnsEntry struct {
	name *string
}

type geoEntry struct {
	geo *types.GeoInfo
}

func NewCache(size int) *Cache {
	return &Cache{
		rdns: gcache.New(size).LRU().Build(),
		geo:  gcache.New(size).LRU().Build(),
	}
}

// Reset drops every memoized entry so the next run starts fresh.
func (c *Cache) Reset() {
	c.rdns.Purge()
	c.geo.Purge()
}

func (c *Cache) getRDNS(addr string) (*string, bool) {
	v, err := c.rdns.Get(addr)
	if err != nil {
		metrics.CacheMisses.WithLabelValues("rdns").Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues("rdns").Inc()
	return v.(rdnsEntry).name, true
}

func (c *Cache) setRDNS(addr string, name *string) {
	// Set on an LRU without TTL can't fail, gcache keeps the error in the
	// signature for the other builders
	_ = c.rdns.Set(addr, rdnsEntry{name: name})
}

func (c *Cache) getGeo(addr string) (*types.GeoInfo, bool) {
	v, err := c.geo.Get(addr)
	if err != nil {
		metrics.CacheMisses.WithLabelValues("geo").Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues("geo").Inc()
	return v.(geoEntry).geo, true
}

func (c *Cache) setGeo(addr string, geo *types.GeoInfo) {
	_ = c.geo.Set(addr, geoEntry{geo: geo})
}
