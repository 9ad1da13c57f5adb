package enrich

import (
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"netsentinel/pkg/types"
)

// GeoProvider looks up the geolocation of an address. A nil GeoInfo with a
// nil error means the database simply has no answer for this address.
type GeoProvider interface {
	City(addr string) (*types.GeoInfo, error)
}

// GeoIPProvider reads a MaxMind GeoLite2-City database.
type GeoIPProvider struct {
	reader *geoip2.Reader
}

func NewGeoIPProvider(path string) (*GeoIPProvider, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database %s: %w", path, err)
	}
	return &GeoIPProvider{reader: reader}, nil
}

func (g *GeoIPProvider) City(addr string) (*types.GeoInfo, error) {
	ip := net.ParseIP(addr)
	if ip == nil {
		return nil, errors.New("unparseable address")
	}

	record, err := g.reader.City(ip)
	if err != nil {
		return nil, err
	}

	// a record with no country is a miss, not a location
	if record.Country.IsoCode == "" {
		return nil, nil
	}

	info := &types.GeoInfo{
		City:        record.City.Names["en"],
		Country:     record.Country.Names["en"],
		CountryCode: record.Country.IsoCode,
		Latitude:    record.Location.Latitude,
		Longitude:   record.Location.Longitude,
	}
	if len(record.Subdivisions) > 0 {
		info.Region = record.Subdivisions[0].Names["en"]
	}

	return info, nil
}

func (g *GeoIPProvider) Close() error {
	return g.reader.Close()
}
