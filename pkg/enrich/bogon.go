package enrich

import (
	"net"
)

// Private, reserved, documentation and benchmarking ranges. Addresses in
// here never get reverse DNS or geolocation lookups: the answers would be
// noise at best.
var reservedRanges = []string{
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10", // CGNAT
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/24",
	"192.0.2.0/24", // TEST-NET-1
	"192.168.0.0/16",
	"198.18.0.0/15", // benchmarking
	"198.51.100.0/24",
	"203.0.113.0/24",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"255.255.255.255/32",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
	"2001:db8::/32",
}

var reservedNets []*net.IPNet

func init() {
	for _, cidr := range reservedRanges {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("bad builtin CIDR " + cidr + ": " + err.Error())
		}
		reservedNets = append(reservedNets, ipnet)
	}
}

// IsBogon reports whether addr is private, reserved or otherwise
// non-routable. Unparseable addresses count as bogons: if we can't tell
// what it is, we certainly shouldn't be resolving it.
func IsBogon(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return true
	}
	for _, ipnet := range reservedNets {
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}
