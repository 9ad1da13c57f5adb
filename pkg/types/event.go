package types

import (
	"fmt"
	"time"
)

const (
	VerdictDrop   = "DROP"
	VerdictAccept = "ACCEPT"

	// DirectionInbound is traffic hitting us (subject is the remote source),
	// DirectionOutbound is traffic we emit (subject is the remote destination).
	DirectionInbound  = "RX"
	DirectionOutbound = "TX"

	// PortNone marks a port that was absent from the log line. It takes part
	// in the identity key as-is, so "no port" never collides with port 0.
	PortNone = -1
)

// IdentityKey is the tuple that defines "the same logical connection
// attempt". Two events sharing an IdentityKey are merged, never duplicated.
type IdentityKey struct {
	SrcIP     string
	DstIP     string
	SrcPort   int
	DstPort   int
	Protocol  string
	Verdict   string
	Direction string
}

// SubjectIP returns the remote address this event is about: the source for
// inbound drops, the destination for outbound accepts.
func (k IdentityKey) SubjectIP() string {
	if k.Direction == DirectionOutbound {
		return k.DstIP
	}
	return k.SrcIP
}

// SubjectPort returns the port that identifies the service involved: the
// destination port for inbound traffic, the source port for outbound.
func (k IdentityKey) SubjectPort() int {
	if k.Direction == DirectionOutbound {
		return k.SrcPort
	}
	return k.DstPort
}

func (k IdentityKey) String() string {
	return fmt.Sprintf("%s->%s %d->%d %s %s %s",
		k.SrcIP, k.DstIP, k.SrcPort, k.DstPort, k.Protocol, k.Verdict, k.Direction)
}

// ParsedEvent is the output of the line parser, before enrichment.
// HitCount is 1 for a fresh line and >1 for a line that went through rollup.
type ParsedEvent struct {
	IdentityKey

	OccurredAt time.Time
	HitCount   int64

	// Raw is the matched line content with rollup markers stripped, kept so
	// the rollup engine can re-emit it.
	Raw string
}

// GeoInfo holds the geolocation of one address. It is either fully
// populated or absent as a whole, never partially nil.
type GeoInfo struct {
	City        string
	Region      string
	Country     string
	CountryCode string
	Latitude    float64
	Longitude   float64
}

// EnrichedEvent is a ParsedEvent plus reverse DNS, service label and
// geolocation for the subject address.
type EnrichedEvent struct {
	ParsedEvent

	SrcRDNS *string
	DstRDNS *string
	Service string
	Geo     *GeoInfo
}
