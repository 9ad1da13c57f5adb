package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"netsentinel/pkg/types"
)

// Field extraction is table-driven: one anchored regex per token of the
// netfilter log format. Unknown tokens are ignored, the parser only cares
// about the ones below.
var (
	reVerdict  = regexp.MustCompile(`\b(DROP|ACCEPT)\b`)
	reSrc      = regexp.MustCompile(`\bSRC=([0-9a-fA-F.:]+)`)
	reDst      = regexp.MustCompile(`\bDST=([0-9a-fA-F.:]+)`)
	reSpt      = regexp.MustCompile(`\bSPT=(\S+)`)
	reDpt      = regexp.MustCompile(`\bDPT=(\S+)`)
	reProto    = regexp.MustCompile(`\bPROTO=(\w+)`)
	reIn       = regexp.MustCompile(`\bIN=(\S+)`)
	reOut      = regexp.MustCompile(`\bOUT=(\S+)`)
	reHitCount = regexp.MustCompile(`\bHITCOUNT=(\S+)`)
	reLastTS   = regexp.MustCompile(`\bLASTTS=(\S+)`)
	reSyslogTS = regexp.MustCompile(`^[A-Z][a-z]{2}\s+\d{1,2}\s[0-9:]{8}`)
)

// decisionRule says which marker/field combination makes a line
// attributable for a given verdict, and which direction it gets. Adding a
// new log shape means adding a row here, not touching merge logic.
type decisionRule struct {
	Verdict     string
	Ingress     bool // true: requires IN=<ingress iface>; false: requires OUT=<egress iface>
	NeedSrcIP   bool
	NeedDstIP   bool
	NeedSrcPort bool
	NeedDstPort bool
	Direction   string
}

// Drops are attributed to whoever knocked (SRC + the port they aimed at),
// accepts to whoever we talked to (DST + the port we talked from).
var decisionTable = []decisionRule{
	{Verdict: types.VerdictDrop, Ingress: true, NeedSrcIP: true, NeedDstPort: true, Direction: types.DirectionInbound},
	{Verdict: types.VerdictAccept, Ingress: false, NeedDstIP: true, NeedSrcPort: true, Direction: types.DirectionOutbound},
}

type lineFields struct {
	srcIP    string
	dstIP    string
	srcPort  int
	dstPort  int
	protocol string
	inIface  string
	outIface string
	hitCount int64
	lastTS   string
	syslogTS string
}

// LineParser turns one raw log line into a ParsedEvent candidate. It is
// dual-purpose: it accepts fresh router lines and previously rolled-up
// lines carrying HITCOUNT=/LASTTS= markers.
type LineParser struct {
	ingressIface string
	egressIface  string
	tsr          *TimestampResolver
	logger       *log.Entry
}

func NewLineParser(ingressIface, egressIface string, tsr *TimestampResolver, logger *log.Entry) *LineParser {
	if logger == nil {
		logger = log.StandardLogger().WithField("service", "parser")
	}
	return &LineParser{
		ingressIface: ingressIface,
		egressIface:  egressIface,
		tsr:          tsr,
		logger:       logger,
	}
}

// Parse returns the structured event and true, or a zero event and false
// when the line is not a connection-log record this pipeline understands.
// Rejection is the only failure mode: malformed lines never raise.
func (p *LineParser) Parse(line string) (types.ParsedEvent, bool) {
	verdictMatch := reVerdict.FindStringSubmatch(line)
	if verdictMatch == nil {
		return types.ParsedEvent{}, false
	}
	verdict := verdictMatch[1]

	fields, ok := p.extract(line)
	if !ok {
		return types.ParsedEvent{}, false
	}

	rule, ok := p.match(verdict, fields)
	if !ok {
		return types.ParsedEvent{}, false
	}

	occurredAt := p.resolveTime(fields)

	hitCount := int64(1)
	if fields.hitCount > 0 {
		hitCount = fields.hitCount
	}

	return types.ParsedEvent{
		IdentityKey: types.IdentityKey{
			SrcIP:     fields.srcIP,
			DstIP:     fields.dstIP,
			SrcPort:   fields.srcPort,
			DstPort:   fields.dstPort,
			Protocol:  fields.protocol,
			Verdict:   verdict,
			Direction: rule.Direction,
		},
		OccurredAt: occurredAt,
		HitCount:   hitCount,
		Raw:        StripMarkers(line),
	}, true
}

// extract pulls every known token out of the line. A present-but-malformed
// numeric field poisons the whole line.
func (p *LineParser) extract(line string) (lineFields, bool) {
	f := lineFields{srcPort: types.PortNone, dstPort: types.PortNone}

	if m := reSrc.FindStringSubmatch(line); m != nil {
		f.srcIP = m[1]
	}
	if m := reDst.FindStringSubmatch(line); m != nil {
		f.dstIP = m[1]
	}
	if m := reProto.FindStringSubmatch(line); m != nil {
		f.protocol = m[1]
	}
	if m := reIn.FindStringSubmatch(line); m != nil {
		f.inIface = m[1]
	}
	if m := reOut.FindStringSubmatch(line); m != nil {
		f.outIface = m[1]
	}
	if m := reSyslogTS.FindString(line); m != "" {
		f.syslogTS = m
	}
	if m := reLastTS.FindStringSubmatch(line); m != nil {
		f.lastTS = m[1]
	}

	if m := reSpt.FindStringSubmatch(line); m != nil {
		port, err := strconv.Atoi(m[1])
		if err != nil {
			p.logger.Debugf("rejecting line with malformed SPT %q", m[1])
			return lineFields{}, false
		}
		f.srcPort = port
	}
	if m := reDpt.FindStringSubmatch(line); m != nil {
		port, err := strconv.Atoi(m[1])
		if err != nil {
			p.logger.Debugf("rejecting line with malformed DPT %q", m[1])
			return lineFields{}, false
		}
		f.dstPort = port
	}
	if m := reHitCount.FindStringSubmatch(line); m != nil {
		count, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || count < 1 {
			p.logger.Debugf("rejecting line with malformed HITCOUNT %q", m[1])
			return lineFields{}, false
		}
		f.hitCount = count
	}

	return f, true
}

// match walks the decision table looking for a rule whose marker and field
// requirements the line satisfies. No rule means the line is not ours.
func (p *LineParser) match(verdict string, f lineFields) (decisionRule, bool) {
	for _, rule := range decisionTable {
		if rule.Verdict != verdict {
			continue
		}
		if rule.Ingress && f.inIface != p.ingressIface {
			continue
		}
		if !rule.Ingress && f.outIface != p.egressIface {
			continue
		}
		if rule.NeedSrcIP && f.srcIP == "" {
			continue
		}
		if rule.NeedDstIP && f.dstIP == "" {
			continue
		}
		if rule.NeedSrcPort && f.srcPort == types.PortNone {
			continue
		}
		if rule.NeedDstPort && f.dstPort == types.PortNone {
			continue
		}
		return rule, true
	}
	return decisionRule{}, false
}

// resolveTime prefers the explicit LASTTS marker, then the embedded syslog
// stamp, then now. A log line without exact timing is still useful.
func (p *LineParser) resolveTime(f lineFields) time.Time {
	if f.lastTS != "" {
		if t, ok := p.tsr.ResolveAbsolute(f.lastTS); ok {
			return t
		}
		p.logger.Debugf("unparseable LASTTS %q, falling back", f.lastTS)
	}
	if f.syslogTS != "" {
		if t, ok := p.tsr.ResolvePartial(f.syslogTS); ok {
			return t
		}
	}
	return p.tsr.Now().UTC()
}

// StripMarkers removes the rollup annotations from a line so it can be
// re-annotated without accumulating marker copies.
func StripMarkers(line string) string {
	line = reHitCount.ReplaceAllString(line, "")
	line = reLastTS.ReplaceAllString(line, "")
	return strings.TrimRight(line, " \t")
}
