package enrich

import (
	"os"
	"strconv"
	"sync"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"netsentinel/pkg/metrics"
	"netsentinel/pkg/types"
)

// ServiceUnknown is the label for ports nobody taught us about.
const ServiceUnknown = "Unknown"

var builtinServices = map[int]string{
	20:    "FTP-data",
	21:    "FTP",
	22:    "SSH",
	23:    "Telnet",
	25:    "SMTP",
	53:    "DNS",
	67:    "DHCP",
	80:    "HTTP",
	110:   "POP3",
	123:   "NTP",
	143:   "IMAP",
	161:   "SNMP",
	443:   "HTTPS",
	445:   "SMB",
	465:   "SMTPS",
	587:   "Submission",
	993:   "IMAPS",
	995:   "POP3S",
	1433:  "MSSQL",
	3306:  "MySQL",
	3389:  "RDP",
	5432:  "PostgreSQL",
	5900:  "VNC",
	6379:  "Redis",
	8080:  "HTTP-alt",
	8443:  "HTTPS-alt",
	27017: "MongoDB",
}

// ServiceResolver maps ports to display labels: user overrides first, then
// builtins, then ServiceUnknown. Unknown ports are logged once per run so
// operators can grow the override table.
type ServiceResolver struct {
	overrides map[int]string
	logger    *log.Entry

	mu     sync.Mutex
	warned map[int]struct{}
}

// NewServiceResolver loads the override file at path. A missing or
// malformed file degrades to builtins only, with a warning.
func NewServiceResolver(path string, logger *log.Entry) *ServiceResolver {
	if logger == nil {
		logger = log.StandardLogger().WithField("service", "services")
	}

	s := &ServiceResolver{
		overrides: map[int]string{},
		logger:    logger,
		warned:    map[int]struct{}{},
	}

	if path == "" {
		return s
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warnf("service override file %s not readable, using builtins only: %v", path, err)
		return s
	}

	raw := map[string]string{}
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Warnf("service override file %s is malformed, using builtins only: %v", path, err)
		return s
	}

	for portStr, label := range raw {
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 0 || port > 65535 {
			logger.Warnf("ignoring override for invalid port %q", portStr)
			continue
		}
		s.overrides[port] = label
	}

	logger.Debugf("loaded %d service overrides from %s", len(s.overrides), path)

	return s
}

// ResetWarned clears the warn-once bookkeeping so the next run reports
// unknown ports again.
func (s *ServiceResolver) ResetWarned() {
	s.mu.Lock()
	s.warned = map[int]struct{}{}
	s.mu.Unlock()
}

// Resolve returns the display label for port. The absent-port sentinel
// resolves to Unknown silently.
func (s *ServiceResolver) Resolve(port int) string {
	if port == types.PortNone {
		return ServiceUnknown
	}

	if label, ok := s.overrides[port]; ok {
		return label
	}
	if label, ok := builtinServices[port]; ok {
		return label
	}

	s.mu.Lock()
	_, seen := s.warned[port]
	if !seen {
		s.warned[port] = struct{}{}
	}
	s.mu.Unlock()

	if !seen {
		metrics.UnknownPorts.Inc()
		s.logger.Warnf("no service label for port %d, consider adding an override", port)
	}

	return ServiceUnknown
}
