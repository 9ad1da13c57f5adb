package enrich

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// RDNSResolver resolves an address to its PTR name. Implementations return
// an error for "no result"; the enricher caches that as a negative entry.
type RDNSResolver interface {
	ReverseLookup(ctx context.Context, addr string) (string, error)
}

var errNoPTR = errors.New("no PTR record")

// NetResolver is the production resolver, backed by the system resolver.
type NetResolver struct {
	Timeout time.Duration
}

func (r *NetResolver) ReverseLookup(ctx context.Context, addr string) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	names, err := net.DefaultResolver.LookupAddr(ctx, addr)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", errNoPTR
	}

	// with the host C library resolver at most one result comes back anyway
	return strings.TrimSuffix(names[0], "."), nil
}
