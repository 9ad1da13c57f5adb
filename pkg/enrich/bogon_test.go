package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBogon(t *testing.T) {
	tests := []struct {
		addr     string
		expected bool
	}{
		{"192.168.1.15", true},
		{"10.0.0.1", true},
		{"172.20.0.4", true},
		{"127.0.0.1", true},
		{"169.254.10.10", true},
		{"100.64.0.1", true},
		{"192.0.2.44", true},
		{"198.51.100.4", true},
		{"203.0.113.7", true},
		{"198.18.0.1", true},
		{"224.0.0.251", true},
		{"255.255.255.255", true},
		{"::1", true},
		{"fe80::1", true},
		{"fd00::5", true},
		{"2001:db8::1", true},
		{"not-an-ip", true},
		{"", true},

		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"93.184.216.34", false},
		{"172.32.0.1", false}, // just past 172.16/12
		{"2606:4700::1111", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsBogon(tt.addr), "addr %q", tt.addr)
		})
	}
}
