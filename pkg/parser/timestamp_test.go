package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestResolvePartial(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		now      time.Time
		expected time.Time
		ok       bool
	}{
		{
			name:     "same year",
			in:       "Jun 14 08:17:43",
			now:      time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC),
			expected: time.Date(2025, time.June, 14, 8, 17, 43, 0, time.UTC),
			ok:       true,
		},
		{
			name:     "single digit day with double space",
			in:       "Jun  4 08:17:43",
			now:      time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC),
			expected: time.Date(2025, time.June, 4, 8, 17, 43, 0, time.UTC),
			ok:       true,
		},
		{
			name:     "december line seen in january rolls back a year",
			in:       "Dec 31 23:59:59",
			now:      time.Date(2026, time.January, 3, 10, 0, 0, 0, time.UTC),
			expected: time.Date(2025, time.December, 31, 23, 59, 59, 0, time.UTC),
			ok:       true,
		},
		{
			name:     "december line seen in december stays current year",
			in:       "Dec 31 23:59:59",
			now:      time.Date(2025, time.December, 31, 23, 59, 59, 0, time.UTC),
			expected: time.Date(2025, time.December, 31, 23, 59, 59, 0, time.UTC),
			ok:       true,
		},
		{
			name: "future month outside january is kept in current year",
			in:   "Nov 30 01:02:03",
			now:  time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
			// the rollback only happens in january
			expected: time.Date(2025, time.November, 30, 1, 2, 3, 0, time.UTC),
			ok:       true,
		},
		{
			name: "garbage",
			in:   "not a timestamp",
			now:  time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &TimestampResolver{Now: fixedNow(tt.now)}
			got, ok := r.ResolvePartial(tt.in)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func TestResolveAbsolute(t *testing.T) {
	r := NewTimestampResolver()

	got, ok := r.ResolveAbsolute("2025-06-14T08:17:43Z")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, time.June, 14, 8, 17, 43, 0, time.UTC), got)

	got, ok = r.ResolveAbsolute("2025-06-14T10:17:43+02:00")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, time.June, 14, 8, 17, 43, 0, time.UTC), got)

	_, ok = r.ResolveAbsolute("Jun 14 08:17:43")
	assert.False(t, ok)
}
