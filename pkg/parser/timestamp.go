package parser

import (
	"time"
)

// syslogLayout matches the partial timestamps routers emit: month, day and
// time of day, no year.
const syslogLayout = "Jan _2 15:04:05"

// TimestampResolver turns partial-precision log timestamps into absolute
// instants. Now is injectable so the year heuristic can be tested.
type TimestampResolver struct {
	Now func() time.Time
}

func NewTimestampResolver() *TimestampResolver {
	return &TimestampResolver{Now: time.Now}
}

// ResolvePartial parses a year-less syslog stamp. The year is assumed to be
// the current one, except when the parsed month is later than the current
// month while we are in January: then the line is taken to be from December
// of the previous year. This is a heuristic for the turn-of-year case, and
// knowingly wrong for logs older than a year.
func (r *TimestampResolver) ResolvePartial(in string) (time.Time, bool) {
	t, err := time.Parse(syslogLayout, in)
	if err != nil {
		return time.Time{}, false
	}

	now := r.Now().UTC()

	year := now.Year()
	if now.Month() == time.January && t.Month() > now.Month() {
		year--
	}

	resolved := time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)

	return resolved, true
}

// ResolveAbsolute parses an already-absolute instant as written by the
// rollup engine (RFC3339).
func (r *TimestampResolver) ResolveAbsolute(in string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, in)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
