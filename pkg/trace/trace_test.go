package trace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tracerouteOutput = `traceroute to 1.2.3.4 (1.2.3.4), 30 hops max, 60 byte packets
 1  192.168.1.1  0.5 ms  0.4 ms  0.4 ms
 2  10.11.0.1  8.1 ms  8.0 ms  8.3 ms
 3  * * *
 4  81.20.64.1  12.2 ms  12.0 ms  12.6 ms
 5  1.2.3.4  20.1 ms  19.8 ms  20.4 ms
`

func TestParseHops(t *testing.T) {
	hops := parseHops(tracerouteOutput)
	assert.Equal(t, []string{"192.168.1.1", "10.11.0.1", "81.20.64.1", "1.2.3.4"}, hops)
}

func TestTraceUsesRunner(t *testing.T) {
	tr := NewTracer(time.Second, nil)
	tr.run = func(_ context.Context, ip string) (string, error) {
		assert.Equal(t, "1.2.3.4", ip)
		return tracerouteOutput, nil
	}

	hops, err := tr.Trace(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.Len(t, hops, 4)
}

func TestTraceFailure(t *testing.T) {
	tr := NewTracer(time.Second, nil)
	tr.run = func(context.Context, string) (string, error) {
		return "", errors.New("no route")
	}

	_, err := tr.Trace(context.Background(), "1.2.3.4")
	assert.Error(t, err)
}
