package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ioseq/internal/transport"
)

func TestDefault(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())

	assert.Equal(t, transport.KindMQTT, p.Transport.Kind)
	assert.Equal(t, "tcp://localhost:1883", p.Transport.URL)
	assert.Equal(t, "uhn", p.Transport.Root)
	assert.Equal(t, 8*time.Second, p.Timeout)
	assert.Equal(t, 500*time.Millisecond, p.MaxPullWait)
	assert.Equal(t, 10*time.Millisecond, p.PollInterval)
	assert.Equal(t, 1024, p.QueueCapacity)
	assert.Equal(t, 8, p.RecentTail)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	p, err := Load("testdata/nats.yaml")
	require.NoError(t, err)

	assert.Equal(t, transport.KindNATS, p.Transport.Kind)
	assert.Equal(t, "nats://broker.local:4222", p.Transport.URL)
	assert.Equal(t, 3*time.Second, p.Transport.ConnectTimeout)
	assert.Equal(t, "uhn.>", p.Transport.Filter())
	assert.Equal(t, 12*time.Second, p.Timeout)
	assert.Equal(t, 5*time.Millisecond, p.PollInterval)
	assert.Equal(t, ":9464", p.MetricsAddr)

	assert.Equal(t, 500*time.Millisecond, p.MaxPullWait, "unset keys keep defaults")
	assert.Equal(t, 1024, p.QueueCapacity)
}

func TestLoad_UnknownField(t *testing.T) {
	_, err := Load("testdata/typo.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "urll")
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load("testdata/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestParse_Empty(t *testing.T) {
	p, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown kind", "transport: {kind: amqp}", "unknown kind"},
		{"empty url", "transport: {url: \"\"}", "transport.url"},
		{"qos", "transport: {qos: 3}", "transport.qos"},
		{"zero timeout", "timeout: 0s", "timeout"},
		{"zero pull wait", "max_pull_wait: 0s", "max_pull_wait"},
		{"zero poll", "poll_interval: 0s", "poll_interval"},
		{"zero capacity", "queue_capacity: 0", "queue_capacity"},
		{"negative tail", "recent_tail: -1", "recent_tail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
