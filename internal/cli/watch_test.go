package cli

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ioseq/internal/logging"
)

func TestWatch_PrintsSnapshots(t *testing.T) {
	mr, profile := redisProfile(t)
	publishLoop(t, mr)

	out, err := executeCLI(t, "--config", profile, "watch", "--duration", "200ms")
	require.NoError(t, err)
	assert.Contains(t, out, "io-a status=ok outputs=[00000000 00100000] inputs=-")
}

func TestWatch_JSONLines(t *testing.T) {
	mr, profile := redisProfile(t)
	publishLoop(t, mr)

	out, err := executeCLI(t, "--format", "json", "--config", profile, "watch", "--duration", "200ms", "--metrics-addr", "127.0.0.1:0")
	require.NoError(t, err)

	sc := bufio.NewScanner(strings.NewReader(out))
	require.True(t, sc.Scan(), "at least one event")

	var ev WatchEvent
	require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
	assert.Equal(t, "state", ev.Kind)
	assert.Equal(t, "edge-1", ev.Scope)
	assert.Equal(t, "io-a", ev.Entity)
	require.NotNil(t, ev.Snapshot)
	assert.Equal(t, 1, ev.Snapshot.OutputBit(5))
}

func TestWatch_BadMetricsAddr(t *testing.T) {
	_, profile := redisProfile(t)

	_, err := executeCLI(t, "--config", profile, "watch", "--duration", "10ms", "--metrics-addr", "not-an-address")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMetricsHandler(t *testing.T) {
	tel, err := newTelemetry()
	require.NoError(t, err)
	tel.metrics.Routed("state")

	srv := httptest.NewServer(newMetricsHandler(tel.registry))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `ioseq_router_messages_total{kind="state"} 1`)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "ok\n", string(body))
}

func TestServeMetrics_Shutdown(t *testing.T) {
	srv, err := serveMetrics("127.0.0.1:0", prometheus.NewRegistry(), logging.NewNop())
	require.NoError(t, err)

	resp, err := http.Get("http://" + srv.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Shutdown())
}
