package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerServesMetrics(t *testing.T) {
	SinkErrorsTotal.WithLabelValues("server-test").Inc()
	RewritesTotal.WithLabelValues("server-test").Add(2)

	s := NewServer("127.0.0.1:0", "")
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `icom_sink_errors_total{sink="server-test"} 1`)
	assert.Contains(t, string(body), `icom_rewrites_total{pipeline="server-test"} 2`)
}

func TestServerStartFailsOnBadAddr(t *testing.T) {
	s := NewServer("256.0.0.1:bad", "/m")
	assert.Error(t, s.Start(context.Background()))
}

func TestStopBeforeStart(t *testing.T) {
	assert.NoError(t, NewServer(":0", "").Stop(context.Background()))
}
