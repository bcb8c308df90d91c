package httpapi

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ravennakit/ravennakit/internal/config"
	"github.com/ravennakit/ravennakit/internal/node"
	ptp "github.com/ravennakit/ravennakit/ptp/protocol"
)

func testServer(t *testing.T) *Server {
	cfg := config.DefaultConfig()
	cfg.PTP.Iface = "eth0"
	cfg.RTP.Group = "239.69.1.1"
	n := node.New(cfg, ptp.PortIdentity{}, "test-node")
	return NewServer(n)
}

func TestHealthReportsPortState(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "initializing")
}

func TestSelfEndpointReturnsNodeSelf(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest("GET", "/x-nmos/node/v1.3/self", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), `"ref_type":"internal"`)
}

func TestReceiversEndpointReturnsOneStream(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest("GET", "/x-nmos/node/v1.3/receivers", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), `"format":"urn:x-nmos:format:audio"`)
}

func TestMetricsEndpointServesPrometheusOutput(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
}
