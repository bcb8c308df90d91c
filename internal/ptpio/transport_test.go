package ptpio

import (
	"testing"

	"github.com/stretchr/testify/require"

	ptp "github.com/ravennakit/ravennakit/ptp/protocol"
)

func TestDefaultConfigUsesStandardPTPPortsAndAddress(t *testing.T) {
	cfg := DefaultConfig("eth0")
	require.Equal(t, "eth0", cfg.InterfaceName)
	require.Equal(t, "224.0.1.129", cfg.Group.String())
	require.Equal(t, ptp.PortEvent, cfg.EventPort)
	require.Equal(t, ptp.PortGeneral, cfg.GeneralPort)
}

func TestSocketErrorsZeroBeforeStart(t *testing.T) {
	tr := New(DefaultConfig("eth0"))
	require.Zero(t, tr.SocketErrors())
}
