package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig("/does/not/exist")
	require.Error(t, err)
}

func TestReadConfigDefaultsFailValidationWithoutIfaceAndGroup(t *testing.T) {
	f, err := os.CreateTemp("", "ravennakit")
	require.NoError(t, err)
	defer os.Remove(f.Name())

	_, err = ReadConfig(f.Name())
	require.Error(t, err) // defaults alone lack iface/group, which are required
}

func TestReadConfigOverridesDefaults(t *testing.T) {
	f, err := os.CreateTemp("", "ravennakit")
	require.NoError(t, err)
	defer os.Remove(f.Name())

	contents := []byte(`
ptp:
  iface: eth0
  domain: 1
rtp:
  interface_address: 192.0.2.10
  group: 239.69.1.1
`)
	require.NoError(t, os.WriteFile(f.Name(), contents, 0o644))

	cfg, err := ReadConfig(f.Name())
	require.NoError(t, err)
	require.Equal(t, "eth0", cfg.PTP.Iface)
	require.EqualValues(t, 1, cfg.PTP.Domain)
	require.Equal(t, uint8(3), cfg.PTP.AnnounceReceiptTimeout) // default preserved
	require.Equal(t, "239.69.1.1", cfg.RTP.Group)
	require.Equal(t, 5004, cfg.RTP.Port) // default preserved
}

func TestValidateRejectsZeroServoGain(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PTP.Iface = "eth0"
	cfg.RTP.Group = "239.69.1.1"
	cfg.PTP.ServoGain = 0
	require.Error(t, cfg.Validate())
}
