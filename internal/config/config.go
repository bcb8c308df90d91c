// Package config loads the node's YAML configuration file (§6): the PTP
// port tunables, the RTP receive stream's socket and ring buffer geometry,
// and the RTCP emit interval. It follows the sptp client's
// load-defaults-then-unmarshal-over-them pattern.
package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// PTPConfig carries the §6 ptp.* keys.
type PTPConfig struct {
	Domain                 uint8  `yaml:"domain"`
	AnnounceReceiptTimeout uint8  `yaml:"announce_receipt_timeout"`
	LogAnnounceInterval    int8   `yaml:"log_announce_interval"`
	LogSyncInterval        int8   `yaml:"log_sync_interval"`
	LogPDelayReqInterval   int8   `yaml:"log_pdelay_req_interval"`
	ServoGain              float64 `yaml:"servo_gain"`
	CalibratedThresholdNs  int64  `yaml:"calibrated_threshold_ns"`
	StepThresholdNs        int64  `yaml:"step_threshold_ns"`
	Iface                  string `yaml:"iface"`
	Group                  string `yaml:"group"`
}

// Validate checks PTPConfig is sane.
func (c *PTPConfig) Validate() error {
	if c.AnnounceReceiptTimeout == 0 {
		return fmt.Errorf("announce_receipt_timeout must be greater than zero")
	}
	if c.ServoGain <= 0 {
		return fmt.Errorf("servo_gain must be greater than zero")
	}
	if c.CalibratedThresholdNs <= 0 {
		return fmt.Errorf("calibrated_threshold_ns must be greater than zero")
	}
	if c.StepThresholdNs <= 0 {
		return fmt.Errorf("step_threshold_ns must be greater than zero")
	}
	if c.Iface == "" {
		return fmt.Errorf("iface must be specified")
	}
	if c.Group == "" {
		return fmt.Errorf("group must be specified")
	}
	return nil
}

// RTPConfig carries the §6 rtp.* keys.
type RTPConfig struct {
	InterfaceAddress   string `yaml:"interface_address"`
	Group              string `yaml:"group"`
	Port               int    `yaml:"port"`
	JitterBufferFrames int    `yaml:"jitter_buffer_frames"`
	StrideBytes        int    `yaml:"stride_bytes"`
	GroundValueByte    uint8  `yaml:"ground_value_byte"`
	SampleRateHz       uint32 `yaml:"sample_rate_hz"`
}

// Validate checks RTPConfig is sane.
func (c *RTPConfig) Validate() error {
	if c.InterfaceAddress == "" {
		return fmt.Errorf("interface_address must be specified")
	}
	if c.Group == "" {
		return fmt.Errorf("group must be specified")
	}
	if c.Port <= 0 {
		return fmt.Errorf("port must be positive")
	}
	if c.JitterBufferFrames <= 0 {
		return fmt.Errorf("jitter_buffer_frames must be greater than zero")
	}
	if c.StrideBytes <= 0 {
		return fmt.Errorf("stride_bytes must be greater than zero")
	}
	if c.SampleRateHz == 0 {
		return fmt.Errorf("sample_rate_hz must be greater than zero")
	}
	return nil
}

// RTCPConfig carries the §6 rtcp.* keys.
type RTCPConfig struct {
	EmitInterval time.Duration `yaml:"emit_interval"`
	Port         int           `yaml:"port"`
}

// Validate checks RTCPConfig is sane.
func (c *RTCPConfig) Validate() error {
	if c.EmitInterval <= 0 {
		return fmt.Errorf("emit_interval must be greater than zero")
	}
	if c.Port <= 0 {
		return fmt.Errorf("port must be positive")
	}
	return nil
}

// Config is the full node configuration file.
type Config struct {
	PTP  PTPConfig  `yaml:"ptp"`
	RTP  RTPConfig  `yaml:"rtp"`
	RTCP RTCPConfig `yaml:"rtcp"`

	MonitoringPort int `yaml:"monitoring_port"`
}

// DefaultConfig returns the defaults named in §6.
func DefaultConfig() *Config {
	return &Config{
		PTP: PTPConfig{
			Domain:                 0,
			AnnounceReceiptTimeout: 3,
			LogAnnounceInterval:    1,
			LogSyncInterval:        0,
			LogPDelayReqInterval:   0,
			ServoGain:              0.1,
			CalibratedThresholdNs:  1_800_000,
			StepThresholdNs:        1_000_000_000,
			Group:                  "224.0.1.129",
		},
		RTP: RTPConfig{
			Port:               5004,
			JitterBufferFrames: 256,
			StrideBytes:        4,
			GroundValueByte:    0,
			SampleRateHz:       48000,
		},
		RTCP: RTCPConfig{
			EmitInterval: 5 * time.Second,
			Port:         5005,
		},
		MonitoringPort: 8080,
	}
}

// Validate checks the full config is sane.
func (c *Config) Validate() error {
	if err := c.PTP.Validate(); err != nil {
		return fmt.Errorf("invalid ptp config: %w", err)
	}
	if err := c.RTP.Validate(); err != nil {
		return fmt.Errorf("invalid rtp config: %w", err)
	}
	if err := c.RTCP.Validate(); err != nil {
		return fmt.Errorf("invalid rtcp config: %w", err)
	}
	if c.MonitoringPort < 0 {
		return fmt.Errorf("monitoring_port must be 0 or positive")
	}
	return nil
}

// ReadConfig reads and validates the node config from path, starting from
// DefaultConfig and unmarshaling the file's contents over it so a config
// file only needs to name the keys it overrides.
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c, nil
}
