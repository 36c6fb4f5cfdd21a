// Package config loads and validates the daemon's configuration, which
// is immutable after load. It decodes with the standard library's
// encoding/json plus an optional gopkg.in/yaml.v3 operator overlay for
// fields an operator wants to tweak without touching the JSON file
// checked into the fleet config repo.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Flavor distinguishes the two supported daemon variants.
type Flavor string

const (
	// Full is the W1m-style daemon: focus axis and external security
	// interlock.
	Full Flavor = "full"
	// Lite is the SuperWASP-style daemon: no focus axis, no interlock.
	Lite Flavor = "lite"
)

// ParkPosition is a named, safe mechanical pose. Exactly one of the two
// coordinate pairs is set.
type ParkPosition struct {
	Description string `json:"desc" yaml:"desc"`

	// Either AltAz...
	HasAltAz bool    `json:"-" yaml:"-"`
	Alt      float64 `json:"alt,omitempty" yaml:"alt,omitempty"`
	Az       float64 `json:"az,omitempty" yaml:"az,omitempty"`

	// ...or HA/Dec encoder units.
	HasEncoder bool    `json:"-" yaml:"-"`
	HAEnc      float64 `json:"ha_enc,omitempty" yaml:"ha_enc,omitempty"`
	DecEnc     float64 `json:"dec_enc,omitempty" yaml:"dec_enc,omitempty"`
}

func (p *ParkPosition) UnmarshalJSON(b []byte) error {
	var raw struct {
		Description string   `json:"desc"`
		Alt         *float64 `json:"alt,omitempty"`
		Az          *float64 `json:"az,omitempty"`
		HAEnc       *float64 `json:"ha_enc,omitempty"`
		DecEnc      *float64 `json:"dec_enc,omitempty"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.Description = raw.Description
	if raw.Alt != nil && raw.Az != nil {
		p.HasAltAz = true
		p.Alt, p.Az = *raw.Alt, *raw.Az
	}
	if raw.HAEnc != nil && raw.DecEnc != nil {
		p.HasEncoder = true
		p.HAEnc, p.DecEnc = *raw.HAEnc, *raw.DecEnc
	}
	if !p.HasAltAz && !p.HasEncoder {
		return fmt.Errorf("config: park position %q has neither alt/az nor ha_enc/dec_enc", raw.Description)
	}
	return nil
}

// Interlock identifies the external security-system peer for the Full
// flavor.
type Interlock struct {
	Address string `json:"address" yaml:"address"`
	Key     string `json:"key" yaml:"key"`
}

// Timeouts bundles every blocking-wait timeout in the daemon, in
// seconds.
type Timeouts struct {
	Initialization float64 `json:"initialization" yaml:"initialization"`
	Slew           float64 `json:"slew" yaml:"slew"`
	Focus          float64 `json:"focus" yaml:"focus"`
	Homing         float64 `json:"homing" yaml:"homing"`
	Limit          float64 `json:"limit" yaml:"limit"`
	Cover          float64 `json:"cover" yaml:"cover"`
	Ping           float64 `json:"ping" yaml:"ping"`
}

// Config is the daemon's immutable configuration, loaded once at
// startup.
type Config struct {
	ControlClients []string `json:"control_machines" yaml:"control_machines"`
	DaemonName     string   `json:"daemon" yaml:"daemon"`
	LogChannel     string   `json:"log_name" yaml:"log_name"`
	Flavor         Flavor   `json:"flavor" yaml:"flavor"`
	Virtual        bool     `json:"virtual" yaml:"virtual"`

	QueryDelaySeconds float64 `json:"query_delay" yaml:"query_delay"`
	Timeouts          Timeouts `json:"timeouts" yaml:"timeouts"`

	FocusToleranceMicrons float64 `json:"focus_tolerance" yaml:"focus_tolerance"`

	HASoftLimits  [2]float64 `json:"ha_soft_limits" yaml:"ha_soft_limits"`
	DecSoftLimits [2]float64 `json:"dec_soft_limits" yaml:"dec_soft_limits"`

	ParkPositions map[string]ParkPosition `json:"park_positions" yaml:"park_positions"`

	Interlock *Interlock `json:"security_interlock,omitempty" yaml:"security_interlock,omitempty"`

	CoverRelayPort string `json:"cover_relay_port,omitempty" yaml:"cover_relay_port,omitempty"`
	CoverRelayBaud int    `json:"cover_relay_baud,omitempty" yaml:"cover_relay_baud,omitempty"`

	QueryTimeoutIterations int `json:"query_timeout_iterations" yaml:"query_timeout_iterations"`

	CommDir string `json:"comm_dir,omitempty" yaml:"comm_dir,omitempty"`
}

// Load reads and validates a JSON config file, then applies an optional
// YAML overlay file (overlayPath may be empty) on top of it. The
// overlay lets an operator override soft limits or park positions
// without editing the checked-in JSON.
func Load(jsonPath, overlayPath string) (*Config, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", jsonPath, err)
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", jsonPath, err)
	}
	if overlayPath != "" {
		overlay, err := os.ReadFile(overlayPath)
		if err != nil {
			return nil, fmt.Errorf("config: reading overlay %s: %w", overlayPath, err)
		}
		if err := yaml.Unmarshal(overlay, &c); err != nil {
			return nil, fmt.Errorf("config: parsing overlay %s: %w", overlayPath, err)
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	if c.QueryTimeoutIterations <= 0 {
		c.QueryTimeoutIterations = 5
	}
	if c.CoverRelayPort != "" && c.CoverRelayBaud <= 0 {
		c.CoverRelayBaud = 9600
	}
	if c.CommDir == "" {
		c.CommDir = "/usr/local/telescope/comm"
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.Flavor != Full && c.Flavor != Lite {
		return fmt.Errorf("config: flavor must be %q or %q, got %q", Full, Lite, c.Flavor)
	}
	if c.Flavor == Full && c.Interlock == nil {
		return fmt.Errorf("config: flavor %q requires security_interlock", Full)
	}
	if c.HASoftLimits[0] > c.HASoftLimits[1] {
		return fmt.Errorf("config: ha_soft_limits must be [negative, positive]")
	}
	if c.DecSoftLimits[0] > c.DecSoftLimits[1] {
		return fmt.Errorf("config: dec_soft_limits must be [negative, positive]")
	}
	return nil
}

// IsFull reports whether this is the focus+interlock flavor.
func (c *Config) IsFull() bool {
	return c.Flavor == Full
}
