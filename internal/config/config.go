// Package config loads the daemon configuration from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/turn-signal/internal/control"
	"github.com/sweeney/turn-signal/internal/gpio"
	"github.com/sweeney/turn-signal/internal/logic"
)

// DefaultPath is where the daemon looks for its configuration.
const DefaultPath = "/etc/turn-signal.toml"

var (
	ErrInvalidPin      = errors.New("pins must be distinct and non-negative")
	ErrInvalidInterval = errors.New("flash_interval and debounce_ticks must be positive")
	ErrInvalidPeriod   = errors.New("heartbeat and debounce_tick must be positive")
)

// Duration is a time.Duration written as a Go duration string ("8.192ms").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete daemon configuration.
type Config struct {
	Chip            string `toml:"chip"`
	LeftSwitch      int    `toml:"left_switch"`
	RightSwitch     int    `toml:"right_switch"`
	LeftLight       int    `toml:"left_light"`
	RightLight      int    `toml:"right_light"`
	SwitchActiveLow bool   `toml:"switch_active_low"`

	Policy        string   `toml:"policy"`
	EdgeMode      string   `toml:"edge_mode"`
	Heartbeat     Duration `toml:"heartbeat"`
	FlashInterval uint16   `toml:"flash_interval"`
	DebounceTick  Duration `toml:"debounce_tick"`
	DebounceTicks uint16   `toml:"debounce_ticks"`

	Broker          string   `toml:"broker"`
	HTTP            string   `toml:"http"`
	StatusHeartbeat Duration `toml:"status_heartbeat"`
	LogLevel        string   `toml:"log_level"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Chip:            "gpiochip0",
		LeftSwitch:      gpio.DefaultPinSwitchLeft,
		RightSwitch:     gpio.DefaultPinSwitchRight,
		LeftLight:       gpio.DefaultPinLightLeft,
		RightLight:      gpio.DefaultPinLightRight,
		SwitchActiveLow: true,
		Policy:          logic.PolicyLevel,
		EdgeMode:        string(control.EdgeBoth),
		Heartbeat:       Duration{8192 * time.Microsecond},
		FlashInterval:   30,
		DebounceTick:    Duration{330 * time.Microsecond},
		DebounceTicks:   40,
		StatusHeartbeat: Duration{15 * time.Minute},
		LogLevel:        "info",
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	c := Default()

	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.WithField("path", path).Info("no config file, using defaults")
			return c, c.Validate()
		}
		return c, fmt.Errorf("load config %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return c, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	return c, c.Validate()
}

// Validate checks the configuration for values the controller cannot run with.
func (c Config) Validate() error {
	pins := []int{c.LeftSwitch, c.RightSwitch, c.LeftLight, c.RightLight}
	seen := make(map[int]bool, len(pins))
	for _, p := range pins {
		if p < 0 || seen[p] {
			return ErrInvalidPin
		}
		seen[p] = true
	}

	if c.FlashInterval == 0 || c.DebounceTicks == 0 {
		return ErrInvalidInterval
	}
	if c.Heartbeat.Duration <= 0 || c.DebounceTick.Duration <= 0 {
		return ErrInvalidPeriod
	}

	if _, err := logic.PolicyByName(c.Policy); err != nil {
		return err
	}
	if _, err := control.ParseEdgeMode(c.EdgeMode); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// PortConfig returns the GPIO line mapping.
func (c Config) PortConfig() gpio.PortConfig {
	return gpio.PortConfig{
		Chip:        c.Chip,
		SwitchLeft:  c.LeftSwitch,
		SwitchRight: c.RightSwitch,
		LightLeft:   c.LeftLight,
		LightRight:  c.RightLight,
		ActiveLow:   c.SwitchActiveLow,
	}
}

// DebounceTime is the nominal quiet period before a position is trusted.
func (c Config) DebounceTime() time.Duration {
	return time.Duration(c.DebounceTicks) * c.DebounceTick.Duration
}

// FlashPeriod is the nominal time between two lamp toggles.
func (c Config) FlashPeriod() time.Duration {
	return time.Duration(c.FlashInterval) * c.Heartbeat.Duration
}
