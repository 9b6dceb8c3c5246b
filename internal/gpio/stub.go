//go:build !linux

package gpio

import "errors"

// PortConfig names the chip and line offsets of a RealPort.
type PortConfig struct {
	Chip        string
	SwitchLeft  int
	SwitchRight int
	LightLeft   int
	LightRight  int
	ActiveLow   bool
}

// RealPort is not available on non-Linux platforms.
type RealPort struct {
	FakePort
}

// NewRealPort returns an error on non-Linux platforms.
func NewRealPort(PortConfig) (*RealPort, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}
