package control

import "github.com/sweeney/turn-signal/internal/gpio"

// OnEdge handles a switch edge notification: mute further edges, drop the
// latched flags and (re)start the debounce countdown.
func (c *Controller) OnEdge() {
	c.port.DisableEdgeInterrupt(gpio.Switches)
	c.port.ClearPendingEdge(gpio.Switches)
	c.debounce.Arm()
}

// OnDebounceTick handles one debounce timebase tick. An edge latched since
// the last tick restarts the countdown; expiry resolves the settled position
// and unmutes edge notifications.
func (c *Controller) OnDebounceTick() {
	if !c.debounce.Armed() {
		return
	}

	if c.port.PendingEdge(gpio.Switches) {
		c.port.ClearPendingEdge(gpio.Switches)
		c.debounce.Arm()
		return
	}

	if !c.debounce.Tick() {
		return
	}

	c.debounce.ClearFlag()
	c.debounce.Disarm()
	c.resolve()
	c.port.EnableEdgeInterrupt(gpio.Switches)
}
