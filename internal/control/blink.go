package control

// OnHeartbeat handles one heartbeat tick. When the flash counter runs out the
// lamps in the flash mask are toggled and the counter reloads. With an empty
// mask the toggle is a no-op but the counter still cycles.
func (c *Controller) OnHeartbeat() {
	var err error
	c.state.Critical(func(v *Vars) {
		if v.Counter > 0 {
			v.Counter--
		}
		if v.Counter != 0 {
			return
		}
		err = c.port.Toggle(lightsFor(v.Flash))
		v.Counter = v.Interval
		v.Toggles++
	})
	if err != nil {
		c.log.WithError(err).Warn("toggle lights")
	}
}
