package control

import (
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/turn-signal/internal/gpio"
	"github.com/sweeney/turn-signal/internal/logic"
)

// resolve samples the settled switch position and applies the policy.
// A failed read resolves as Center so a blinking lamp is never stranded.
func (c *Controller) resolve() {
	in, err := c.port.Read()
	if err != nil {
		c.log.WithError(err).Warn("read switch position, assuming center")
		in = 0
	}
	pos := logic.PositionOf(in&gpio.SwitchLeft != 0, in&gpio.SwitchRight != 0)

	var (
		res      logic.Resolution
		applied  bool
		from     logic.TurnState
		writeErr error
	)
	c.state.Critical(func(v *Vars) {
		v.Position = pos
		v.Resolutions++
		from = v.Turn

		res, applied = logic.Resolve(c.policy, pos, v.Turn, v.Interval)
		if !applied {
			return
		}

		writeErr = c.port.WriteOr(gpio.Lights)
		v.Turn = res.State
		v.Flash = res.Flash
		v.Counter = res.Interval
	})

	if writeErr != nil {
		c.log.WithError(writeErr).Warn("lights on")
	}
	if !applied {
		c.log.WithField("position", pos).Debug("no transition")
		return
	}

	if c.edgeMode == EdgeFlip {
		if err := c.port.SetEdgePolarity(gpio.Switches, polarityFor(res.Await)); err != nil {
			c.log.WithError(err).Warn("set edge polarity")
		}
	}

	if from == res.State {
		c.log.WithFields(log.Fields{"position": pos, "state": res.State}).Debug("state unchanged")
		return
	}

	c.log.WithFields(log.Fields{
		"position": pos,
		"from":     from,
		"to":       res.State,
		"flash":    res.Flash,
	}).Info("turn state changed")

	c.emit(logic.Event{
		Timestamp: c.now(),
		Type:      logic.EventTypeFor(res.State),
		From:      from,
		To:        res.State,
		Position:  pos,
	})
}
