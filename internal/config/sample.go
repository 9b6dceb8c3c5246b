package config

// Sample is the documented default configuration file.
const Sample = `# turn-signal configuration
# NOTE: Pins are line offsets on the GPIO chip (BCM numbering on a Raspberry Pi)

chip = "gpiochip0"
left_switch = 5
right_switch = 6
left_light = 23
right_light = 24

# Switches to ground with pull-ups read 0 when asserted
switch_active_low = true

# "level": switch position decides the state (held left = LEFT, center = NEUTRAL)
# "toggle": each line is a push button, pressing the active side cancels it
policy = "level"

# "both": watch both edges on both lines (recommended)
# "flip": watch only the edge the current state awaits
edge_mode = "both"

# Blink timebase and interval: one toggle every flash_interval heartbeats
heartbeat = "8.192ms"
flash_interval = 30

# Debounce: the switch must stay quiet for debounce_ticks ticks of debounce_tick
debounce_tick = "330µs"
debounce_ticks = 40

# Telemetry and status page, empty disables
broker = ""
http = ""
status_heartbeat = "15m0s"

log_level = "info"
`
