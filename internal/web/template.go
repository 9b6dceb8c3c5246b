package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/sweeney/turn-signal/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"lower": strings.ToLower,
	"micros": func(us int64) string {
		return (time.Duration(us) * time.Microsecond).String()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Turn Signal</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.left, .right { color: #e68a00; font-weight: bold; }
.neutral { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Turn Signal</h1>

<h2>State</h2>
<table>
<tr><th>Turn</th><td id="turn-state" class="{{lower .Signal.Turn.String}}">{{.Signal.Turn}}</td></tr>
<tr><th>Flashing</th><td id="flash-mask">{{.Signal.Flash}}</td></tr>
<tr><th>Switch</th><td id="switch-position">{{.Signal.Position}}</td></tr>
<tr><th>Resolutions</th><td>{{.Signal.Resolutions}}</td></tr>
<tr><th>Toggles</th><td>{{.Signal.Toggles}}</td></tr>
{{with .LastEvent}}<tr><th>Last change</th><td>{{.Type}} ({{.From}} to {{.To}}) at {{.Timestamp.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}none{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>TURN_LEFT</th><td>{{.Counts.Left}}</td></tr>
<tr><th>TURN_RIGHT</th><td>{{.Counts.Right}}</td></tr>
<tr><th>TURN_OFF</th><td>{{.Counts.Off}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Policy</th><td>{{.Config.Policy}}</td></tr>
<tr><th>Edge mode</th><td>{{.Config.EdgeMode}}</td></tr>
<tr><th>Heartbeat</th><td>{{micros .Config.HeartbeatUs}}</td></tr>
<tr><th>Flash interval</th><td>{{.Config.FlashInterval}} beats ({{.Config.FlashPeriodMs}}ms)</td></tr>
<tr><th>Debounce</th><td>{{micros .Config.DebounceUs}}</td></tr>
<tr><th>Status heartbeat</th><td>{{if eq .Config.StatusBeatMs 0}}disabled{{else}}{{.Config.StatusBeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
