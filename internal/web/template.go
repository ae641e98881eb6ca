package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/behavior-rig/internal/event"
	"github.com/sweeney/behavior-rig/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		switch {
		case days > 0:
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		case h > 0:
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		case m > 0:
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"level": func(high bool) string {
		if high {
			return "HIGH"
		}
		return "LOW"
	},
	"image": func(name string) string {
		if name == "" {
			return event.BlankImage
		}
		return name
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Behavior Rig {{.Config.RigID}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.reward { color: purple; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.degraded { color: orange; }
</style>
</head>
<body>
<h1>Behavior Rig {{.Config.RigID}}</h1>

<h2>Run</h2>
<table>
<tr><th>State</th><td id="run-state">{{if .Running}}running{{else}}stopped ({{.Cause}}){{end}}{{if .Degraded}} <span class="degraded">degraded</span>{{end}}</td></tr>
<tr><th>Phase</th><td id="phase" class="{{if eq (printf "%s" .Phase) "Reward"}}reward{{else}}off{{end}}">{{.Phase}}</td></tr>
<tr><th>Image</th><td>{{image .Image}}</td></tr>
<tr><th>Pump</th><td id="pump" class="{{if .Pump}}on{{else}}off{{end}}">{{if .Pump}}ON{{else}}OFF{{end}}</td></tr>
<tr><th>Wheel</th><td>{{level .Wheel}}</td></tr>
<tr><th>Door</th><td>{{level .Door}}</td></tr>
<tr><th>Experiment time</th><td>{{printf "%.1f" .Elapsed}}s</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Wheel revolutions</th><td>{{.Counts.WheelRevolutions}}</td></tr>
<tr><th>Door openings</th><td>{{.Counts.DoorOpenings}}</td></tr>
<tr><th>Reward phases</th><td>{{.Counts.RewardPhases}}</td></tr>
<tr><th>Pump runs</th><td>{{.Counts.PumpRuns}}</td></tr>
<tr><th>Images shown</th><td>{{.Counts.Images}}</td></tr>
<tr><th>Errors</th><td>{{.Counts.Errors}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Results</th><td>{{.Config.Results}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Bounce</th><td>wheel {{.Config.WheelBounceMs}}ms, door {{.Config.DoorBounceMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<h2>Protocol</h2>
<table>
{{range .Config.Protocol}}<tr><td>{{.}}</td></tr>
{{end}}</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
