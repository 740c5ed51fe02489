package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sweeney/flight-monitor/internal/status"
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
	"ago": func(then, now time.Time) string {
		if then.IsZero() {
			return "never"
		}
		return humanize.RelTime(then, now, "ago", "from now")
	},
	"mps": func(v float64) string {
		return humanize.FtoaWithDigits(v, 1) + " m/s"
	},
	"deg": func(v float64) string {
		return humanize.FtoaWithDigits(v, 0) + "°"
	},
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Flight Monitor {{.Config.VehicleID}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.alert { color: red; font-weight: bold; }
.ok { color: green; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Flight Monitor {{.Config.VehicleID}}</h1>

<h2>Vehicle</h2>
<table>
{{if .HaveSample}}<tr><th>Initialised</th><td>{{yesno .Vehicle.Initialised}}</td></tr>
<tr><th>Armed</th><td id="armed">{{yesno .Vehicle.Armed}}</td></tr>
<tr><th>Mode</th><td id="mode">{{.Vehicle.Mode}}</td></tr>
<tr><th>GPS fix</th><td>{{printf "%d" .Vehicle.GPSFix}}</td></tr>
<tr><th>Altitude</th><td>{{printf "%.1f" .Vehicle.AltitudeM}} m</td></tr>
<tr><th>Failsafe</th><td class="{{if .Vehicle.Failsafe}}alert{{else}}ok{{end}}">{{yesno .Vehicle.Failsafe}}</td></tr>
<tr><th>Pre-arm</th><td>{{if .Vehicle.PrearmOK}}passed{{else}}failing{{end}}</td></tr>
{{else}}<tr><th>State</th><td class="unknown">no sample yet</td></tr>{{end}}
</table>

<h2>Wind</h2>
<table>
<tr><th>Speed</th><td id="wind-speed">{{mps .Wind.Speed}}</td></tr>
<tr><th>Direction</th><td>{{deg .Wind.Direction}}</td></tr>
<tr><th>Limit</th><td>{{mps .Config.MaxWindSpeed}}</td></tr>
<tr><th>High wind</th><td class="{{if .Wind.HighWind}}alert{{else}}ok{{end}}">{{yesno .Wind.HighWind}}</td></tr>
<tr><th>Failsafe</th><td id="wind-failsafe" class="{{if .Wind.FailsafeActive}}alert{{else}}ok{{end}}">{{if .Wind.FailsafeActive}}ACTIVE{{else}}clear{{end}}</td></tr>
<tr><th>Triggers</th><td>{{.WindFailsafes}} (last {{ago .LastFailsafe .Now}})</td></tr>
</table>

<h2>Indicator</h2>
<table>
<tr><th>Status</th><td id="indicator">{{.Indicator}}</td></tr>
<tr><th>Phase</th><td>{{.Phase}}</td></tr>
<tr><th>Power</th><td>{{if .PowerOn}}on{{else}}off{{end}}</td></tr>
<tr><th>Toggle</th><td>{{.Config.Toggle}}</td></tr>
<tr><th>Hardware</th><td>{{if .Config.Indicator}}enabled{{else}}disabled{{end}}</td></tr>
</table>

<h2>Counters</h2>
<table>
<tr><th>Disarms</th><td id="disarm-seq">{{.Sequence.Disarm}}</td></tr>
<tr><th>Flights</th><td id="flight-seq">{{.Sequence.Flight}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/flightlog.json">flight log</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
