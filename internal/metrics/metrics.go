// Package metrics exposes the monitors' state as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/flight-monitor/internal/logic"
)

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flight_monitor_ticks_total",
		Help: "Run-loop ticks processed",
	})

	windSpeed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flight_monitor_wind_speed_mps",
		Help: "Latest estimated wind speed in m/s",
	})

	highWind = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flight_monitor_high_wind",
		Help: "1 while the high wind flag is set",
	})

	windFailsafeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flight_monitor_wind_failsafe_total",
		Help: "Wind failsafe triggers",
	})

	indicatorStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flight_monitor_indicator_status",
		Help: "Current indicator status (0 initializing .. 6 off)",
	})

	sequenceCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flight_monitor_sequence_count",
		Help: "Persisted sequence counters",
	}, []string{"counter"})

	publishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_monitor_publish_errors_total",
		Help: "Telemetry publish failures by message",
	}, []string{"message"})
)

// ObserveTick records one processed tick.
func ObserveTick(w logic.WindState, status logic.IndicatorStatus, seq logic.SequenceNumbers) {
	ticksTotal.Inc()
	windSpeed.Set(w.Speed)
	highWind.Set(boolToFloat(w.HighWind))
	indicatorStatus.Set(float64(status))
	sequenceCount.WithLabelValues("disarm").Set(float64(seq.Disarm))
	sequenceCount.WithLabelValues("flight").Set(float64(seq.Flight))
}

// WindFailsafeTriggered records a wind failsafe trigger.
func WindFailsafeTriggered() {
	windFailsafeTotal.Inc()
}

// PublishFailed records a failed publish of the named message.
func PublishFailed(message string) {
	publishErrors.WithLabelValues(message).Inc()
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
