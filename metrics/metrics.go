// Package metrics provides Prometheus metrics for the editor server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wick_editor_commands_total",
			Help: "Total number of terminal commands executed",
		},
		[]string{"backend", "status"},
	)

	commandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wick_editor_command_duration_seconds",
			Help:    "Terminal command execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	fsOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wick_editor_fs_operations_total",
			Help: "Total filesystem operations by type and outcome",
		},
		[]string{"op", "status"},
	)

	fileSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wick_editor_file_saves_total",
			Help: "Total editor file saves",
		},
		[]string{"status"},
	)

	openFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wick_editor_open_files",
			Help: "Number of files open in the editor session",
		},
	)

	bridgeEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wick_editor_bridge_events_total",
			Help: "Command-executed notifications received from the terminal bridge",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordCommand records a terminal command execution.
func RecordCommand(backend string, duration time.Duration, success bool) {
	commandsTotal.WithLabelValues(backend, status(success)).Inc()
	commandDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordFSOperation records a filesystem operation. It matches wickfs.Observer.
func RecordFSOperation(op string, err error) {
	fsOperationsTotal.WithLabelValues(op, status(err == nil)).Inc()
}

// RecordFileSave records an editor save.
func RecordFileSave(success bool) {
	fileSavesTotal.WithLabelValues(status(success)).Inc()
}

// SetOpenFiles sets the number of open files.
func SetOpenFiles(n int) {
	openFiles.Set(float64(n))
}

// RecordBridgeEvent records a bridge notification.
func RecordBridgeEvent() {
	bridgeEventsTotal.Inc()
}
