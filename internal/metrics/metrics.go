// Package metrics exposes Prometheus metrics for command dispatch and audio playback.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sglre6355/jukebox/internal/command"
)

// Recorder records command and playback metrics into its own registry.
type Recorder struct {
	registry *prometheus.Registry

	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	commandFailures *prometheus.CounterVec
}

// Ensure Recorder implements command.Metrics.
var _ command.Metrics = (*Recorder)(nil)

// NewRecorder creates a Recorder with Go runtime and process collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "commands_total", Help: "Executed commands"},
			[]string{"command", "shard"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "command_duration_seconds",
				Help:    "Command execution time",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"command", "shard"},
		),
		commandFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "command_failures_total", Help: "Failed commands"},
			[]string{"command", "kind"},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.commandsTotal,
		r.commandDuration,
		r.commandFailures,
	)
	return r
}

// CommandExecuted records one command execution.
func (r *Recorder) CommandExecuted(key string, shard int, elapsed time.Duration) {
	shardLabel := strconv.Itoa(shard)
	r.commandsTotal.WithLabelValues(key, shardLabel).Inc()
	r.commandDuration.WithLabelValues(key, shardLabel).Observe(elapsed.Seconds())
}

// CommandFailed records a failed command execution.
func (r *Recorder) CommandFailed(key string, kind command.FailureKind) {
	r.commandFailures.WithLabelValues(key, string(kind)).Inc()
}

// RegisterActiveInstances exposes count as the audio_active_instances gauge.
func (r *Recorder) RegisterActiveInstances(count func() int) error {
	gauge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: "audio_active_instances", Help: "Guilds with a playback instance"},
		func() float64 { return float64(count()) },
	)
	if err := r.registry.Register(gauge); err != nil {
		return fmt.Errorf("failed to register active instance gauge: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler serving the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve serves /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("serving metrics", "address", addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve metrics: %w", err)
	}
	return nil
}
