// Package metrics provides Prometheus metrics for the airlock bridge.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Direction labels.
const (
	DirectionCapture = "capture"
	DirectionApply   = "apply"
)

// Skip reasons.
const (
	ReasonUnavailable = "unavailable"
	ReasonDuplicate   = "duplicate"
	ReasonEmpty       = "empty"
	ReasonCorrupt     = "corrupt"
	ReasonLocked      = "locked"
	ReasonIO          = "io"
)

var (
	cyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airlock_cycles_total",
			Help: "Total number of sync loop cycles",
		},
	)

	changesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airlock_directory_changes_total",
			Help: "Cycles in which the inbound directory reported a change",
		},
	)

	capturesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airlock_captures_total",
			Help: "Local clipboard contents written to the outbound file",
		},
	)

	appliesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airlock_applies_total",
			Help: "Inbound file contents written to the local clipboard",
		},
	)

	skipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airlock_skips_total",
			Help: "Capture or apply attempts that did not write anything",
		},
		[]string{"direction", "reason"},
	)

	remapsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airlock_remaps_total",
			Help: "Input remap requests",
		},
		[]string{"result"},
	)

	payloadBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airlock_payload_bytes",
			Help:    "Size of transferred clipboard payloads",
			Buckets: prometheus.ExponentialBuckets(16, 4, 10),
		},
		[]string{"direction"},
	)
)

// RecordCycle counts one loop iteration.
func RecordCycle(changed bool) {
	cyclesTotal.Inc()
	if changed {
		changesTotal.Inc()
	}
}

// RecordCapture counts a payload written to the outbound file.
func RecordCapture(size int) {
	capturesTotal.Inc()
	payloadBytes.WithLabelValues(DirectionCapture).Observe(float64(size))
}

// RecordApply counts a payload written to the local clipboard.
func RecordApply(size int) {
	appliesTotal.Inc()
	payloadBytes.WithLabelValues(DirectionApply).Observe(float64(size))
}

// RecordSkip counts an attempt that ended without a write.
func RecordSkip(direction, reason string) {
	skipsTotal.WithLabelValues(direction, reason).Inc()
}

// RecordRemap counts a remap request.
func RecordRemap(ok bool) {
	result := "ok"
	if !ok {
		result = "rejected"
	}
	remapsTotal.WithLabelValues(result).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
