// Package metrics exposes reconcile counters and timings on a private
// Prometheus registry. A disabled Metrics is a no-op.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Metrics struct {
	config models.MetricsConfig

	reconciles        *prometheus.CounterVec
	reconcileDuration *prometheus.HistogramVec
	pollAttempts      *prometheus.CounterVec
	objectOps         *prometheus.CounterVec

	registry *prometheus.Registry
}

func New(cfg models.MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{config: cfg}
	}

	ns := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,
		reconciles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "reconciles_total",
				Help:      "Reconcile calls by service and outcome",
			},
			[]string{"service", "outcome"},
		),
		reconcileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "reconcile_duration_seconds",
				Help:      "Duration of reconcile calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"service"},
		),
		pollAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "poll_attempts_total",
				Help:      "Unit state polls while waiting for startup",
			},
			[]string{"service"},
		),
		objectOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "named_object_operations_total",
				Help:      "Named object additions and removals",
			},
			[]string{"kind", "operation"},
		),
	}

	registry.MustRegister(m.reconciles, m.reconcileDuration, m.pollAttempts, m.objectOps)
	return m
}

func (m *Metrics) RecordReconcile(service, outcome string, d time.Duration) {
	if m.reconciles == nil {
		return
	}
	m.reconciles.WithLabelValues(service, outcome).Inc()
	m.reconcileDuration.WithLabelValues(service).Observe(d.Seconds())
}

func (m *Metrics) RecordPollAttempt(service string) {
	if m.pollAttempts == nil {
		return
	}
	m.pollAttempts.WithLabelValues(service).Inc()
}

func (m *Metrics) RecordNamedObjectOp(kind models.ObjectKind, operation string) {
	if m.objectOps == nil {
		return
	}
	m.objectOps.WithLabelValues(string(kind), operation).Inc()
}

// Handler returns the scrape handler, or 404 when metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve runs the metrics server until ctx is done.
func (m *Metrics) Serve(ctx context.Context, log zerolog.Logger) error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              m.config.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("listen", m.config.Listen).Msg("serving metrics")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
