// Package metrics exposes the server's Prometheus counters and gauges, and
// the HTTP handler that serves them.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mediocregopher/tinyredis/mctx"
	"github.com/mediocregopher/tinyredis/mlog"
)

// Metrics holds every metric the server updates.
type Metrics struct {
	ConnectionsAccepted prometheus.Counter
	ConnectionsActive   prometheus.Gauge
	CommandsTotal       *prometheus.CounterVec
	KeysExpiredTotal    prometheus.Counter
	PubSubMessagesTotal prometheus.Counter

	registry *prometheus.Registry
}

// New registers a fresh set of metrics against their own Registry (rather
// than the global default, so multiple Servers in the same process don't
// collide).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ConnectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "redis_connections_accepted_total",
			Help: "Total number of client connections accepted.",
		}),
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "redis_connections_active",
			Help: "Number of client connections currently open.",
		}),
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "redis_commands_total",
			Help: "Total number of commands applied, by command name.",
		}, []string{"command"}),
		KeysExpiredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "redis_keys_expired_total",
			Help: "Total number of keys removed by the background purge task.",
		}),
		PubSubMessagesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "redis_pubsub_messages_total",
			Help: "Total number of pub/sub deliveries made by PUBLISH.",
		}),
	}
}

// ConnAccepted implements server.Metrics.
func (m *Metrics) ConnAccepted() { m.ConnectionsAccepted.Inc() }

// ConnOpened implements server.Metrics.
func (m *Metrics) ConnOpened() { m.ConnectionsActive.Inc() }

// ConnClosed implements server.Metrics.
func (m *Metrics) ConnClosed() { m.ConnectionsActive.Dec() }

// CommandApplied implements server.Metrics.
func (m *Metrics) CommandApplied(name string) { m.CommandsTotal.WithLabelValues(name).Inc() }

// KeysExpired records n keys having been evicted by the purge task; it
// matches the store.Db "onPurge" callback signature.
func (m *Metrics) KeysExpired(n int) { m.KeysExpiredTotal.Add(float64(n)) }

// PubSubDelivered records a PUBLISH having reached n subscribers.
func (m *Metrics) PubSubDelivered(n int) { m.PubSubMessagesTotal.Add(float64(n)) }

// ListenAndServe serves the metrics registry as an HTTP /metrics endpoint on
// addr until ctx is canceled. A serving error other than http.ErrServerClosed
// is returned to the caller, not logged here.
func (m *Metrics) ListenAndServe(ctx context.Context, logger *mlog.Logger, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	ctx = mctx.Annotate(ctx, "addr", addr)
	logger.Info(ctx, "metrics server listening")

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		return srv.Close()
	}
}
