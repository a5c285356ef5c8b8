// Package metrics exposes runtime counters as Prometheus metrics.
//
// All recording methods are nil-safe so components can take an optional
// *Metrics without guarding every call.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "erpview"

// Metrics holds the runtime collectors on a private registry.
type Metrics struct {
	registry *prom.Registry

	feedTicks     *prom.CounterVec
	feedSkips     *prom.CounterVec
	feedDiscards  *prom.CounterVec
	feedFailures  *prom.CounterVec
	activeFeeds   prom.Gauge
	stateMerges   prom.Counter
	stateRejects  prom.Counter
	renders       prom.Counter
	loadFailures  *prom.CounterVec
	staleDiscards *prom.CounterVec
	bulkItems     *prom.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry:      prom.NewRegistry(),
		feedTicks:     prom.NewCounterVec(prom.CounterOpts{Namespace: namespace, Name: "feed_ticks_total", Help: "Feed invocations started"}, []string{"feed"}),
		feedSkips:     prom.NewCounterVec(prom.CounterOpts{Namespace: namespace, Name: "feed_ticks_skipped_total", Help: "Feed ticks skipped because the previous invocation was still in flight"}, []string{"feed"}),
		feedDiscards:  prom.NewCounterVec(prom.CounterOpts{Namespace: namespace, Name: "feed_results_discarded_total", Help: "Feed results dropped because the feed was stopped"}, []string{"feed"}),
		feedFailures:  prom.NewCounterVec(prom.CounterOpts{Namespace: namespace, Name: "feed_failures_total", Help: "Feed invocations that returned an error"}, []string{"feed"}),
		activeFeeds:   prom.NewGauge(prom.GaugeOpts{Namespace: namespace, Name: "feeds_active", Help: "Feeds currently scheduled"}),
		stateMerges:   prom.NewCounter(prom.CounterOpts{Namespace: namespace, Name: "state_merges_total", Help: "State patches applied"}),
		stateRejects:  prom.NewCounter(prom.CounterOpts{Namespace: namespace, Name: "state_patches_rejected_total", Help: "State patches rejected or dropped"}),
		renders:       prom.NewCounter(prom.CounterOpts{Namespace: namespace, Name: "renders_total", Help: "Frames rendered by the host"}),
		loadFailures:  prom.NewCounterVec(prom.CounterOpts{Namespace: namespace, Name: "load_failures_total", Help: "View data loads that failed"}, []string{"screen"}),
		staleDiscards: prom.NewCounterVec(prom.CounterOpts{Namespace: namespace, Name: "stale_results_discarded_total", Help: "Load results dropped because the view changed"}, []string{"screen"}),
		bulkItems:     prom.NewCounterVec(prom.CounterOpts{Namespace: namespace, Name: "bulk_items_total", Help: "Bulk action items processed"}, []string{"action", "outcome"}),
	}
	m.registry.MustRegister(
		m.feedTicks, m.feedSkips, m.feedDiscards, m.feedFailures, m.activeFeeds,
		m.stateMerges, m.stateRejects, m.renders,
		m.loadFailures, m.staleDiscards, m.bulkItems,
		promcollect.NewGoCollector(),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prom.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// FeedLabel trims the owning instance prefix from a feed key so label
// cardinality stays bounded by views, not by component instances.
func FeedLabel(key string) string {
	if i := strings.IndexByte(key, '/'); i >= 0 && i < len(key)-1 {
		return key[i+1:]
	}
	return key
}

func (m *Metrics) FeedTick(key string) {
	if m != nil {
		m.feedTicks.WithLabelValues(FeedLabel(key)).Inc()
	}
}

func (m *Metrics) FeedSkip(key string) {
	if m != nil {
		m.feedSkips.WithLabelValues(FeedLabel(key)).Inc()
	}
}

func (m *Metrics) FeedDiscard(key string) {
	if m != nil {
		m.feedDiscards.WithLabelValues(FeedLabel(key)).Inc()
	}
}

func (m *Metrics) FeedFailure(key string) {
	if m != nil {
		m.feedFailures.WithLabelValues(FeedLabel(key)).Inc()
	}
}

// SetActiveFeeds records the number of scheduled feeds.
func (m *Metrics) SetActiveFeeds(n int) {
	if m != nil {
		m.activeFeeds.Set(float64(n))
	}
}

func (m *Metrics) StateMerged() {
	if m != nil {
		m.stateMerges.Inc()
	}
}

func (m *Metrics) StateRejected() {
	if m != nil {
		m.stateRejects.Inc()
	}
}

func (m *Metrics) Rendered() {
	if m != nil {
		m.renders.Inc()
	}
}

func (m *Metrics) LoadFailed(screen string) {
	if m != nil {
		m.loadFailures.WithLabelValues(screen).Inc()
	}
}

func (m *Metrics) StaleDiscarded(screen string) {
	if m != nil {
		m.staleDiscards.WithLabelValues(screen).Inc()
	}
}

// BulkItem records one bulk item outcome ("ok" or "failed").
func (m *Metrics) BulkItem(action, outcome string) {
	if m != nil {
		m.bulkItems.WithLabelValues(action, outcome).Inc()
	}
}
