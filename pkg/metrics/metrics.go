// Package metrics exposes mirror and watcher counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/0xmhha/foldersync/pkg/logger"
	"github.com/0xmhha/foldersync/pkg/mirror"
	"github.com/0xmhha/foldersync/pkg/watcher"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "foldersync"

// Source provides the snapshot to export.
type Source interface {
	Stats() mirror.Stats
}

// Collector is a prometheus.Collector reading a Source on every scrape.
type Collector struct {
	source Source

	roots    *prometheus.Desc
	nodes    *prometheus.Desc
	watched  *prometheus.Desc
	state    *prometheus.Desc
	pending  *prometheus.Desc
	counters []counterDesc
}

type counterDesc struct {
	desc  *prometheus.Desc
	value func(mirror.Stats) uint64
}

func newDesc(subsystem, name, help string, labels ...string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil)
}

// NewCollector creates a collector over source.
func NewCollector(source Source) *Collector {
	counter := func(subsystem, name, help string, value func(mirror.Stats) uint64) counterDesc {
		return counterDesc{desc: newDesc(subsystem, name, help), value: value}
	}

	return &Collector{
		source:  source,
		roots:   newDesc("tree", "roots", "Number of mirrored roots."),
		nodes:   newDesc("tree", "nodes", "Number of files and folders in the tree."),
		watched: newDesc("watcher", "registered_folders", "Number of folders under change notification."),
		state:   newDesc("watcher", "state", "Watcher lifecycle state, 1 for the current one.", "state"),
		pending: newDesc("watcher", "pending_updates", "Coalesced updates waiting to be drained."),
		counters: []counterDesc{
			counter("watcher", "raw_events_total", "Raw notifications received.",
				func(s mirror.Stats) uint64 { return s.Watcher.RawEvents }),
			counter("watcher", "enqueued_total", "Updates added to the pending set.",
				func(s mirror.Stats) uint64 { return s.Watcher.Enqueued }),
			counter("watcher", "coalesced_total", "Events merged into an existing pending update.",
				func(s mirror.Stats) uint64 { return s.Watcher.Coalesced }),
			counter("watcher", "skipped_total", "Notifications that could not be routed.",
				func(s mirror.Stats) uint64 { return s.Watcher.Skipped }),
			counter("watcher", "drains_total", "Non-empty drains of the pending set.",
				func(s mirror.Stats) uint64 { return s.Watcher.Drains }),
			counter("watcher", "drain_retries_total", "Drains refused by the consumer and rescheduled.",
				func(s mirror.Stats) uint64 { return s.Watcher.DrainRetries }),
			counter("watcher", "callback_failures_total", "Synchronizations that failed or panicked.",
				func(s mirror.Stats) uint64 { return s.Watcher.CallbackFailures }),
			counter("watcher", "overflows_total", "Lost-notification reports.",
				func(s mirror.Stats) uint64 { return s.Watcher.Overflows }),
			counter("watcher", "registration_failures_total", "Folders that could not be watched.",
				func(s mirror.Stats) uint64 { return s.Watcher.RegistrationFailures }),
			counter("watcher", "lost_registrations_total", "Registrations dropped because their folder vanished.",
				func(s mirror.Stats) uint64 { return s.Watcher.LostRegistrations }),
			counter("mirror", "updates_total", "Published synchronization updates.",
				func(s mirror.Stats) uint64 { return s.Updates }),
			counter("mirror", "failures_total", "Failed synchronizations.",
				func(s mirror.Stats) uint64 { return s.Failures }),
			counter("mirror", "resyncs_total", "Full resynchronizations.",
				func(s mirror.Stats) uint64 { return s.Resyncs }),
			counter("mirror", "dropped_updates_total", "Updates dropped because no consumer kept up.",
				func(s mirror.Stats) uint64 { return s.Dropped }),
		},
	}
}

var states = []watcher.State{
	watcher.StateUnstarted,
	watcher.StateRunning,
	watcher.StateStopping,
	watcher.StateStopped,
	watcher.StateDegraded,
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.roots
	ch <- c.nodes
	ch <- c.watched
	ch <- c.state
	ch <- c.pending
	for _, cd := range c.counters {
		ch <- cd.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()

	ch <- prometheus.MustNewConstMetric(c.roots, prometheus.GaugeValue, float64(s.Roots))
	ch <- prometheus.MustNewConstMetric(c.nodes, prometheus.GaugeValue, float64(s.Nodes))
	ch <- prometheus.MustNewConstMetric(c.watched, prometheus.GaugeValue, float64(s.Watched))
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(s.Watcher.Pending))

	for _, st := range states {
		v := 0.0
		if st == s.Watcher.State {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, v, st.String())
	}

	for _, cd := range c.counters {
		ch <- prometheus.MustNewConstMetric(cd.desc, prometheus.CounterValue, float64(cd.value(s)))
	}
}

// NewRegistry returns a registry holding the collector for source plus the
// standard process and Go runtime collectors.
func NewRegistry(source Source) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{
		NewCollector(source),
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return reg, nil
}

// Handler returns the HTTP handler serving reg.
func Handler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

// Serve exposes reg on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, log logger.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return serve(ctx, listener, reg, log)
}

func serve(ctx context.Context, listener net.Listener, reg *prometheus.Registry, log logger.Logger) error {
	srv := &http.Server{
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		Handler:      Handler(reg),
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(listener) }()

	log.Info("metrics endpoint listening", "addr", listener.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop metrics endpoint: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
