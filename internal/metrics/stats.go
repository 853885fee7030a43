// Package metrics exports decode session statistics to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"itmtrace/internal/common"
	"itmtrace/internal/itm"
	"itmtrace/internal/span"
)

var pktTypeLabels = map[itm.PktType]string{
	itm.PktUnknown:         "unknown",
	itm.PktSync:            "sync",
	itm.PktOverflow:        "overflow",
	itm.PktTSLocal:         "ts_local",
	itm.PktTSGlobal1:       "ts_global1",
	itm.PktTSGlobal2:       "ts_global2",
	itm.PktExtension:       "extension",
	itm.PktInstrumentation: "instrumentation",
	itm.PktEventCounter:    "event_counter",
	itm.PktException:       "exception",
	itm.PktPCSample:        "pc_sample",
	itm.PktDataTrace:       "data_trace",
}

// Stats counts packets and events of one decode session. Counters are
// updated from the decode path; Sample copies stage state into gauges so the
// HTTP handler never touches the stages.
type Stats struct {
	registry *prometheus.Registry

	packets     *prometheus.CounterVec
	events      *prometheus.CounterVec
	bytesIn     prometheus.Counter
	residual    prometheus.Gauge
	dropped     prometheus.Counter
	sessionTime prometheus.Gauge

	lastDropped uint64

	pktIn  common.Attachment[span.Span]
	excIn  common.Attachment[itm.ExceptionTrace]
	instIn common.Attachment[itm.InstrumentationTrace]
}

// NewStats creates the metrics on a private registry.
func NewStats() *Stats {
	s := &Stats{
		registry: prometheus.NewRegistry(),
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "itm",
			Name:      "packets_total",
			Help:      "Complete packets split from the stream, by classification.",
		}, []string{"type"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "itm",
			Name:      "events_total",
			Help:      "Decoded trace events, by kind.",
		}, []string{"kind"}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "itm",
			Name:      "bytes_total",
			Help:      "Raw bytes fed into the decoder.",
		}),
		residual: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "itm",
			Name:      "residual_bytes",
			Help:      "Bytes buffered waiting for the rest of their packet.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "itm",
			Name:      "dropped_bytes_total",
			Help:      "Residual bytes discarded by the residual limit.",
		}),
		sessionTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "itm",
			Name:      "session_time_seconds",
			Help:      "Session clock accumulated from local timestamps.",
		}),
	}
	s.registry.MustRegister(s.packets, s.events, s.bytesIn, s.residual, s.dropped, s.sessionTime)
	return s
}

// Registry returns the registry holding the session metrics.
func (s *Stats) Registry() *prometheus.Registry {
	return s.registry
}

// Attach subscribes the stats to the stages of d.
func (s *Stats) Attach(d *itm.Decoder) {
	s.pktIn.AttachTo(&d.Splitter.Packets, common.SubscriberFunc[span.Span](func(pkt span.Span) {
		s.packets.WithLabelValues(pktTypeLabels[itm.Parse(pkt).Type]).Inc()
	}))
	s.excIn.AttachTo(&d.Exceptions.Traces, common.SubscriberFunc[itm.ExceptionTrace](func(itm.ExceptionTrace) {
		s.events.WithLabelValues("exception").Inc()
	}))
	s.instIn.AttachTo(&d.Instrumentation.Traces, common.SubscriberFunc[itm.InstrumentationTrace](func(itm.InstrumentationTrace) {
		s.events.WithLabelValues("instrumentation").Inc()
	}))
}

// Detach unsubscribes from every stage.
func (s *Stats) Detach() {
	s.pktIn.Detach()
	s.excIn.Detach()
	s.instIn.Detach()
}

// Sample records n raw input bytes and copies the stage gauges. Call it from
// the goroutine driving the decoder.
func (s *Stats) Sample(d *itm.Decoder, n int) {
	s.bytesIn.Add(float64(n))
	s.residual.Set(float64(d.Splitter.Buffered()))
	if dropped := d.Splitter.DroppedBytes(); dropped > s.lastDropped {
		s.dropped.Add(float64(dropped - s.lastDropped))
		s.lastDropped = dropped
	}
	s.sessionTime.Set(d.Timestamps.LocalTimestamp().Seconds())
}

// Serve exposes the registry on listen at /metrics until ctx is cancelled.
func (s *Stats) Serve(ctx context.Context, listen string, logger *zap.Logger) error {
	logger = common.OrNop(logger)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", zap.String("addr", listen))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
