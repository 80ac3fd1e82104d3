package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wlynxg/P4DB/core/protocol"
)

const Namespace = "p4db"

// Metrics counts frames on both sides of the link. A nil *Metrics records nothing.
type Metrics struct {
	sent        prometheus.Counter
	observed    *prometheus.CounterVec
	malformed   prometheus.Counter
	unsupported prometheus.Counter
	filtered    prometheus.Counter
	readErrors  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		sent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "generator",
			Name:      "frames_sent_total",
			Help:      "Frames written to the link.",
		}),
		observed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "observer",
			Name:      "frames_total",
			Help:      "Frames decoded, by decode strategy.",
		}, []string{"kind"}),
		malformed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "observer",
			Name:      "malformed_frames_total",
			Help:      "Frames that failed to decode.",
		}),
		unsupported: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "observer",
			Name:      "unsupported_frames_total",
			Help:      "Frames that are neither relation nor udp frames.",
		}),
		filtered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "observer",
			Name:      "filtered_frames_total",
			Help:      "Frames dropped by the source network filter.",
		}),
		readErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "observer",
			Name:      "read_errors_total",
			Help:      "Link reads that failed and were retried.",
		}),
	}
}

func (m *Metrics) Sent() {
	if m != nil {
		m.sent.Inc()
	}
}

func (m *Metrics) Observed(kind protocol.Kind) {
	if m != nil {
		m.observed.WithLabelValues(kind.String()).Inc()
	}
}

func (m *Metrics) Malformed() {
	if m != nil {
		m.malformed.Inc()
	}
}

func (m *Metrics) Unsupported() {
	if m != nil {
		m.unsupported.Inc()
	}
}

func (m *Metrics) Filtered() {
	if m != nil {
		m.filtered.Inc()
	}
}

func (m *Metrics) ReadError() {
	if m != nil {
		m.readErrors.Inc()
	}
}

// Serve exposes gatherer on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return errors.Wrapf(err, "metrics listener %s", addr)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (m *Metrics) SentCounter() prometheus.Counter {
	return m.sent
}

func (m *Metrics) MalformedCounter() prometheus.Counter {
	return m.malformed
}

func (m *Metrics) UnsupportedCounter() prometheus.Counter {
	return m.unsupported
}

func (m *Metrics) ObservedCounter(kind protocol.Kind) prometheus.Counter {
	return m.observed.WithLabelValues(kind.String())
}

func (m *Metrics) ReadErrorCounter() prometheus.Counter {
	return m.readErrors
}
