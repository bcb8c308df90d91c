// Package metrics exposes the node's counters over an HTTP /metrics
// endpoint using a dedicated prometheus.Registry, the same pattern as the
// teacher's sptp PrometheusExporter: statically declared collectors, a
// registry owned by this package, and promhttp.HandlerFor serving it.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the node publishes: PTP port state
// transitions, RTP packet stats, and RTCP SR emit/ingest counts (§1 AMBIENT
// STACK's metrics list).
type Metrics struct {
	registry *prometheus.Registry

	PTPStateTransitions *prometheus.CounterVec
	PTPAnnounceTimeouts prometheus.Counter
	PTPSyncMissed       prometheus.Counter

	RTPOutOfOrder prometheus.Counter
	RTPDuplicates prometheus.Counter
	RTPDropped    prometheus.Counter
	RTPTooLate    prometheus.Counter
	RTPJitter     prometheus.Gauge

	RTCPSentSR     prometheus.Counter
	RTCPIngestedSR prometheus.Counter
	RTCPParseErrors prometheus.Counter
}

// New constructs and registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		PTPStateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ravennakit",
			Subsystem: "ptp",
			Name:      "state_transitions_total",
			Help:      "Count of PTP slave port state transitions, labeled by destination state.",
		}, []string{"state"}),
		PTPAnnounceTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ravennakit",
			Subsystem: "ptp",
			Name:      "announce_timeouts_total",
			Help:      "Count of Announce receipt timer expirations.",
		}),
		PTPSyncMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ravennakit",
			Subsystem: "ptp",
			Name:      "sync_missed_total",
			Help:      "Count of two-step Syncs for which no FollowUp arrived before the next Sync.",
		}),

		RTPOutOfOrder: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ravennakit", Subsystem: "rtp", Name: "out_of_order_total",
			Help: "Count of RTP packets received out of sequence order.",
		}),
		RTPDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ravennakit", Subsystem: "rtp", Name: "duplicates_total",
			Help: "Count of duplicate RTP sequence numbers received.",
		}),
		RTPDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ravennakit", Subsystem: "rtp", Name: "dropped_total",
			Help: "Count of RTP sequence numbers never delivered.",
		}),
		RTPTooLate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ravennakit", Subsystem: "rtp", Name: "too_late_total",
			Help: "Count of RTP packets that arrived after their ring buffer slot had advanced past them.",
		}),
		RTPJitter: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ravennakit", Subsystem: "rtp", Name: "jitter_ticks",
			Help: "Current RFC 3550 interarrival jitter estimate, in RTP clock ticks.",
		}),

		RTCPSentSR: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ravennakit", Subsystem: "rtcp", Name: "sr_sent_total",
			Help: "Count of RTCP sender reports emitted.",
		}),
		RTCPIngestedSR: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ravennakit", Subsystem: "rtcp", Name: "sr_ingested_total",
			Help: "Count of RTCP sender reports parsed from inbound compound packets.",
		}),
		RTCPParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ravennakit", Subsystem: "rtcp", Name: "parse_errors_total",
			Help: "Count of inbound RTCP datagrams that failed to parse.",
		}),
	}

	m.registry.MustRegister(
		m.PTPStateTransitions, m.PTPAnnounceTimeouts, m.PTPSyncMissed,
		m.RTPOutOfOrder, m.RTPDuplicates, m.RTPDropped, m.RTPTooLate, m.RTPJitter,
		m.RTCPSentSR, m.RTCPIngestedSR, m.RTCPParseErrors,
	)
	return m
}

// Handler returns the http.Handler serving this registry's /metrics output.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ListenAndServe starts a dedicated HTTP server exposing /metrics on port,
// matching the teacher's PrometheusExporter.Start.
func (m *Metrics) ListenAndServe(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}
