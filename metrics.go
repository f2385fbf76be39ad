package netdicom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	associationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netdicom",
			Subsystem: "association",
			Name:      "total",
			Help:      "Associations by role and outcome (established, rejected, released, aborted).",
		},
		[]string{"role", "outcome"},
	)
	associationsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "netdicom",
			Subsystem: "association",
			Name:      "active",
			Help:      "Associations currently in the established state.",
		},
		[]string{"role"},
	)
	pdusTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netdicom",
			Subsystem: "pdu",
			Name:      "total",
			Help:      "PDUs sent and received, by type.",
		},
		[]string{"direction", "type"},
	)
	dimseRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netdicom",
			Subsystem: "dimse",
			Name:      "requests_total",
			Help:      "DIMSE requests handled by the provider, by command and final status category.",
		},
		[]string{"command", "status"},
	)
	dimseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "netdicom",
			Subsystem: "dimse",
			Name:      "request_duration_seconds",
			Help:      "Time from DIMSE request arrival to the final response.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command"},
	)
)

// RegisterMetrics registers the package's collectors with reg. Collectors are
// updated whether or not they are registered.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		associationsTotal, associationsActive, pdusTotal, dimseRequests, dimseDuration} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

func roleLabel(isUser bool) string {
	if isUser {
		return "user"
	}
	return "provider"
}

func recordDIMSERequest(command, status string, start time.Time) {
	dimseRequests.WithLabelValues(command, status).Inc()
	dimseDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}
