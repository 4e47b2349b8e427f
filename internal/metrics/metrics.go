// Package metrics exposes the Prometheus surface for this worker, directly
// adapted from common/metrics/metrics.go's pattern (promauto-registered
// vars plus a small MetricsServer wrapping promhttp), generalized from
// generic HTTP/NRF-registration metrics to the protocol-stack, UE-store,
// and coordinator-refresh concerns this worker actually has.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// AssociationsUp reports the up/down boolean (1/0) of each interface's
	// association, per spec.md §3's derivation from remote_tnla_addresses.
	AssociationsUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gnbcucp_association_up",
			Help: "Whether the named interface's SCTP association is up (1 = up, 0 = down)",
		},
		[]string{"interface"},
	)

	// RequestsTotal counts stack.Request calls by interface, procedure, and
	// outcome ("success", "unsuccessful_outcome", "timeout", "transport_error",
	// "no_association", "encode_error", "decode_error", "peer_reset",
	// "internal_error").
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gnbcucp_requests_total",
			Help: "Total protocol stack requests by interface, procedure, and outcome",
		},
		[]string{"interface", "procedure", "outcome"},
	)

	// RequestDuration observes stack.Request latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gnbcucp_request_duration_seconds",
			Help:    "Protocol stack request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"interface", "procedure"},
	)

	// UEStoreOperationsTotal is labelled for UE store operations by kind
	// and outcome; the store backends in this repository do not increment
	// it.
	UEStoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gnbcucp_ue_store_operations_total",
			Help: "Total UE store operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// UEsAttached is the gauge for the number of UE states held in the
	// store; no code in this repository sets it, so it reads 0.
	UEsAttached = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gnbcucp_ues_attached",
			Help: "Current number of UE states tracked by this worker",
		},
	)

	// CoordinatorRefreshTotal counts periodic/ad-hoc refreshes sent to the
	// coordinator, by outcome.
	CoordinatorRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gnbcucp_coordinator_refresh_total",
			Help: "Total coordinator refresh calls by outcome",
		},
		[]string{"outcome"},
	)
)

// SetAssociationUp records the up/down state of one interface's association.
func SetAssociationUp(iface string, up bool) {
	if up {
		AssociationsUp.WithLabelValues(iface).Set(1)
	} else {
		AssociationsUp.WithLabelValues(iface).Set(0)
	}
}

// Server wraps a /metrics and /healthz HTTP endpoint, mirroring
// common/metrics.MetricsServer.
type Server struct {
	port   int
	server *http.Server
	logger *zap.Logger
}

// NewServer constructs a metrics server bound to port.
func NewServer(port int, logger *zap.Logger) *Server {
	return &Server{port: port, logger: logger}
}

// Start runs the metrics server; it blocks until the server stops.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.logger.Info("starting metrics server", zap.Int("port", s.port))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
