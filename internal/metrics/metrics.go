// Package metrics holds the Prometheus instruments of the sync engine.
// All instruments register with the default registry, which the object
// server exposes on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "objsync"

var (
	// Operations counts finished send/receive operations by final state.
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Finished sync operations by kind and final state",
	}, []string{"kind", "state"})

	// OperationDuration tracks wall time per operation kind.
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Sync operation duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"kind"})

	// ObjectsTransferred counts objects written or read per transport.
	ObjectsTransferred = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "objects_transferred_total",
		Help:      "Objects written to or read from a transport",
	}, []string{"direction", "transport"})

	// ObjectsDeduplicated counts objects not written because the
	// transport already had them.
	ObjectsDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "objects_deduplicated_total",
		Help:      "Objects skipped on send because the transport already stored them",
	}, []string{"transport"})

	// TransferErrors counts failed transport calls.
	TransferErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transfer_errors_total",
		Help:      "Failed transport calls by transport",
	}, []string{"transport"})

	// Reconciled counts reconciliation outcomes by action.
	Reconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciled_total",
		Help:      "Reconciled nodes by action (created, updated, recreated, deleted, failed)",
	}, []string{"action"})

	// ReportedErrors counts accumulated diagnostics by code.
	ReportedErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reported_errors_total",
		Help:      "Diagnostics accumulated by sync operations, by code",
	}, []string{"code"})

	// MutationsExecuted counts closures run by the mutation executor.
	MutationsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mutations_executed_total",
		Help:      "Host mutations run by the executor, by result",
	}, []string{"result"})

	// ServerRequests counts object server requests.
	ServerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "server_requests_total",
		Help:      "Object server HTTP requests by method and status",
	}, []string{"method", "status"})
)
