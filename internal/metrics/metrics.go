// Package metrics holds the prometheus collectors of the auth service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "warden"

// Metrics groups the counters updated by the service layer
type Metrics struct {
	NoncesIssued       prometheus.Counter
	NonceRejections    *prometheus.CounterVec
	Logins             *prometheus.CounterVec
	Registrations      *prometheus.CounterVec
	CredentialsCreated *prometheus.CounterVec
	CredentialsRemoved *prometheus.CounterVec
	SweepFailures      prometheus.Counter
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		NoncesIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nonces_issued_total",
			Help:      "Sign-in challenges issued.",
		}),
		NonceRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nonce_rejections_total",
			Help:      "Challenges refused at login, by reason.",
		}, []string{"reason"}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by method and result.",
		}, []string{"method", "result"}),
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Accounts created by method.",
		}, []string{"method"}),
		CredentialsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credentials_created_total",
			Help:      "Credentials minted by kind.",
		}, []string{"kind"}),
		CredentialsRemoved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credentials_removed_total",
			Help:      "Credentials removed by cause.",
		}, []string{"cause"}),
		SweepFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_failures_total",
			Help:      "Expired credentials a sweep failed to remove.",
		}),
	}
}
