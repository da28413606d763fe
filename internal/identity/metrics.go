package identity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "posidentity"

// Authorization outcomes.
const (
	outcomeAllowed     = "allowed"
	outcomeDenied      = "denied"
	outcomeInactive    = "inactive"
	outcomeUnknownUser = "unknown_user"
)

var authorizationDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "identity",
		Name:      "authorization_decisions_total",
		Help:      "Authorization decisions by outcome",
	},
	[]string{"outcome"},
)

func recordAuthorization(outcome string) {
	authorizationDecisions.WithLabelValues(outcome).Inc()
}
