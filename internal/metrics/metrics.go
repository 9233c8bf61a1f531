// Package metrics holds the process-wide Prometheus collectors for the
// campaign engine. Grounded on LumenPrima-tr-engine's internal/metrics
// package-level-vars-plus-init idiom: collectors are declared once here and
// imported by whichever package needs to record against them, rather than
// threaded through every constructor as an explicit dependency.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "campaign_engine"

var (
	CallsOriginatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "calls_originated_total",
		Help:      "Outbound call origination attempts, by provider and outcome.",
	}, []string{"provider", "outcome"})

	CallsBilledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "calls_billed_total",
		Help:      "Hangup records applied to a tenant's balance, by provider.",
	}, []string{"provider"})

	CreditsDeductedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credits_deducted_total",
		Help:      "AI and telephony credits deducted, by leg.",
	}, []string{"leg"})

	AdmissionDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admission_decisions_total",
		Help:      "Admission Reserve outcomes, by result.",
	}, []string{"result"})

	ActiveCampaignsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_campaigns",
		Help:      "Campaigns currently in the running state on this container.",
	})

	OrphansRecoveredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orphans_recovered_total",
		Help:      "Campaigns claimed from a dead container by the heartbeat scanner.",
	})

	StaleHeartbeatsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stale_heartbeats",
		Help:      "Running campaigns whose heartbeat was past threshold on the last scan.",
	})
)

func init() {
	prometheus.MustRegister(
		CallsOriginatedTotal,
		CallsBilledTotal,
		CreditsDeductedTotal,
		AdmissionDecisionsTotal,
		ActiveCampaignsGauge,
		OrphansRecoveredTotal,
		StaleHeartbeatsGauge,
	)
}
