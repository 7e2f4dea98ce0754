package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlanChecks counts plan checks by outcome (ok, demo, error).
	PlanChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "misepo",
		Subsystem: "entitlement",
		Name:      "plan_checks_total",
		Help:      "Plan checks by outcome.",
	}, []string{"outcome"})

	PlanCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "misepo",
		Subsystem: "entitlement",
		Name:      "plan_check_duration_seconds",
		Help:      "Plan check duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	// BillingLookups counts subscription lookups by result.
	BillingLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "misepo",
		Subsystem: "billing",
		Name:      "lookups_total",
		Help:      "Billing subscription lookups by result.",
	}, []string{"result"})

	// HealSteps counts healing passes that changed an entitlement.
	HealSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "misepo",
		Subsystem: "entitlement",
		Name:      "heal_steps_total",
		Help:      "Entitlement healing passes applied, by step.",
	}, []string{"step"})

	// WriteConflicts counts writes that lost to a concurrent request.
	WriteConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "misepo",
		Subsystem: "entitlement",
		Name:      "write_conflicts_total",
		Help:      "Entitlement and redemption writes that lost to a concurrent writer.",
	}, []string{"kind"})

	TrialGrants = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "misepo",
		Subsystem: "entitlement",
		Name:      "trial_grants_total",
		Help:      "Trials granted.",
	})

	Generations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "misepo",
		Subsystem: "usage",
		Name:      "generations_total",
		Help:      "Generation requests by outcome.",
	}, []string{"outcome"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "misepo",
		Subsystem: "billing",
		Name:      "webhook_events_total",
		Help:      "Billing webhook events by type and outcome.",
	}, []string{"event_type", "outcome"})
)
