// Package metrics exposes daemon counters. Components depend on the Metrics
// interface; the Prometheus implementation is wired by the serve command.
package metrics

import "time"

// Metrics is implemented by PrometheusMetrics and NopMetrics.
type Metrics interface {
	// IncAction counts a buy/hatch/sell/sponsored outcome ("submitted", "failed", "busy", ...).
	IncAction(kind, result string)
	IncSponsoredFallback(reason string)
	IncCapabilityProbe(outcome string)
	IncNotification(result string)
	IncReadError(query string)
	ObserveReadLatency(query string, d time.Duration)
	SetCooldownRemaining(d time.Duration)
	SetWSClients(n int)
}
