package metrics

import "time"

// NopMetrics discards everything. Used in tests and when metrics are off.
type NopMetrics struct{}

func NewNopMetrics() *NopMetrics { return &NopMetrics{} }

func (m *NopMetrics) IncAction(kind, result string)                    {}
func (m *NopMetrics) IncSponsoredFallback(reason string)               {}
func (m *NopMetrics) IncCapabilityProbe(outcome string)                {}
func (m *NopMetrics) IncNotification(result string)                    {}
func (m *NopMetrics) IncReadError(query string)                        {}
func (m *NopMetrics) ObserveReadLatency(query string, d time.Duration) {}
func (m *NopMetrics) SetCooldownRemaining(d time.Duration)             {}
func (m *NopMetrics) SetWSClients(n int)                               {}
