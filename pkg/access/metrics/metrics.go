// Package metrics defines the instrumentation points of the access core.
// The Prometheus-backed implementation lives in pkg/metrics/prometheus;
// components accept the interface so tests can run without a registry.
package metrics

// Metrics receives counters from the access core.
type Metrics interface {
	// RoutePassIssued is called once per signed Route Pass.
	RoutePassIssued()

	// FallbackExchange is called once per fallback exchange attempt with
	// result "ok", "rejected", or "error".
	FallbackExchange(result string)

	// DenylistCommand is called once per unicast command with cmd_type
	// "DENYLIST_ADD" or "DENYLIST_REMOVE".
	DenylistCommand(cmdType string)

	// EntriesPruned is called after each sweep with the rows removed.
	EntriesPruned(count int64)

	// CascadeQueueDepth is called as events enter and leave the cascade
	// queue.
	CascadeQueueDepth(delta int)
}

// Nop is a Metrics implementation that discards everything.
type Nop struct{}

// NewNop returns a no-op Metrics.
func NewNop() *Nop { return &Nop{} }

func (*Nop) RoutePassIssued()        {}
func (*Nop) FallbackExchange(string) {}
func (*Nop) DenylistCommand(string)  {}
func (*Nop) EntriesPruned(int64)     {}
func (*Nop) CascadeQueueDepth(int)   {}

var _ Metrics = (*Nop)(nil)
