package runtime

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eclipse-openvehicle-api/openvehicle-api-sub012/pkg/logger"
)

// Option configures a Runtime at construction time. Mirrors the teacher's
// functional-options pattern (system/core/options.go: WithLogger, WithOrder,
// WithRegistry) narrowed to what this core's composition root needs.
type Option func(*Runtime)

// WithLogger overrides the default logger, the same role appLog plays in
// the teacher's application composition root.
func WithLogger(l *logger.Logger) Option {
	return func(rt *Runtime) {
		if l != nil {
			rt.log = l
		}
	}
}

// WithMetricsRegistry points the runtime's metrics recorder at reg instead
// of the package-level default for its ad hoc Counter/Gauge/Histogram
// metrics. The dedicated object, signal and trigger collectors stay
// registered on metrics.Registry.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(rt *Runtime) {
		if reg != nil {
			rt.metricsReg = reg
		}
	}
}

// WithOrder sets a preferred class enumeration order (by class name), which
// ClassOrder returns as given. It does not affect the Lifecycle
// Orchestrator's dependency-driven start/stop order, which is always
// computed from declared class dependencies regardless of this hint.
func WithOrder(classNames ...string) Option {
	return func(rt *Runtime) {
		rt.preferredOrder = append([]string{}, classNames...)
	}
}
