package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every workdist metric name.
const DefaultNamespace = "workdist"

// Config holds configuration for metrics collection.
type Config struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool

	// Registry is the Prometheus registry to use. If nil, uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Namespace overrides the default "workdist" namespace for metrics.
	Namespace string

	// Labels are additional labels to add to all metrics.
	Labels prometheus.Labels
}

// DefaultConfig returns a default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Registry:  prometheus.DefaultRegisterer,
		Namespace: DefaultNamespace,
		Labels:    nil,
	}
}

// Build returns a Registry for cfg, or nil when metrics are disabled.
func (cfg Config) Build() *Registry {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Registry == nil || cfg.Registry == prometheus.DefaultRegisterer {
		if (cfg.Namespace == "" || cfg.Namespace == DefaultNamespace) && len(cfg.Labels) == 0 {
			return DefaultRegistry
		}
	}
	return NewRegistryWithConfig(cfg)
}
