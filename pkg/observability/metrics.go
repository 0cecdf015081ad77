package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the registry core.
type Metrics struct {
	// Policy metrics
	PolicyDecisionsTotal *prometheus.CounterVec // entity, permission, decision

	// Repository metrics
	StorageOperationsTotal *prometheus.CounterVec // entity, operation
	StorageErrorsTotal     *prometheus.CounterVec // entity, operation

	// Tenant config cache metrics
	ConfigCacheHitsTotal   *prometheus.CounterVec // tenant
	ConfigCacheMissesTotal *prometheus.CounterVec // tenant
}

// NewMetrics creates and registers all metrics on the given registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		PolicyDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_policy_decisions_total",
				Help: "Access policy decisions by entity, permission and outcome",
			},
			[]string{"entity", "permission", "decision"},
		),
		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_storage_operations_total",
				Help: "Repository operations by entity and operation",
			},
			[]string{"entity", "operation"},
		),
		StorageErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_storage_errors_total",
				Help: "Constraint violations surfaced as StorageError",
			},
			[]string{"entity", "operation"},
		),
		ConfigCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_config_cache_hits_total",
				Help: "Tenant config cache hits",
			},
			[]string{"tenant"},
		),
		ConfigCacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_config_cache_misses_total",
				Help: "Tenant config cache misses",
			},
			[]string{"tenant"},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.PolicyDecisionsTotal,
			m.StorageOperationsTotal,
			m.StorageErrorsTotal,
			m.ConfigCacheHitsTotal,
			m.ConfigCacheMissesTotal,
		)
	}
	return m
}

// RecordPolicyDecision increments the policy decision counter. Safe on a
// nil receiver so metrics stay optional for library consumers.
func (m *Metrics) RecordPolicyDecision(entity, permission string, allowed bool) {
	if m == nil {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.PolicyDecisionsTotal.WithLabelValues(entity, permission, decision).Inc()
}

// RecordStorageOperation increments the repository operation counter.
func (m *Metrics) RecordStorageOperation(entity, operation string) {
	if m == nil {
		return
	}
	m.StorageOperationsTotal.WithLabelValues(entity, operation).Inc()
}

// RecordStorageError increments the constraint violation counter.
func (m *Metrics) RecordStorageError(entity, operation string) {
	if m == nil {
		return
	}
	m.StorageErrorsTotal.WithLabelValues(entity, operation).Inc()
}

// RecordCacheHit increments the tenant config cache hit counter.
func (m *Metrics) RecordCacheHit(tenant string) {
	if m == nil {
		return
	}
	m.ConfigCacheHitsTotal.WithLabelValues(tenant).Inc()
}

// RecordCacheMiss increments the tenant config cache miss counter.
func (m *Metrics) RecordCacheMiss(tenant string) {
	if m == nil {
		return
	}
	m.ConfigCacheMissesTotal.WithLabelValues(tenant).Inc()
}
