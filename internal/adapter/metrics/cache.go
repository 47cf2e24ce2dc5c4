package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics counts room lookups per cache layer ("l1" memory, "l2" redis).
type CacheMetrics struct {
	Hits   *prometheus.CounterVec
	Misses *prometheus.CounterVec
	Errors *prometheus.CounterVec
}

func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	const sub = "room_cache"
	m := &CacheMetrics{
		Hits:   counterVec(sub, "hits_total", "Room lookups served from a cache layer.", "layer"),
		Misses: counterVec(sub, "misses_total", "Room lookups a cache layer could not serve.", "layer"),
		Errors: counterVec(sub, "errors_total", "Cache layer backend failures.", "layer"),
	}
	reg.MustRegister(m.Hits, m.Misses, m.Errors)
	return m
}
