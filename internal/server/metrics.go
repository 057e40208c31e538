package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vkopt-message-parser/internal/cache"
)

// metrics хранит собственный реестр, чтобы несколько серверов в одном процессе
// (например, в тестах) не конфликтовали при регистрации.
type metrics struct {
	registry     *prometheus.Registry
	tasks        *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	duration     prometheus.Histogram
	messages     prometheus.Counter
	inFlight     prometheus.Gauge
}

func newMetrics(cacheStore *cache.CacheStore) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vkparse",
			Name:      "tasks_total",
			Help:      "Conversion tasks by final status.",
		}, []string{"status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vkparse",
			Name:      "cache_lookups_total",
			Help:      "Lookups of converted results by hash.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vkparse",
			Name:      "conversion_duration_seconds",
			Help:      "Time spent converting one uploaded file set.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vkparse",
			Name:      "messages_converted_total",
			Help:      "Top-level messages in completed conversions.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vkparse",
			Name:      "tasks_in_flight",
			Help:      "Conversions currently running.",
		}),
	}

	m.registry.MustRegister(
		m.tasks,
		m.cacheLookups,
		m.duration,
		m.messages,
		m.inFlight,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "vkparse",
			Name:      "cache_entries",
			Help:      "Results held in the cache, expired ones included until cleanup.",
		}, func() float64 { return float64(cacheStore.Stats().Entries) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "vkparse",
			Name:      "cache_evictions_total",
			Help:      "Results evicted to stay within cache_max_entries.",
		}, func() float64 { return float64(cacheStore.Stats().Evictions) }),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
