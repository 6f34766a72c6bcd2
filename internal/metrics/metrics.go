package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	NearestRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ecoroute_nearest_requests_total",
		Help: "Total number of /nearest requests",
	})
	NearestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ecoroute_nearest_duration_ms",
		Help:    "Nearest query duration in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 20, 50, 100, 200},
	})
	NearestEmptyTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ecoroute_nearest_empty_results_total",
		Help: "Total number of nearest queries without a match",
	})
	NearestInvalidTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ecoroute_nearest_invalid_queries_total",
		Help: "Total number of rejected query coordinates",
	})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecoroute_cache_hits_total",
		Help: "Nearest result cache hits by layer",
	}, []string{"layer"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecoroute_cache_misses_total",
		Help: "Nearest result cache misses by layer",
	}, []string{"layer"})
	IndexPoints = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ecoroute_index_points",
		Help: "Number of collection points in the active index",
	})
	ReloadTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecoroute_reload_total",
		Help: "Dataset reloads by status",
	}, []string{"status"})
	GeoIPLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecoroute_geoip_lookups_total",
		Help: "Caller IP geolocation lookups by status",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(NearestRequestsTotal)
	prometheus.MustRegister(NearestDurationMs)
	prometheus.MustRegister(NearestEmptyTotal)
	prometheus.MustRegister(NearestInvalidTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(IndexPoints)
	prometheus.MustRegister(ReloadTotal)
	prometheus.MustRegister(GeoIPLookupsTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
