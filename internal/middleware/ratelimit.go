package middleware

import (
	"net/http"

	"ecoroute/internal/config"
	"ecoroute/internal/logger"

	"golang.org/x/time/rate"
)

// 文档注释：令牌桶限流中间件
// 背景：在流量峰值时对入口整体限速，避免索引扫描与缓存后端被过载；由 RATE_LIMIT_* 配置开关与速率。
// 约束：不排队，超出即返回 429；未启用时原样返回 next。
func RateLimit(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled {
			return next
		}
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		lim := rate.NewLimiter(rate.Limit(cfg.QPS), burst)
		logger.L().Info("rate_limit_enabled", "qps", cfg.QPS, "burst", burst)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.Allow() {
				logger.L().Debug("rate_limited", "path", r.URL.Path)
				w.Header().Set("retry-after", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
