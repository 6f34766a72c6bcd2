// 包 api：最近收集点查询服务与 HTTP 路由
package api

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"ecoroute/internal/logger"
	"ecoroute/internal/metrics"
	"ecoroute/internal/nearest"
	"ecoroute/internal/points"
	"ecoroute/internal/store"

	"github.com/redis/go-redis/v9"
)

// Locator 访问者 IP 定位（iplocate.Locator 实现）
type Locator interface {
	Locate(ip string) (lat, lng float64, ok bool)
}

// Stats 查询统计持久化（store.Store 实现）
type Stats interface {
	IncrStats(ctx context.Context, found bool) error
	GetTotals(ctx context.Context) (*store.Totals, error)
}

// Options 路由与服务依赖；Redis/Stats/Locator 可为 nil
type Options struct {
	Holder     *points.Holder
	Redis      *redis.Client
	Stats      Stats
	Locator    Locator
	LRUSize    int
	CacheTTL   time.Duration
	MaxKm      float64
	AdminToken string
	// StatsDedup 统计去重窗口（需 Redis）；<=0 关闭
	StatsDedup time.Duration
}

const defaultCacheTTL = 3600 * time.Second

// 文档注释：最近点查询服务
// 背景：在只读索引前叠加两级缓存（进程内 LRU → Redis），热点坐标不重复扫描；缓存后端故障只降级不失败。
// 约束：缓存键 = 索引版本 + 分组 + 全精度坐标，命中结果与直接查询逐位一致；max_km 在缓存之后应用。
type Service struct {
	holder *points.Holder
	rc     *redis.Client
	lru    *LRU
	ttl    time.Duration
	stats  Stats
	dedup  time.Duration
}

func NewService(opt Options) *Service {
	ttl := opt.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	size := opt.LRUSize
	if size <= 0 {
		size = 4096
	}
	return &Service{holder: opt.Holder, rc: opt.Redis, lru: NewLRU(size, ttl), ttl: ttl, stats: opt.Stats, dedup: opt.StatsDedup}
}

func cacheKey(version, district string, lat, lng float64) string {
	return "nearest:" + version + ":" + district + ":" +
		strconv.FormatFloat(lat, 'g', -1, 64) + ":" + strconv.FormatFloat(lng, 'g', -1, 64)
}

// Index 当前快照；district 非空时返回该分组子索引
func (s *Service) Index(district string) *nearest.Index {
	ix := s.holder.Load()
	if district == "" {
		return ix
	}
	return ix.InGroup(district)
}

// Nearest 查询最近收集点；maxKm>0 时超出距离的结果视为未命中
func (s *Service) Nearest(ctx context.Context, lat, lng float64, district string, maxKm float64) (nearest.QueryResult, error) {
	tBegin := time.Now()
	metrics.NearestRequestsTotal.Inc()
	defer func() { metrics.NearestDurationMs.Observe(float64(time.Since(tBegin).Microseconds()) / 1000) }()

	res, err := s.lookup(ctx, lat, lng, district)
	if err != nil {
		metrics.NearestInvalidTotal.Inc()
		return nearest.QueryResult{}, err
	}
	if res.Found && maxKm > 0 && res.DistanceKm > maxKm {
		logger.L().Debug("nearest_beyond_max", "distance_km", res.DistanceKm, "max_km", maxKm)
		res = nearest.QueryResult{}
	}
	if !res.Found {
		metrics.NearestEmptyTotal.Inc()
	}
	return res, nil
}

// record 持久化查询统计；失败只记日志
func (s *Service) record(ctx context.Context, visitor, district string, lat, lng float64, found bool) {
	if s.stats == nil {
		return
	}
	first, err := firstSeen(ctx, s.rc, s.dedup, visitor, district, lat, lng)
	if err != nil {
		logger.L().Warn("stats_dedup_error", "err", err)
	}
	if !first {
		logger.L().Debug("stats_dedup_skip", "visitor", visitor)
		return
	}
	if err := s.stats.IncrStats(ctx, found); err != nil {
		logger.L().Warn("stats_incr_error", "err", err)
	}
}

func (s *Service) lookup(ctx context.Context, lat, lng float64, district string) (nearest.QueryResult, error) {
	full := s.holder.Load()
	key := cacheKey(full.Version(), district, lat, lng)
	if v, ok := s.lru.Get(key); ok {
		metrics.CacheHitsTotal.WithLabelValues("lru").Inc()
		return v, nil
	}
	metrics.CacheMissesTotal.WithLabelValues("lru").Inc()
	if s.rc != nil {
		if raw, err := s.rc.Get(ctx, key).Result(); err == nil {
			var v nearest.QueryResult
			if json.Unmarshal([]byte(raw), &v) == nil {
				metrics.CacheHitsTotal.WithLabelValues("redis").Inc()
				s.lru.Set(key, v)
				return v, nil
			}
		} else if err != redis.Nil {
			logger.L().Warn("redis_get_error", "err", err)
		}
		metrics.CacheMissesTotal.WithLabelValues("redis").Inc()
	}

	ix := full
	if district != "" {
		ix = full.InGroup(district)
	}
	res, err := ix.Nearest(lat, lng)
	if err != nil {
		return nearest.QueryResult{}, err
	}
	logger.L().Debug("nearest_query", "lat", lat, "lng", lng, "district", district, "found", res.Found, "id", res.Point.ID, "distance_km", res.DistanceKm)
	s.lru.Set(key, res)
	if s.rc != nil {
		b, _ := json.Marshal(res)
		if err := s.rc.Set(ctx, key, string(b), s.ttl).Err(); err != nil {
			logger.L().Warn("redis_set_error", "err", err)
		}
	}
	return res, nil
}
