// 包 iplocate：基于 MaxMind GeoIP2/GeoLite2 City 库的调用方坐标定位
package iplocate

import (
	"errors"
	"net"
	"strings"

	"ecoroute/internal/logger"
	"ecoroute/internal/metrics"

	"github.com/oschwald/geoip2-golang"
)

// ErrNoDatabase 未配置 mmdb 路径
var ErrNoDatabase = errors.New("geoip database path is empty")

// 文档注释：IP → 近似坐标
// 背景：/nearest 未携带经纬度时，以访问者 IP 的城市级坐标作为查询点；精度为城市级，仅作兜底。
// 约束：Locator 为 nil 时 Locate 恒返回未命中；库中无坐标（0,0 且无精度半径）视为未命中。
type Locator struct {
	r *geoip2.Reader
}

func Open(path string) (*Locator, error) {
	if path == "" {
		return nil, ErrNoDatabase
	}
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	logger.L().Info("geoip_open_ok", "path", path, "type", r.Metadata().DatabaseType)
	return &Locator{r: r}, nil
}

func (l *Locator) Close() error {
	if l == nil || l.r == nil {
		return nil
	}
	return l.r.Close()
}

func (l *Locator) Locate(ip string) (lat, lng float64, ok bool) {
	if l == nil || l.r == nil {
		return 0, 0, false
	}
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil {
		metrics.GeoIPLookupsTotal.WithLabelValues("invalid").Inc()
		return 0, 0, false
	}
	rec, err := l.r.City(addr)
	if err != nil {
		metrics.GeoIPLookupsTotal.WithLabelValues("error").Inc()
		logger.L().Debug("geoip_lookup_error", "ip", ip, "err", err)
		return 0, 0, false
	}
	loc := rec.Location
	if loc.Latitude == 0 && loc.Longitude == 0 && loc.AccuracyRadius == 0 {
		metrics.GeoIPLookupsTotal.WithLabelValues("miss").Inc()
		return 0, 0, false
	}
	metrics.GeoIPLookupsTotal.WithLabelValues("hit").Inc()
	logger.L().Debug("geoip_lookup", "ip", ip, "lat", loc.Latitude, "lng", loc.Longitude, "radius_km", loc.AccuracyRadius)
	return loc.Latitude, loc.Longitude, true
}
