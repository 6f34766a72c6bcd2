// 包 config：集中读取服务运行参数（环境变量 + 默认值）；.env 由入口通过 godotenv 预先加载
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr        string
	APIBase     string
	Environment string
	AdminToken  string
	Points      PointsConfig
	Cache       CacheConfig
	RateLimit   RateLimitConfig
	TLS         TLSConfig
	Postgres    bool
	Redis       bool
	GeoIPPath   string
	MaxKm       float64
}

// PointsConfig 数据源：file 读取 Paths（本地或 URL），postgres 读取 _collection_points
type PointsConfig struct {
	Source         string
	Paths          []string
	ReloadInterval time.Duration
}

type CacheConfig struct {
	LRUSize    int
	TTL        time.Duration
	StatsDedup time.Duration
}

type RateLimitConfig struct {
	Enabled bool
	QPS     float64
	Burst   int
}

type TLSConfig struct {
	Enabled  bool
	CertPath string
	KeyPath  string
}

const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// DefaultPointsPath 原始数据集的默认落地位置
var DefaultPointsPath = filepath.Join("data", "points", "tachos_lima_callao_con_direcciones.csv")

func Load() (Config, error) {
	cfg := Config{
		Addr:        getEnv("ADDR", ":8080"),
		APIBase:     getEnv("API_BASE", "/api"),
		Environment: getEnv("APP_ENV", "development"),
		AdminToken:  os.Getenv("ADMIN_TOKEN"),
		Points: PointsConfig{
			Source:         strings.ToLower(getEnv("POINTS_SOURCE", SourceFile)),
			Paths:          SplitList(getEnv("POINTS_PATHS", DefaultPointsPath)),
			ReloadInterval: time.Duration(getEnvInt("POINTS_RELOAD_INTERVAL_S", 0)) * time.Second,
		},
		Cache: CacheConfig{
			LRUSize:    getEnvInt("NEAREST_LRU_SIZE", 4096),
			TTL:        time.Duration(getEnvInt("NEAREST_CACHE_TTL_S", 3600)) * time.Second,
			StatsDedup: time.Duration(getEnvInt("STATS_DEDUP_WINDOW_S", 60)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", false),
			QPS:     getEnvFloat("RATE_LIMIT_QPS", 200),
			Burst:   getEnvInt("RATE_LIMIT_BURST", 0),
		},
		TLS: TLSConfig{
			Enabled:  getEnvBool("TLS_ENABLE", false),
			CertPath: getEnv("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt")),
			KeyPath:  getEnv("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key")),
		},
		Postgres:  getEnvBool("PG_ENABLE", false),
		Redis:     getEnvBool("REDIS_ENABLE", false),
		GeoIPPath: os.Getenv("GEOIP_DB_PATH"),
		MaxKm:     getEnvFloat("NEAREST_MAX_KM", 0),
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = int(cfg.RateLimit.QPS)
	}
	if cfg.Points.Source == SourcePostgres {
		cfg.Postgres = true
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Points.Source {
	case SourceFile:
		if len(c.Points.Paths) == 0 {
			return fmt.Errorf("POINTS_PATHS is empty")
		}
	case SourcePostgres:
	default:
		return fmt.Errorf("POINTS_SOURCE must be %q or %q, got %q", SourceFile, SourcePostgres, c.Points.Source)
	}
	if c.Cache.LRUSize <= 0 {
		return fmt.Errorf("NEAREST_LRU_SIZE must be positive")
	}
	if c.RateLimit.Enabled && c.RateLimit.QPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_QPS must be positive")
	}
	if c.MaxKm < 0 {
		return fmt.Errorf("NEAREST_MAX_KM must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// SplitList 按逗号切分并去除空白与空项
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
