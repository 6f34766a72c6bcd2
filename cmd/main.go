// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"ecoroute/internal/api"
	"ecoroute/internal/config"
	"ecoroute/internal/iplocate"
	"ecoroute/internal/logger"
	"ecoroute/internal/metrics"
	"ecoroute/internal/middleware"
	"ecoroute/internal/migrate"
	"ecoroute/internal/points"
	"ecoroute/internal/store"
	"ecoroute/internal/utils"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")

	cfg, err := config.Load()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	l.Debug("config_loaded", "env", cfg.Environment, "api_base", cfg.APIBase, "source", cfg.Points.Source)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opt := api.Options{
		LRUSize:    cfg.Cache.LRUSize,
		CacheTTL:   cfg.Cache.TTL,
		StatsDedup: cfg.Cache.StatsDedup,
		MaxKm:      cfg.MaxKm,
		AdminToken: cfg.AdminToken,
	}

	// 数据库：可选；作为数据源（POINTS_SOURCE=postgres）或仅用于查询统计
	var st *store.Store
	if cfg.Postgres {
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			l.Error("db_open_error", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			l.Error("db_ping_error", "err", err)
		} else {
			l.Info("db_ping_ok")
		}
		if err := migrate.EnsureSchema(db); err != nil {
			l.Error("schema_error", "err", err)
			os.Exit(1)
		}
		st = store.AttachDB(db)
		opt.Stats = st
	} else {
		l.Info("db_disabled")
	}

	if cfg.Redis {
		if rc := utils.OpenRedisFromEnv(); rc != nil {
			if err := rc.Ping(ctx).Err(); err != nil {
				l.Error("redis_ping_error", "err", err)
			} else {
				l.Info("redis_ping_ok")
			}
			defer rc.Close()
			opt.Redis = rc
		}
	}
	if opt.Redis == nil {
		l.Info("redis_disabled")
	}

	if cfg.GeoIPPath != "" {
		if loc, err := iplocate.Open(cfg.GeoIPPath); err == nil {
			defer loc.Close()
			opt.Locator = loc
		} else {
			l.Error("geoip_open_error", "path", cfg.GeoIPPath, "err", err)
		}
	}

	var src points.Source
	switch cfg.Points.Source {
	case config.SourcePostgres:
		src = st
	default:
		src = points.FromPaths(cfg.Points.Paths)
	}
	holder := points.NewHolder(src)
	// 首次加载失败不退出：以空索引提供服务，/nearest 返回未命中，等待重载
	if err := holder.Reload(ctx); err != nil {
		l.Error("points_initial_load_error", "err", err)
	}
	points.StartReloadLoop(ctx, holder, cfg.Points.ReloadInterval)
	opt.Holder = holder

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(opt)
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, apiMux))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.RateLimit(cfg.RateLimit)(handler)
	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		l.Info("server_shutdown")
		_ = s.Shutdown(shutdownCtx)
	}()

	if cfg.TLS.Enabled {
		if err := utils.EnsureSelfSignedCert(cfg.TLS.CertPath, cfg.TLS.KeyPath, "ecoroute.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLS.CertPath)
		err = s.ListenAndServeTLS(cfg.TLS.CertPath, cfg.TLS.KeyPath)
	} else {
		l.Info("listening", "addr", cfg.Addr)
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("server_error", "err", err)
		os.Exit(1)
	}
}
