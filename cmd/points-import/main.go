package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"ecoroute/internal/config"
	"ecoroute/internal/logger"
	"ecoroute/internal/migrate"
	"ecoroute/internal/points"
	"ecoroute/internal/store"
	"ecoroute/internal/utils"

	"github.com/joho/godotenv"
)

// 文档注释：将收集点数据集导入 PostgreSQL
// 背景：服务以 POINTS_SOURCE=postgres 运行时从 _collection_points 读取；导入时固化 "C-<n>" 标识，之后的加载不再依赖源文件行序。
// 约束：整表替换；读取 POINTS_PATHS（逗号分隔，本地路径或 URL）；无有效点时拒绝写入，避免清空线上数据。
func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()

	paths := []string{config.DefaultPointsPath}
	if s := os.Getenv("POINTS_PATHS"); s != "" {
		paths = config.SplitList(s)
	}
	if len(paths) == 0 {
		l.Error("points_paths_empty")
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	ix, err := points.Load(ctx, points.FromPaths(paths))
	if err != nil {
		l.Error("points_read_error", "paths", paths, "err", err)
		os.Exit(1)
	}
	if ix.Len() == 0 {
		l.Error("points_import_empty", "paths", paths)
		os.Exit(1)
	}

	st, err := store.Open(utils.BuildPostgresDSNFromEnv())
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer st.Close()
	if err := migrate.EnsureSchema(st.DB()); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	if err := st.ReplacePoints(ctx, ix.Points()); err != nil {
		l.Error("points_import_error", "err", err)
		os.Exit(1)
	}
	l.Info("points_import_done", "points", ix.Len(), "districts", len(ix.Districts()), "version", ix.Version())
}
