package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ecoroute/internal/config"
	"ecoroute/internal/logger"
	"ecoroute/internal/points"

	"github.com/joho/godotenv"
)

// 文档注释：命令行最近点查询
// 背景：运维核对数据集时无需启动服务；读取 POINTS_PATHS 构建索引，对 QUERY_LAT/QUERY_LNG 查询并输出 JSON。
// 约束：可选 QUERY_DISTRICT 限定分组；坐标非法时以非零码退出。
func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()

	lat, err1 := strconv.ParseFloat(strings.TrimSpace(os.Getenv("QUERY_LAT")), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(os.Getenv("QUERY_LNG")), 64)
	if err1 != nil || err2 != nil {
		l.Error("query_coord_missing", "hint", "set QUERY_LAT and QUERY_LNG")
		os.Exit(2)
	}
	paths := []string{config.DefaultPointsPath}
	if s := os.Getenv("POINTS_PATHS"); s != "" {
		paths = config.SplitList(s)
	}
	if len(paths) == 0 {
		l.Error("points_paths_empty")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ix, err := points.Load(ctx, points.FromPaths(paths))
	if err != nil {
		l.Error("points_read_error", "paths", paths, "err", err)
		os.Exit(1)
	}
	if d := os.Getenv("QUERY_DISTRICT"); d != "" {
		ix = ix.InGroup(d)
	}
	res, err := ix.Nearest(lat, lng)
	if err != nil {
		l.Error("query_invalid", "err", err)
		os.Exit(2)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
