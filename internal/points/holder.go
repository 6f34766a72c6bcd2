package points

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ecoroute/internal/logger"
	"ecoroute/internal/metrics"
	"ecoroute/internal/nearest"
)

// 文档注释：索引快照持有者
// 背景：索引构建后只读；重新加载时整体替换指针，读路径无锁，进行中的查询继续使用旧快照。
// 约束：Load 永不返回 nil（未加载时返回空索引）；重载失败保留旧快照；重载串行执行，后读取的数据后安装。
type Holder struct {
	src    Source
	cur    atomic.Pointer[nearest.Index]
	reload sync.Mutex
}

func NewHolder(src Source) *Holder {
	h := &Holder{src: src}
	h.cur.Store(nearest.FromRecords(nil))
	return h
}

func (h *Holder) Load() *nearest.Index { return h.cur.Load() }

// Set 直接替换快照（测试与导入工具使用）
func (h *Holder) Set(ix *nearest.Index) {
	if ix == nil {
		ix = nearest.FromRecords(nil)
	}
	h.cur.Store(ix)
	metrics.IndexPoints.Set(float64(ix.Len()))
}

// Reload 从数据源重新构建并切换
func (h *Holder) Reload(ctx context.Context) error {
	h.reload.Lock()
	defer h.reload.Unlock()
	ix, err := Load(ctx, h.src)
	if err != nil {
		metrics.ReloadTotal.WithLabelValues("error").Inc()
		logger.L().Error("points_reload_error", "err", err, "keep_version", h.Load().Version())
		return err
	}
	h.Set(ix)
	metrics.ReloadTotal.WithLabelValues("ok").Inc()
	logger.L().Info("points_reload_ok", "points", ix.Len(), "version", ix.Version())
	return nil
}

// 文档注释：周期性重载
// 背景：数据源（CSV/URL/数据库）可能被运维更新；按固定间隔刷新，错误由日志记录，循环继续。
// 约束：interval<=0 时不启动；ctx 取消时退出。
func StartReloadLoop(ctx context.Context, h *Holder, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_ = h.Reload(ctx)
			}
		}
	}()
}
