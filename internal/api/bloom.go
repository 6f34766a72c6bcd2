package api

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	bloomBits   = 1 << 20
	bloomHashes = 4
)

// 文档注释：计算布隆过滤器位置
// 背景：FNV64a 加序号扰动生成 k 个位置，用于 GetBit/SetBit。
func bloomPositions(data []byte, m uint32, k int) []int64 {
	pos := make([]int64, k)
	for i := 0; i < k; i++ {
		h := fnv.New64a()
		h.Write([]byte{byte(i)})
		h.Write(data)
		pos[i] = int64(uint32(h.Sum64() % uint64(m)))
	}
	return pos
}

// 文档注释：检查并写入布隆过滤器位图
// 返回：true 表示首次见到（已写入位图）；false 表示窗口内已出现过。
// 异常：Redis 交互错误时返回 (true, err)；rc 为 nil 时恒为 true，不阻断主流程。
func bloomCheckAndSet(ctx context.Context, rc *redis.Client, key string, positions []int64, ttl time.Duration) (bool, error) {
	if rc == nil {
		return true, nil
	}
	seen := true
	for _, p := range positions {
		b, err := rc.GetBit(ctx, key, p).Result()
		if err != nil {
			return true, err
		}
		if b == 0 {
			seen = false
		}
	}
	if seen {
		return false, nil
	}
	for _, p := range positions {
		_, _ = rc.SetBit(ctx, key, p, 1).Result()
	}
	_ = rc.Expire(ctx, key, ttl).Err()
	return true, nil
}

// 文档注释：统计去重
// 背景：地图上反复点击同一位置会重复计数；同一访问者、同一分组、同一坐标在窗口内只计一次。
// 约束：按窗口起点分桶（键随窗口滚动），桶 TTL 为两个窗口；window<=0 或无 Redis 时不去重。
func firstSeen(ctx context.Context, rc *redis.Client, window time.Duration, visitor, district string, lat, lng float64) (bool, error) {
	if rc == nil || window <= 0 {
		return true, nil
	}
	bucket := time.Now().UnixNano() / int64(window)
	key := "nearest:seen:" + strconv.FormatInt(bucket, 10)
	data := visitor + "|" + district + "|" + strconv.FormatFloat(lat, 'g', -1, 64) + "|" + strconv.FormatFloat(lng, 'g', -1, 64)
	return bloomCheckAndSet(ctx, rc, key, bloomPositions([]byte(data), bloomBits, bloomHashes), 2*window)
}
