// 包 nearest：收集点最近邻索引（只读快照 + 大圆距离线性扫描）
package nearest

import (
	"errors"
	"time"
)

// 文档注释：收集点（WGS84）
// 背景：承载一个垃圾收集点的坐标与展示信息；Label/Group 原样携带，索引不做解释。
// 约束：Lat ∈ [-90, 90]，Lng ∈ [-180, 180]，均为有限值；ID 唯一性由调用方负责。
type GeoPoint struct {
	ID    string  `json:"id"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label,omitempty"`
	Group string  `json:"group,omitempty"`
}

// 文档注释：原始输入行（文本）
// 背景：CSV/JSON/数据库均先归一为文本记录，统一由 FromRecords 做解析与过滤。
type RawRecord struct {
	ID        string
	Latitude  string
	Longitude string
	Label     string
	Group     string
}

// 查询结果：Found=false 表示索引为空（无匹配），不是错误
type QueryResult struct {
	Point      GeoPoint `json:"point"`
	DistanceKm float64  `json:"distance_km"`
	Found      bool     `json:"found"`
}

// ErrInvalidQuery 查询坐标非有限值（NaN/Inf）或无法解析
var ErrInvalidQuery = errors.New("invalid query coordinate")

// 构建元数据：供缓存命名空间与 /stats 输出
type buildInfo struct {
	builtAt time.Time
	version string
}
