package nearest

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// 文档注释：最近收集点索引（构建一次、多次查询）
// 背景：数据集每次会话只加载一次，查询为纯函数；构建后不再修改，因此并发查询无需加锁。
// 约束：线性扫描 O(N)，适用于数千点量级；如替换为空间索引，需保持"先插入者胜"与 Haversine(6371km) 不变。
type Index struct {
	points []GeoPoint
	info   buildInfo
}

// 文档注释：从文本记录构建索引
// 背景：经纬度任一缺失、无法解析、非有限或越界的记录被静默丢弃，单行脏数据不影响整体加载。
// 约束：保持输入顺序；未显式给出 ID 的记录按"保留序号"分配 "C-<n>"（计数基于过滤后的序列）。
func FromRecords(records []RawRecord) *Index {
	pts := make([]GeoPoint, 0, len(records))
	for _, r := range records {
		lat, ok := parseCoord(r.Latitude)
		if !ok {
			continue
		}
		lng, ok := parseCoord(r.Longitude)
		if !ok {
			continue
		}
		if !validCoord(lat, lng) {
			continue
		}
		id := strings.TrimSpace(r.ID)
		if id == "" {
			id = positionalID(len(pts))
		}
		pts = append(pts, GeoPoint{ID: id, Lat: lat, Lng: lng, Label: r.Label, Group: r.Group})
	}
	return build(pts)
}

// New 从已解析的点构建索引，过滤规则与 FromRecords 相同
func New(points []GeoPoint) *Index {
	pts := make([]GeoPoint, 0, len(points))
	for _, p := range points {
		if !validCoord(p.Lat, p.Lng) {
			continue
		}
		if p.ID == "" {
			p.ID = positionalID(len(pts))
		}
		pts = append(pts, p)
	}
	return build(pts)
}

func positionalID(n int) string { return "C-" + strconv.Itoa(n) }

func parseCoord(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func build(pts []GeoPoint) *Index {
	return &Index{points: pts, info: buildInfo{builtAt: time.Now(), version: digest(pts)}}
}

// 内容摘要：FNV-64a(ID + 坐标位)，用作缓存键命名空间
func digest(pts []GeoPoint) string {
	h := fnv.New64a()
	var buf [8]byte
	for _, p := range pts {
		h.Write([]byte(p.ID))
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(p.Lat))
		h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(p.Lng))
		h.Write(buf[:])
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// 文档注释：最近点查询
// 背景：对全部点计算一次 Haversine 距离并保留最小值；仅在严格小于时替换，等距时先出现者胜。
// 返回：空索引返回 Found=false 且无错误；坐标为 NaN/Inf 时返回 ErrInvalidQuery。
func (ix *Index) Nearest(lat, lng float64) (QueryResult, error) {
	if !finite(lat) || !finite(lng) {
		return QueryResult{}, fmt.Errorf("%w: lat=%v lng=%v", ErrInvalidQuery, lat, lng)
	}
	if ix == nil {
		return QueryResult{}, nil
	}
	best := -1
	bestD := math.Inf(1)
	for i := range ix.points {
		p := &ix.points[i]
		d := Haversine(lat, lng, p.Lat, p.Lng)
		if d < bestD {
			bestD = d
			best = i
		}
	}
	if best < 0 {
		return QueryResult{}, nil
	}
	return QueryResult{Point: ix.points[best], DistanceKm: bestD, Found: true}, nil
}

func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.points)
}

// At 返回第 i 个点（构建顺序）
func (ix *Index) At(i int) GeoPoint { return ix.points[i] }

// Points 返回点集副本，调用方修改不影响索引
func (ix *Index) Points() []GeoPoint {
	if ix == nil {
		return nil
	}
	out := make([]GeoPoint, len(ix.points))
	copy(out, ix.points)
	return out
}

func (ix *Index) Version() string {
	if ix == nil {
		return ""
	}
	return ix.info.version
}

func (ix *Index) BuiltAt() time.Time {
	if ix == nil {
		return time.Time{}
	}
	return ix.info.builtAt
}

// 文档注释：区（分组）列表
// 背景：前端按区筛选收集点；返回去重后按字典序排序的非空分组名。
func (ix *Index) Districts() []string {
	if ix == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, p := range ix.points {
		if p.Group == "" {
			continue
		}
		if _, ok := seen[p.Group]; ok {
			continue
		}
		seen[p.Group] = struct{}{}
		out = append(out, p.Group)
	}
	sort.Strings(out)
	return out
}

// 文档注释：按分组取子索引
// 约束：精确匹配分组名；保留原有 ID 与相对顺序，因此子索引上的等距判定与全量索引一致。
func (ix *Index) InGroup(group string) *Index {
	if ix == nil {
		return build(nil)
	}
	var pts []GeoPoint
	for _, p := range ix.points {
		if p.Group == group {
			pts = append(pts, p)
		}
	}
	return build(pts)
}
