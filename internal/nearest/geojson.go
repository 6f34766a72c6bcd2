package nearest

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 文档注释：点集包围盒（经度为 X、纬度为 Y）
// 背景：前端切换区时按包围盒自适应地图视野；空索引返回 false。
func (ix *Index) Bounds() (orb.Bound, bool) {
	if ix.Len() == 0 {
		return orb.Bound{}, false
	}
	b := orb.Point{ix.points[0].Lng, ix.points[0].Lat}.Bound()
	for _, p := range ix.points[1:] {
		b = b.Extend(orb.Point{p.Lng, p.Lat})
	}
	return b, true
}

func pointFeature(p GeoPoint) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{p.Lng, p.Lat})
	f.ID = p.ID
	f.Properties["id"] = p.ID
	if p.Label != "" {
		f.Properties["label"] = p.Label
	}
	if p.Group != "" {
		f.Properties["group"] = p.Group
	}
	return f
}

// FeatureCollection 将全部收集点导出为 GeoJSON Point 要素
func (ix *Index) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if ix == nil {
		return fc
	}
	for _, p := range ix.points {
		fc.Append(pointFeature(p))
	}
	return fc
}

// 文档注释：查询结果的 GeoJSON 叠加层
// 背景：地图上需同时绘制查询点、最近收集点与二者之间的连线；连线属性携带 distance_km。
// 约束：未命中时仅包含查询点。
func ResultGeoJSON(lat, lng float64, res QueryResult) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	q := geojson.NewFeature(orb.Point{lng, lat})
	q.Properties["role"] = "query"
	fc.Append(q)
	if !res.Found {
		return fc
	}
	m := pointFeature(res.Point)
	m.Properties["role"] = "nearest"
	fc.Append(m)
	line := geojson.NewFeature(orb.LineString{{lng, lat}, {res.Point.Lng, res.Point.Lat}})
	line.Properties["role"] = "connection"
	line.Properties["distance_km"] = res.DistanceKm
	fc.Append(line)
	return fc
}
