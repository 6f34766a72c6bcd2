package nearest

import "math"

// EarthRadiusKm 地球平均半径（千米）
const EarthRadiusKm = 6371.0

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// 文档注释：球面距离（Haversine），返回千米
// 背景：先将四个坐标统一换算为弧度再求差，保证与前端地图展示的距离一致。
// 约束：不校验取值范围；a 截断到 [0,1]，避免对跖点附近舍入误差导致 NaN。
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	rLat1, rLng1 := toRad(lat1), toRad(lng1)
	rLat2, rLng2 := toRad(lat2), toRad(lng2)
	dLat := rLat2 - rLat1
	dLng := rLng2 - rLng1
	sLat := math.Sin(dLat / 2)
	sLng := math.Sin(dLng / 2)
	a := sLat*sLat + math.Cos(rLat1)*math.Cos(rLat2)*sLng*sLng
	if a > 1 {
		a = 1
	} else if a < 0 {
		a = 0
	}
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// 合法坐标：有限且在经纬度取值范围内
func validCoord(lat, lng float64) bool {
	if !finite(lat) || !finite(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
