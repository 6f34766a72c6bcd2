package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ecoroute/internal/logger"
	"ecoroute/internal/nearest"
)

type coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type nearestResponse struct {
	Query      coord             `json:"query"`
	Found      bool              `json:"found"`
	Point      *nearest.GeoPoint `json:"point,omitempty"`
	DistanceKm *float64          `json:"distance_km,omitempty"`
	District   string            `json:"district,omitempty"`
	LocatedBy  string            `json:"located_by"`
	Version    string            `json:"version"`
}

var (
	errMissingCoords = errors.New("lat and lng are required")
	errPartialCoords = errors.New("lat and lng must be given together")
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeGeoJSON(w http.ResponseWriter, v any) {
	w.Header().Set("content-type", "application/geo+json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func parseFloatParam(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New(name + " must be a finite number")
	}
	return v, nil
}

// 文档注释：解析查询坐标
// 背景：地图点击直接携带 lat/lng；二者都缺省时以访问者 IP 的城市坐标兜底（需配置 GeoIP 库）。
// 返回：坐标与来源（query|ip）；非数值/非有限值、只给一个、无法兜底时返回错误（400）。
func parseCoords(r *http.Request, loc Locator) (lat, lng float64, by string, err error) {
	q := r.URL.Query()
	ls, gs := q.Get("lat"), q.Get("lng")
	if gs == "" {
		gs = q.Get("lon")
	}
	switch {
	case ls == "" && gs == "":
		if loc != nil {
			if la, lo, ok := loc.Locate(getVisitorIP(r)); ok {
				return la, lo, "ip", nil
			}
		}
		return 0, 0, "", errMissingCoords
	case ls == "" || gs == "":
		return 0, 0, "", errPartialCoords
	}
	if lat, err = parseFloatParam("lat", ls); err != nil {
		return 0, 0, "", err
	}
	if lng, err = parseFloatParam("lng", gs); err != nil {
		return 0, 0, "", err
	}
	return lat, lng, "query", nil
}

// effectiveMaxKm 请求半径只能收窄服务端上限（NEAREST_MAX_KM>0 时），0 表示不额外限制
func effectiveMaxKm(configured, requested float64) float64 {
	if configured <= 0 {
		return requested
	}
	if requested <= 0 || requested > configured {
		return configured
	}
	return requested
}

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 API_BASE 前缀
func BuildRoutes(opt Options) *http.ServeMux {
	svc := NewService(opt)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /nearest", func(w http.ResponseWriter, r *http.Request) {
		lat, lng, by, err := parseCoords(r, opt.Locator)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		maxKm := opt.MaxKm
		if s := r.URL.Query().Get("max_km"); s != "" {
			req, err := parseFloatParam("max_km", s)
			if err != nil || req < 0 {
				writeError(w, http.StatusBadRequest, errors.New("max_km must be a non-negative number"))
				return
			}
			maxKm = effectiveMaxKm(opt.MaxKm, req)
		}
		district := r.URL.Query().Get("district")
		res, err := svc.Nearest(r.Context(), lat, lng, district, maxKm)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		svc.record(r.Context(), getVisitorIP(r), district, lat, lng, res.Found)
		if r.URL.Query().Get("format") == "geojson" {
			writeGeoJSON(w, nearest.ResultGeoJSON(lat, lng, res))
			return
		}
		out := nearestResponse{
			Query:     coord{Lat: lat, Lng: lng},
			Found:     res.Found,
			District:  district,
			LocatedBy: by,
			Version:   svc.holder.Load().Version(),
		}
		if res.Found {
			p, d := res.Point, res.DistanceKm
			out.Point, out.DistanceKm = &p, &d
		}
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("GET /points", func(w http.ResponseWriter, r *http.Request) {
		ix := svc.Index(r.URL.Query().Get("district"))
		if r.URL.Query().Get("format") == "geojson" {
			writeGeoJSON(w, ix.FeatureCollection())
			return
		}
		pts := ix.Points()
		if pts == nil {
			pts = []nearest.GeoPoint{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": len(pts), "points": pts})
	})

	mux.HandleFunc("GET /districts", func(w http.ResponseWriter, r *http.Request) {
		ds := svc.Index("").Districts()
		if ds == nil {
			ds = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"districts": ds})
	})

	mux.HandleFunc("GET /bounds", func(w http.ResponseWriter, r *http.Request) {
		b, ok := svc.Index(r.URL.Query().Get("district")).Bounds()
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("no points"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"min": b.Min, "max": b.Max})
	})

	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		ix := svc.holder.Load()
		m := map[string]any{
			"points":   ix.Len(),
			"version":  ix.Version(),
			"built_at": ix.BuiltAt().UTC().Format(time.RFC3339),
		}
		if opt.Stats != nil {
			if t, err := opt.Stats.GetTotals(r.Context()); err == nil {
				m["total"], m["empty"], m["today"] = t.Total, t.Empty, t.Today
			} else {
				logger.L().Warn("stats_totals_error", "err", err)
			}
		}
		writeJSON(w, http.StatusOK, m)
	})

	mux.HandleFunc("POST /reload", func(w http.ResponseWriter, r *http.Request) {
		t := r.Header.Get("x-admin-token")
		if t == "" || opt.AdminToken == "" || t != opt.AdminToken {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if err := svc.holder.Reload(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}
