// 包 points：收集点数据集加载（CSV/JSON/GeoJSON，本地文件或 HTTP）与只读快照切换
package points

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ecoroute/internal/logger"
	"ecoroute/internal/nearest"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"
)

// Source 数据源契约：返回按源顺序排列的原始记录；仅在源整体不可读时返回错误
type Source interface {
	Records(ctx context.Context) ([]nearest.RawRecord, error)
}

// ErrUnsupportedFormat 无法从扩展名识别数据格式
var ErrUnsupportedFormat = errors.New("unsupported points format")

// 列名别名：兼容原始数据集的西语表头与英文表头
var (
	latKeys   = []string{"latitud", "latitude", "lat"}
	lngKeys   = []string{"longitud", "longitude", "lng", "lon"}
	labelKeys = []string{"direccion", "dirección", "address", "label"}
	groupKeys = []string{"distrito", "district", "group"}
	idKeys    = []string{"id"}
)

// 文档注释：文件/URL 数据源
// 背景：前端原先直接下载 CSV；服务端同样支持本地路径与 http(s) URL，按扩展名选择解析器。
// 约束：支持 .csv / .json / .geojson；坏行原样交给 nearest.FromRecords 过滤，不在此处丢弃。
type FileSource struct {
	Path   string
	Client *http.Client
}

func (s FileSource) Records(ctx context.Context) ([]nearest.RawRecord, error) {
	b, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	switch formatOf(s.Path) {
	case ".csv":
		return ParseCSV(bytes.NewReader(b))
	case ".json":
		return ParseJSON(b)
	case ".geojson":
		return ParseGeoJSON(b)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, s.Path)
}

func formatOf(p string) string {
	if isRemote(p) {
		p = strings.SplitN(p, "?", 2)[0]
		return strings.ToLower(path.Ext(p))
	}
	return strings.ToLower(filepath.Ext(p))
}

func isRemote(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

func (s FileSource) read(ctx context.Context) ([]byte, error) {
	if !isRemote(s.Path) {
		return os.ReadFile(s.Path)
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Path, nil)
	if err != nil {
		return nil, err
	}
	logger.L().Debug("points_fetch", "url", s.Path)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", s.Path, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// 文档注释：解析带表头的 CSV
// 背景：列顺序不固定，按表头名（忽略大小写与 BOM）定位；行字段数不一致时缺失列视为空串。
// 约束：地址中的裸引号按字面保留；无法解析的行记录日志后跳过，仅读取失败（I/O）时整体返回错误。
func ParseCSV(r io.Reader) ([]nearest.RawRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	pick := func(row []string, keys []string) string {
		for _, k := range keys {
			if i, ok := cols[k]; ok && i < len(row) {
				return row[i]
			}
		}
		return ""
	}
	var out []nearest.RawRecord
	skipped := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			skipped++
			logger.L().Warn("points_csv_row_skipped", "line", pe.Line, "err", pe.Err)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, nearest.RawRecord{
			ID:        pick(row, idKeys),
			Latitude:  pick(row, latKeys),
			Longitude: pick(row, lngKeys),
			Label:     pick(row, labelKeys),
			Group:     pick(row, groupKeys),
		})
	}
	logger.L().Debug("points_csv_parsed", "rows", len(out), "skipped", skipped)
	return out, nil
}

// 文档注释：解析对象数组
// 约束：数值字段可为数字或字符串；非对象元素转为空记录，由索引构建阶段丢弃；顶层不是数组时整体报错。
func ParseJSON(b []byte) ([]nearest.RawRecord, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	out := make([]nearest.RawRecord, 0, len(raw))
	for i, elem := range raw {
		var m map[string]any
		dec := json.NewDecoder(bytes.NewReader(elem))
		dec.UseNumber()
		if err := dec.Decode(&m); err != nil || m == nil {
			logger.L().Warn("points_json_element_skipped", "index", i)
			out = append(out, nearest.RawRecord{})
			continue
		}
		lower := make(map[string]any, len(m))
		for k, v := range m {
			lower[strings.ToLower(k)] = v
		}
		out = append(out, nearest.RawRecord{
			ID:        getStr(lower, idKeys),
			Latitude:  getStr(lower, latKeys),
			Longitude: getStr(lower, lngKeys),
			Label:     getStr(lower, labelKeys),
			Group:     getStr(lower, groupKeys),
		})
	}
	return out, nil
}

// 文档注释：解析 GeoJSON FeatureCollection
// 约束：仅 Point 要素参与；非 Point 几何记为空坐标行，由索引构建阶段丢弃。
func ParseGeoJSON(b []byte) ([]nearest.RawRecord, error) {
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, err
	}
	out := make([]nearest.RawRecord, 0, len(fc.Features))
	for _, f := range fc.Features {
		props := make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			props[strings.ToLower(k)] = v
		}
		r := nearest.RawRecord{
			ID:    getStr(props, idKeys),
			Label: getStr(props, labelKeys),
			Group: getStr(props, groupKeys),
		}
		if r.ID == "" && f.ID != nil {
			r.ID = toStr(f.ID)
		}
		if p, ok := f.Geometry.(orb.Point); ok {
			r.Longitude = strconv.FormatFloat(p.Lon(), 'f', -1, 64)
			r.Latitude = strconv.FormatFloat(p.Lat(), 'f', -1, 64)
		}
		out = append(out, r)
	}
	return out, nil
}

func getStr(m map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return toStr(v)
		}
	}
	return ""
}

func toStr(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

// 文档注释：多数据源并发加载
// 背景：分区数据集可拆成多个文件；并发读取后按声明顺序拼接，保证 "C-<n>" 分配与单文件一致。
// 约束：任一源失败即整体失败（与单源不可读语义一致）。
type MultiSource []Source

func (ms MultiSource) Records(ctx context.Context) ([]nearest.RawRecord, error) {
	parts := make([][]nearest.RawRecord, len(ms))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range ms {
		i, s := i, s
		g.Go(func() error {
			recs, err := s.Records(gctx)
			if err != nil {
				return err
			}
			parts[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []nearest.RawRecord
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

// FromPaths 由路径列表构造数据源；单路径时不包装
func FromPaths(paths []string) Source {
	if len(paths) == 1 {
		return FileSource{Path: paths[0]}
	}
	ms := make(MultiSource, 0, len(paths))
	for _, p := range paths {
		ms = append(ms, FileSource{Path: p})
	}
	return ms
}

// Load 读取数据源并构建索引
func Load(ctx context.Context, src Source) (*nearest.Index, error) {
	recs, err := src.Records(ctx)
	if err != nil {
		return nil, err
	}
	ix := nearest.FromRecords(recs)
	logger.L().Info("points_loaded", "records", len(recs), "points", ix.Len(), "dropped", len(recs)-ix.Len(), "version", ix.Version())
	return ix, nil
}
