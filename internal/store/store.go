// 包 store: 提供与 PostgreSQL 的数据访问层，包含收集点读写与查询统计
package store

import (
	"context"
	"database/sql"
	"strconv"

	"ecoroute/internal/logger"
	"ecoroute/internal/nearest"

	_ "github.com/lib/pq"
)

// Store: 数据库访问入口，持有连接池
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Open: 使用 DSN 打开数据库连接并配置连接池参数
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// 文档注释：读取全部收集点为原始记录
// 背景：数据库中的坐标已在导入时校验；仍转换为文本记录走统一的索引构建流程。
// 约束：按 seq 顺序返回，保证与导入顺序一致。
func (s *Store) ListRecords(ctx context.Context) ([]nearest.RawRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, latitude, longitude, label, district_name FROM _collection_points ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []nearest.RawRecord
	for rows.Next() {
		var id, label, district string
		var lat, lng float64
		if err := rows.Scan(&id, &lat, &lng, &label, &district); err != nil {
			return nil, err
		}
		out = append(out, nearest.RawRecord{
			ID:        id,
			Latitude:  strconv.FormatFloat(lat, 'f', -1, 64),
			Longitude: strconv.FormatFloat(lng, 'f', -1, 64),
			Label:     label,
			Group:     district,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.L().Debug("db_points_listed", "count", len(out))
	return out, nil
}

// Records 使 Store 满足 points.Source
func (s *Store) Records(ctx context.Context) ([]nearest.RawRecord, error) {
	return s.ListRecords(ctx)
}

// 文档注释：整表替换收集点
// 背景：导入工具一次性写入新数据集；在单个事务内清空并插入，读方不会看到半量数据。
// 异常：任一插入失败回滚并返回错误。
func (s *Store) ReplacePoints(ctx context.Context, pts []nearest.GeoPoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `TRUNCATE _collection_points RESTART IDENTITY`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO _collection_points(id, latitude, longitude, label, district_name) VALUES($1,$2,$3,$4,$5)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, p := range pts {
		if _, err := stmt.ExecContext(ctx, p.ID, p.Lat, p.Lng, p.Label, p.Group); err != nil {
			return err
		}
		if (i+1)%5000 == 0 {
			logger.L().Debug("db_points_insert_progress", "count", i+1)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logger.L().Info("db_points_replaced", "count", len(pts))
	return nil
}

// IncrStats: 查询后递增总计与当日计数；未命中时额外递增空结果计数
func (s *Store) IncrStats(ctx context.Context, found bool) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE _nearest_stats_total SET total_queries=total_queries+1 WHERE id=1"); err != nil {
		return err
	}
	if !found {
		if _, err := s.db.ExecContext(ctx, "UPDATE _nearest_stats_total SET empty_queries=empty_queries+1 WHERE id=1"); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, "INSERT INTO _nearest_stats_daily(day, queries) VALUES(current_date, 1) ON CONFLICT (day) DO UPDATE SET queries=_nearest_stats_daily.queries+1")
	return err
}

// Totals: 累计、未命中与当日查询次数
type Totals struct {
	Total int64 `json:"total"`
	Empty int64 `json:"empty"`
	Today int64 `json:"today"`
}

func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	var t Totals
	row := s.db.QueryRowContext(ctx, "SELECT total_queries, empty_queries FROM _nearest_stats_total WHERE id=1")
	if err := row.Scan(&t.Total, &t.Empty); err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	row2 := s.db.QueryRowContext(ctx, "SELECT queries FROM _nearest_stats_daily WHERE day=current_date")
	if err := row2.Scan(&t.Today); err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	logger.L().Debug("stats_totals", "total", t.Total, "today", t.Today)
	return &t, nil
}
