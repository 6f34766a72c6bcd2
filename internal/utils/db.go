// 包 utils：PostgreSQL / Redis 连接与自签证书工具，统一环境变量读取
package utils

import (
	"database/sql"
	"os"
	"strconv"

	_ "github.com/lib/pq"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			return n
		}
	}
	return def
}

// BuildPostgresDSNFromEnv 由 PG_* 变量拼接 DSN；PG_DSN 存在时直接使用
func BuildPostgresDSNFromEnv() string {
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		return dsn
	}
	user := getenv("PG_USER", "postgres")
	dsn := "postgres://" + user
	if pass := os.Getenv("PG_PASSWORD"); pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + getenv("PG_HOST", "localhost") + ":" + getenv("PG_PORT", "5432") + "/" + getenv("PG_DB", "ecoroute")
	dsn += "?sslmode=" + getenv("PG_SSLMODE", "disable")
	return dsn
}

// 文档注释：从环境变量打开连接池
// 约束：sql.Open 不建立连接，可用性由调用方 Ping 判定；连接数上限可由 PG_MAX_OPEN_CONNS / PG_MAX_IDLE_CONNS 覆盖。
func OpenPostgresFromEnv() (*sql.DB, error) {
	db, err := sql.Open("postgres", BuildPostgresDSNFromEnv())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(getenvInt("PG_MAX_OPEN_CONNS", 20))
	db.SetMaxIdleConns(getenvInt("PG_MAX_IDLE_CONNS", 10))
	return db, nil
}
