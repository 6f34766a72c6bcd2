package utils

import (
	"crypto/tls"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSNFromEnv(t *testing.T) {
	t.Setenv("PG_DSN", "")
	t.Setenv("PG_USER", "eco")
	t.Setenv("PG_PASSWORD", "secret")
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_PORT", "6543")
	t.Setenv("PG_DB", "routes")
	t.Setenv("PG_SSLMODE", "require")

	assert.Equal(t, "postgres://eco:secret@db:6543/routes?sslmode=require", BuildPostgresDSNFromEnv())

	t.Setenv("PG_DSN", "postgres://override")
	assert.Equal(t, "postgres://override", BuildPostgresDSNFromEnv())
}

func TestOpenRedis_EmptyAddr(t *testing.T) {
	assert.Nil(t, OpenRedis("", ""))
}

func TestEnsureSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "certs", "server.crt")
	key := filepath.Join(dir, "certs", "server.key")

	require.NoError(t, EnsureSelfSignedCert(cert, key, "ecoroute.local"))
	_, err := tls.LoadX509KeyPair(cert, key)
	require.NoError(t, err)

	require.NoError(t, EnsureSelfSignedCert(cert, key, "ecoroute.local"))
}
