package db

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmehdipour/titletester/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMySQLConnection_EmptyDSN(t *testing.T) {
	_, err := NewMySQLConnection(context.Background(), "", MySQLOpts{})
	assert.ErrorIs(t, err, ErrNoDSN)
}

func TestMySQLOptsFrom(t *testing.T) {
	got := MySQLOptsFrom(config.DatabaseConfig{MaxOpenConns: 10, MaxIdleConns: 5, PingTimeout: time.Second})
	assert.Equal(t, MySQLOpts{MaxOpenConns: 10, MaxIdleConns: 5, PingTimeout: time.Second}, got)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := NewRedisClient(context.Background(), RedisOptsFrom(config.RedisConfig{Addr: mr.Addr()}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	require.NoError(t, rdb.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRedisClient_NotConfigured(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisOpts{})
	assert.ErrorIs(t, err, ErrNoRedisAddr)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), RedisOpts{Addr: addr, DialTimeout: 200 * time.Millisecond})
	assert.Error(t, err)
}
