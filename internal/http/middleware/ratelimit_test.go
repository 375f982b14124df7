package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmehdipour/titletester/internal/model"
	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func callLimited(mw echo.MiddlewareFunc, id *model.Identity) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/campaigns", nil), rec)
	if id != nil {
		c.Set(ctxIdentity, *id)
	}
	err := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	return rec, err
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	mr, rdb := newRedis(t)
	fixed := time.Unix(1_700_000_000, 250*int64(time.Millisecond))
	mw := RateLimitMiddleware(RateLimitConfig{
		Redis:          rdb,
		RPS:            2,
		RetryAfterHint: true,
		Now:            func() time.Time { return fixed },
	})
	id := &model.Identity{UID: "u1"}

	for i := 0; i < 2; i++ {
		_, err := callLimited(mw, id)
		require.NoError(t, err)
	}

	rec, err := callLimited(mw, id)
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusTooManyRequests, he.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	key := "rl:uid:u1:1700000000"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 2*time.Second, mr.TTL(key))

	// other users have their own window
	_, err = callLimited(mw, &model.Identity{UID: "u2"})
	assert.NoError(t, err)
}

func TestRateLimit_NewWindowResets(t *testing.T) {
	_, rdb := newRedis(t)
	now := time.Unix(1_700_000_000, 0)
	mw := RateLimitMiddleware(RateLimitConfig{
		Redis: rdb,
		RPS:   1,
		Now:   func() time.Time { return now },
	})
	id := &model.Identity{UID: "u1"}

	_, err := callLimited(mw, id)
	require.NoError(t, err)
	_, err = callLimited(mw, id)
	require.Error(t, err)

	now = now.Add(time.Second)
	_, err = callLimited(mw, id)
	assert.NoError(t, err)
}

func TestRateLimit_AllowsWithoutRedisOrIdentity(t *testing.T) {
	mw := RateLimitMiddleware(RateLimitConfig{RPS: 1})
	for i := 0; i < 3; i++ {
		_, err := callLimited(mw, &model.Identity{UID: "u1"})
		assert.NoError(t, err)
	}

	_, rdb := newRedis(t)
	mw = RateLimitMiddleware(RateLimitConfig{Redis: rdb, RPS: 1})
	for i := 0; i < 3; i++ {
		_, err := callLimited(mw, nil)
		assert.NoError(t, err)
	}
}

func TestRateLimit_RedisDownAllows(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()

	mw := RateLimitMiddleware(RateLimitConfig{Redis: rdb, RPS: 1})
	for i := 0; i < 3; i++ {
		_, err := callLimited(mw, &model.Identity{UID: "u1"})
		assert.NoError(t, err)
	}
}
