package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"socialnet/internal/cache"
	"socialnet/internal/config"
	"socialnet/internal/models"
	"socialnet/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJWTSecret = "test-secret-that-is-at-least-32-characters"

type testEnv struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
	rdb *redis.Client
	mr  *miniredis.Miniredis
}

// newTestEnv wires a Server over sqlite and miniredis. Global middleware is
// left out so the IP limiter never interferes with a test.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
	})

	cfg := &config.Config{
		JWTSecret:                  testJWTSecret,
		MessagingRequireFriendship: true,
		FeatureFlags:               "presence=on,search_tokens=on,live_feed=on",
		ServiceVersion:             "test",
	}
	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	srv.SetupRoutes(app)

	return &testEnv{srv: srv, app: app, db: db, rdb: rdb, mr: mr}
}

func (e *testEnv) user(t *testing.T, username string) (*models.User, string) {
	t.Helper()
	u := testutil.CreateUser(t, e.db, username)
	token, err := e.srv.generateToken(u.ID, u.Username)
	require.NoError(t, err)
	return u, token
}

func (e *testEnv) admin(t *testing.T, username string) (*models.User, string) {
	t.Helper()
	u, token := e.user(t, username)
	require.NoError(t, e.db.Model(&models.User{}).Where("id = ?", u.ID).Update("is_admin", true).Error)
	return u, token
}

func (e *testEnv) friends(t *testing.T, a, b *models.User) *models.Friendship {
	t.Helper()
	lo, hi := a.ID, b.ID
	if lo > hi {
		lo, hi = hi, lo
	}
	return testutil.MakeFriends(t, e.db, lo, hi)
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}
