package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/nutricalc/backend/config"
	"github.com/pageza/nutricalc/backend/internal/api"
	"github.com/pageza/nutricalc/backend/internal/database"
	"github.com/pageza/nutricalc/backend/internal/middleware"
	"github.com/pageza/nutricalc/backend/internal/router"
	"github.com/pageza/nutricalc/backend/internal/service"
	"github.com/pageza/nutricalc/backend/internal/store"
)

func newRouter(t *testing.T, cfg *config.Config) *gin.Engine {
	r, _ := newRouterWithAuth(t, cfg)
	return r
}

func newRouterWithAuth(t *testing.T, cfg *config.Config) (*gin.Engine, *service.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	st := store.New(db)
	require.NoError(t, st.SeedSample(context.Background()))

	meal, err := service.NewMealService(st, config.DefaultEngineConfig())
	require.NoError(t, err)

	auth := service.NewAuthService(db, middleware.NewTokenService(cfg.JWTSecret))
	return router.SetupRouter(cfg, api.Deps{Auth: auth, Meal: meal, Catalog: st}), auth
}

func TestNew(t *testing.T) {
	cfg := &config.Config{
		ServerHost: "localhost",
		ServerPort: "8080",
	}

	srv := New(cfg, newRouter(t, cfg))
	require.NotNil(t, srv)
	assert.Equal(t, "localhost:8080", srv.Addr())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	srv.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/meal", nil)
	srv.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequiredWithSecret(t *testing.T) {
	cfg := &config.Config{
		ServerHost: "localhost",
		ServerPort: "8080",
		JWTSecret:  "test-secret",
	}
	r := newRouter(t, cfg)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/meal", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// health stays public
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/health", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	token, _, err := middleware.NewTokenService("test-secret").Sign("dietitian-1", "Dr Doe")
	require.NoError(t, err)
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/meal", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginIssuesUsableToken(t *testing.T) {
	cfg := &config.Config{ServerHost: "localhost", ServerPort: "8080", JWTSecret: "test-secret"}
	r, auth := newRouterWithAuth(t, cfg)
	_, err := auth.Register(context.Background(), "jdoe", "Dr Doe", "correct horse")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(`{"username":"jdoe","password":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(`{"username":"jdoe","password":"correct horse"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/nutrients", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStartAndShutdown(t *testing.T) {
	cfg := &config.Config{ServerHost: "127.0.0.1", ServerPort: "0"}
	srv := New(cfg, newRouter(t, cfg))

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, srv.Shutdown(context.Background()))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
