package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/access-service/internal/domain"
	"github.com/prperemyshlev/access-service/internal/dto"
	"github.com/prperemyshlev/access-service/internal/relay"
	"github.com/prperemyshlev/access-service/internal/service"
	"github.com/prperemyshlev/access-service/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(router http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookRelay(t *testing.T) {
	var received relay.Envelope

	registry := relay.NewRegistry()
	registry.Register("vega", relay.FunctionFunc(func(_ context.Context, env relay.Envelope) (relay.Response, error) {
		received = env
		return relay.Response{StatusCode: http.StatusAccepted, Body: json.RawMessage(`{"ok":true}`)}, nil
	}))
	registry.Register("broken", relay.FunctionFunc(func(context.Context, relay.Envelope) (relay.Response, error) {
		return relay.Response{}, errors.New("boom")
	}))
	registry.RegisterFailed("stripe", errors.New("bad url"))

	h := NewWebhookHandler(registry, zap.NewNop())
	router := gin.New()
	for _, p := range []string{"vega", "broken", "stripe"} {
		router.POST("/api/webhook-"+p, h.Relay(p))
	}

	t.Run("relays status and body", func(t *testing.T) {
		w := perform(router, http.MethodPost, "/api/webhook-vega?event=paid", `{"amount":10}`, map[string]string{
			"X-Vega-Token": "abc",
		})

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.JSONEq(t, `{"ok":true}`, w.Body.String())

		assert.JSONEq(t, `{"amount":10}`, string(received.Body))
		assert.Equal(t, "abc", received.Headers["x-vega-token"])
		assert.Equal(t, "paid", received.QueryStringParameters["event"])
		assert.Equal(t, "vega", received.RequestContext.Provider)
		assert.NotEmpty(t, received.RequestContext.RequestID)
	})

	t.Run("empty body becomes an empty object", func(t *testing.T) {
		w := perform(router, http.MethodPost, "/api/webhook-vega", "", nil)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.JSONEq(t, `{}`, string(received.Body))
	})

	t.Run("invalid json", func(t *testing.T) {
		w := perform(router, http.MethodPost, "/api/webhook-vega", `{not json`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		body := `{"pad":"` + strings.Repeat("x", maxWebhookBody) + `"}`
		w := perform(router, http.MethodPost, "/api/webhook-vega", body, nil)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.JSONEq(t, `{"error":"request body too large"}`, w.Body.String())
	})

	t.Run("function error", func(t *testing.T) {
		w := perform(router, http.MethodPost, "/api/webhook-broken", `{}`, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":"boom"}`, w.Body.String())
	})

	t.Run("function not loaded", func(t *testing.T) {
		w := perform(router, http.MethodPost, "/api/webhook-stripe", `{}`, nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"error"`)
	})
}

type fakeLimiter struct {
	keys   []string
	result service.RateLimitResult
	err    error
}

func (l *fakeLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (service.RateLimitResult, error) {
	l.keys = append(l.keys, key)
	return l.result, l.err
}

func TestRateLimitMiddleware(t *testing.T) {
	newRouter := func(l *fakeLimiter) *gin.Engine {
		router := gin.New()
		router.POST("/sign-in", RateLimitMiddleware(l, 5, time.Minute, IPBasedKey, zap.NewNop()), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		return router
	}

	t.Run("allowed", func(t *testing.T) {
		l := &fakeLimiter{result: service.RateLimitResult{Allowed: true, Remaining: 4}}
		w := perform(newRouter(l), http.MethodPost, "/sign-in", "", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
		require.Len(t, l.keys, 1)
		assert.Equal(t, "ip:/sign-in:192.0.2.1", l.keys[0])
	})

	t.Run("rejected", func(t *testing.T) {
		l := &fakeLimiter{result: service.RateLimitResult{RetryAfter: 1500 * time.Millisecond}}
		w := perform(newRouter(l), http.MethodPost, "/sign-in", "", nil)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "2", w.Header().Get("Retry-After"))
	})

	t.Run("limiter failure lets the request through", func(t *testing.T) {
		l := &fakeLimiter{err: errors.New("redis down")}
		w := perform(newRouter(l), http.MethodPost, "/sign-in", "", nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

type fakeValidator map[string]*domain.TokenClaims

func (v fakeValidator) ValidateToken(_ context.Context, token string) (*domain.TokenClaims, error) {
	if claims, ok := v[token]; ok {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

type staticResolver map[string]*domain.UserProfile

func (r staticResolver) Resolve(_ context.Context, identity domain.Identity, _ bool) (*domain.UserProfile, bool) {
	return r[identity.ID], true
}

type grantAll struct{}

func (grantAll) HasAccess(_ context.Context, profile *domain.UserProfile, _ string) bool {
	return profile != nil && profile.ActivePlanID > domain.NoPlanID
}

func newSessionRouter(t *testing.T) *gin.Engine {
	t.Helper()

	validator := fakeValidator{
		"admin-token":  {UserID: "admin", Email: "root@example.com"},
		"member-token": {UserID: "member", Email: "ana@example.com"},
	}
	resolver := staticResolver{
		"admin":  {ID: "admin", Email: "root@example.com", IsAdmin: true},
		"member": {ID: "member", Email: "ana@example.com", ActivePlanID: 2},
	}

	manager := session.NewManager(service.NewBroadcaster(), resolver, time.Second, zap.NewNop())
	t.Cleanup(manager.Stop)

	sessions := NewSessionHandler(grantAll{})
	router := gin.New()
	api := router.Group("/api/v1", AuthMiddleware(validator), SessionMiddleware(manager))
	api.GET("/session", sessions.Get)
	api.GET("/access/:feature", sessions.Access)
	api.POST("/admin/ping", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	return router
}

func TestAuthMiddleware(t *testing.T) {
	router := newSessionRouter(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header"},
		{name: "wrong scheme", header: "Basic member-token"},
		{name: "unknown token", header: "Bearer nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(router, http.MethodGet, "/api/v1/session", "", map[string]string{"Authorization": tt.header})
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestSessionHandler(t *testing.T) {
	router := newSessionRouter(t)
	auth := map[string]string{"Authorization": "Bearer member-token"}

	w := perform(router, http.MethodGet, "/api/v1/session", "", auth)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Loading)
	require.NotNil(t, resp.Identity)
	assert.Equal(t, "member", resp.Identity.ID)
	require.NotNil(t, resp.Profile)
	assert.Equal(t, 2, resp.Profile.ActivePlanID)

	w = perform(router, http.MethodGet, "/api/v1/access/reports", "", auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"feature":"reports","granted":true}`, w.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	router := newSessionRouter(t)

	w := perform(router, http.MethodPost, "/api/v1/admin/ping", "", map[string]string{"Authorization": "Bearer admin-token"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = perform(router, http.MethodPost, "/api/v1/admin/ping", "", map[string]string{"Authorization": "Bearer member-token"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

type fakeAdminCache struct{ cleared []string }

func (c *fakeAdminCache) ClearAdminStatus(_ context.Context, userID string) error {
	c.cleared = append(c.cleared, userID)
	return nil
}

type fakeMemory struct{ forgotten []string }

func (m *fakeMemory) Forget(userID string) { m.forgotten = append(m.forgotten, userID) }

type noSessions struct{}

func (noSessions) Refresh(context.Context, string) (*domain.UserProfile, bool) { return nil, false }

func TestAdminUnblock(t *testing.T) {
	cache := &fakeAdminCache{}
	memory := &fakeMemory{}
	h := NewAdminHandler(cache, memory, noSessions{}, zap.NewNop())

	router := gin.New()
	router.POST("/admin/users/:id/unblock", h.Unblock)

	w := perform(router, http.MethodPost, "/admin/users/u-7/unblock", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"u-7"}, cache.cleared)
	assert.Equal(t, []string{"u-7"}, memory.forgotten)
}

// adminFlagResolver resolves every identity with the current admin flag
type adminFlagResolver struct{ admin atomic.Bool }

func (r *adminFlagResolver) Resolve(_ context.Context, identity domain.Identity, _ bool) (*domain.UserProfile, bool) {
	return &domain.UserProfile{ID: identity.ID, Email: identity.Email, IsAdmin: r.admin.Load()}, true
}

func TestAdminUnblock_RefreshesLiveSession(t *testing.T) {
	resolver := &adminFlagResolver{}
	resolver.admin.Store(true)

	manager := session.NewManager(service.NewBroadcaster(), resolver, time.Second, zap.NewNop())
	t.Cleanup(manager.Stop)

	validator := fakeValidator{"root-token": {UserID: "root", Email: "root@example.com"}}
	h := NewAdminHandler(&fakeAdminCache{}, &fakeMemory{}, manager, zap.NewNop())

	router := gin.New()
	router.POST("/api/v1/admin/ping", AuthMiddleware(validator), SessionMiddleware(manager), RequireAdmin(),
		func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.POST("/admin/users/:id/unblock", h.Unblock)

	auth := map[string]string{"Authorization": "Bearer root-token"}
	require.Equal(t, http.StatusNoContent, perform(router, http.MethodPost, "/api/v1/admin/ping", "", auth).Code)

	resolver.admin.Store(false)
	assert.Equal(t, http.StatusNoContent, perform(router, http.MethodPost, "/api/v1/admin/ping", "", auth).Code,
		"the live session still holds the old profile")

	require.Equal(t, http.StatusOK, perform(router, http.MethodPost, "/admin/users/root/unblock", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, perform(router, http.MethodPost, "/api/v1/admin/ping", "", auth).Code)
}

func TestCORSMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(CORSMiddleware([]string{"http://app.example.com"}, []string{"GET"}, []string{"Authorization"}))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(router, http.MethodOptions, "/x", "", map[string]string{"Origin": "http://app.example.com"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = perform(router, http.MethodGet, "/x", "", map[string]string{"Origin": "http://evil.example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
