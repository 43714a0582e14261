package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/hilthontt/lobby/infrastructure/config"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"github.com/hilthontt/lobby/infrastructure/security"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func whoAmI(c *gin.Context) {
	userID, _ := GetUserIDFromContext(c)
	c.String(http.StatusOK, userID)
}

func newIdentityRouter(verifier *security.TokenVerifier, allowHeader bool) *gin.Engine {
	router := gin.New()
	router.Use(IdentityMiddleware(verifier, allowHeader, logger.NewNop()))
	router.GET("/me", whoAmI)
	return router
}

func TestIdentityMiddleware(t *testing.T) {
	verifier := security.NewTokenVerifier("secret", "", "")
	token, err := verifier.Sign("alice", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name        string
		allowHeader bool
		setup       func(r *http.Request)
		target      string
		wantStatus  int
		wantUser    string
	}{
		{
			name:       "bearer token",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
			target:     "/me",
			wantStatus: http.StatusOK,
			wantUser:   "alice",
		},
		{
			name:       "query token",
			target:     "/me?access_token=" + token,
			wantStatus: http.StatusOK,
			wantUser:   "alice",
		},
		{
			name:       "bad token",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			target:     "/me",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "header ignored when not allowed",
			setup:      func(r *http.Request) { r.Header.Set(UserIDHeader, "bob") },
			target:     "/me",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:        "header allowed",
			allowHeader: true,
			setup:       func(r *http.Request) { r.Header.Set(UserIDHeader, "bob") },
			target:      "/me",
			wantStatus:  http.StatusOK,
			wantUser:    "bob",
		},
		{
			name:        "nothing",
			allowHeader: true,
			target:      "/me",
			wantStatus:  http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newIdentityRouter(verifier, tt.allowHeader)
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.setup != nil {
				tt.setup(req)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantUser != "" {
				assert.Equal(t, tt.wantUser, w.Body.String())
			}
		})
	}
}

type joinBody struct {
	Code string `json:"code" binding:"required,roomcode"`
	Name string `json:"name" binding:"omitempty,notblank,max=10"`
}

func TestDefaultValidator(t *testing.T) {
	v := &DefaultValidator{}
	binding.Validator = v

	assert.NoError(t, v.ValidateStruct(&joinBody{Code: "K7X2QP"}))
	assert.NoError(t, v.ValidateStruct(&joinBody{Code: "k7x2qp"}))

	err := v.ValidateStruct(&joinBody{Code: "K7X"})
	require.Error(t, err)
	assert.Equal(t, "code must be 6 letters or digits", TranslateValidationError(err))

	err = v.ValidateStruct(&joinBody{})
	require.Error(t, err)
	assert.Equal(t, "code is required", TranslateValidationError(err))

	err = v.ValidateStruct(&joinBody{Code: "K7X2QP", Name: "   "})
	require.Error(t, err)
	assert.Equal(t, "name cannot be blank", TranslateValidationError(err))

	err = v.ValidateStruct(&joinBody{Code: "K7X2QP", Name: "a much longer name"})
	require.Error(t, err)
	assert.Equal(t, "name must be at most 10 characters", TranslateValidationError(err))
}

func newLimitedRouter(mw gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID := c.GetHeader(UserIDHeader); userID != "" {
			c.Set(UserContextKey, userID)
		}
		c.Next()
	})
	router.Use(mw)
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func hit(router *gin.Engine, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func testConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Name:              "test",
		RequestsPerWindow: 2,
		Window:            time.Minute,
		BlockDuration:     time.Minute,
	}
}

func assertLimits(t *testing.T, router *gin.Engine) {
	t.Helper()

	first := hit(router, "alice")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, http.StatusOK, hit(router, "alice").Code)

	limited := hit(router, "alice")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))

	blocked := hit(router, "alice")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Contains(t, blocked.Body.String(), "temporarily blocked")

	assert.Equal(t, http.StatusOK, hit(router, "bob").Code, "limits are per user")
	assert.Equal(t, http.StatusOK, hit(router, "").Code, "anonymous requests pass through")
}

func TestRateLimiter_Local(t *testing.T) {
	router := newLimitedRouter(RateLimiterMiddleware(nil, logger.NewNop(), testConfig()))
	assertLimits(t, router)
}

func TestRateLimiter_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	router := newLimitedRouter(RateLimiterMiddleware(client, logger.NewNop(), testConfig()))
	assertLimits(t, router)
	assert.True(t, mr.Exists("ratelimit:test:block:alice"))
}

func TestRateLimiter_LocalBlockExpires(t *testing.T) {
	l := newLocalLimiter(testConfig())
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		d, err := l.allow(context.Background(), "alice")
		require.NoError(t, err)
		assert.True(t, d.allowed)
	}
	d, _ := l.allow(context.Background(), "alice")
	assert.False(t, d.allowed)

	now = now.Add(2 * time.Minute)
	d, _ = l.allow(context.Background(), "alice")
	assert.True(t, d.allowed)
}

func TestRedactToken(t *testing.T) {
	assert.Equal(t, "", redactToken(""))
	assert.Equal(t, "a=1", redactToken("a=1"))
	assert.Equal(t, "access_token=REDACTED", redactToken("access_token=secret"))
}

func TestCorsPreflight(t *testing.T) {
	router := gin.New()
	router.Use(CorsMiddleware(&config.Config{Cors: config.CorsConfig{AllowOrigins: "http://localhost:3000"}}))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
