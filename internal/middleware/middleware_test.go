package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func init() { gin.SetMode(gin.TestMode) }

func signedToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims JWTClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(sub string) JWTClaims {
	return JWTClaims{
		Email: "owner@imanager.test",
		Role:  RoleAuthenticated,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func authEngine() *gin.Engine {
	r := gin.New()
	r.GET("/whoami", JWTAuth(testSecret), RequireRole(RoleAuthenticated), func(c *gin.Context) {
		c.String(http.StatusOK, ActorID(c).String())
	})
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth_ValidTokenSetsActor(t *testing.T) {
	actor := uuid.New()
	token := signedToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims(actor.String()))

	w := get(authEngine(), "/whoami", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, actor.String(), w.Body.String())
}

func TestJWTAuth_Rejections(t *testing.T) {
	actor := uuid.NewString()
	expired := validClaims(actor)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	wrongRole := validClaims(actor)
	wrongRole.Role = "anon"

	cases := []struct {
		name  string
		token string
		code  int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", signedToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims(actor)), http.StatusUnauthorized},
		{"expired", signedToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired), http.StatusUnauthorized},
		{"subject is not a uuid", signedToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("admin")), http.StatusUnauthorized},
		{"nil subject", signedToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims(uuid.Nil.String())), http.StatusUnauthorized},
		{"wrong role", signedToken(t, jwt.SigningMethodHS256, []byte(testSecret), wrongRole), http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := get(authEngine(), "/whoami", tc.token)
			assert.Equal(t, tc.code, w.Code)
			assert.Contains(t, w.Body.String(), `"detail"`)
		})
	}
}

func TestActorID_OutsideAuth(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, uuid.Nil, ActorID(c))
	assert.Nil(t, GetClaims(c))
}

func TestRateLimiter_PerActor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, second := uuid.New(), uuid.New()
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id, err := uuid.Parse(c.GetHeader("X-Actor")); err == nil {
			c.Set(ActorKey, id)
		}
		c.Next()
	})
	r.Use(RateLimiter(ctx, 2, time.Minute))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	call := func(actor uuid.UUID) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Actor", actor.String())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, call(first).Code)
	assert.Equal(t, http.StatusNoContent, call(first).Code)
	limited := call(first)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))

	// Another actor has its own budget.
	assert.Equal(t, http.StatusNoContent, call(second).Code)
}

func TestRateLimiter_PurgeDropsExpiredWindows(t *testing.T) {
	rl := &rateLimiter{limit: 1, window: time.Minute, entries: map[string]*rateEntry{
		"ip:1.1.1.1": {count: 1, windowEnd: time.Now().Add(-time.Second)},
		"ip:2.2.2.2": {count: 1, windowEnd: time.Now().Add(time.Minute)},
	}}
	rl.purge(time.Now())
	assert.Len(t, rl.entries, 1)
	assert.Contains(t, rl.entries, "ip:2.2.2.2")
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 65))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	_, err := uuid.Parse(w.Body.String())
	assert.NoError(t, err)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := get(r, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}
