package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bustix/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("middleware-secret")

func newEngine(roles ...domain.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	handlers := []gin.HandlerFunc{Auth(testSecret)}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRoles(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		a := ActorFrom(c)
		c.JSON(http.StatusOK, gin.H{"id": a.ID, "role": a.Role})
	})
	r.GET("/me", handlers...)
	return r
}

func get(r *gin.Engine, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthAcceptsValidToken(t *testing.T) {
	tok, err := IssueToken(testSecret, domain.Actor{ID: 42, Role: domain.RoleConductor}, time.Hour, time.Now())
	require.NoError(t, err)

	w := get(newEngine(), tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":42,"role":"conductor"}`, w.Body.String())
}

func TestAuthRejects(t *testing.T) {
	actor := domain.Actor{ID: 42, Role: domain.RoleAdmin}
	expired, err := IssueToken(testSecret, actor, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	foreign, err := IssueToken([]byte("someone-else"), actor, time.Hour, time.Now())
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 42, Role: "admin"}).SignedString(testSecret)
	require.NoError(t, err)
	anonymous, err := IssueToken(testSecret, domain.Actor{Role: domain.RoleAdmin}, time.Hour, time.Now())
	require.NoError(t, err)

	cases := map[string]string{
		"missing":      "",
		"garbage":      "abc.def.ghi",
		"expired":      expired,
		"wrong secret": foreign,
		"no expiry":    noExpiry,
		"no user":      anonymous,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			w := get(newEngine(), tok)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")
		})
	}
}

func TestAuthRejectsNoneAlgorithm(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID:           1,
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	w := get(newEngine(), tok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRoles(t *testing.T) {
	passenger, err := IssueToken(testSecret, domain.Actor{ID: 3, Role: domain.RolePassenger}, time.Hour, time.Now())
	require.NoError(t, err)
	admin, err := IssueToken(testSecret, domain.Actor{ID: 1, Role: domain.RoleAdmin}, time.Hour, time.Now())
	require.NoError(t, err)

	r := newEngine(domain.RoleAdmin, domain.RoleConductor)
	assert.Equal(t, http.StatusForbidden, get(r, passenger).Code)
	assert.Equal(t, http.StatusOK, get(r, admin).Code)
}

func TestUnknownRoleCollapsesToPassenger(t *testing.T) {
	tok, err := IssueToken(testSecret, domain.Actor{ID: 9, Role: "superuser"}, time.Hour, time.Now())
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, get(newEngine(domain.RoleAdmin), tok).Code)
	w := get(newEngine(), tok)
	assert.JSONEq(t, `{"id":9,"role":"passenger"}`, w.Body.String())
}

func TestRequestIDEchoesHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get("X-Request-ID"))
}
