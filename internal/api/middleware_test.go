package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"building-access-service/internal/config"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name       string
		claims     jwt.MapClaims
		permission string
		want       bool
	}{
		{"exact match", jwt.MapClaims{"permissions": []interface{}{"building:read"}}, "building:read", true},
		{"wildcard", jwt.MapClaims{"permissions": []interface{}{"*"}}, "access:manage", true},
		{"no match", jwt.MapClaims{"permissions": []interface{}{"building:read"}}, "building:write", false},
		{"missing claim", jwt.MapClaims{}, "building:read", false},
		{"wrong claim type", jwt.MapClaims{"permissions": "building:read"}, "building:read", false},
		{"non-string entries skipped", jwt.MapClaims{"permissions": []interface{}{42, "log:read"}}, "log:read", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasPermission(tt.claims, tt.permission))
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(3)

	for i := 0; i < 3; i++ {
		allowed, remaining := rl.isAllowed("10.0.0.1")
		assert.True(t, allowed)
		assert.Equal(t, 2-i, remaining)
	}

	allowed, remaining := rl.isAllowed("10.0.0.1")
	assert.False(t, allowed)
	assert.Zero(t, remaining)

	// Other clients are unaffected
	allowed, _ = rl.isAllowed("10.0.0.2")
	assert.True(t, allowed)
}

func TestRateLimitMiddleware(t *testing.T) {
	srv, _, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.RateLimitEnabled = true
		cfg.Server.RequestsPerMin = 2
	})

	for i := 0; i < 2; i++ {
		w := doRequest(t, srv, "GET", "/api/v1/health", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := doRequest(t, srv, "GET", "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.168.1.10:54321"
	assert.Equal(t, "192.168.1.10", getClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", getClientIP(r))
}

func TestSecurityHeaders(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	w := doRequest(t, srv, "GET", "/api/v1/health", "", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestCORS(t *testing.T) {
	srv, _, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.CORSOrigins = []string{"https://dashboard.example.com"}
	})

	r := httptest.NewRequest("GET", "/api/v1/health", nil)
	r.Header.Set("Origin", "https://dashboard.example.com")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	assert.Equal(t, "https://dashboard.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest("GET", "/api/v1/health", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	srv.router.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	})

	w := doRequest(t, srv, "GET", "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
