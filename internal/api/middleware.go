package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

type contextKey string

// claimsContextKey carries the validated JWT claims through the request
const claimsContextKey contextKey = "claims"

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": duration.Milliseconds(),
			"remote_addr": r.RemoteAddr,
			"user_agent":  r.UserAgent(),
		}).Info("HTTP request")
	})
}

// recoveryMiddleware recovers from panics and returns 500 error
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"error": err,
					"stack": string(debug.Stack()),
					"path":  r.URL.Path,
				}).Error("Panic recovered in HTTP handler")

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles CORS headers with configurable origins
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowedOrigin := ""
		for _, allowed := range s.config.Server.CORSOrigins {
			if allowed == "*" || allowed == origin {
				allowedOrigin = allowed
				break
			}
		}

		if allowedOrigin != "" {
			if allowedOrigin == "*" {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == "OPTIONS" {
			if allowedOrigin != "" {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusForbidden)
			}
			return
		}

		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware adds security headers
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// authenticationMiddleware validates the bearer JWT and attaches its claims
// to the request context
func (s *Server) authenticationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.config.Auth.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		tokenString := ""
		auth := r.Header.Get("Authorization")
		if strings.HasPrefix(auth, "Bearer ") {
			tokenString = strings.TrimPrefix(auth, "Bearer ")
		}

		if tokenString == "" {
			s.logSecurityEvent("auth_missing", getClientIP(r), r)
			s.handlers.writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(s.config.Auth.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			s.logSecurityEvent("auth_failed", getClientIP(r), r)
			s.handlers.writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			s.handlers.writeError(w, http.StatusUnauthorized, "Invalid token claims")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authorize wraps a handler with a permission check against the token's
// "permissions" claim. A "*" permission grants everything.
func (s *Server) authorize(permission string, handler http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.config.Auth.Enabled {
			handler(w, r)
			return
		}

		claims, ok := r.Context().Value(claimsContextKey).(jwt.MapClaims)
		if !ok {
			s.handlers.writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		if !hasPermission(claims, permission) {
			s.logSecurityEvent("permission_denied", getClientIP(r), r)
			s.handlers.writeError(w, http.StatusForbidden, fmt.Sprintf("Missing permission: %s", permission))
			return
		}

		handler(w, r)
	})
}

// hasPermission checks the permissions claim for an exact or wildcard match
func hasPermission(claims jwt.MapClaims, permission string) bool {
	raw, ok := claims["permissions"].([]interface{})
	if !ok {
		return false
	}
	for _, p := range raw {
		str, ok := p.(string)
		if !ok {
			continue
		}
		if str == "*" || str == permission {
			return true
		}
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// rateLimitEntry represents a rate limit entry for sliding window
type rateLimitEntry struct {
	requests []time.Time
}

// rateLimiter implements sliding window rate limiting keyed by client IP
type rateLimiter struct {
	entries        map[string]*rateLimitEntry
	mutex          sync.Mutex
	requestsPerMin int
	windowSize     time.Duration
	lastCleanup    time.Time
}

func newRateLimiter(requestsPerMin int) *rateLimiter {
	return &rateLimiter{
		entries:        make(map[string]*rateLimitEntry),
		requestsPerMin: requestsPerMin,
		windowSize:     time.Minute,
		lastCleanup:    time.Now(),
	}
}

// isAllowed checks if a request is allowed under rate limiting
func (rl *rateLimiter) isAllowed(key string) (bool, int) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()

	if now.Sub(rl.lastCleanup) > 5*time.Minute {
		rl.cleanup(now)
		rl.lastCleanup = now
	}

	entry, exists := rl.entries[key]
	if !exists {
		entry = &rateLimitEntry{}
		rl.entries[key] = entry
	}

	cutoff := now.Add(-rl.windowSize)
	valid := entry.requests[:0]
	for _, t := range entry.requests {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	entry.requests = valid

	if len(entry.requests) >= rl.requestsPerMin {
		return false, 0
	}

	entry.requests = append(entry.requests, now)
	return true, rl.requestsPerMin - len(entry.requests)
}

func (rl *rateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-rl.windowSize * 2)
	for key, entry := range rl.entries {
		if len(entry.requests) == 0 || entry.requests[len(entry.requests)-1].Before(cutoff) {
			delete(rl.entries, key)
		}
	}
}

// rateLimitMiddleware enforces the per-client request rate
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	if !s.config.Server.RateLimitEnabled {
		return next
	}

	if s.rateLimiter == nil {
		s.rateLimiter = newRateLimiter(s.config.Server.RequestsPerMin)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := getClientIP(r)

		allowed, remaining := s.rateLimiter.isAllowed(key)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.config.Server.RequestsPerMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			s.logSecurityEvent("rate_limit_exceeded", key, r)
			s.handlers.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts the client IP, honoring X-Forwarded-For
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// logSecurityEvent logs security-related events
func (s *Server) logSecurityEvent(event, clientIP string, r *http.Request) {
	s.logger.WithFields(logrus.Fields{
		"event":      event,
		"client_ip":  clientIP,
		"path":       r.URL.Path,
		"method":     r.Method,
		"user_agent": r.UserAgent(),
	}).Warn("Security event")
}
