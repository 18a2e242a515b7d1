package gateway

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medrex/clinic-portal/internal/iam"
	"github.com/medrex/clinic-portal/pkg/logger"
	"github.com/medrex/clinic-portal/pkg/monitoring"
	"github.com/medrex/clinic-portal/pkg/rbac"
	"github.com/medrex/clinic-portal/pkg/types"
)

type contextKey string

const sessionContextKey contextKey = "portal_session"

// sessionFromContext returns the session placed by authMiddleware
func sessionFromContext(ctx context.Context) (*iam.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*iam.Session)
	return session, ok
}

func (s *Service) isPublic(r *http.Request) bool {
	return s.isInfra(r) || r.URL.Path == "/api/login"
}

// isInfra matches the health and metrics routes
func (s *Service) isInfra(r *http.Request) bool {
	return r.URL.Path == s.config.HealthPath || r.URL.Path == s.config.MetricsPath
}

// corsMiddleware handles CORS headers
func (s *Service) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware adds security headers
func (s *Service) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware tags the request with an id and logs its outcome
func (s *Service) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), logger.RequestIDKey, requestID)
		if traceID := monitoring.TraceIDFromContext(ctx); traceID != "" {
			ctx = context.WithValue(ctx, logger.TraceIDKey, traceID)
		}

		recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r.WithContext(ctx))

		s.logger.HTTPRequest(ctx, r.Method, r.URL.Path, r.UserAgent(), clientIP(r), recorder.statusCode, time.Since(start).Milliseconds())
	})
}

// authMiddleware resolves the bearer token to a session
func (s *Service) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.isPublic(r) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			s.writeErrorResponse(w, http.StatusUnauthorized, types.ErrCodeUnauthorized, "missing or malformed authorization header")
			return
		}

		session, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			s.logger.WithContext(r.Context()).WithError(err).Warn("Token validation failed")
			s.writeErrorResponse(w, http.StatusUnauthorized, types.ErrCodeAuthenticationFailed, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		ctx = context.WithValue(ctx, logger.UserIDKey, session.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// addressRateLimitMiddleware limits each client address. It runs ahead of
// authentication so rejected tokens and logins still spend the budget.
func (s *Service) addressRateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || s.isInfra(r) {
			next.ServeHTTP(w, r)
			return
		}
		if !s.allow(w, r, "ip:"+clientIP(r)) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// userRateLimitMiddleware limits each authenticated user across addresses
func (s *Service) userRateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessionFromContext(r.Context())
		if s.limiter == nil || !ok {
			next.ServeHTTP(w, r)
			return
		}
		if !s.allow(w, r, "user:"+session.UserID) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Service) allow(w http.ResponseWriter, r *http.Request, key string) bool {
	if s.limiter.Allow(key) {
		return true
	}
	s.logger.WithContext(r.Context()).WithField("limit_key", key).Warn("Rate limit exceeded")
	s.writeErrorResponse(w, http.StatusTooManyRequests, types.ErrCodeRateLimitExceeded, "rate limit exceeded")
	return false
}

// requirePermission rejects sessions below required on resource
func (s *Service) requirePermission(resource rbac.ResourceType, required rbac.PermissionLevel) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := sessionFromContext(r.Context())
			if !ok {
				s.writeErrorResponse(w, http.StatusUnauthorized, types.ErrCodeUnauthorized, "session not found in context")
				return
			}

			if err := s.evaluator.Authorize(session.Permissions, resource, required, ""); err != nil {
				s.writeRBACError(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// responseRecorder captures response status code
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
