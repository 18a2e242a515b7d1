// Package gateway implements the HTTP surface of the clinic portal.
// The gateway provides:
// - Login, logout and session introspection
// - Cached, permission-gated access to the clinic data endpoints
// - HIPAA compliance checks with audit emission
// - Per-user rate limiting, CORS and security headers
// - Request logging, Prometheus metrics and tracing
package gateway
