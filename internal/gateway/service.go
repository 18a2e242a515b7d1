package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/medrex/clinic-portal/internal/cache"
	"github.com/medrex/clinic-portal/internal/iam"
	rbacengine "github.com/medrex/clinic-portal/internal/rbac"
	"github.com/medrex/clinic-portal/pkg/logger"
	"github.com/medrex/clinic-portal/pkg/monitoring"
	"github.com/medrex/clinic-portal/pkg/rbac"
	"github.com/medrex/clinic-portal/pkg/types"
)

// Authenticator opens, resolves and closes login sessions
type Authenticator interface {
	Login(ctx context.Context, email, password, role string) types.LoginResult
	Authenticate(ctx context.Context, token string) (*iam.Session, error)
	Logout(ctx context.Context, token string) error
}

// DataGateway is the cached view over the clinic data endpoints
type DataGateway interface {
	Get(ctx context.Context, endpoint string, params interface{}) (interface{}, error)
	Invalidate(ctx context.Context, endpoint string, params interface{}) error
	ClearAll(ctx context.Context) error
	Stats(ctx context.Context) (cache.Stats, error)
}

// AuditTrail reads back recorded HIPAA checks
type AuditTrail interface {
	Trail(ctx context.Context, filter *rbac.AuditFilter) ([]*rbac.AuditRecord, error)
}

// resourceEndpoints maps each served data path segment to the resource class
// a caller needs read access to
var resourceEndpoints = map[string]rbac.ResourceType{
	"appointments": rbac.ResourceAppointment,
	"patients":     rbac.ResourcePatientRecord,
	"doctors":      rbac.ResourceStaffRecord,
	"metrics":      rbac.ResourceClinicSettings,
	"bills":        rbac.ResourceBilling,
}

// Config holds the gateway configuration
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MetricsPath  string
	HealthPath   string
}

// Service is the portal HTTP gateway
type Service struct {
	config    Config
	router    *mux.Router
	handler   http.Handler
	server    *http.Server
	auth      Authenticator
	evaluator *rbacengine.Evaluator
	data      DataGateway
	limiter   *RateLimiter
	audit     AuditTrail
	metrics   *monitoring.MetricsCollector
	tracing   *monitoring.TracingManager
	health    *monitoring.HealthManager
	logger    *logger.Logger
}

// Option configures optional gateway collaborators
type Option func(*Service)

// WithRateLimiter enables rate limiting per client address and per user
func WithRateLimiter(limiter *RateLimiter) Option {
	return func(s *Service) {
		s.limiter = limiter
	}
}

// WithAuditTrail serves the stored audit trail to administrators
func WithAuditTrail(trail AuditTrail) Option {
	return func(s *Service) {
		s.audit = trail
	}
}

// WithMetrics enables Prometheus request metrics and the metrics route
func WithMetrics(metrics *monitoring.MetricsCollector) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// WithTracing enables request spans
func WithTracing(tracing *monitoring.TracingManager) Option {
	return func(s *Service) {
		s.tracing = tracing
	}
}

// WithHealth replaces the default health manager
func WithHealth(health *monitoring.HealthManager) Option {
	return func(s *Service) {
		s.health = health
	}
}

// WithLogger sets the logger
func WithLogger(log *logger.Logger) Option {
	return func(s *Service) {
		s.logger = log
	}
}

// NewService creates the gateway and wires its routes
func NewService(config Config, auth Authenticator, evaluator *rbacengine.Evaluator, data DataGateway, opts ...Option) *Service {
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	if config.HealthPath == "" {
		config.HealthPath = "/health"
	}

	s := &Service{
		config:    config,
		router:    mux.NewRouter(),
		auth:      auth,
		evaluator: evaluator,
		data:      data,
		health:    monitoring.NewHealthManager("portal-api", "dev"),
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	s.setupMiddleware()

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

// Handler returns the fully wrapped HTTP handler
func (s *Service) Handler() http.Handler {
	return s.handler
}

// Start serves until Stop is called
func (s *Service) Start() error {
	s.logger.WithComponent("gateway").WithField("addr", s.server.Addr).Info("Starting portal gateway")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down
func (s *Service) Stop(ctx context.Context) error {
	s.logger.WithComponent("gateway").Info("Stopping portal gateway")
	return s.server.Shutdown(ctx)
}

func (s *Service) setupRoutes() {
	s.router.HandleFunc(s.config.HealthPath, s.health.HTTPHandler()).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle(s.config.MetricsPath, s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)
	api.HandleFunc("/compliance/{operation}", s.handleCompliance).Methods(http.MethodPost)
	api.HandleFunc("/patient-access/{patientID}", s.handlePatientAccess).Methods(http.MethodGet)

	adminOnly := s.requirePermission(rbac.ResourceClinicSettings, rbac.LevelFull)
	api.Handle("/cache", adminOnly(http.HandlerFunc(s.handleClearCache))).Methods(http.MethodDelete)
	api.Handle("/cache/stats", adminOnly(http.HandlerFunc(s.handleCacheStats))).Methods(http.MethodGet)
	api.Handle("/cache/{resource}", adminOnly(http.HandlerFunc(s.handleInvalidate))).Methods(http.MethodDelete)
	if s.audit != nil {
		api.Handle("/audit", adminOnly(http.HandlerFunc(s.handleAuditTrail))).Methods(http.MethodGet)
	}

	api.HandleFunc("/{resource}", s.handleResource).Methods(http.MethodGet)
}

func (s *Service) setupMiddleware() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.addressRateLimitMiddleware)
	s.router.Use(s.authMiddleware)
	s.router.Use(s.userRateLimitMiddleware)

	var handler http.Handler = s.router
	handler = s.securityHeadersMiddleware(handler)
	handler = s.corsMiddleware(handler)
	if s.metrics != nil {
		handler = s.metrics.HTTPMiddleware(handler)
	}
	if s.tracing != nil {
		handler = s.tracing.HTTPMiddleware(handler)
	}
	s.handler = handler
}
