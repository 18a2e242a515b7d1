package iam

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	rbacengine "github.com/medrex/clinic-portal/internal/rbac"
	"github.com/medrex/clinic-portal/pkg/logger"
	"github.com/medrex/clinic-portal/pkg/rbac"
	"github.com/medrex/clinic-portal/pkg/types"
)

// Login failure messages
const (
	MsgCredentialsRequired = "Email and password are required"
	MsgLoginUnavailable    = "Login is temporarily unavailable"
)

// loginTokenPrefix starts the display token returned by Login
const loginTokenPrefix = "mock-token-"

// userNamespace derives stable user ids from email addresses
var userNamespace = uuid.MustParse("6f0b1d4e-52c3-4a8e-9d7b-3c1e2f4a5b60")

// UserIDForEmail returns the deterministic user id for email
func UserIDForEmail(email string) string {
	return uuid.NewSHA1(userNamespace, []byte(strings.ToLower(email))).String()
}

// AuthRecorder receives login outcomes
type AuthRecorder interface {
	RecordAuthAttempt(role, status string)
}

// ClinicResolver returns the clinics a user is assigned to
type ClinicResolver func(email string, role rbac.Role) []string

// Service handles portal login and session resolution
type Service struct {
	issuer     *TokenIssuer
	sessions   *SessionStore
	logger     *logger.Logger
	recorder   AuthRecorder
	clinics    ClinicResolver
	sessionTTL time.Duration
	now        func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger
func WithLogger(log *logger.Logger) Option {
	return func(s *Service) {
		s.logger = log
	}
}

// WithAuthRecorder sets the login metrics sink
func WithAuthRecorder(recorder AuthRecorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

// WithClinicResolver sets how clinic assignments are looked up at login
func WithClinicResolver(resolver ClinicResolver) Option {
	return func(s *Service) {
		s.clinics = resolver
	}
}

// WithSessionTTL sets how long a login session stays valid
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.sessionTTL = ttl
	}
}

// NewService creates a login service that signs access tokens with issuer
func NewService(issuer *TokenIssuer, opts ...Option) *Service {
	s := &Service{
		issuer:     issuer,
		sessions:   NewSessionStore(),
		logger:     logger.Discard(),
		clinics:    func(string, rbac.Role) []string { return nil },
		sessionTTL: 8 * time.Hour,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login opens a session for any non-empty credentials. Failures are
// reported in the result, never as an error.
func (s *Service) Login(ctx context.Context, email, password, role string) types.LoginResult {
	if email == "" || password == "" {
		s.recordAttempt(role, "invalid")
		return types.LoginResult{Success: false, Error: MsgCredentialsRequired}
	}

	parsed, err := rbac.ParseRole(role)
	if err != nil {
		s.recordAttempt(role, "invalid")
		return types.LoginResult{Success: false, Error: fmt.Sprintf("Unknown role: %s", role)}
	}

	now := s.now()
	userID := UserIDForEmail(email)
	clinicIDs := s.clinics(email, parsed)

	session := &Session{
		ID:          uuid.NewString(),
		Token:       fmt.Sprintf("%s%s-%d", loginTokenPrefix, parsed, now.UnixMilli()),
		UserID:      userID,
		Email:       email,
		Role:        parsed,
		Permissions: rbacengine.GetDefaultPermissions(parsed, userID, clinicIDs),
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.sessionTTL),
	}

	access, err := s.issuer.Issue(&types.UserClaims{
		UserID:    userID,
		Email:     email,
		Role:      parsed.String(),
		ClinicIDs: clinicIDs,
		SessionID: session.ID,
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to issue access token")
		s.recordAttempt(parsed.String(), "error")
		return types.LoginResult{Success: false, Error: MsgLoginUnavailable}
	}
	s.sessions.Put(session)

	s.recordAttempt(parsed.String(), "success")
	s.logger.Audit(userID, "login", "session", true, map[string]interface{}{
		"role": parsed.String(),
	})
	return types.LoginResult{Success: true, Token: session.Token, AccessToken: access.AccessToken}
}

// Authenticate resolves a signed access token to its live session. The
// display token returned by Login is not accepted.
func (s *Service) Authenticate(ctx context.Context, token string) (*Session, error) {
	claims, err := s.issuer.Validate(token)
	if err != nil {
		return nil, err
	}
	if claims.SessionID == "" {
		return nil, ErrSessionNotFound
	}

	session, err := s.sessions.Get(claims.SessionID, s.now())
	if err != nil {
		return nil, err
	}
	if session.UserID != claims.UserID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Logout discards the session behind a signed access token
func (s *Service) Logout(ctx context.Context, token string) error {
	session, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	s.sessions.Delete(session.ID)
	s.logger.Audit(session.UserID, "logout", "session", true, nil)
	return nil
}

// ActiveSessions returns the number of live login sessions
func (s *Service) ActiveSessions() int {
	return s.sessions.Len()
}

func (s *Service) recordAttempt(role, status string) {
	if s.recorder != nil {
		s.recorder.RecordAuthAttempt(role, status)
	}
}
