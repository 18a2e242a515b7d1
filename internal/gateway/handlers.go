package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/trace"

	rbacengine "github.com/medrex/clinic-portal/internal/rbac"
	"github.com/medrex/clinic-portal/pkg/rbac"
	"github.com/medrex/clinic-portal/pkg/types"
)

// SessionResponse describes the caller's resolved access profile
type SessionResponse struct {
	UserID         string               `json:"user_id"`
	Email          string               `json:"email"`
	Role           rbac.Role            `json:"role"`
	Permissions    rbac.UserPermissions `json:"permissions"`
	DashboardRoute string               `json:"dashboard_route"`
}

// ComplianceRequest asks whether an operation on a resource class is allowed
type ComplianceRequest struct {
	ResourceType string                 `json:"resource_type"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ComplianceResponse is the audited decision
type ComplianceResponse struct {
	Operation    string            `json:"operation"`
	ResourceType rbac.ResourceType `json:"resource_type"`
	Compliant    bool              `json:"compliant"`
}

// AuditTrailResponse lists stored HIPAA check records, newest first
type AuditTrailResponse struct {
	Records []*rbac.AuditRecord `json:"records"`
	Count   int                 `json:"count"`
}

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// ResourceResponse wraps a cached data payload
type ResourceResponse struct {
	Endpoint string      `json:"endpoint"`
	Data     interface{} `json:"data"`
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds types.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "invalid request body")
		return
	}

	result := s.auth.Login(r.Context(), creds.Email, creds.Password, creds.Role)
	if !result.Success {
		s.writeJSONResponse(w, http.StatusBadRequest, result)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, result)
}

func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := bearerToken(r)
	if err := s.auth.Logout(r.Context(), token); err != nil {
		s.writeErrorResponse(w, http.StatusNotFound, types.ErrCodeNotFound, "no login session for this token")
		return
	}
	s.writeJSONResponse(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Service) handleSession(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFromContext(r.Context())
	s.writeJSONResponse(w, http.StatusOK, &SessionResponse{
		UserID:         session.UserID,
		Email:          session.Email,
		Role:           session.Role,
		Permissions:    session.Permissions,
		DashboardRoute: rbacengine.GetDashboardRoute(session.Role),
	})
}

func (s *Service) handleResource(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["resource"]
	resource, ok := resourceEndpoints[name]
	if !ok {
		s.writeErrorResponse(w, http.StatusNotFound, types.ErrCodeNotFound, "unknown endpoint")
		return
	}

	session, _ := sessionFromContext(r.Context())
	if err := s.evaluator.Authorize(session.Permissions, resource, rbac.LevelRead, ""); err != nil {
		s.writeRBACError(w, r, err)
		return
	}

	query := r.URL.Query()
	if clinicID := query.Get("clinic_id"); clinicID != "" {
		if err := s.evaluator.AuthorizeClinic(session.Permissions, clinicID); err != nil {
			s.writeRBACError(w, r, err)
			return
		}
	}

	ctx := r.Context()
	if resource == rbac.ResourcePatientRecord && s.tracing != nil {
		var span trace.Span
		ctx, span = s.tracing.StartPHISpan(ctx, "list", resource.String())
		defer span.End()
	}

	endpoint := "/api/" + name
	payload, err := s.data.Get(ctx, endpoint, queryParams(query))
	if err != nil {
		if s.tracing != nil {
			s.tracing.RecordError(trace.SpanFromContext(ctx), err)
		}
		s.logger.WithContext(r.Context()).WithError(err).WithField("endpoint", endpoint).Error("Data fetch failed")
		s.writeErrorResponse(w, http.StatusBadGateway, types.ErrCodeExternalError, "data source unavailable")
		return
	}

	if ownerField, ok := patientOwnedEndpoints[name]; ok && session.Role != rbac.RoleAdministrator {
		payload, err = s.scopeRows(payload, ownerField, session.Permissions)
		if err != nil {
			s.logger.WithContext(r.Context()).WithError(err).WithField("endpoint", endpoint).Error("Failed to scope records")
			s.writeErrorResponse(w, http.StatusInternalServerError, types.ErrCodeInternalError, "failed to scope records")
			return
		}
	}

	if resource == rbac.ResourcePatientRecord {
		s.logger.PHIAccess(ctx, session.UserID, query.Get("patient_id"), "list", resource.String(), true)
	}

	s.writeJSONResponse(w, http.StatusOK, &ResourceResponse{Endpoint: endpoint, Data: payload})
}

func (s *Service) handleCompliance(w http.ResponseWriter, r *http.Request) {
	operation := mux.Vars(r)["operation"]
	if utf8.RuneCountInString(operation) > rbac.MaxOperationLength {
		s.writeErrorResponse(w, http.StatusBadRequest, types.ErrCodeInvalidInput,
			fmt.Sprintf("operation exceeds %d characters", rbac.MaxOperationLength))
		return
	}

	var req ComplianceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "invalid request body")
		return
	}

	resource, err := rbac.ParseResourceType(req.ResourceType)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, types.ErrCodeInvalidInput, err.Error())
		return
	}

	session, _ := sessionFromContext(r.Context())
	compliant := s.evaluator.IsHIPAACompliant(r.Context(), operation, session.Permissions, resource, req.Metadata)

	s.writeJSONResponse(w, http.StatusOK, &ComplianceResponse{
		Operation:    operation,
		ResourceType: resource,
		Compliant:    compliant,
	})
}

func (s *Service) handlePatientAccess(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["patientID"]
	session, _ := sessionFromContext(r.Context())

	ctx := r.Context()
	if s.tracing != nil {
		var span trace.Span
		ctx, span = s.tracing.StartPHISpan(ctx, "view", rbac.ResourcePatientRecord.String())
		defer span.End()
	}

	allowed := s.evaluator.CanViewPatientData(patientID, session.Permissions)
	s.logger.PHIAccess(ctx, session.UserID, patientID, "view", rbac.ResourcePatientRecord.String(), allowed)

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"patient_id": patientID,
		"allowed":    allowed,
	})
}

func (s *Service) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.data.ClearAll(r.Context()); err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("Cache clear failed")
		s.writeErrorResponse(w, http.StatusInternalServerError, types.ErrCodeInternalError, "failed to clear cache")
		return
	}
	s.writeJSONResponse(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Service) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["resource"]
	if _, ok := resourceEndpoints[name]; !ok {
		s.writeErrorResponse(w, http.StatusNotFound, types.ErrCodeNotFound, "unknown endpoint")
		return
	}

	if err := s.data.Invalidate(r.Context(), "/api/"+name, queryParams(r.URL.Query())); err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("Cache invalidation failed")
		s.writeErrorResponse(w, http.StatusInternalServerError, types.ErrCodeInternalError, "failed to invalidate cache entry")
		return
	}
	s.writeJSONResponse(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Service) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := &rbac.AuditFilter{
		UserID:    query.Get("user_id"),
		Operation: query.Get("operation"),
		Resource:  query.Get("resource"),
	}

	var err error
	if filter.Limit, err = intParam(query, "limit", defaultAuditLimit); err != nil || filter.Limit < 1 || filter.Limit > maxAuditLimit {
		s.writeErrorResponse(w, http.StatusBadRequest, types.ErrCodeInvalidInput,
			fmt.Sprintf("limit must be between 1 and %d", maxAuditLimit))
		return
	}
	if filter.Offset, err = intParam(query, "offset", 0); err != nil || filter.Offset < 0 {
		s.writeErrorResponse(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "offset must be a non-negative integer")
		return
	}

	records, err := s.audit.Trail(r.Context(), filter)
	if err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("Audit trail query failed")
		s.writeErrorResponse(w, http.StatusInternalServerError, types.ErrCodeInternalError, "failed to read audit trail")
		return
	}
	if records == nil {
		records = []*rbac.AuditRecord{}
	}
	s.writeJSONResponse(w, http.StatusOK, &AuditTrailResponse{Records: records, Count: len(records)})
}

func intParam(query url.Values, name string, fallback int) (int, error) {
	raw := query.Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func (s *Service) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.data.Stats(r.Context())
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, types.ErrCodeInternalError, "failed to read cache stats")
		return
	}
	s.writeJSONResponse(w, http.StatusOK, stats)
}

// queryParams flattens a query string into cache parameters. An empty query
// means no parameters.
func queryParams(query url.Values) map[string]string {
	if len(query) == 0 {
		return nil
	}
	params := make(map[string]string, len(query))
	for name := range query {
		params[name] = query.Get(name)
	}
	return params
}

// writeJSONResponse writes a JSON response
func (s *Service) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (s *Service) writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string) {
	s.writeJSONResponse(w, statusCode, &types.PortalError{
		Type:    getErrorType(statusCode),
		Code:    code,
		Message: message,
	})
}

// writeRBACError maps an authorization failure to 403 with its context
func (s *Service) writeRBACError(w http.ResponseWriter, r *http.Request, err error) {
	rbacErr, ok := rbac.GetRBACError(err)
	if !ok {
		s.writeErrorResponse(w, http.StatusForbidden, types.ErrCodeForbidden, "access denied")
		return
	}

	s.logger.WithContext(r.Context()).WithFields(map[string]interface{}{
		"rbac_code": rbacErr.Code,
		"resource":  rbacErr.Resource,
		"required":  rbacErr.RequiredLevel,
	}).Warn("Access denied")

	s.writeJSONResponse(w, http.StatusForbidden, &types.PortalError{
		Type:    types.ErrorTypeAuthorization,
		Code:    rbacErr.Code,
		Message: rbacErr.Message,
		Details: map[string]interface{}{
			"resource":       rbacErr.Resource,
			"required_level": rbacErr.RequiredLevel,
		},
	})
}

// getErrorType maps HTTP status codes to error types
func getErrorType(statusCode int) types.ErrorType {
	switch statusCode {
	case http.StatusBadRequest:
		return types.ErrorTypeValidation
	case http.StatusUnauthorized:
		return types.ErrorTypeAuthentication
	case http.StatusForbidden:
		return types.ErrorTypeAuthorization
	case http.StatusNotFound:
		return types.ErrorTypeNotFound
	case http.StatusTooManyRequests:
		return types.ErrorTypeRateLimit
	case http.StatusBadGateway:
		return types.ErrorTypeExternal
	default:
		return types.ErrorTypeInternal
	}
}
