package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/medrex/clinic-portal/internal/cache"
	"github.com/medrex/clinic-portal/internal/iam"
	"github.com/medrex/clinic-portal/internal/mockdata"
	rbacengine "github.com/medrex/clinic-portal/internal/rbac"
	"github.com/medrex/clinic-portal/pkg/logger"
	"github.com/medrex/clinic-portal/pkg/monitoring"
	"github.com/medrex/clinic-portal/pkg/rbac"
	"github.com/medrex/clinic-portal/pkg/types"
)

type auditCapture struct {
	mu      sync.Mutex
	records []*rbac.AuditRecord
}

func (a *auditCapture) Record(_ context.Context, record *rbac.AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, record)
	return nil
}

func (a *auditCapture) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

type testEnv struct {
	service *Service
	auth    *iam.Service
	source  *mockdata.Source
	data    *cache.Gateway
	audit   *auditCapture
}

func setupGatewayTest(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	now := func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	audit := &auditCapture{}
	source := mockdata.NewSource(now)
	data := cache.New(source)
	t.Cleanup(func() { data.Close() })

	auth := iam.NewService(
		iam.NewTokenIssuer("test-secret", "clinic-portal", time.Hour, now),
		iam.WithClock(now),
		iam.WithClinicResolver(mockdata.ClinicAssignments),
	)
	evaluator := rbacengine.NewEvaluator(rbacengine.WithAuditSink(audit))

	return &testEnv{
		service: NewService(Config{}, auth, evaluator, data, opts...),
		auth:    auth,
		source:  source,
		data:    data,
		audit:   audit,
	}
}

func (e *testEnv) login(t *testing.T, email, role string) types.LoginResult {
	t.Helper()
	w := e.do(http.MethodPost, "/api/login", "", types.Credentials{Email: email, Password: "pw", Role: role})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result types.LoginResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	return result
}

// token logs in and returns the bearer credential
func (e *testEnv) token(t *testing.T, email, role string) string {
	t.Helper()
	result := e.login(t, email, role)
	require.NotEmpty(t, result.AccessToken)
	return result.AccessToken
}

func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	return e.doFrom("", method, path, token, body)
}

// doFrom sends the request as if from the client address addr
func (e *testEnv) doFrom(addr, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if addr != "" {
		req.Header.Set("X-Forwarded-For", addr)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.service.Handler().ServeHTTP(w, req)
	return w
}

func TestGateway_Login(t *testing.T) {
	env := setupGatewayTest(t)

	t.Run("success", func(t *testing.T) {
		result := env.login(t, "a@b.com", "doctor")
		assert.True(t, result.Success)
		assert.Equal(t, "mock-token-doctor-1772357400000", result.Token)
		assert.NotEmpty(t, result.AccessToken)
	})

	t.Run("empty email", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/login", "", types.Credentials{Email: "", Password: "x", Role: "patient"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var result types.LoginResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.False(t, result.Success)
		assert.Equal(t, "Email and password are required", result.Error)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader("{"))
		w := httptest.NewRecorder()
		env.service.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGateway_RequiresAuthentication(t *testing.T) {
	env := setupGatewayTest(t)
	display := env.login(t, "admin@clinic.org", "administrator").Token

	tests := []struct {
		name  string
		token string
	}{
		{name: "no token", token: ""},
		{name: "login display token", token: display},
		{name: "guessed display token", token: "mock-token-administrator-1772357400001"},
		{name: "garbage", token: "abc.def.ghi"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(http.MethodGet, "/api/appointments", tc.token, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestGateway_DisplayTokenCannotAdministerCache(t *testing.T) {
	env := setupGatewayTest(t)
	admin := env.login(t, "admin@clinic.org", "administrator")
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/metrics", admin.AccessToken, nil).Code)

	forged := fmt.Sprintf("mock-token-administrator-%d", time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC).UnixMilli())
	require.Equal(t, admin.Token, forged)

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodDelete, "/api/cache", forged, nil).Code)
	stats, err := env.data.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)
}

func TestGateway_SameMillisecondLoginsStayDistinct(t *testing.T) {
	env := setupGatewayTest(t)
	alvarez := env.login(t, mockdata.PatientAlvarezEmail, "patient")
	okafor := env.login(t, mockdata.PatientOkaforEmail, "patient")

	assert.Equal(t, alvarez.Token, okafor.Token)
	assert.NotEqual(t, alvarez.AccessToken, okafor.AccessToken)

	for email, token := range map[string]string{
		mockdata.PatientAlvarezEmail: alvarez.AccessToken,
		mockdata.PatientOkaforEmail:  okafor.AccessToken,
	} {
		w := env.do(http.MethodGet, "/api/session", token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var body SessionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, email, body.Email)
		assert.Equal(t, iam.UserIDForEmail(email), body.UserID)
	}
}
func TestGateway_Session(t *testing.T) {
	env := setupGatewayTest(t)
	token := env.token(t, "nurse@clinic.org", "staff")

	w := env.do(http.MethodGet, "/api/session", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "staff", body["role"])
	assert.Equal(t, rbac.RouteStaffDashboard, body["dashboard_route"])
	assert.Equal(t, iam.UserIDForEmail("nurse@clinic.org"), body["user_id"])

	perms := body["permissions"].(map[string]interface{})["permissions"].(map[string]interface{})
	assert.Len(t, perms, 7)
	assert.Equal(t, "write", perms["billing"])
	assert.Equal(t, "none", perms["prescription"])
}

func TestGateway_ResourceAccessByRole(t *testing.T) {
	env := setupGatewayTest(t)

	expectations := map[string]map[string]int{
		"administrator": {"appointments": 200, "patients": 200, "doctors": 200, "metrics": 200, "bills": 200},
		"doctor":        {"appointments": 200, "patients": 200, "doctors": 200, "metrics": 403, "bills": 200},
		"patient":       {"appointments": 200, "patients": 200, "doctors": 403, "metrics": 403, "bills": 200},
		"staff":         {"appointments": 200, "patients": 200, "doctors": 200, "metrics": 200, "bills": 200},
		"guest":         {"appointments": 403, "patients": 403, "doctors": 403, "metrics": 403, "bills": 403},
	}

	for role, endpoints := range expectations {
		token := env.token(t, role+"@clinic.org", role)
		for endpoint, status := range endpoints {
			t.Run(role+"/"+endpoint, func(t *testing.T) {
				w := env.do(http.MethodGet, "/api/"+endpoint, token, nil)
				assert.Equal(t, status, w.Code, w.Body.String())
			})
		}
	}
}

func TestGateway_ForbiddenBody(t *testing.T) {
	env := setupGatewayTest(t)
	token := env.token(t, "p@clinic.org", "patient")

	w := env.do(http.MethodGet, "/api/metrics", token, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	var body types.PortalError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, types.ErrorTypeAuthorization, body.Type)
	assert.Equal(t, rbac.ErrorCodeInsufficientPrivileges, body.Code)
	assert.Equal(t, "clinic_settings", body.Details["resource"])
	assert.Equal(t, "read", body.Details["required_level"])
}

func TestGateway_UnknownResource(t *testing.T) {
	env := setupGatewayTest(t)
	token := env.token(t, "admin@clinic.org", "administrator")

	w := env.do(http.MethodGet, "/api/prescriptions", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGateway_MetricsServedFromCache(t *testing.T) {
	env := setupGatewayTest(t)
	token := env.token(t, "admin@clinic.org", "administrator")

	first := env.do(http.MethodGet, "/api/metrics", token, nil)
	second := env.do(http.MethodGet, "/api/metrics", token, nil)

	require.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int64(1), env.source.Generations())
}

func TestGateway_ClinicScope(t *testing.T) {
	env := setupGatewayTest(t)
	staff := env.token(t, mockdata.StaffNorthEmail, "staff")
	admin := env.token(t, "admin@clinic.org", "administrator")

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/appointments?clinic_id=clinic-north", staff, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/appointments?clinic_id=clinic-south", staff, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/appointments?clinic_id=clinic-south", admin, nil).Code)
}

// recordsOf decodes the rows of a resource response
func recordsOf(t *testing.T, w *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Data)
	return body.Data
}

func TestGateway_PatientRecordsScopedToCaller(t *testing.T) {
	env := setupGatewayTest(t)

	tests := []struct {
		name         string
		email        string
		role         string
		patients     int
		appointments int
		bills        int
	}{
		{name: "administrator", email: "admin@medrex.clinic", role: "administrator", patients: 3, appointments: 4, bills: 3},
		{name: "doctor in both clinics", email: mockdata.DoctorRamanEmail, role: "doctor", patients: 3, appointments: 4, bills: 3},
		{name: "doctor in one clinic", email: mockdata.DoctorChenEmail, role: "doctor", patients: 2, appointments: 2, bills: 2},
		{name: "unassigned doctor", email: "locum@medrex.clinic", role: "doctor", patients: 0, appointments: 0, bills: 0},
		{name: "south desk staff", email: mockdata.StaffSouthEmail, role: "staff", patients: 1, appointments: 2, bills: 1},
		{name: "patient", email: mockdata.PatientAlvarezEmail, role: "patient", patients: 1, appointments: 2, bills: 1},
		{name: "patient without records", email: "someone@example.com", role: "patient", patients: 0, appointments: 0, bills: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			token := env.token(t, tc.email, tc.role)

			assert.Len(t, recordsOf(t, env.do(http.MethodGet, "/api/patients", token, nil)), tc.patients)
			assert.Len(t, recordsOf(t, env.do(http.MethodGet, "/api/appointments", token, nil)), tc.appointments)
			assert.Len(t, recordsOf(t, env.do(http.MethodGet, "/api/bills", token, nil)), tc.bills)
		})
	}

	t.Run("patient rows belong to the patient", func(t *testing.T) {
		token := env.token(t, mockdata.PatientAlvarezEmail, "patient")
		own := iam.UserIDForEmail(mockdata.PatientAlvarezEmail)

		for _, row := range recordsOf(t, env.do(http.MethodGet, "/api/patients", token, nil)) {
			assert.Equal(t, own, row["id"])
		}
		for _, row := range recordsOf(t, env.do(http.MethodGet, "/api/bills", token, nil)) {
			assert.Equal(t, own, row["patient_id"])
		}
	})

	stats, err := env.data.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Fetches)
}
func TestGateway_Compliance(t *testing.T) {
	env := setupGatewayTest(t)
	doctor := env.token(t, "d@clinic.org", "doctor")
	admin := env.token(t, "admin@clinic.org", "administrator")

	tests := []struct {
		name      string
		token     string
		operation string
		resource  string
		compliant bool
	}{
		{name: "doctor cannot delete", token: doctor, operation: "delete", resource: "medical_report", compliant: false},
		{name: "administrator can delete", token: admin, operation: "delete", resource: "billing", compliant: true},
		{name: "doctor can print reports", token: doctor, operation: "print", resource: "medical_report", compliant: true},
	}

	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/compliance/"+tc.operation, tc.token, ComplianceRequest{
				ResourceType: tc.resource,
				Metadata:     map[string]interface{}{"patient_id": "pat-2001"},
			})
			require.Equal(t, http.StatusOK, w.Code)

			var body ComplianceResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.compliant, body.Compliant)
			assert.Equal(t, tc.operation, body.Operation)
			assert.Equal(t, i+1, env.audit.count())
		})
	}

	t.Run("unknown resource type", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/compliance/view", doctor, ComplianceRequest{ResourceType: "lab_result"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("operation too long", func(t *testing.T) {
		before := env.audit.count()
		operation := strings.Repeat("x", rbac.MaxOperationLength+1)

		w := env.do(http.MethodPost, "/api/compliance/"+operation, doctor, ComplianceRequest{ResourceType: "billing"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, before, env.audit.count())

		w = env.do(http.MethodPost, "/api/compliance/"+operation[1:], doctor, ComplianceRequest{ResourceType: "billing"})
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
func TestGateway_PatientAccess(t *testing.T) {
	env := setupGatewayTest(t)
	doctor := env.token(t, "d@clinic.org", "doctor")
	guest := env.token(t, "g@clinic.org", "guest")

	var body map[string]interface{}

	w := env.do(http.MethodGet, "/api/patient-access/pat-2001", doctor, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["allowed"])

	w = env.do(http.MethodGet, "/api/patient-access/pat-2001", guest, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["allowed"])
}

func TestGateway_CacheAdministration(t *testing.T) {
	env := setupGatewayTest(t)
	staff := env.token(t, "s@clinic.org", "staff")
	admin := env.token(t, "admin@clinic.org", "administrator")

	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/metrics", admin, nil).Code)
	require.Equal(t, int64(1), env.source.Generations())

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodDelete, "/api/cache", staff, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodDelete, "/api/cache/metrics", staff, nil).Code)

	assert.Equal(t, http.StatusOK, env.do(http.MethodDelete, "/api/cache/metrics", admin, nil).Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/metrics", admin, nil).Code)
	assert.Equal(t, int64(2), env.source.Generations())

	assert.Equal(t, http.StatusOK, env.do(http.MethodDelete, "/api/cache", admin, nil).Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/metrics", admin, nil).Code)
	assert.Equal(t, int64(3), env.source.Generations())

	w := env.do(http.MethodGet, "/api/cache/stats", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats cache.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(3), stats.Fetches)
	assert.Equal(t, 1, stats.Entries)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/api/cache/unknown", admin, nil).Code)
}

func TestGateway_Logout(t *testing.T) {
	env := setupGatewayTest(t)
	login := env.login(t, "d@clinic.org", "doctor")

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/appointments", login.AccessToken, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/api/logout", login.Token, nil).Code)

	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/logout", login.AccessToken, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/appointments", login.AccessToken, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/api/logout", login.AccessToken, nil).Code)
	assert.Zero(t, env.auth.ActiveSessions())
}
func TestGateway_RateLimitPerUser(t *testing.T) {
	env := setupGatewayTest(t, WithRateLimiter(NewRateLimiter(0.001, 3)))
	token := env.token(t, "d@clinic.org", "doctor")

	// each request comes from a fresh address so only the user budget is spent
	for i, addr := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		assert.Equal(t, http.StatusOK, env.doFrom(addr, http.MethodGet, "/api/appointments", token, nil).Code, i)
	}
	assert.Equal(t, http.StatusTooManyRequests, env.doFrom("198.51.100.4", http.MethodGet, "/api/appointments", token, nil).Code)

	other := env.token(t, "other@clinic.org", "staff")
	assert.Equal(t, http.StatusOK, env.doFrom("198.51.100.5", http.MethodGet, "/api/appointments", other, nil).Code)
}

func TestGateway_RateLimitRejectedTokens(t *testing.T) {
	env := setupGatewayTest(t, WithRateLimiter(NewRateLimiter(0.001, 3)))

	var statuses []int
	for i := 0; i < 50; i++ {
		guess := fmt.Sprintf("mock-token-administrator-%d", 1772357400000+i)
		statuses = append(statuses, env.doFrom("203.0.113.7", http.MethodDelete, "/api/cache", guess, nil).Code)
	}

	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusUnauthorized}, statuses[:3])
	for _, status := range statuses[3:] {
		assert.Equal(t, http.StatusTooManyRequests, status)
	}

	assert.Equal(t, http.StatusUnauthorized, env.doFrom("203.0.113.8", http.MethodDelete, "/api/cache", "abc.def.ghi", nil).Code)
}
func TestGateway_CORSAndSecurityHeaders(t *testing.T) {
	env := setupGatewayTest(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/appointments", nil)
	w := httptest.NewRecorder()
	env.service.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	w = env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestGateway_MetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetricsCollectorWithRegistry("portal-api", registry, registry)
	env := setupGatewayTest(t, WithMetrics(metrics))

	token := env.token(t, "d@clinic.org", "doctor")
	env.do(http.MethodGet, "/api/doctors", token, nil)

	w := env.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{endpoint="/api/doctors"`)
}

func TestGateway_TracesPHIAccess(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	env := setupGatewayTest(t, WithTracing(monitoring.NewTracingManagerWithProvider("portal-api", provider)))

	token := env.token(t, "d@clinic.org", "doctor")
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/patients", token, nil).Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/patient-access/pat-2001", token, nil).Code)

	names := make(map[string]bool)
	for _, span := range recorder.Ended() {
		names[span.Name()] = true
	}
	assert.True(t, names["GET /api/patients"])
	assert.True(t, names["phi.list"])
	assert.True(t, names["phi.view"])
}

func TestGateway_AuditTrail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	env := setupGatewayTest(t, WithAuditTrail(rbacengine.NewPostgresAuditSink(db, logger.Discard())))
	admin := env.token(t, "admin@clinic.org", "administrator")
	staff := env.token(t, mockdata.StaffNorthEmail, "staff")

	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "event_type", "operation", "user_id", "role", "resource_type", "read_allowed", "timestamp", "metadata"}).
		AddRow("a1", rbac.AuditEventHIPAACheck, "delete", "u-1", "administrator", "billing", true, ts, nil)
	mock.ExpectQuery("SELECT id, event_type, operation").
		WithArgs("u-1", "delete", 5).
		WillReturnRows(rows)

	w := env.do(http.MethodGet, "/api/audit?user_id=u-1&operation=delete&limit=5", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body AuditTrailResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "a1", body.Records[0].ID)
	assert.Equal(t, rbac.ResourceBilling, body.Records[0].ResourceType)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/audit", staff, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/audit?limit=0", admin, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/audit?limit=many", admin, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/audit?offset=-1", admin, nil).Code)
}

func TestGateway_AuditTrailNotServedWithoutStore(t *testing.T) {
	env := setupGatewayTest(t)
	admin := env.token(t, "admin@clinic.org", "administrator")

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/audit", admin, nil).Code)
}
