package monitoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck is the outcome of one dependency probe
type HealthCheck struct {
	Name        string                 `json:"name"`
	Status      HealthStatus           `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// HealthReport aggregates every registered probe. Checks are sorted by name.
type HealthReport struct {
	Status    HealthStatus   `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Service   string         `json:"service"`
	Version   string         `json:"version"`
	Checks    []HealthCheck  `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// HealthChecker probes one dependency
type HealthChecker interface {
	Check(ctx context.Context) HealthCheck
}

// HealthCheckFunc adapts a function to HealthChecker
type HealthCheckFunc func(ctx context.Context) HealthCheck

// Check calls f(ctx)
func (f HealthCheckFunc) Check(ctx context.Context) HealthCheck {
	return f(ctx)
}

// HealthManager runs registered checkers and serves the aggregate report
type HealthManager struct {
	serviceName    string
	serviceVersion string

	mu       sync.RWMutex
	checkers map[string]HealthChecker
	timeout  time.Duration
}

// NewHealthManager creates a manager with a 5s per-check timeout
func NewHealthManager(serviceName, serviceVersion string) *HealthManager {
	return &HealthManager{
		serviceName:    serviceName,
		serviceVersion: serviceVersion,
		checkers:       make(map[string]HealthChecker),
		timeout:        5 * time.Second,
	}
}

// RegisterChecker registers checker under name, replacing any previous one
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

// SetTimeout bounds each individual check
func (hm *HealthManager) SetTimeout(timeout time.Duration) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.timeout = timeout
}

// CheckHealth runs every checker concurrently. Any unhealthy check makes the
// report unhealthy; otherwise any degraded check makes it degraded.
func (hm *HealthManager) CheckHealth(ctx context.Context) *HealthReport {
	hm.mu.RLock()
	names := make([]string, 0, len(hm.checkers))
	checkers := make([]HealthChecker, 0, len(hm.checkers))
	for name, checker := range hm.checkers {
		names = append(names, name)
		checkers = append(checkers, checker)
	}
	timeout := hm.timeout
	hm.mu.RUnlock()

	checks := make([]HealthCheck, len(checkers))
	var g errgroup.Group
	for i := range checkers {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			check := checkers[i].Check(checkCtx)
			check.Name = names[i]
			check.LastChecked = start
			check.Duration = time.Since(start)
			checks[i] = check
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(checks, func(a, b int) bool { return checks[a].Name < checks[b].Name })

	report := &HealthReport{
		Status:    HealthStatusHealthy,
		Service:   hm.serviceName,
		Version:   hm.serviceVersion,
		Timestamp: time.Now(),
		Checks:    checks,
		Summary:   make(map[string]int),
	}
	for _, check := range checks {
		report.Summary[string(check.Status)]++
	}

	switch {
	case report.Summary[string(HealthStatusUnhealthy)] > 0:
		report.Status = HealthStatusUnhealthy
	case report.Summary[string(HealthStatusDegraded)] > 0:
		report.Status = HealthStatusDegraded
	}
	return report
}

// HTTPHandler serves the report. Degraded still answers 200.
func (hm *HealthManager) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := hm.CheckHealth(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if report.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(report)
	}
}

// DatabaseHealthChecker pings the audit database and reports pool usage
type DatabaseHealthChecker struct {
	db *sql.DB
}

// NewDatabaseHealthChecker creates a checker for db
func NewDatabaseHealthChecker(db *sql.DB) *DatabaseHealthChecker {
	return &DatabaseHealthChecker{db: db}
}

// Check implements HealthChecker
func (dhc *DatabaseHealthChecker) Check(ctx context.Context) HealthCheck {
	if err := dhc.db.PingContext(ctx); err != nil {
		return HealthCheck{
			Status:  HealthStatusUnhealthy,
			Message: fmt.Sprintf("Database connection failed: %v", err),
		}
	}

	stats := dhc.db.Stats()
	check := HealthCheck{
		Status:  HealthStatusHealthy,
		Message: "Database connection healthy",
		Details: map[string]interface{}{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
			"wait_count":       stats.WaitCount,
		},
	}

	// audit inserts queue behind a saturated pool
	if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
		check.Status = HealthStatusDegraded
		check.Message = "Database connection pool exhausted"
	}
	return check
}

// Pinger is anything that can report reachability, such as a cache store or database
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingHealthChecker marks a dependency unhealthy when its ping fails. A
// non-critical dependency is reported as degraded instead.
type PingHealthChecker struct {
	target   Pinger
	critical bool
}

// NewPingHealthChecker creates a checker for target
func NewPingHealthChecker(target Pinger, critical bool) *PingHealthChecker {
	return &PingHealthChecker{target: target, critical: critical}
}

// Check implements HealthChecker
func (p *PingHealthChecker) Check(ctx context.Context) HealthCheck {
	if err := p.target.Ping(ctx); err != nil {
		status := HealthStatusDegraded
		if p.critical {
			status = HealthStatusUnhealthy
		}
		return HealthCheck{Status: status, Message: fmt.Sprintf("ping failed: %v", err)}
	}
	return HealthCheck{Status: HealthStatusHealthy, Message: "reachable"}
}
