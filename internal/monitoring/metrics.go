package monitoring

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type Metrics struct {
	RequestCount    int64            `json:"request_count"`
	RequestDuration time.Duration    `json:"avg_request_duration_ns"`
	ActiveRequests  int64            `json:"active_requests"`
	ErrorCount      int64            `json:"error_count"`
	StatusCodes     map[string]int64 `json:"status_codes"`
	Endpoints       map[string]int64 `json:"endpoint_calls"`
	StartTime       time.Time        `json:"start_time"`
	LastRequest     time.Time        `json:"last_request"`
}

type HealthCheck struct {
	Name    string    `json:"name"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	LastRun time.Time `json:"last_run"`
}

type HealthCheckFunc func(ctx context.Context) error

type StatsFunc func() map[string]interface{}

// Monitor collects request metrics and runs registered dependency checks.
type Monitor struct {
	mu            sync.RWMutex
	metrics       Metrics
	totalDuration time.Duration

	checksMu     sync.RWMutex
	checks       map[string]HealthCheckFunc
	stats        map[string]StatsFunc
	checkTimeout time.Duration
}

func NewMonitor() *Monitor {
	return &Monitor{
		metrics: Metrics{
			StatusCodes: make(map[string]int64),
			Endpoints:   make(map[string]int64),
			StartTime:   time.Now(),
		},
		checks:       make(map[string]HealthCheckFunc),
		stats:        make(map[string]StatsFunc),
		checkTimeout: 5 * time.Second,
	}
}

// MetricsMiddleware records every request, including one whose handler
// panics past it; that request counts as a 500 and the panic continues.
func (m *Monitor) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		m.mu.Lock()
		m.metrics.ActiveRequests++
		m.mu.Unlock()

		defer func() {
			rec := recover()
			statusCode := c.Writer.Status()
			if rec != nil {
				statusCode = http.StatusInternalServerError
			}
			m.record(c, statusCode, time.Since(start))
			if rec != nil {
				panic(rec)
			}
		}()

		c.Next()
	}
}

func (m *Monitor) record(c *gin.Context, statusCode int, duration time.Duration) {
	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}
	endpoint := c.Request.Method + " " + path

	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics.RequestCount++
	m.metrics.ActiveRequests--
	m.totalDuration += duration
	m.metrics.RequestDuration = m.totalDuration / time.Duration(m.metrics.RequestCount)
	m.metrics.LastRequest = time.Now()

	if statusCode >= 400 {
		m.metrics.ErrorCount++
	}
	m.metrics.StatusCodes[strconv.Itoa(statusCode)]++
	m.metrics.Endpoints[endpoint]++
}

func (m *Monitor) GetMetrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := m.metrics
	snapshot.StatusCodes = make(map[string]int64, len(m.metrics.StatusCodes))
	snapshot.Endpoints = make(map[string]int64, len(m.metrics.Endpoints))
	for k, v := range m.metrics.StatusCodes {
		snapshot.StatusCodes[k] = v
	}
	for k, v := range m.metrics.Endpoints {
		snapshot.Endpoints[k] = v
	}
	return snapshot
}

type SystemMetrics struct {
	Uptime         string      `json:"uptime"`
	MemoryUsage    MemoryStats `json:"memory"`
	GoroutineCount int         `json:"goroutine_count"`
	CPUCount       int         `json:"cpu_count"`
	GoVersion      string      `json:"go_version"`
}

type MemoryStats struct {
	Alloc        uint64 `json:"alloc_mb"`
	TotalAlloc   uint64 `json:"total_alloc_mb"`
	Sys          uint64 `json:"sys_mb"`
	NumGC        uint32 `json:"num_gc"`
	GCPauseTotal string `json:"gc_pause_total"`
}

func (m *Monitor) GetSystemMetrics() SystemMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return SystemMetrics{
		Uptime: time.Since(m.metrics.StartTime).String(),
		MemoryUsage: MemoryStats{
			Alloc:        bToMb(ms.Alloc),
			TotalAlloc:   bToMb(ms.TotalAlloc),
			Sys:          bToMb(ms.Sys),
			NumGC:        ms.NumGC,
			GCPauseTotal: time.Duration(ms.PauseTotalNs).String(),
		},
		GoroutineCount: runtime.NumGoroutine(),
		CPUCount:       runtime.NumCPU(),
		GoVersion:      runtime.Version(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

// RegisterHealthCheck adds a dependency check that runs on every
// /health and /ready request.
func (m *Monitor) RegisterHealthCheck(name string, check HealthCheckFunc) {
	m.checksMu.Lock()
	defer m.checksMu.Unlock()
	m.checks[name] = check
}

// RegisterStats adds a named section to the /metrics response.
func (m *Monitor) RegisterStats(name string, stats StatsFunc) {
	m.checksMu.Lock()
	defer m.checksMu.Unlock()
	m.stats[name] = stats
}

// RunHealthChecks runs every registered check concurrently, each bounded by
// the check timeout.
func (m *Monitor) RunHealthChecks(ctx context.Context) map[string]HealthCheck {
	m.checksMu.RLock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make([]HealthCheckFunc, len(names))
	for i, name := range names {
		checks[i] = m.checks[name]
	}
	m.checksMu.RUnlock()

	results := make([]HealthCheck, len(names))
	var wg sync.WaitGroup
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, m.checkTimeout)
			defer cancel()

			result := HealthCheck{Name: names[i], Status: "healthy", LastRun: time.Now()}
			if err := checks[i](checkCtx); err != nil {
				result.Status = "unhealthy"
				result.Message = err.Error()
			}
			results[i] = result
		}(i)
	}
	wg.Wait()

	out := make(map[string]HealthCheck, len(results))
	for _, result := range results {
		out[result.Name] = result
	}
	return out
}

func allHealthy(checks map[string]HealthCheck) bool {
	for _, check := range checks {
		if check.Status != "healthy" {
			return false
		}
	}
	return true
}

func (m *Monitor) MetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.checksMu.RLock()
		extra := make(map[string]interface{}, len(m.stats))
		for name, stats := range m.stats {
			extra[name] = stats()
		}
		m.checksMu.RUnlock()

		c.JSON(http.StatusOK, gin.H{
			"application": m.GetMetrics(),
			"system":      m.GetSystemMetrics(),
			"components":  extra,
			"timestamp":   time.Now(),
		})
	}
}

func (m *Monitor) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := m.RunHealthChecks(c.Request.Context())

		overallStatus := "healthy"
		status := http.StatusOK
		if !allHealthy(checks) {
			overallStatus = "unhealthy"
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"status":    overallStatus,
			"timestamp": time.Now(),
			"checks":    checks,
			"uptime":    time.Since(m.metrics.StartTime).String(),
		})
	}
}

func (m *Monitor) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if allHealthy(m.RunHealthChecks(c.Request.Context())) {
			c.JSON(http.StatusOK, gin.H{
				"status":    "ready",
				"timestamp": time.Now(),
			})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not ready",
			"timestamp": time.Now(),
		})
	}
}

func (m *Monitor) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": time.Now(),
			"uptime":    time.Since(m.metrics.StartTime).String(),
		})
	}
}
