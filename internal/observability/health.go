package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

type ComponentHealth struct {
	Name      string                 `json:"name"`
	Status    HealthStatus           `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Latency   time.Duration          `json:"latency_ms"`
	LastCheck time.Time              `json:"last_check"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type HealthCheckResult struct {
	Status     HealthStatus               `json:"status"`
	Version    string                     `json:"version"`
	Uptime     time.Duration              `json:"uptime"`
	Components map[string]ComponentHealth `json:"components"`
	System     SystemHealth              `json:"system"`
	Timestamp  time.Time                  `json:"timestamp"`
}

type SystemHealth struct {
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc_bytes"`
	HeapSys    uint64 `json:"heap_sys_bytes"`
	HeapInuse  uint64 `json:"heap_inuse_bytes"`
	StackInuse uint64 `json:"stack_inuse_bytes"`
	NumGC      uint32 `json:"num_gc"`
}

type HealthChecker func(ctx context.Context) ComponentHealth

// HealthService aggregates per-dependency checkers (Mongo, cache, event
// bus) behind a short-TTL cache so a burst of readiness probes doesn't
// hammer the dependencies it's checking.
type HealthService struct {
	mu        sync.RWMutex
	checkers  map[string]HealthChecker
	version   string
	startTime time.Time

	lastResult  *HealthCheckResult
	cacheTTL    time.Duration
	lastCheckAt time.Time

	healthGauge   *prometheus.GaugeVec
	checkDuration *prometheus.HistogramVec
}

func NewHealthService(version string) *HealthService {
	hs := &HealthService{
		checkers:  make(map[string]HealthChecker),
		version:   version,
		startTime: time.Now(),
		cacheTTL:  5 * time.Second,
		healthGauge: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coreledger_health_status",
				Help: "Overall health status (1=healthy, 0.5=degraded, 0=unhealthy)",
			},
			[]string{"component"},
		),
		checkDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coreledger_health_check_duration_seconds",
				Help:    "Duration of health checks",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"component"},
		),
	}
	hs.RegisterChecker("runtime", hs.runtimeChecker)
	return hs
}

func (hs *HealthService) RegisterChecker(name string, checker HealthChecker) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.checkers[name] = checker
}

// RegisterMongoDBChecker wraps a ping function (typically client.Ping) as
// a named component check; latency over 100ms is reported as degraded
// rather than unhealthy.
func (hs *HealthService) RegisterMongoDBChecker(pingFunc func(ctx context.Context) error) {
	hs.RegisterChecker("mongodb", func(ctx context.Context) ComponentHealth {
		start := time.Now()
		err := pingFunc(ctx)
		latency := time.Since(start)
		if err != nil {
			return ComponentHealth{Name: "mongodb", Status: HealthStatusUnhealthy, Message: err.Error(), Latency: latency, LastCheck: time.Now()}
		}
		status := HealthStatusHealthy
		if latency > 100*time.Millisecond {
			status = HealthStatusDegraded
		}
		return ComponentHealth{Name: "mongodb", Status: status, Latency: latency, LastCheck: time.Now()}
	})
}

func (hs *HealthService) RegisterRedisChecker(pingFunc func(ctx context.Context) error) {
	hs.RegisterChecker("redis", func(ctx context.Context) ComponentHealth {
		start := time.Now()
		err := pingFunc(ctx)
		latency := time.Since(start)
		if err != nil {
			return ComponentHealth{Name: "redis", Status: HealthStatusUnhealthy, Message: err.Error(), Latency: latency, LastCheck: time.Now()}
		}
		return ComponentHealth{Name: "redis", Status: HealthStatusHealthy, Latency: latency, LastCheck: time.Now()}
	})
}

func (hs *HealthService) RegisterEventBusChecker(checkFunc func(ctx context.Context) error) {
	hs.RegisterChecker("eventbus", func(ctx context.Context) ComponentHealth {
		start := time.Now()
		err := checkFunc(ctx)
		latency := time.Since(start)
		if err != nil {
			return ComponentHealth{Name: "eventbus", Status: HealthStatusUnhealthy, Message: err.Error(), Latency: latency, LastCheck: time.Now()}
		}
		return ComponentHealth{Name: "eventbus", Status: HealthStatusHealthy, Latency: latency, LastCheck: time.Now()}
	})
}

func (hs *HealthService) Check(ctx context.Context) *HealthCheckResult {
	hs.mu.RLock()
	if hs.lastResult != nil && time.Since(hs.lastCheckAt) < hs.cacheTTL {
		result := hs.lastResult
		hs.mu.RUnlock()
		return result
	}
	hs.mu.RUnlock()

	hs.mu.Lock()
	defer hs.mu.Unlock()
	if hs.lastResult != nil && time.Since(hs.lastCheckAt) < hs.cacheTTL {
		return hs.lastResult
	}

	result := &HealthCheckResult{
		Status:     HealthStatusHealthy,
		Version:    hs.version,
		Uptime:     time.Since(hs.startTime),
		Components: make(map[string]ComponentHealth),
		System:     hs.getSystemHealth(),
		Timestamp:  time.Now().UTC(),
	}

	var wg sync.WaitGroup
	results := make(chan ComponentHealth, len(hs.checkers))
	for name, checker := range hs.checkers {
		wg.Add(1)
		go func(name string, checker HealthChecker) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			start := time.Now()
			health := checker(checkCtx)
			hs.checkDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

			statusValue := 1.0
			if health.Status == HealthStatusDegraded {
				statusValue = 0.5
			} else if health.Status == HealthStatusUnhealthy {
				statusValue = 0
			}
			hs.healthGauge.WithLabelValues(name).Set(statusValue)

			results <- health
		}(name, checker)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for health := range results {
		result.Components[health.Name] = health
		if health.Status == HealthStatusUnhealthy {
			result.Status = HealthStatusUnhealthy
		} else if health.Status == HealthStatusDegraded && result.Status != HealthStatusUnhealthy {
			result.Status = HealthStatusDegraded
		}
	}

	hs.lastResult = result
	hs.lastCheckAt = time.Now()
	return result
}

func (hs *HealthService) Liveness(ctx context.Context) bool {
	return true
}

func (hs *HealthService) Readiness(ctx context.Context) bool {
	return hs.Check(ctx).Status != HealthStatusUnhealthy
}

func (hs *HealthService) runtimeChecker(ctx context.Context) ComponentHealth {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	goroutines := runtime.NumGoroutine()
	status := HealthStatusHealthy
	if goroutines > 10000 {
		status = HealthStatusDegraded
	}
	if goroutines > 50000 {
		status = HealthStatusUnhealthy
	}
	heapPercent := float64(memStats.HeapAlloc) / float64(memStats.HeapSys) * 100
	if heapPercent > 90 {
		status = HealthStatusDegraded
	}

	return ComponentHealth{
		Name:      "runtime",
		Status:    status,
		LastCheck: time.Now(),
		Metadata: map[string]interface{}{
			"goroutines":   goroutines,
			"heap_alloc_mb": memStats.HeapAlloc / 1024 / 1024,
			"heap_percent": heapPercent,
		},
	}
}

func (hs *HealthService) getSystemHealth() SystemHealth {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return SystemHealth{
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  memStats.HeapAlloc,
		HeapSys:    memStats.HeapSys,
		HeapInuse:  memStats.HeapInuse,
		StackInuse: memStats.StackInuse,
		NumGC:      memStats.NumGC,
	}
}

// HTTPHandler exposes /health, /health/live and /health/ready, the shape
// Kubernetes liveness/readiness probes expect.
func (hs *HealthService) HTTPHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		result := hs.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		statusCode := http.StatusOK
		if result.Status == HealthStatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(result)
	})

	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		if hs.Liveness(r.Context()) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("NOT OK"))
	})

	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if hs.Readiness(r.Context()) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("NOT READY"))
	})

	return mux
}

// StartBackgroundChecks runs Check on a ticker so the cached result stays
// warm and status flips get logged even between probe requests.
func (hs *HealthService) StartBackgroundChecks(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				hs.Check(ctx)
			}
		}
	}()
}
