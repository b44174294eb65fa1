package handler

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/mstgnz/gomerchant/gateway"
	"github.com/mstgnz/gomerchant/infra/response"
)

// Pinger is implemented by the storage and search backends
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheStatser reports gateway instance cache statistics
type CacheStatser interface {
	Stats() gateway.CacheStats
}

// HealthHandler handles health check requests
type HealthHandler struct {
	storage     Pinger
	search      Pinger
	cache       CacheStatser
	registry    *gateway.Registry
	dataPath    string
	version     string
	environment string
	startTime   time.Time
}

// HealthStatus represents overall system health
type HealthStatus struct {
	Status      string                    `json:"status"`
	Version     string                    `json:"version"`
	Timestamp   time.Time                 `json:"timestamp"`
	Uptime      string                    `json:"uptime"`
	Environment string                    `json:"environment"`
	Gateways    int                       `json:"gateways"`
	Cache       *gateway.CacheStats       `json:"cache,omitempty"`
	System      *SystemHealth             `json:"system"`
	Services    map[string]*ServiceHealth `json:"services"`
}

// SystemHealth represents system resource health
type SystemHealth struct {
	Memory     *MemoryHealth `json:"memory"`
	Disk       *DiskHealth   `json:"disk,omitempty"`
	GoRoutines int           `json:"goroutines"`
}

// MemoryHealth represents memory usage
type MemoryHealth struct {
	Alloc        string  `json:"alloc"`
	Sys          string  `json:"sys"`
	GCRuns       uint32  `json:"gc_runs"`
	UsagePercent float64 `json:"usage_percent"`
}

// DiskHealth represents usage of the volume holding the database
type DiskHealth struct {
	Available    string  `json:"available"`
	Total        string  `json:"total"`
	UsagePercent float64 `json:"usage_percent"`
	Status       string  `json:"status"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status       string `json:"status"`
	Healthy      bool   `json:"healthy"`
	Critical     bool   `json:"critical"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HealthOptions wires the optional dependencies of the health check
type HealthOptions struct {
	Storage     Pinger
	Search      Pinger
	Cache       CacheStatser
	Registry    *gateway.Registry
	DataPath    string
	Version     string
	Environment string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(opts HealthOptions) *HealthHandler {
	if opts.Registry == nil {
		opts.Registry = gateway.DefaultRegistry
	}
	return &HealthHandler{
		storage:     opts.Storage,
		search:      opts.Search,
		cache:       opts.Cache,
		registry:    opts.Registry,
		dataPath:    opts.DataPath,
		version:     opts.Version,
		environment: opts.Environment,
		startTime:   time.Now(),
	}
}

// CheckHealth reports the state of the service and its backends
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := &HealthStatus{
		Version:     h.version,
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Environment: h.environment,
		Gateways:    len(h.registry.Names()),
		System:      h.checkSystemHealth(),
		Services: map[string]*ServiceHealth{
			"storage":    checkService(ctx, h.storage, true),
			"opensearch": checkService(ctx, h.search, false),
		},
	}
	if h.cache != nil {
		stats := h.cache.Stats()
		health.Cache = &stats
	}

	health.Status = determineOverallStatus(health)

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	_ = response.WriteJSON(w, statusCode, response.Response{
		Code:    statusCode,
		Success: health.Status != "unhealthy",
		Message: fmt.Sprintf("Service is %s", health.Status),
		Data:    health,
	})
}

func checkService(ctx context.Context, p Pinger, critical bool) *ServiceHealth {
	if p == nil {
		return &ServiceHealth{Status: "not_configured", Healthy: !critical, Critical: critical}
	}

	start := time.Now()
	err := p.Ping(ctx)
	service := &ServiceHealth{
		Critical:     critical,
		ResponseTime: fmt.Sprintf("%dms", time.Since(start).Milliseconds()),
	}
	if err != nil {
		service.Status = "unhealthy"
		service.Error = err.Error()
		return service
	}

	service.Status = "healthy"
	service.Healthy = true
	return service
}

// checkSystemHealth checks system resource health
func (h *HealthHandler) checkSystemHealth() *SystemHealth {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	system := &SystemHealth{
		Memory: &MemoryHealth{
			Alloc:        formatBytes(memStats.Alloc),
			Sys:          formatBytes(memStats.Sys),
			GCRuns:       memStats.NumGC,
			UsagePercent: (float64(memStats.Alloc) / float64(memStats.Sys)) * 100,
		},
		GoRoutines: runtime.NumGoroutine(),
	}
	if h.dataPath != "" {
		system.Disk = diskUsage(filepath.Dir(h.dataPath))
	}
	return system
}

// determineOverallStatus determines overall system status
func determineOverallStatus(health *HealthStatus) string {
	status := "healthy"
	for _, service := range health.Services {
		switch {
		case service.Critical && !service.Healthy:
			return "unhealthy"
		case service.Status == "unhealthy":
			status = "degraded"
		}
	}

	if health.Gateways == 0 {
		return "unhealthy"
	}
	if health.System != nil && health.System.Disk != nil && health.System.Disk.UsagePercent > 90 {
		status = "degraded"
	}
	return status
}

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func diskUsage(dir string) *DiskHealth {
	disk := &DiskHealth{Status: "unknown"}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		disk.Status = "error"
		return disk
	}

	available := stat.Bavail * uint64(stat.Bsize)
	total := stat.Blocks * uint64(stat.Bsize)
	if total == 0 {
		return disk
	}
	used := total - (stat.Bfree * uint64(stat.Bsize))

	disk.Available = formatBytes(available)
	disk.Total = formatBytes(total)
	disk.UsagePercent = (float64(used) / float64(total)) * 100

	switch {
	case disk.UsagePercent > 90:
		disk.Status = "critical"
	case disk.UsagePercent > 80:
		disk.Status = "warning"
	default:
		disk.Status = "healthy"
	}
	return disk
}
