package system

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Stats: a point-in-time snapshot of process and host resources.
type Stats struct {
	CPUUsage    float64 `json:"cpu_usage"`    // host CPU utilization (%)
	MemoryUsage float64 `json:"memory_usage"` // host memory utilization (%)
	MemoryTotal uint64  `json:"memory_total"` // bytes
	MemoryUsed  uint64  `json:"memory_used"`  // bytes
	ProcessRSS  uint64  `json:"process_rss"`  // bytes
	Goroutines  int     `json:"goroutines"`
	UptimeSecs  int64   `json:"uptime_secs"`
	GoVersion   string  `json:"go_version"`
}

// Collector: gathers resource statistics for the operator endpoint.
type Collector struct {
	startedAt time.Time
}

// NewCollector: creates the stats collector.
func NewCollector() *Collector {
	return &Collector{startedAt: time.Now()}
}

// CurrentStats: returns the current resource snapshot.
func (c *Collector) CurrentStats(ctx context.Context) (*Stats, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get memory stats: %w", err)
	}

	cpus, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get cpu stats: %w", err)
	}
	var cpuUsage float64
	if len(cpus) > 0 {
		cpuUsage = cpus[0]
	}

	stats := &Stats{
		CPUUsage:    cpuUsage,
		MemoryUsage: v.UsedPercent,
		MemoryTotal: v.Total,
		MemoryUsed:  v.Used,
		Goroutines:  runtime.NumGoroutine(),
		UptimeSecs:  int64(time.Since(c.startedAt).Seconds()),
		GoVersion:   runtime.Version(),
	}

	// RSS is best effort; the snapshot is still useful without it.
	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if memInfo, err := proc.MemoryInfoWithContext(ctx); err == nil {
			stats.ProcessRSS = memInfo.RSS
		}
	}

	return stats, nil
}
