package metrics

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// SystemMetrics holds a snapshot of host and process resource usage
type SystemMetrics struct {
	CPUPercent        float64 // System-wide CPU usage (0-100%)
	ProcessCPUPercent float64 // This process, can exceed 100% on multi-core
	ProcessRSSMB      float64
	MemoryUsedGB      float64
	MemoryPercent     float64
	Timestamp         time.Time
}

// ProgressFunc reports the current state of a run as log fields
type ProgressFunc func() []zap.Field

// Collector periodically logs run progress together with system metrics
type Collector struct {
	interval    time.Duration
	logger      *zap.Logger
	progress    ProgressFunc
	proc        *process.Process
	mu          sync.RWMutex
	lastMetrics *SystemMetrics
}

// NewCollector creates a collector. progress may be nil.
func NewCollector(interval time.Duration, logger *zap.Logger, progress ProgressFunc) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}

	proc, _ := process.NewProcess(int32(os.Getpid()))

	return &Collector{
		interval: interval,
		logger:   logger,
		progress: progress,
		proc:     proc,
	}
}

// Start logs a sample every interval until ctx is cancelled
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// First sample initializes the CPU baselines
	c.sample()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Metrics collection stopped")
			return
		case <-ticker.C:
			c.logSample(c.sample())
		}
	}
}

// GetMetrics returns the last collected metrics
func (c *Collector) GetMetrics() *SystemMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastMetrics
}

// sample gathers the current system metrics
func (c *Collector) sample() *SystemMetrics {
	m := &SystemMetrics{Timestamp: time.Now()}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		m.CPUPercent = pct[0]
	}

	if c.proc != nil {
		if pct, err := c.proc.Percent(0); err == nil {
			m.ProcessCPUPercent = pct
		}
		if info, err := c.proc.MemoryInfo(); err == nil {
			m.ProcessRSSMB = float64(info.RSS) / (1024 * 1024)
		}
	}

	if vmem, err := mem.VirtualMemory(); err == nil {
		m.MemoryPercent = vmem.UsedPercent
		m.MemoryUsedGB = float64(vmem.Used) / (1024 * 1024 * 1024)
	}

	c.mu.Lock()
	c.lastMetrics = m
	c.mu.Unlock()

	return m
}

func (c *Collector) logSample(m *SystemMetrics) {
	var fields []zap.Field
	if c.progress != nil {
		fields = append(fields, c.progress()...)
	}
	fields = append(fields,
		zap.Float64("sys_cpu", m.CPUPercent),
		zap.Float64("proc_cpu", m.ProcessCPUPercent),
		zap.String("proc_rss", fmt.Sprintf("%.1f MB", m.ProcessRSSMB)),
		zap.Float64("mem_pct", m.MemoryPercent),
		zap.String("mem_used", fmt.Sprintf("%.1f GB", m.MemoryUsedGB)),
	)
	c.logger.Info("Progress", fields...)
}
