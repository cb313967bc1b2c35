package packer

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// statsInterval is how often the child process gets sampled during a run.
const statsInterval = 15 * time.Second

// sampleStats periodically logs CPU and memory usage of the packer process.
// Builds can run for a long time; the samples make runaway builders visible
// without attaching a debugger. Stops when the process exits or the context
// is cancelled.
func sampleStats(ctx context.Context, pid int) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		slog.Debug("cannot sample packer process", "pid", pid, "error", err)
		return
	}

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			running, err := proc.IsRunning()
			if err != nil || !running {
				return
			}
			cpuPercent, _ := proc.CPUPercent()
			var rssMB float64
			if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
				rssMB = float64(mem.RSS) / (1024 * 1024)
			}
			slog.Info("packer resource usage", "pid", pid,
				"cpuPercent", cpuPercent, "rssMB", rssMB)
		}
	}
}
