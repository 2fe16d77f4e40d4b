// metrics.go - Metrics collection for the EndorseGraph node
package server

import (
	"runtime"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// NodeMetrics holds granular health metrics for the node.
type NodeMetrics struct {
	UptimeSeconds  int64   `json:"uptime_seconds"`
	ScoreCount     uint64  `json:"score_count"`
	NicknameCount  uint64  `json:"nickname_count"`
	TopicCount     uint64  `json:"topic_count"`
	CPULoadPercent float64 `json:"cpu_load_percent"`
	MemoryMB       float64 `json:"memory_mb"`
	DiskFreeMB     float64 `json:"disk_free_mb"`
}

// Track server start time for uptime calculation
var startTime = time.Now()

// GetNodeMetrics returns current health metrics for the node.
func (s *Server) GetNodeMetrics() NodeMetrics {
	uptime := int64(time.Since(startTime).Seconds())

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	memoryMB := float64(m.Alloc) / (1024 * 1024)

	var disk syscall.Statfs_t
	diskFreeMB := 0.0
	if err := syscall.Statfs("/", &disk); err == nil {
		diskFreeMB = float64(disk.Bfree) * float64(disk.Bsize) / (1024 * 1024)
	}

	cpuPercents, err := cpu.Percent(0, false)
	cpuLoad := 0.0
	if err == nil && len(cpuPercents) > 0 {
		cpuLoad = cpuPercents[0]
	}

	return NodeMetrics{
		UptimeSeconds:  uptime,
		ScoreCount:     s.ledger.ScoresLength(),
		NicknameCount:  s.registry.ClaimsLength(),
		TopicCount:     s.topics.Count(),
		CPULoadPercent: cpuLoad,
		MemoryMB:       memoryMB,
		DiskFreeMB:     diskFreeMB,
	}
}
