package observability

import (
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// MonitorStats is the aggregated snapshot served by the health endpoint.
type MonitorStats struct {
	UptimeSeconds     int64   `json:"uptime_seconds"`
	ActiveConnections int64   `json:"active_connections"`
	ConnectionsOpened uint64  `json:"connections_opened"`
	MessagesPosted    uint64  `json:"messages_posted"`
	RoomsCreated      uint64  `json:"rooms_created"`
	RoomsDeleted      uint64  `json:"rooms_deleted"`
	RSSBytes          uint64  `json:"rss_bytes"`
	CPUPercent        float64 `json:"cpu_percent"`
}

// Monitor tracks process-level telemetry with atomic counters. It has no
// locks on the hot path; the process self-stats are collected only when a
// snapshot is requested.
type Monitor struct {
	log       *slog.Logger
	startedAt time.Time

	connectionsOpened uint64
	connectionsClosed uint64
	messagesPosted    uint64
	roomsCreated      uint64
	roomsDeleted      uint64
}

func NewMonitor(log *slog.Logger) *Monitor {
	return &Monitor{log: log, startedAt: time.Now()}
}

func (m *Monitor) IncrConnectionsOpened() {
	atomic.AddUint64(&m.connectionsOpened, 1)
}

func (m *Monitor) IncrConnectionsClosed() {
	atomic.AddUint64(&m.connectionsClosed, 1)
}

func (m *Monitor) IncrMessagesPosted() {
	atomic.AddUint64(&m.messagesPosted, 1)
}

func (m *Monitor) IncrRoomsCreated() {
	atomic.AddUint64(&m.roomsCreated, 1)
}

func (m *Monitor) IncrRoomsDeleted() {
	atomic.AddUint64(&m.roomsDeleted, 1)
}

// Snapshot collects the current counters plus process memory and CPU usage.
// Self-stats failures are logged and zeroed, never fatal: the health
// endpoint must answer even when the process API is unavailable.
func (m *Monitor) Snapshot() MonitorStats {
	opened := atomic.LoadUint64(&m.connectionsOpened)
	closed := atomic.LoadUint64(&m.connectionsClosed)

	stats := MonitorStats{
		UptimeSeconds:     int64(time.Since(m.startedAt).Seconds()),
		ActiveConnections: int64(opened) - int64(closed),
		ConnectionsOpened: opened,
		MessagesPosted:    atomic.LoadUint64(&m.messagesPosted),
		RoomsCreated:      atomic.LoadUint64(&m.roomsCreated),
		RoomsDeleted:      atomic.LoadUint64(&m.roomsDeleted),
	}

	rss, cpu, err := selfStats()
	if err != nil {
		m.log.Debug("Failed to collect self stats", "err", err)
		return stats
	}
	stats.RSSBytes = rss
	stats.CPUPercent = cpu
	return stats
}

// selfStats retrieves memory and CPU metrics for the current process.
func selfStats() (uint64, float64, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, 0, err
	}
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
