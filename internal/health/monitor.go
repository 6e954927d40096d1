// Package health implements the atomic engine-selector and per-engine
// failure counters the supervisor's failover contract relies on. The core
// never reads the selector or initiates a switch on its own; it only
// exposes a probe.
package health

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ridopark/chanlun-engine/internal/logger"
)

// ActiveEngine identifies which implementation is currently serving traffic.
type ActiveEngine int32

const (
	Primary ActiveEngine = iota
	Backup
)

func (e ActiveEngine) String() string {
	if e == Backup {
		return "backup"
	}
	return "primary"
}

func (e ActiveEngine) opposite() ActiveEngine {
	if e == Primary {
		return Backup
	}
	return Primary
}

// Status is the coarse probe verdict.
type Status int

const (
	Healthy Status = iota
	Degraded
	Unhealthy
)

func (s Status) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	default:
		return "unhealthy"
	}
}

// Config controls failure thresholds and probe cadence.
type Config struct {
	CheckIntervalMs int
	MaxFailures     int32
	FailoverEnabled bool
}

func DefaultConfig() Config {
	return Config{
		CheckIntervalMs: 1000,
		MaxFailures:     3,
		FailoverEnabled: true,
	}
}

// Monitor tracks the active engine and per-engine failure counters with
// sync/atomic so concurrent reporters never need a lock. A switch is
// performed by at most one goroutine per threshold crossing: the "switching"
// flag is a single-use gate acquired with CompareAndSwapInt32, so whichever
// goroutine's AddInt32 first observes the post-increment count cross
// MaxFailures wins the race and resets both counters; any other goroutine
// crossing the threshold in the same instant finds the gate already taken
// and returns without acting.
type Monitor struct {
	cfg Config
	log zerolog.Logger

	active           int32
	primaryFailures  int32
	backupFailures   int32
	switching        int32
	lastSwitchReason atomic.Value // string
}

func NewMonitor(cfg Config) *Monitor {
	return &Monitor{cfg: cfg, log: logger.NewContextLogger("health_monitor")}
}

// Active returns the engine currently selected.
func (m *Monitor) Active() ActiveEngine {
	return ActiveEngine(atomic.LoadInt32(&m.active))
}

func (m *Monitor) counter(engine ActiveEngine) *int32 {
	if engine == Primary {
		return &m.primaryFailures
	}
	return &m.backupFailures
}

// RecordFailure increments engine's failure counter and, if it crosses
// MaxFailures while engine is still active and failover is enabled,
// switches the active engine and resets both counters.
func (m *Monitor) RecordFailure(engine ActiveEngine) {
	n := atomic.AddInt32(m.counter(engine), 1)
	if !m.cfg.FailoverEnabled {
		return
	}
	if n < m.cfg.MaxFailures {
		return
	}
	if m.Active() != engine {
		return
	}
	m.trySwitch(engine, "failure threshold exceeded")
}

// RecordSuccess clears engine's failure counter.
func (m *Monitor) RecordSuccess(engine ActiveEngine) {
	atomic.StoreInt32(m.counter(engine), 0)
}

func (m *Monitor) trySwitch(from ActiveEngine, reason string) {
	if !atomic.CompareAndSwapInt32(&m.switching, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&m.switching, 0)

	if m.Active() != from {
		return
	}
	to := from.opposite()
	atomic.StoreInt32(&m.active, int32(to))
	atomic.StoreInt32(&m.primaryFailures, 0)
	atomic.StoreInt32(&m.backupFailures, 0)
	m.lastSwitchReason.Store(reason)

	m.log.Warn().
		Str("from", from.String()).
		Str("to", to.String()).
		Str("reason", reason).
		Msg("engine failover switch")
}

// CheckResult is the Health check operation's response.
type CheckResult struct {
	Status    Status
	LatencyMs float64
	Message   string
}

// Check probes the active engine's failure count against the threshold and
// reports Healthy/Degraded/Unhealthy. It never mutates state.
func (m *Monitor) Check() CheckResult {
	start := time.Now()
	active := m.Active()
	n := atomic.LoadInt32(m.counter(active))
	latency := float64(time.Since(start).Nanoseconds()) / 1e6

	switch {
	case n == 0:
		return CheckResult{Status: Healthy, LatencyMs: latency, Message: active.String() + " engine healthy"}
	case n < m.cfg.MaxFailures:
		return CheckResult{Status: Degraded, LatencyMs: latency, Message: active.String() + " engine degraded"}
	default:
		return CheckResult{Status: Unhealthy, LatencyMs: latency, Message: active.String() + " engine unhealthy"}
	}
}

// StatusReport is the Get status operation's response.
type StatusReport struct {
	ActiveEngine     ActiveEngine
	FailoverEnabled  bool
	PrimaryFailures  int32
	BackupFailures   int32
	LastSwitchReason string
}

func (m *Monitor) StatusReport() StatusReport {
	reason, _ := m.lastSwitchReason.Load().(string)
	return StatusReport{
		ActiveEngine:     m.Active(),
		FailoverEnabled:  m.cfg.FailoverEnabled,
		PrimaryFailures:  atomic.LoadInt32(&m.primaryFailures),
		BackupFailures:   atomic.LoadInt32(&m.backupFailures),
		LastSwitchReason: reason,
	}
}
