package procmon

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// KVBucketConfig configures NATS JetStream KV bucket names and TTLs.
type KVBucketConfig struct {
	// HeartbeatBucket is the bucket name for process heartbeats.
	HeartbeatBucket string `yaml:"heartbeatBucket"`

	// ElectionBucket is the bucket name for leader election.
	ElectionBucket string `yaml:"electionBucket"`

	// RosterBucket is the bucket name for published liveness rosters.
	RosterBucket string `yaml:"rosterBucket"`

	// RosterTTL is how long roster snapshots remain in KV (0 = no expiration).
	// Rosters should persist across leader changes for version continuity.
	// Recommended: 0 (no TTL) or very long (e.g., 1 hour).
	RosterTTL time.Duration `yaml:"rosterTtl"`
}

// ============================================================================
// Timing Configuration Model (Three-Tier System)
// ============================================================================
//
// The monitor uses a three-tier timing model for predictable liveness verdicts:
//
// ┌─────────────────────────────────────────────────────────────────────────┐
// │ TIER 1: Heartbeat Production - How often processes prove liveness      │
// ├─────────────────────────────────────────────────────────────────────────┤
// │ • HeartbeatInterval: 2s (configurable)                                 │
// │   - Cadence at which each process publishes to the heartbeat bucket    │
// │ • HeartbeatTTL: 6s (configurable)                                      │
// │   - KV lease; entries of crashed processes expire on their own         │
// └─────────────────────────────────────────────────────────────────────────┘
//
// ┌─────────────────────────────────────────────────────────────────────────┐
// │ TIER 2: Liveness Evaluation - How the monitor turns evidence into      │
// │         verdicts                                                        │
// ├─────────────────────────────────────────────────────────────────────────┤
// │ • PollInterval: 500ms (configurable)                                   │
// │   - Cadence at which every tracked process is stepped through its      │
// │     detector                                                           │
// │ • LivenessTimeout: 6s (configurable)                                   │
// │   - Maximum silence before a process is declared Dead                  │
// │ • WaitBound: 0 (reserved)                                              │
// │   - Accepted and threaded through for interface stability; current     │
// │     evaluation ignores it                                              │
// └─────────────────────────────────────────────────────────────────────────┘
//
// ┌─────────────────────────────────────────────────────────────────────────┐
// │ TIER 3: Coordination - How monitor replicas divide responsibility      │
// ├─────────────────────────────────────────────────────────────────────────┤
// │ • ElectionTTL: 15s (configurable)                                      │
// │   - Leadership lease duration; renewed every ElectionTTL/3             │
// │ • SourceRefreshInterval: 30s (configurable)                            │
// │   - How often the tracked set is reconciled against the ProcessSource  │
// │ • RosterPublishInterval: 5s (configurable)                             │
// │   - How often the leader publishes the roster snapshot                 │
// └─────────────────────────────────────────────────────────────────────────┘
//
// Execution Flow Example:
//
//	T+0.0s: Process publishes heartbeat (Tier 1)
//	T+0.3s: Watcher observes the KV write, marks evidence pending
//	T+0.5s: Poll sweep steps the detector with the evidence → Alive
//	T+2.0s: Process crashes; heartbeats stop
//	T+8.0s: Silence exceeds LivenessTimeout (6s) → detector reports Dead
//	T+8.5s: Leader's next roster publish carries the Dead verdict (Tier 3)
//
// Configuration Constraints:
//   - LivenessTimeout >= 2 * HeartbeatInterval (allow one missed heartbeat)
//   - HeartbeatTTL >= 2 * HeartbeatInterval (KV entry must outlive one miss)
//   - PollInterval <= LivenessTimeout / 2 (sample each timeout window twice)
//
// ============================================================================

// Config is the shared configuration for a process-monitor deployment.
//
// All duration fields accept standard Go duration strings like "30s", "5m", "1h".
type Config struct {
	// InstanceID identifies this monitor replica in leader election and
	// roster attribution. Leave empty to auto-generate a unique ID.
	InstanceID string `yaml:"instanceId"`

	// LivenessTimeout is the maximum heartbeat silence before a process is
	// declared Dead. Measured against the monitor's clock at each poll.
	// Must be at least 2x HeartbeatInterval.
	// Recommended: 3x HeartbeatInterval.
	LivenessTimeout time.Duration `yaml:"livenessTimeout"`

	// WaitBound is reserved for future grace-window semantics. It is
	// accepted, validated, and threaded through to the detectors, but the
	// current evaluation ignores it. Leave at 0.
	WaitBound time.Duration `yaml:"waitBound"`

	// PollInterval is how often the monitor re-evaluates every tracked
	// process. Shorter intervals tighten detection latency but burn CPU.
	// Must be positive and no more than half of LivenessTimeout.
	// Recommended: 500 milliseconds.
	PollInterval time.Duration `yaml:"pollInterval"`

	// HeartbeatInterval is how often monitored processes publish heartbeat
	// messages. Shorter intervals provide faster failure detection but
	// increase network traffic.
	// Recommended: 2-5 seconds.
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`

	// HeartbeatTTL is how long heartbeat entries remain in the KV bucket
	// before expiring on their own. Must be greater than HeartbeatInterval.
	// Recommended: 3x HeartbeatInterval.
	HeartbeatTTL time.Duration `yaml:"heartbeatTtl"`

	// ElectionTTL is the leadership lease duration. The leader renews every
	// ElectionTTL/3; followers take over once the lease expires.
	// Recommended: 15 seconds.
	ElectionTTL time.Duration `yaml:"electionTtl"`

	// SourceRefreshInterval is how often the tracked process set is
	// reconciled against the configured ProcessSource.
	// Recommended: 30 seconds.
	SourceRefreshInterval time.Duration `yaml:"sourceRefreshInterval"`

	// RosterPublishInterval is how often the leader publishes the roster
	// snapshot to the roster bucket. Unchanged rosters are skipped.
	// Recommended: 5 seconds.
	RosterPublishInterval time.Duration `yaml:"rosterPublishInterval"`

	// OperationTimeout is the timeout for KV operations (get, put, delete).
	// Recommended: 10 seconds.
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// StartupTimeout is the maximum time to wait for the monitor to fully
	// start. Includes the initial source sync and the first leadership
	// request.
	// Recommended: 30 seconds.
	StartupTimeout time.Duration `yaml:"startupTimeout"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Includes releasing leadership and draining the poll loop.
	// Recommended: 10 seconds.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// KVBuckets controls NATS JetStream KV bucket configuration.
	KVBuckets KVBucketConfig `yaml:"kvBuckets"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// InstanceID is left empty; SetDefaults generates one when missing.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		LivenessTimeout:       6 * time.Second,
		WaitBound:             0, // Reserved
		PollInterval:          500 * time.Millisecond,
		HeartbeatInterval:     2 * time.Second,
		HeartbeatTTL:          6 * time.Second,
		ElectionTTL:           15 * time.Second,
		SourceRefreshInterval: 30 * time.Second,
		RosterPublishInterval: 5 * time.Second,
		OperationTimeout:      10 * time.Second,
		StartupTimeout:        30 * time.Second,
		ShutdownTimeout:       10 * time.Second,
		KVBuckets: KVBucketConfig{
			HeartbeatBucket: "procmon-heartbeat",
			ElectionBucket:  "procmon-election",
			RosterBucket:    "procmon-roster",
			RosterTTL:       0, // No TTL - rosters persist for version continuity
		},
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.InstanceID == "" {
		cfg.InstanceID = "monitor-" + uuid.NewString()[:8]
	}
	if cfg.LivenessTimeout == 0 {
		cfg.LivenessTimeout = defaults.LivenessTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if cfg.HeartbeatTTL == 0 {
		cfg.HeartbeatTTL = defaults.HeartbeatTTL
	}
	if cfg.ElectionTTL == 0 {
		cfg.ElectionTTL = defaults.ElectionTTL
	}
	if cfg.SourceRefreshInterval == 0 {
		cfg.SourceRefreshInterval = defaults.SourceRefreshInterval
	}
	if cfg.RosterPublishInterval == 0 {
		cfg.RosterPublishInterval = defaults.RosterPublishInterval
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = defaults.StartupTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if cfg.KVBuckets.HeartbeatBucket == "" {
		cfg.KVBuckets.HeartbeatBucket = defaults.KVBuckets.HeartbeatBucket
	}
	if cfg.KVBuckets.ElectionBucket == "" {
		cfg.KVBuckets.ElectionBucket = defaults.KVBuckets.ElectionBucket
	}
	if cfg.KVBuckets.RosterBucket == "" {
		cfg.KVBuckets.RosterBucket = defaults.KVBuckets.RosterBucket
	}
	// Note: RosterTTL of 0 is valid (no expiration), so we don't apply default
	// Note: WaitBound of 0 is the reserved default, so we don't apply default
}

// TTL Configuration Guide
// =======================
//
// This library uses three different TTLs with specific purposes and constraints:
//
// 1. HeartbeatTTL (Default: 6s)
//    Purpose: Heartbeat entry lease in NATS KV
//    Renewal: Heartbeat published every HeartbeatInterval (2s)
//    Expiry Impact: Entry vanishes; the watcher stops reporting evidence and
//    the detector declares the process Dead after LivenessTimeout
//    Recommendation: Set to 3x HeartbeatInterval
//
// 2. ElectionTTL (Default: 15s)
//    Purpose: Leadership lease duration in NATS KV
//    Renewal: Automatically renewed every ElectionTTL/3 (~5s)
//    Expiry Impact: Leadership lapses; another replica takes over hook and
//    roster duties
//    Recommendation: 10-30s; shorter means faster failover, more KV traffic
//
// 3. RosterTTL (Default: 0 = infinite)
//    Purpose: Roster persistence across leader changes
//    Renewal: Never (rosters persist indefinitely)
//    Expiry Impact: Lost roster history → version counter reset
//    Recommendation: 0 (infinite) or very long (1h+) for production
//
// Constraint Hierarchy:
//   ElectionTTL >= HeartbeatTTL >= 2 * HeartbeatInterval
//
// Example Valid Configurations:
//
//   // Production (default)
//   ElectionTTL: 15s, HeartbeatInterval: 2s, HeartbeatTTL: 6s, LivenessTimeout: 6s
//
//   // Fast (testing)
//   ElectionTTL: 2s, HeartbeatInterval: 200ms, HeartbeatTTL: 600ms, LivenessTimeout: 600ms
//
//   // Conservative (unstable network)
//   ElectionTTL: 30s, HeartbeatInterval: 5s, HeartbeatTTL: 15s, LivenessTimeout: 15s

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - LivenessTimeout >= 2 * HeartbeatInterval (allow 1 missed heartbeat)
//   - HeartbeatTTL >= 2 * HeartbeatInterval (entry must outlive 1 miss)
//   - 0 < PollInterval <= LivenessTimeout / 2 (sample each window twice)
//   - WaitBound >= 0 (reserved, but must not be negative)
//   - ElectionTTL >= 1s (renewal at TTL/3 needs headroom)
//   - SourceRefreshInterval > 0
//   - RosterPublishInterval > 0
//   - OperationTimeout, StartupTimeout, ShutdownTimeout > 0
//
// Returns:
//   - error: Validation error with clear explanation, nil if valid
func (cfg *Config) Validate() error {
	// Rule 1: LivenessTimeout vs HeartbeatInterval
	if cfg.LivenessTimeout < 2*cfg.HeartbeatInterval {
		return fmt.Errorf(
			"LivenessTimeout (%v) must be >= 2*HeartbeatInterval (%v) to allow one missed heartbeat",
			cfg.LivenessTimeout, cfg.HeartbeatInterval,
		)
	}

	// Rule 2: HeartbeatTTL sanity
	if cfg.HeartbeatTTL < 2*cfg.HeartbeatInterval {
		return fmt.Errorf(
			"HeartbeatTTL (%v) must be >= 2*HeartbeatInterval (%v) to allow one missed heartbeat",
			cfg.HeartbeatTTL, cfg.HeartbeatInterval,
		)
	}

	// Rule 3: PollInterval bounds
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("PollInterval must be > 0, got %v", cfg.PollInterval)
	}
	if cfg.PollInterval > cfg.LivenessTimeout/2 {
		return fmt.Errorf(
			"PollInterval (%v) must be <= LivenessTimeout/2 (%v) to sample each timeout window at least twice",
			cfg.PollInterval, cfg.LivenessTimeout/2,
		)
	}

	// Rule 4: WaitBound is reserved but must stay representable
	if cfg.WaitBound < 0 {
		return fmt.Errorf("WaitBound must be >= 0, got %v", cfg.WaitBound)
	}

	// Rule 5: ElectionTTL floor
	if cfg.ElectionTTL < time.Second {
		return fmt.Errorf(
			"ElectionTTL (%v) must be >= 1s so lease renewal at TTL/3 has headroom",
			cfg.ElectionTTL,
		)
	}

	// Rule 6: Coordination intervals
	if cfg.SourceRefreshInterval <= 0 {
		return fmt.Errorf("SourceRefreshInterval must be > 0, got %v", cfg.SourceRefreshInterval)
	}
	if cfg.RosterPublishInterval <= 0 {
		return fmt.Errorf("RosterPublishInterval must be > 0, got %v", cfg.RosterPublishInterval)
	}

	// Rule 7: Lifecycle timeouts
	if cfg.OperationTimeout <= 0 {
		return fmt.Errorf("OperationTimeout must be > 0, got %v", cfg.OperationTimeout)
	}
	if cfg.StartupTimeout <= 0 {
		return fmt.Errorf("StartupTimeout must be > 0, got %v", cfg.StartupTimeout)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("ShutdownTimeout must be > 0, got %v", cfg.ShutdownTimeout)
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for non-recommended values.
//
// This is called after Validate() in NewMonitor() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	// Warn if PollInterval is aggressive enough to busy-loop
	if cfg.PollInterval < 50*time.Millisecond {
		logger.Warn(
			"PollInterval is very short, may consume excessive CPU",
			"pollInterval", cfg.PollInterval,
			"recommended", "50ms or higher",
		)
	}

	// Warn if the timeout leaves no slack for a single delayed heartbeat
	if cfg.LivenessTimeout < 3*cfg.HeartbeatInterval {
		logger.Warn(
			"LivenessTimeout is below recommended minimum, verdicts may flap",
			"livenessTimeout", cfg.LivenessTimeout,
			"heartbeatInterval", cfg.HeartbeatInterval,
			"recommended", 3*cfg.HeartbeatInterval,
		)
	}

	// Warn that WaitBound does nothing yet
	if cfg.WaitBound != 0 {
		logger.Warn(
			"WaitBound is reserved and currently ignored",
			"waitBound", cfg.WaitBound,
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Test timings are 10-100x faster than production defaults to enable
// rapid iteration without sacrificing test coverage. Use DefaultConfig()
// for production deployments.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := procmon.TestConfig()
//	cfg.InstanceID = "test-monitor"
//	monitor, err := procmon.NewMonitor(cfg)
func TestConfig() Config {
	cfg := DefaultConfig()

	// Fast timings for test execution (10-100x faster)
	cfg.LivenessTimeout = 600 * time.Millisecond       // 10x faster
	cfg.PollInterval = 20 * time.Millisecond           // 25x faster
	cfg.HeartbeatInterval = 200 * time.Millisecond     // 10x faster
	cfg.HeartbeatTTL = 600 * time.Millisecond          // 10x faster
	cfg.ElectionTTL = 2 * time.Second                  // 7x faster
	cfg.SourceRefreshInterval = 1 * time.Second        // 30x faster
	cfg.RosterPublishInterval = 100 * time.Millisecond // 50x faster

	return cfg
}
