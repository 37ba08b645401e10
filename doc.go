// Package procmon provides a Go library for heartbeat-based process liveness
// monitoring with leader-based coordination over NATS.
//
// Procmon tracks a fleet of processes from their heartbeats and delivers a
// per-process liveness verdict: Unknown until the first heartbeat, Alive
// while heartbeats keep arriving, Dead once they stop for longer than the
// configured timeout. Verdicts come from a small wrap-safe detector core
// that tolerates tick counter wraparound and latches faults on impossible
// inputs instead of guessing.
//
// # Quick Start
//
// Basic usage with default settings:
//
//	import procmon "github.com/gitxandert/process-monitor"
//
//	cfg := procmon.DefaultConfig()
//
//	monitor, err := procmon.NewMonitor(cfg, procmon.WithHooks(&procmon.Hooks{
//	    OnProcessDead: func(ctx context.Context, processID string) error {
//	        return alert(ctx, processID)
//	    },
//	}))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := monitor.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer monitor.Stop(context.Background())
//
//	// Feed heartbeats from any transport
//	monitor.Observe("payments-1")
//
// # Key Features
//
//   - Wrap-Safe Detection: liveness ages survive tick counter wraparound
//   - Fault Latching: impossible clock inputs and reentrant evaluation latch
//     a sticky fault instead of producing a wrong verdict
//   - Heartbeat Transport: publishers and watchers over NATS JetStream KV
//     with TTL-based expiry for crashed processes
//   - Leader Election: NATS KV based election so one replica fires hooks
//     and publishes rosters while every replica detects
//   - Roster Publishing: versioned, deduplicated liveness snapshots in KV
//   - Process Discovery: etcd lease registration and registry mirroring
//
// # Architecture
//
// Each monitored process publishes heartbeats into a shared KV bucket. Every
// monitor replica runs a watcher that turns KV updates into observations, a
// poll loop that re-evaluates all tracked processes each interval, and an
// election loop that decides which replica owns the side effects:
//
//	process -> heartbeat.Publisher -> KV bucket -> heartbeat.Watcher -> Monitor
//
// State transitions fan out to subscribers on every replica; hooks and
// roster publishing run only on the leader.
//
// # Advanced Usage
//
// Full wiring with election, roster publishing, and a process source:
//
//	import (
//	    procmon "github.com/gitxandert/process-monitor"
//	    "github.com/gitxandert/process-monitor/election"
//	    "github.com/gitxandert/process-monitor/heartbeat"
//	    "github.com/gitxandert/process-monitor/roster"
//	)
//
//	agent := election.NewKVElection(electionKV, "leader")
//
//	monitor, err := procmon.NewMonitor(cfg,
//	    procmon.WithElectionAgent(agent),
//	    procmon.WithLogger(logger),
//	)
//
//	watcher := heartbeat.NewWatcher(hbKV, "heartbeat", cfg.HeartbeatTTL, monitor, logger)
//	rosterPub := roster.NewPublisher(rosterKV, "roster", monitor, cfg.RosterPublishInterval, logger)
//
// See the examples/ directory for complete working examples.
package procmon
