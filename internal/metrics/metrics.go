// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Bot metrics
	IncCommand(command string)
	IncCommandDenied(reason string) // reason: "channel", "role", "cooldown"

	// Registration metrics
	IncRegistration(outcome string) // outcome: model.Outcome values
	IncStoreError()
	ObserveStoreDuration(duration time.Duration)

	// Game metrics
	IncGameRoll(game string, won bool)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
